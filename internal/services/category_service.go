package services

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mxmoney/internal/core"
	"mxmoney/internal/storage"
)

// CategoryKnowledge lists the known categories as "# Name" headers, each
// followed by the keywords that identify it. It seeds the category table and
// guides statement categorization.
//
//go:embed knowledge/categories.md
var CategoryKnowledge string

// FallbackCategory is assigned to imported rows nobody could categorize.
const FallbackCategory = "Other"

// CategoryService manages transaction categories.
type CategoryService struct {
	store storage.CategoryStore
	now   func() time.Time
}

func NewCategoryService(store storage.CategoryStore) *CategoryService {
	return &CategoryService{store: store, now: time.Now}
}

type CategoryInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

func (s *CategoryService) List(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *CategoryService) Get(ctx context.Context, id int64) (core.Category, error) {
	return s.store.FindCategory(ctx, id)
}

// Create stores a new category. Names are unique regardless of case.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (core.Category, error) {
	c := core.NewCategory(in.Name, in.Color, in.Icon, s.now())
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Category created", "id", created.ID, "name", created.Name)
	return created, nil
}

func (s *CategoryService) Update(ctx context.Context, id int64, in CategoryInput) (core.Category, error) {
	existing, err := s.store.FindCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	existing.Name = strings.TrimSpace(in.Name)
	existing.Color = strings.TrimSpace(in.Color)
	existing.Icon = strings.TrimSpace(in.Icon)
	existing.UpdatedAt = s.now()
	if err := existing.Validate(); err != nil {
		return core.Category{}, err
	}
	return s.store.UpdateCategory(ctx, existing)
}

// Delete removes a category. Transactions in it become uncategorized.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category deleted", "id", id)
	return nil
}

// FindOrCreate returns the category called name, creating it with the next
// free palette color when it does not exist.
func (s *CategoryService) FindOrCreate(ctx context.Context, name string) (core.Category, error) {
	name = strings.TrimSpace(name)
	c, err := s.store.FindCategoryByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Category{}, err
	}

	existing, err := s.store.ListCategories(ctx)
	if err != nil {
		return core.Category{}, err
	}
	color := core.NextColor(colorsOf(existing))
	created, err := s.Create(ctx, CategoryInput{Name: name, Color: color})
	if errors.Is(err, core.ErrConflict) {
		// Lost a race with another writer.
		return s.store.FindCategoryByName(ctx, name)
	}
	return created, err
}

// Seed creates every category named in the knowledge base that does not
// exist yet and returns how many were created.
func (s *CategoryService) Seed(ctx context.Context, knowledge string) (int, error) {
	existing, err := s.store.ListCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("list categories: %w", err)
	}
	used := colorsOf(existing)

	created := 0
	for _, name := range CategoryNames(knowledge) {
		if _, err := s.store.FindCategoryByName(ctx, name); err == nil {
			continue
		} else if !errors.Is(err, core.ErrNotFound) {
			return created, err
		}

		color := core.NextColor(used)
		if _, err := s.Create(ctx, CategoryInput{Name: name, Color: color}); err != nil {
			return created, fmt.Errorf("seed category %q: %w", name, err)
		}
		used = append(used, color)
		created++
	}

	if created > 0 {
		slog.InfoContext(ctx, "Seeded categories from knowledge base", "created", created)
	} else {
		slog.DebugContext(ctx, "All knowledge base categories already exist")
	}
	return created, nil
}

// CategoryNames returns the "# Header" names of a knowledge base in order.
func CategoryNames(knowledge string) []string {
	var names []string
	sc := bufio.NewScanner(strings.NewReader(knowledge))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		rest, ok := strings.CutPrefix(line, "#")
		if !ok || strings.HasPrefix(rest, "#") {
			continue
		}
		if name := strings.TrimSpace(rest); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func colorsOf(cats []core.Category) []string {
	colors := make([]string, 0, len(cats))
	for _, c := range cats {
		if c.Color != "" {
			colors = append(colors, c.Color)
		}
	}
	return colors
}
