package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	Income  Kind = "INCOME"
	Expense Kind = "EXPENSE"
)

const (
	None    Recurrence = "NONE"
	Daily   Recurrence = "DAILY"
	Weekly  Recurrence = "WEEKLY"
	Monthly Recurrence = "MONTHLY"
	Yearly  Recurrence = "YEARLY"
)

const (
	MaxDescriptionLength  = 255
	MaxCategoryNameLength = 100
	MaxCategoryIconLength = 50
)

type (
	// Kind tells whether a transaction adds to or subtracts from the balance.
	Kind string

	// Recurrence is the repetition period of a template. None marks a one-off row.
	Recurrence string

	Category struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Color     string    `json:"color,omitempty"`
		Icon      string    `json:"icon,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// Transaction is either a one-off ledger row or, when Recurrence is not
	// None, a template that repeats from EffectiveDate until EndDate.
	Transaction struct {
		ID                int64      `json:"id"`
		Description       string     `json:"description"`
		Amount            Money      `json:"amount"`
		EffectiveDate     Date       `json:"effectiveDate"`
		Kind              Kind       `json:"type"`
		Recurrence        Recurrence `json:"recurrence"`
		EndDate           Date       `json:"endDate"`
		LastGeneratedDate Date       `json:"lastGeneratedDate"`
		ParentTemplateID  *int64     `json:"parentTemplateId,omitempty"`
		CategoryID        *int64     `json:"categoryId,omitempty"`
		Category          *Category  `json:"category,omitempty"`
		CreatedAt         time.Time  `json:"createdAt"`
		UpdatedAt         time.Time  `json:"updatedAt"`
	}
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")

	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	ErrEmptyDescription   = fmt.Errorf("%w: empty description", ErrInvalidArgument)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max %d characters)", ErrInvalidArgument, MaxDescriptionLength)
	ErrInvalidKind        = fmt.Errorf("%w: invalid transaction type", ErrInvalidArgument)
	ErrInvalidRecurrence  = fmt.Errorf("%w: invalid recurrence", ErrInvalidArgument)
	ErrInvalidDate        = fmt.Errorf("%w: invalid date", ErrInvalidArgument)
	ErrEndBeforeStart     = fmt.Errorf("%w: end date must not be before effective date", ErrInvalidArgument)
	ErrInvalidTemplate    = fmt.Errorf("%w: malformed recurring template", ErrInvalidArgument)
	ErrInvalidCategory    = fmt.Errorf("%w: invalid category", ErrInvalidArgument)
	ErrGeneratedOutside   = fmt.Errorf("%w: last generated date outside the template's schedule", ErrInvalidArgument)
	ErrOccurrenceRepeats  = fmt.Errorf("%w: a generated occurrence cannot repeat", ErrInvalidArgument)
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ParseKind parses INCOME or EXPENSE, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

// ParseRecurrence parses a recurrence name case-insensitively.
func ParseRecurrence(s string) (Recurrence, error) {
	r := Recurrence(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecurrence, s)
	}
	return r, nil
}

func (r Recurrence) Valid() bool {
	switch r {
	case None, Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// NewTransaction returns a one-off transaction stamped with now.
func NewTransaction(description string, amount Money, date Date, kind Kind, now time.Time) Transaction {
	return Transaction{
		Description:   strings.TrimSpace(description),
		Amount:        amount,
		EffectiveDate: date,
		Kind:          kind,
		Recurrence:    None,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Materialize returns the concrete occurrence of template t on date.
func Materialize(t Transaction, date Date, now time.Time) Transaction {
	parent := t.ID
	occ := NewTransaction(t.Description, t.Amount, date, t.Kind, now)
	occ.ParentTemplateID = &parent
	if t.CategoryID != nil {
		id := *t.CategoryID
		occ.CategoryID = &id
	}
	return occ
}

// Touch stamps the modification time.
func (t *Transaction) Touch(now time.Time) {
	t.UpdatedAt = now
}

// IsTemplate reports whether t repeats.
func (t Transaction) IsTemplate() bool {
	return t.Recurrence != None && t.Recurrence != ""
}

// IsMaterialized reports whether t was generated from a template.
func (t Transaction) IsMaterialized() bool {
	return t.ParentTemplateID != nil
}

// SignedAmount is +Amount for income and -Amount for expense.
func (t Transaction) SignedAmount() Money {
	if t.Kind == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if len([]rune(desc)) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if !t.Recurrence.Valid() {
		return ErrInvalidRecurrence
	}
	if err := t.EffectiveDate.Validate(); err != nil {
		return err
	}
	if !t.EndDate.IsZero() {
		if err := t.EndDate.Validate(); err != nil {
			return err
		}
		if t.EndDate.Before(t.EffectiveDate) {
			return ErrEndBeforeStart
		}
	}
	if t.IsMaterialized() && t.IsTemplate() {
		return ErrOccurrenceRepeats
	}
	if !t.LastGeneratedDate.IsZero() {
		if t.LastGeneratedDate.Before(t.EffectiveDate) {
			return ErrGeneratedOutside
		}
		if !t.EndDate.IsZero() && t.LastGeneratedDate.After(t.EndDate) {
			return ErrGeneratedOutside
		}
	}
	return nil
}

// NewCategory returns a category stamped with now.
func NewCategory(name, color, icon string, now time.Time) Category {
	return Category{
		Name:      strings.TrimSpace(name),
		Color:     strings.TrimSpace(color),
		Icon:      strings.TrimSpace(icon),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}
	if len([]rune(name)) > MaxCategoryNameLength {
		return fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidCategory, MaxCategoryNameLength)
	}
	if c.Color != "" && !hexColor.MatchString(c.Color) {
		return fmt.Errorf("%w: color must look like #RRGGBB", ErrInvalidCategory)
	}
	if len([]rune(c.Icon)) > MaxCategoryIconLength {
		return fmt.Errorf("%w: icon too long (max %d characters)", ErrInvalidCategory, MaxCategoryIconLength)
	}
	return nil
}
