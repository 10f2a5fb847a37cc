package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mxmoney/internal/core"
	"mxmoney/internal/storage/memory"
)

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"69,79", "69.79", false},
		{"1.000,00", "1000.00", false},
		{"1,000.00", "1000.00", false},
		{"R$ 1.234,56", "1234.56", false},
		{"-45.10", "-45.10", false},
		{"$12", "12.00", false},
		{"abc", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeAmount: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("comma separated with header", func(t *testing.T) {
		in := "date,title,amount\n2024-03-01,Padaria Central,12.50\n2024-03-02,\"Pgto Autoposto, 24h\",\"1,200.00\"\n"
		items, err := ParseCSV(ctx, strings.NewReader(in))
		if err != nil {
			t.Fatalf("ParseCSV: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(items))
		}
		if items[1].Description != "Pgto Autoposto, 24h" || !items[1].Amount.Equal(m("1200")) {
			t.Errorf("unexpected row %+v", items[1])
		}
	})

	t.Run("semicolon with brazilian numbers", func(t *testing.T) {
		in := "Data;Descrição;Valor\n01/03/2024;Mercado;69,79\n02/03/2024;Salário;-3000\n"
		items, err := ParseCSV(ctx, strings.NewReader(in))
		if err != nil {
			t.Fatalf("ParseCSV: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(items))
		}
		if items[0].Date.String() != "2024-03-01" || !items[0].Amount.Equal(m("69.79")) {
			t.Errorf("unexpected row %+v", items[0])
		}
		if !items[1].Amount.IsNegative() {
			t.Errorf("income row should stay negative: %s", items[1].Amount)
		}
	})

	t.Run("tab and space separated without header", func(t *testing.T) {
		in := "2024-03-01\tNetflix\t55.90\n2024-03-02   Spotify   21.90\n"
		items, err := ParseCSV(ctx, strings.NewReader(in))
		if err != nil {
			t.Fatalf("ParseCSV: %v", err)
		}
		if len(items) != 2 || items[1].Description != "Spotify" {
			t.Errorf("unexpected rows %+v", items)
		}
	})

	t.Run("bad rows are skipped", func(t *testing.T) {
		in := "2024-03-01,only two\nnot-a-date,Coffee,3.00\n2024-03-02,Coffee,lots\n2024-03-03,Tea,2.00\n"
		items, err := ParseCSV(ctx, strings.NewReader(in))
		if err != nil {
			t.Fatalf("ParseCSV: %v", err)
		}
		if len(items) != 1 || items[0].Description != "Tea" {
			t.Errorf("unexpected rows %+v", items)
		}
	})
}

func TestImportService_Categorize(t *testing.T) {
	ctx := context.Background()
	items := []ImportItem{
		{Description: "Padaria"},
		{Description: "Uber"},
		{Description: "Mystery"},
	}

	t.Run("numbered answers in mixed formats", func(t *testing.T) {
		completer := &fakeCompleter{response: "```\n1. Food\n2 - Transport\n```"}
		svc := NewImportService(completer, nil, nil)
		got := svc.Categorize(ctx, items)
		want := []string{"Food", "Transport", FallbackCategory}
		for i, w := range want {
			if got[i].Category != w {
				t.Errorf("item %d: got %q, want %q", i, got[i].Category, w)
			}
		}
		if !strings.Contains(completer.prompts[0], "3. Mystery") {
			t.Error("prompt does not list the transactions")
		}
		if items[0].Category != "" {
			t.Error("input items were modified")
		}
	})

	t.Run("colon format", func(t *testing.T) {
		svc := NewImportService(&fakeCompleter{response: "1: Health\n3: Shopping"}, nil, nil)
		got := svc.Categorize(ctx, items)
		if got[0].Category != "Health" || got[1].Category != FallbackCategory || got[2].Category != "Shopping" {
			t.Errorf("unexpected categories %+v", got)
		}
	})

	t.Run("model failure falls back", func(t *testing.T) {
		svc := NewImportService(&fakeCompleter{err: errors.New("quota exceeded")}, nil, nil)
		for _, it := range svc.Categorize(ctx, items) {
			if it.Category != FallbackCategory {
				t.Errorf("got %q", it.Category)
			}
		}
	})

	t.Run("no model configured", func(t *testing.T) {
		got := NewImportService(nil, nil, nil).Categorize(ctx, items)
		if got[1].Category != FallbackCategory {
			t.Errorf("got %q", got[1].Category)
		}
	})
}

func TestImportService_SaveImported(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewImportService(nil, newTransactionService(store, nil), newCategoryService(store))

	saved, err := svc.SaveImported(ctx, []ImportItem{
		{Date: d("2024-03-01"), Description: "Mercado", Amount: m("69.79"), Category: "Food"},
		{Date: d("2024-03-02"), Description: "Salary", Amount: m("-3000"), Category: "income"},
		{Date: d("2024-03-03"), Description: "Mystery", Amount: m("5"), Category: FallbackCategory},
		{Date: d("2024-03-04"), Description: "Bread", Amount: m("4"), Category: "food"},
	})
	if err != nil {
		t.Fatalf("SaveImported: %v", err)
	}
	if len(saved) != 4 {
		t.Fatalf("saved %d rows", len(saved))
	}
	if saved[0].Kind != core.Expense || saved[1].Kind != core.Income || !saved[1].Amount.Equal(m("3000")) {
		t.Errorf("unexpected kinds %s %s amount %s", saved[0].Kind, saved[1].Kind, saved[1].Amount)
	}
	if saved[2].CategoryID != nil {
		t.Error("fallback category should leave the row uncategorized")
	}
	if saved[0].CategoryID == nil || saved[3].CategoryID == nil || *saved[0].CategoryID != *saved[3].CategoryID {
		t.Error("same category name should reuse one category")
	}
	cats, _ := store.ListCategories(ctx)
	if len(cats) != 2 {
		t.Errorf("expected 2 categories, got %d", len(cats))
	}
}

func TestImportService_SaveImportedValidatesFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewImportService(nil, newTransactionService(store, nil), newCategoryService(store))

	_, err := svc.SaveImported(ctx, []ImportItem{
		{Date: d("2024-03-01"), Description: "Ok", Amount: m("1")},
		{Date: d("2024-03-01"), Description: "", Amount: m("1")},
	})
	if !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
	if all, _ := store.FindAll(ctx); len(all) != 0 {
		t.Errorf("stored %d rows despite the invalid item", len(all))
	}
}
