package services

import (
	"errors"
	"slices"
	"testing"

	"mxmoney/internal/core"
)

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		from string
		r    core.Recurrence
		want string
	}{
		{"2024-01-31", core.Daily, "2024-02-01"},
		{"2024-12-29", core.Weekly, "2025-01-05"},
		{"2024-01-31", core.Monthly, "2024-02-29"},
		{"2023-01-31", core.Monthly, "2023-02-28"},
		{"2024-11-15", core.Monthly, "2024-12-15"},
		{"2024-02-29", core.Yearly, "2025-02-28"},
	}
	for _, tt := range tests {
		t.Run(string(tt.r)+" "+tt.from, func(t *testing.T) {
			got, err := NextOccurrence(d(tt.from), tt.r)
			if err != nil {
				t.Fatalf("NextOccurrence: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	t.Run("none has no next occurrence", func(t *testing.T) {
		if _, err := NextOccurrence(d("2024-01-01"), core.None); !errors.Is(err, core.ErrInvalidRecurrence) {
			t.Errorf("expected ErrInvalidRecurrence, got %v", err)
		}
	})
}

func TestExpand(t *testing.T) {
	t.Run("monthly over a year", func(t *testing.T) {
		tpl := template("Rent", "1000", "2024-01-01", core.Expense, core.Monthly)
		got, err := Expand(tpl, d("2024-01-01"), d("2024-12-31"))
		if err != nil {
			t.Fatalf("Expand: %v", err)
		}
		if len(got) != 12 {
			t.Fatalf("expected 12 dates, got %d: %v", len(got), dateStrings(got))
		}
		if got[0].String() != "2024-01-01" || got[11].String() != "2024-12-01" {
			t.Errorf("unexpected bounds %s..%s", got[0], got[11])
		}
	})

	t.Run("window starting after effective date keeps the phase", func(t *testing.T) {
		tpl := template("Gym", "30", "2024-01-10", core.Expense, core.Monthly)
		got, err := Expand(tpl, d("2024-03-01"), d("2024-05-31"))
		if err != nil {
			t.Fatalf("Expand: %v", err)
		}
		want := []string{"2024-03-10", "2024-04-10", "2024-05-10"}
		if !slices.Equal(dateStrings(got), want) {
			t.Errorf("got %v, want %v", dateStrings(got), want)
		}
	})

	t.Run("end date clamps the window", func(t *testing.T) {
		tpl := template("Course", "50", "2024-01-01", core.Expense, core.Weekly)
		tpl.EndDate = d("2024-01-15")
		got, err := Expand(tpl, d("2024-01-01"), d("2024-12-31"))
		if err != nil {
			t.Fatalf("Expand: %v", err)
		}
		want := []string{"2024-01-01", "2024-01-08", "2024-01-15"}
		if !slices.Equal(dateStrings(got), want) {
			t.Errorf("got %v, want %v", dateStrings(got), want)
		}
	})

	t.Run("month end clipping carries forward", func(t *testing.T) {
		tpl := template("Bill", "10", "2024-01-31", core.Expense, core.Monthly)
		got, err := Expand(tpl, d("2024-01-01"), d("2024-04-30"))
		if err != nil {
			t.Fatalf("Expand: %v", err)
		}
		want := []string{"2024-01-31", "2024-02-29", "2024-03-29", "2024-04-29"}
		if !slices.Equal(dateStrings(got), want) {
			t.Errorf("got %v, want %v", dateStrings(got), want)
		}
	})

	t.Run("window before the template", func(t *testing.T) {
		tpl := template("Later", "10", "2025-01-01", core.Expense, core.Daily)
		got, err := Expand(tpl, d("2024-01-01"), d("2024-12-31"))
		if err != nil {
			t.Fatalf("Expand: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no dates, got %v", dateStrings(got))
		}
	})

	t.Run("one-off expands to nothing", func(t *testing.T) {
		got, err := Expand(oneOff("Coffee", "3", "2024-01-05", core.Expense), d("2024-01-01"), d("2024-01-31"))
		if err != nil || len(got) != 0 {
			t.Errorf("expected no dates and no error, got %v, %v", dateStrings(got), err)
		}
	})

	t.Run("unknown recurrence is a malformed template", func(t *testing.T) {
		tpl := template("Bad", "10", "2024-01-01", core.Expense, core.Recurrence("BIWEEKLY"))
		if _, err := Expand(tpl, d("2024-01-01"), d("2024-01-31")); !errors.Is(err, core.ErrInvalidTemplate) {
			t.Errorf("expected ErrInvalidTemplate, got %v", err)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		tpl := template("Salary", "3000", "2024-01-25", core.Income, core.Monthly)
		a, _ := Expand(tpl, d("2024-01-01"), d("2026-01-01"))
		b, _ := Expand(tpl, d("2024-01-01"), d("2026-01-01"))
		if !slices.Equal(dateStrings(a), dateStrings(b)) {
			t.Error("Expand returned different dates for the same input")
		}
	})
}

func TestPendingOccurrences(t *testing.T) {
	tests := []struct {
		name          string
		effective     string
		end           string
		lastGenerated string
		asOf          string
		want          []string
	}{
		{
			name:      "never generated skips the effective date",
			effective: "2024-01-15",
			asOf:      "2024-04-20",
			want:      []string{"2024-02-15", "2024-03-15", "2024-04-15"},
		},
		{
			name:          "resumes after last generated",
			effective:     "2024-01-15",
			lastGenerated: "2024-03-15",
			asOf:          "2024-05-15",
			want:          []string{"2024-04-15", "2024-05-15"},
		},
		{
			name:      "end date bounds generation",
			effective: "2024-01-15",
			end:       "2024-03-01",
			asOf:      "2024-12-31",
			want:      []string{"2024-02-15"},
		},
		{
			name:      "nothing due yet",
			effective: "2024-01-15",
			asOf:      "2024-02-14",
		},
		{
			name:      "template in the future",
			effective: "2025-01-15",
			asOf:      "2024-02-14",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := template("Sub", "10", tt.effective, core.Expense, core.Monthly)
			if tt.end != "" {
				tpl.EndDate = d(tt.end)
			}
			if tt.lastGenerated != "" {
				tpl.LastGeneratedDate = d(tt.lastGenerated)
			}
			got, err := PendingOccurrences(tpl, d(tt.asOf))
			if err != nil {
				t.Fatalf("PendingOccurrences: %v", err)
			}
			if !slices.Equal(dateStrings(got), tt.want) {
				t.Errorf("got %v, want %v", dateStrings(got), tt.want)
			}
		})
	}
}

func TestDeductionDates(t *testing.T) {
	t.Run("one-off is charged on the base date only", func(t *testing.T) {
		got, err := DeductionDates(d("2024-01-01"), core.None, 12)
		if err != nil {
			t.Fatalf("DeductionDates: %v", err)
		}
		if !slices.Equal(dateStrings(got), []string{"2024-01-01"}) {
			t.Errorf("got %v", dateStrings(got))
		}
	})

	t.Run("monthly installments", func(t *testing.T) {
		got, err := DeductionDates(d("2024-01-31"), core.Monthly, 3)
		if err != nil {
			t.Fatalf("DeductionDates: %v", err)
		}
		want := []string{"2024-01-31", "2024-02-29", "2024-03-29"}
		if !slices.Equal(dateStrings(got), want) {
			t.Errorf("got %v, want %v", dateStrings(got), want)
		}
	})

	t.Run("zero occurrences", func(t *testing.T) {
		got, err := DeductionDates(d("2024-01-01"), core.Weekly, 0)
		if err != nil || len(got) != 0 {
			t.Errorf("expected no dates, got %v, %v", dateStrings(got), err)
		}
	})

	t.Run("occurrences are bounded", func(t *testing.T) {
		for _, n := range []int{-1, MaxOccurrences + 1} {
			if _, err := DeductionDates(d("2024-01-01"), core.Daily, n); !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("n=%d: expected ErrInvalidArgument, got %v", n, err)
			}
		}
		got, err := DeductionDates(d("2024-01-01"), core.Daily, MaxOccurrences)
		if err != nil || len(got) != MaxOccurrences {
			t.Errorf("got %d dates, %v", len(got), err)
		}
	})
}
