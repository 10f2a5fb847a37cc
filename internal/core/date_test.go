package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateAddMonthsClipsToMonthEnd(t *testing.T) {
	tests := []struct {
		from string
		n    int
		want string
	}{
		{"2024-01-15", 1, "2024-02-15"},
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-03-31", 1, "2024-04-30"},
		{"2024-12-31", 1, "2025-01-31"},
		{"2024-05-31", -3, "2024-02-29"},
		{"2024-11-30", 14, "2026-01-30"},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			got := MustParseDate(tt.from).AddMonths(tt.n)
			if got.String() != tt.want {
				t.Errorf("AddMonths(%s, %d) = %s, want %s", tt.from, tt.n, got, tt.want)
			}
		})
	}
}

func TestDateAddYearsLeapDay(t *testing.T) {
	if got := MustParseDate("2024-02-29").AddYears(1).String(); got != "2025-02-28" {
		t.Errorf("AddYears(2024-02-29, 1) = %s, want 2025-02-28", got)
	}
	if got := MustParseDate("2024-02-29").AddYears(4).String(); got != "2028-02-29" {
		t.Errorf("AddYears(2024-02-29, 4) = %s, want 2028-02-29", got)
	}
}

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{}, false},
		{Date{Time: time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2025-02-30"); err == nil {
		t.Error("expected error for impossible date")
	}
	if _, err := ParseDate("15/01/2025"); err == nil {
		t.Error("expected error for wrong layout")
	}
	d, err := ParseDate("2025-01-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !d.Equal(NewDate(2025, 1, 15)) {
		t.Errorf("ParseDate = %s", d)
	}
}

func TestMinDate(t *testing.T) {
	a, b := NewDate(2025, 1, 1), NewDate(2025, 6, 1)
	if got := MinDate(a, b); !got.Equal(a) {
		t.Errorf("MinDate = %s, want %s", got, a)
	}
	if got := MinDate(Date{}, b); !got.Equal(b) {
		t.Errorf("MinDate(zero, b) = %s, want %s", got, b)
	}
	if got := MinDate(a, Date{}); !got.Equal(a) {
		t.Errorf("MinDate(a, zero) = %s, want %s", got, a)
	}
}

func TestMonthsBetween(t *testing.T) {
	if got := MonthsBetween(NewDate(2024, 1, 31), NewDate(2024, 2, 1)); got != 1 {
		t.Errorf("MonthsBetween = %d, want 1", got)
	}
	if got := MonthsBetween(NewDate(2023, 11, 1), NewDate(2024, 2, 28)); got != 3 {
		t.Errorf("MonthsBetween = %d, want 3", got)
	}
}

func TestDateJSON(t *testing.T) {
	var v struct {
		From Date `json:"from"`
		To   Date `json:"to"`
	}
	if err := json.Unmarshal([]byte(`{"from":"2025-03-01","to":null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.From.String() != "2025-03-01" || !v.To.IsZero() {
		t.Fatalf("unexpected %+v", v)
	}
	b, _ := json.Marshal(v)
	if string(b) != `{"from":"2025-03-01","to":null}` {
		t.Errorf("marshal = %s", b)
	}
}
