package constants

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"groceries", Groceries, true},
		{"  Groceries ", Groceries, true},
		{"food", Groceries, true},
		{"dining", Restaurants, true},
		{"fuel", Transportation, true},
		{"pharmacy", Healthcare, true},
		{"misc", Other, true},
		{"gambling", Other, false},
		{"", Other, false},
	}
	for _, tt := range tests {
		got, ok := Canonicalize(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Canonicalize(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := Groceries.DisplayName(); got != "Groceries" {
		t.Errorf("DisplayName() = %q", got)
	}
	if got := Category("").DisplayName(); got != "" {
		t.Errorf("DisplayName() on empty = %q", got)
	}
}
