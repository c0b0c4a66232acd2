package analytics

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/receiptscan/receiptscan/internal/common"
	"github.com/receiptscan/receiptscan/internal/entity"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rcpt(vendor string, amount float64, txDate, category, currency string, confidence float64) *entity.Receipt {
	return &entity.Receipt{
		ID:           uuid.New(),
		Vendor:       vendor,
		TxDate:       day(txDate),
		Amount:       amount,
		CurrencyCode: currency,
		CategoryName: category,
		Confidence:   confidence,
	}
}

func sampleReceipts() []*entity.Receipt {
	return []*entity.Receipt{
		rcpt("Walmart", 23.47, "2024-01-15", "groceries", "USD", 0.9),
		rcpt("Starbucks", 4.50, "2024-02-01", "restaurants", "USD", 0.8),
		rcpt("Shell", 40.00, "2024-01-05", "transportation", "USD", 0.4),
		rcpt("Carrefour", 12.00, "2024-02-10", "groceries", "EUR", 0.7),
	}
}

func vendors(receipts []*entity.Receipt) []string {
	names := make([]string, len(receipts))
	for i, r := range receipts {
		names[i] = r.Vendor
	}
	return names
}

func fptr(v float64) *float64     { return &v }
func tptr(t time.Time) *time.Time { return &t }

func TestSearch(t *testing.T) {
	e := NewEngine(nil)
	receipts := sampleReceipts()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			name:   "empty filter returns everything",
			filter: Filter{},
			want:   []string{"Walmart", "Starbucks", "Shell", "Carrefour"},
		},
		{
			name:   "vendor substring is case insensitive",
			filter: Filter{VendorQuery: "WAL"},
			want:   []string{"Walmart"},
		},
		{
			name:   "misspelled vendor needs fuzzy",
			filter: Filter{VendorQuery: "wallmart"},
			want:   []string{},
		},
		{
			name:   "fuzzy matches misspelled vendor",
			filter: Filter{VendorQuery: "wallmart", Fuzzy: true},
			want:   []string{"Walmart"},
		},
		{
			name:   "fuzzy keeps substring matches",
			filter: Filter{VendorQuery: "star", Fuzzy: true},
			want:   []string{"Starbucks"},
		},
		{
			name:   "date window",
			filter: Filter{DateFrom: tptr(day("2024-01-10")), DateTo: tptr(day("2024-02-05"))},
			want:   []string{"Walmart", "Starbucks"},
		},
		{
			name:   "amount range",
			filter: Filter{AmountMin: fptr(10), AmountMax: fptr(30)},
			want:   []string{"Walmart", "Carrefour"},
		},
		{
			name:   "category",
			filter: Filter{Category: "groceries"},
			want:   []string{"Walmart", "Carrefour"},
		},
		{
			name:   "currency",
			filter: Filter{Currency: "EUR"},
			want:   []string{"Carrefour"},
		},
		{
			name:   "minimum confidence",
			filter: Filter{MinConfidence: 0.5},
			want:   []string{"Walmart", "Starbucks", "Carrefour"},
		},
		{
			name:   "filters combine",
			filter: Filter{VendorQuery: "a", Category: "groceries"},
			want:   []string{"Walmart", "Carrefour"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vendors(e.Search(receipts, tt.filter))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Search() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSort(t *testing.T) {
	e := NewEngine(nil)
	receipts := sampleReceipts()

	tests := []struct {
		name      string
		field     string
		ascending bool
		want      []string
	}{
		{
			name:      "date ascending",
			field:     "date",
			ascending: true,
			want:      []string{"Shell", "Walmart", "Starbucks", "Carrefour"},
		},
		{
			name:  "date descending",
			field: "date",
			want:  []string{"Carrefour", "Starbucks", "Walmart", "Shell"},
		},
		{
			name:      "amount ascending",
			field:     "amount",
			ascending: true,
			want:      []string{"Starbucks", "Carrefour", "Walmart", "Shell"},
		},
		{
			name:      "vendor ascending",
			field:     "vendor",
			ascending: true,
			want:      []string{"Carrefour", "Shell", "Starbucks", "Walmart"},
		},
		{
			name:  "confidence descending",
			field: "confidence",
			want:  []string{"Walmart", "Starbucks", "Carrefour", "Shell"},
		},
		{
			name:      "category ascending is stable",
			field:     "category",
			ascending: true,
			want:      []string{"Walmart", "Carrefour", "Starbucks", "Shell"},
		},
		{
			name:      "currency ascending is stable",
			field:     "currency",
			ascending: true,
			want:      []string{"Carrefour", "Walmart", "Starbucks", "Shell"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sorted, err := e.Sort(receipts, tt.field, tt.ascending)
			if err != nil {
				t.Fatalf("Sort() error = %v", err)
			}
			if got := vendors(sorted); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sort(%q) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestSortUnknownField(t *testing.T) {
	e := NewEngine(nil)

	_, err := e.Sort(sampleReceipts(), "color", true)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("Sort() error = %v, want ErrInvalidInput", err)
	}
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "INVALID_SORT" {
		t.Errorf("Sort() error = %v, want code INVALID_SORT", err)
	}
}

func TestSortReturnsCopy(t *testing.T) {
	e := NewEngine(nil)
	receipts := sampleReceipts()

	sorted, err := e.Sort(receipts, "amount", true)
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if sorted[0].Vendor != "Starbucks" {
		t.Errorf("sorted[0] = %q, want Starbucks", sorted[0].Vendor)
	}
	if receipts[0].Vendor != "Walmart" {
		t.Errorf("input mutated: receipts[0] = %q, want Walmart", receipts[0].Vendor)
	}
}

func TestSortFields(t *testing.T) {
	want := []string{"amount", "category", "confidence", "currency", "date", "vendor"}
	if got := SortFields(); !reflect.DeepEqual(got, want) {
		t.Errorf("SortFields() = %v, want %v", got, want)
	}
}
