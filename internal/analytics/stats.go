package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/receiptscan/receiptscan/internal/entity"
)

// Anomaly types.
const (
	AnomalyHighAmount = "high_amount"
	AnomalyDuplicate  = "potential_duplicate"
)

type VendorStats struct {
	Count          int       `json:"count"`
	TotalAmount    float64   `json:"total_amount"`
	AverageAmount  float64   `json:"average_amount"`
	LastVisit      time.Time `json:"last_visit"`
	FrequencyScore float64   `json:"frequency_score"`
}

type CategoryStats struct {
	Count         int     `json:"count"`
	TotalAmount   float64 `json:"total_amount"`
	AverageAmount float64 `json:"average_amount"`
	Percentage    float64 `json:"percentage"` // share of total spend
}

type MonthlyStats struct {
	Count         int     `json:"count"`
	TotalAmount   float64 `json:"total_amount"`
	AverageAmount float64 `json:"average_amount"`
}

type CurrencyStats struct {
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
	Percentage  float64 `json:"percentage"` // share of receipt count
}

type DayPattern struct {
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

type SpendingPatterns struct {
	DayPatterns        map[string]DayPattern `json:"day_patterns"` // weekday name buckets
	AmountStdDev       float64               `json:"amount_std_dev"`
	VendorLoyaltyScore float64               `json:"vendor_loyalty_score"`
	UniqueVendors      int                   `json:"unique_vendors"`
	RepeatVendors      int                   `json:"repeat_vendors"`
}

type Anomaly struct {
	ReceiptID uuid.UUID `json:"receipt_id"`
	Vendor    string    `json:"vendor"`
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Type      string    `json:"type"`
	Deviation float64   `json:"deviation,omitempty"`  // std devs above mean, high_amount only
	SimilarTo uuid.UUID `json:"similar_to,omitempty"` // potential_duplicate only
}

// Report is the full analytics summary over one receipt collection.
type Report struct {
	TotalReceipts int                      `json:"total_receipts"`
	TotalAmount   float64                  `json:"total_amount"`
	AverageAmount float64                  `json:"average_amount"`
	MedianAmount  float64                  `json:"median_amount"`
	Vendors       map[string]VendorStats   `json:"vendor_stats"`
	Categories    map[string]CategoryStats `json:"category_stats"`
	Monthly       map[string]MonthlyStats  `json:"monthly_stats"`
	Currencies    map[string]CurrencyStats `json:"currency_stats"`
	Patterns      SpendingPatterns         `json:"spending_patterns"`
	Anomalies     []Anomaly                `json:"anomalies"`
}

// Report summarizes the collection. An empty input yields a zeroed report.
func (e *Engine) Report(receipts []*entity.Receipt) Report {
	if len(receipts) == 0 {
		return Report{}
	}

	amounts := make([]float64, len(receipts))
	var total float64
	for i, r := range receipts {
		amounts[i] = r.Amount
		total += r.Amount
	}
	mean := total / float64(len(receipts))
	sd := stdDev(amounts, mean)

	rep := Report{
		TotalReceipts: len(receipts),
		TotalAmount:   total,
		AverageAmount: mean,
		MedianAmount:  median(amounts),
		Vendors:       vendorStats(receipts),
		Categories:    categoryStats(receipts, total),
		Monthly:       monthlyStats(receipts),
		Currencies:    currencyStats(receipts),
		Patterns:      spendingPatterns(receipts, sd),
		Anomalies:     e.detectAnomalies(receipts, mean, sd),
	}
	e.logger.Debug("analytics report generated",
		"receipts", rep.TotalReceipts, "anomalies", len(rep.Anomalies))
	return rep
}

func vendorStats(receipts []*entity.Receipt) map[string]VendorStats {
	out := make(map[string]VendorStats)
	for _, r := range receipts {
		s := out[r.Vendor]
		s.Count++
		s.TotalAmount += r.Amount
		if r.TxDate.After(s.LastVisit) {
			s.LastVisit = r.TxDate
		}
		out[r.Vendor] = s
	}
	n := float64(len(receipts))
	for vendor, s := range out {
		s.AverageAmount = s.TotalAmount / float64(s.Count)
		s.FrequencyScore = float64(s.Count) / n
		out[vendor] = s
	}
	return out
}

func categoryStats(receipts []*entity.Receipt, total float64) map[string]CategoryStats {
	out := make(map[string]CategoryStats)
	for _, r := range receipts {
		s := out[r.CategoryName]
		s.Count++
		s.TotalAmount += r.Amount
		out[r.CategoryName] = s
	}
	for category, s := range out {
		s.AverageAmount = s.TotalAmount / float64(s.Count)
		if total > 0 {
			s.Percentage = s.TotalAmount / total * 100
		}
		out[category] = s
	}
	return out
}

func monthlyStats(receipts []*entity.Receipt) map[string]MonthlyStats {
	out := make(map[string]MonthlyStats)
	for _, r := range receipts {
		key := r.TxDate.Format("2006-01")
		s := out[key]
		s.Count++
		s.TotalAmount += r.Amount
		out[key] = s
	}
	for month, s := range out {
		s.AverageAmount = s.TotalAmount / float64(s.Count)
		out[month] = s
	}
	return out
}

func currencyStats(receipts []*entity.Receipt) map[string]CurrencyStats {
	out := make(map[string]CurrencyStats)
	for _, r := range receipts {
		s := out[r.CurrencyCode]
		s.Count++
		s.TotalAmount += r.Amount
		out[r.CurrencyCode] = s
	}
	n := float64(len(receipts))
	for code, s := range out {
		s.Percentage = float64(s.Count) / n * 100
		out[code] = s
	}
	return out
}

func spendingPatterns(receipts []*entity.Receipt, sd float64) SpendingPatterns {
	days := make(map[string]DayPattern)
	vendorCounts := make(map[string]int)
	for _, r := range receipts {
		name := r.TxDate.Weekday().String()
		d := days[name]
		d.Count++
		d.TotalAmount += r.Amount
		days[name] = d
		vendorCounts[r.Vendor]++
	}
	repeat := 0
	for _, c := range vendorCounts {
		if c > 1 {
			repeat++
		}
	}
	return SpendingPatterns{
		DayPatterns:        days,
		AmountStdDev:       sd,
		VendorLoyaltyScore: float64(repeat) / float64(len(vendorCounts)),
		UniqueVendors:      len(vendorCounts),
		RepeatVendors:      repeat,
	}
}

// detectAnomalies flags amounts far above the mean and receipts sharing a
// vendor+amount+day signature. Under 3 receipts there is no meaningful
// distribution to compare against.
func (e *Engine) detectAnomalies(receipts []*entity.Receipt, mean, sd float64) []Anomaly {
	if len(receipts) < 3 {
		return nil
	}
	threshold := mean + e.anomalyStdDevs*sd

	var out []Anomaly
	for _, r := range receipts {
		if r.Amount > threshold {
			out = append(out, Anomaly{
				ReceiptID: r.ID,
				Vendor:    r.Vendor,
				Amount:    r.Amount,
				Date:      r.TxDate,
				Type:      AnomalyHighAmount,
				Deviation: (r.Amount - mean) / sd,
			})
		}
	}

	seen := make(map[string]uuid.UUID)
	for _, r := range receipts {
		sig := fmt.Sprintf("%s_%.2f_%s", r.Vendor, r.Amount, r.TxDate.Format("2006-01-02"))
		if first, ok := seen[sig]; ok {
			out = append(out, Anomaly{
				ReceiptID: r.ID,
				Vendor:    r.Vendor,
				Amount:    r.Amount,
				Date:      r.TxDate,
				Type:      AnomalyDuplicate,
				SimilarTo: first,
			})
			continue
		}
		seen[sig] = r.ID
	}
	return out
}

// VendorTotal is one row of the top-vendors ranking.
type VendorTotal struct {
	Vendor      string  `json:"vendor"`
	TotalAmount float64 `json:"total_amount"`
	Count       int     `json:"count"`
}

// TopVendors ranks vendors by total spend, largest first. Ties break on
// vendor name so the order is stable.
func (e *Engine) TopVendors(receipts []*entity.Receipt, limit int) []VendorTotal {
	if limit <= 0 {
		limit = 10
	}
	byVendor := make(map[string]VendorTotal)
	for _, r := range receipts {
		v := byVendor[r.Vendor]
		v.Vendor = r.Vendor
		v.TotalAmount += r.Amount
		v.Count++
		byVendor[r.Vendor] = v
	}
	out := make([]VendorTotal, 0, len(byVendor))
	for _, v := range byVendor {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalAmount != out[j].TotalAmount {
			return out[i].TotalAmount > out[j].TotalAmount
		}
		return out[i].Vendor < out[j].Vendor
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Velocity is the spending rate over a trailing window.
type Velocity struct {
	DailyAverage   float64 `json:"daily_average"`
	WeeklyAverage  float64 `json:"weekly_average"`
	MonthlyAverage float64 `json:"monthly_average"`
	TotalAmount    float64 `json:"total_amount"`
	PeriodDays     int     `json:"period_days"`
}

// SpendingVelocity measures the spending rate over the trailing days window.
// The period is counted from the oldest receipt inside the window, not the
// window edge, so sparse data does not dilute the averages.
func (e *Engine) SpendingVelocity(receipts []*entity.Receipt, days int) Velocity {
	if days <= 0 {
		days = 30
	}
	now := e.now()
	cutoff := now.AddDate(0, 0, -days)

	var (
		total  float64
		oldest time.Time
		found  bool
	)
	for _, r := range receipts {
		if r.TxDate.Before(cutoff) {
			continue
		}
		total += r.Amount
		if !found || r.TxDate.Before(oldest) {
			oldest = r.TxDate
			found = true
		}
	}
	if !found {
		return Velocity{}
	}
	period := int(now.Sub(oldest).Hours()/24) + 1
	daily := total / float64(period)
	return Velocity{
		DailyAverage:   daily,
		WeeklyAverage:  daily * 7,
		MonthlyAverage: daily * 30,
		TotalAmount:    total,
		PeriodDays:     period,
	}
}

func median(amounts []float64) float64 {
	sorted := make([]float64, len(amounts))
	copy(sorted, amounts)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// stdDev is the sample standard deviation (n-1 divisor).
func stdDev(amounts []float64, mean float64) float64 {
	if len(amounts) < 2 {
		return 0
	}
	var sum float64
	for _, v := range amounts {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(amounts)-1))
}
