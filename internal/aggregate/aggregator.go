// Package aggregate computes period-based spending summaries, breakdowns,
// and trend series from stored transactions. Every operation is read-only:
// the repository is queried, never mutated.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"khata/internal/core"
	"khata/internal/period"
)

// Bucket is one aggregation group (category, payment mode, or bank) with its
// share of the grand total. Percentage is 0-100 with one-decimal rounding,
// and 0 for every bucket when the grand total is zero.
type Bucket struct {
	Key              string     `json:"key"`
	TotalAmount      core.Money `json:"total_amount"`
	TransactionCount int        `json:"transaction_count"`
	Percentage       float64    `json:"percentage"`
}

// BankBucket additionally counts distinct non-empty account suffixes seen
// for the bank.
type BankBucket struct {
	Bucket
	AccountCount int `json:"account_count"`
}

// MonthlyPoint is one month of a dense 12-point year series.
type MonthlyPoint struct {
	Month            int        `json:"month"`
	TotalAmount      core.Money `json:"total_amount"`
	TransactionCount int        `json:"transaction_count"`
	AvgAmount        float64    `json:"avg_amount"`
}

// MonthlyReport is the full year series plus the year total.
type MonthlyReport struct {
	Year              int            `json:"year"`
	Months            []MonthlyPoint `json:"months"`
	TotalYearExpenses core.Money     `json:"total_year_expenses"`
}

// Summary condenses one period window.
type Summary struct {
	TotalExpenses      core.Money       `json:"total_expenses"`
	TransactionCount   int              `json:"transaction_count"`
	AvgTransaction     float64          `json:"avg_transaction"`
	HighestTransaction core.Money       `json:"highest_transaction"`
	LowestTransaction  core.Money       `json:"lowest_transaction"`
	TopCategory        core.Category    `json:"top_category"`
	TopPaymentMode     core.PaymentMode `json:"top_payment_mode"`
}

// TrendPoint is one month of a spending trend, with deltas against the
// previous point in the series.
type TrendPoint struct {
	Year             int        `json:"year"`
	Month            int        `json:"month"`
	TotalAmount      core.Money `json:"total_amount"`
	TransactionCount int        `json:"transaction_count"`
	AvgTransaction   float64    `json:"avg_transaction"`
	ChangeAmount     core.Money `json:"change_amount"`
	ChangePercent    float64    `json:"change_percent"`
}

// Dashboard bundles the summary with all three breakdowns for one window.
type Dashboard struct {
	Summary    Summary      `json:"summary"`
	Categories []Bucket     `json:"categories"`
	Modes      []Bucket     `json:"modes"`
	Banks      []BankBucket `json:"banks"`
}

// Aggregator reads transactions through the lister port. It holds no mutable
// state; all methods are safe for concurrent use.
type Aggregator struct {
	store core.TransactionLister
	now   func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithNow replaces the wall clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func New(store core.TransactionLister, opts ...Option) *Aggregator {
	a := &Aggregator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// listExpenses fetches the window's expense records. Non-expense rows are
// skipped defensively even though ingestion only persists expenses.
func (a *Aggregator) listExpenses(ctx context.Context, w period.Window) ([]core.TransactionRecord, error) {
	records, err := a.store.List(ctx, core.ListFilter{Start: w.Start, End: w.End})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := records[:0]
	for _, r := range records {
		if r.IsExpense {
			out = append(out, r)
		}
	}
	return out, nil
}

// MonthlyExpenses groups the year's expenses by calendar month. The series
// is dense: all 12 months appear, zero-filled when empty, which is what the
// chart layer expects.
func (a *Aggregator) MonthlyExpenses(ctx context.Context, year int) (MonthlyReport, error) {
	records, err := a.listExpenses(ctx, period.YearWindow(year))
	if err != nil {
		return MonthlyReport{}, err
	}

	report := MonthlyReport{Year: year, Months: make([]MonthlyPoint, 12)}
	for i := range report.Months {
		report.Months[i].Month = i + 1
	}

	for _, r := range records {
		if r.OccurredAt.Year() != year {
			continue
		}
		p := &report.Months[int(r.OccurredAt.Month())-1]
		p.TotalAmount.Paise += r.Amount.Paise
		p.TransactionCount++
		report.TotalYearExpenses.Paise += r.Amount.Paise
	}
	for i := range report.Months {
		p := &report.Months[i]
		p.AvgAmount = average(p.TotalAmount, p.TransactionCount)
	}
	return report, nil
}

// CategoryBreakdown groups the window's expenses by category.
func (a *Aggregator) CategoryBreakdown(ctx context.Context, w period.Window) ([]Bucket, error) {
	records, err := a.listExpenses(ctx, w)
	if err != nil {
		return nil, err
	}
	return bucketize(records, func(r core.TransactionRecord) string { return string(r.Category) }), nil
}

// PaymentModeBreakdown groups the window's expenses by payment mode.
func (a *Aggregator) PaymentModeBreakdown(ctx context.Context, w period.Window) ([]Bucket, error) {
	records, err := a.listExpenses(ctx, w)
	if err != nil {
		return nil, err
	}
	return bucketize(records, func(r core.TransactionRecord) string { return string(r.Mode) }), nil
}

// BankwiseBreakdown groups by bank and counts distinct non-empty account
// suffixes per bank.
func (a *Aggregator) BankwiseBreakdown(ctx context.Context, w period.Window) ([]BankBucket, error) {
	records, err := a.listExpenses(ctx, w)
	if err != nil {
		return nil, err
	}

	buckets := bucketize(records, func(r core.TransactionRecord) string { return r.Bank })

	accounts := make(map[string]map[string]struct{})
	for _, r := range records {
		if r.Account == "" {
			continue
		}
		if accounts[r.Bank] == nil {
			accounts[r.Bank] = make(map[string]struct{})
		}
		accounts[r.Bank][r.Account] = struct{}{}
	}

	out := make([]BankBucket, len(buckets))
	for i, b := range buckets {
		out[i] = BankBucket{Bucket: b, AccountCount: len(accounts[b.Key])}
	}
	return out, nil
}

// ExpenseSummary condenses the window: totals, extremes, and the dominant
// category and payment mode. Zero-amount records are extraction artifacts
// and never set the minimum.
func (a *Aggregator) ExpenseSummary(ctx context.Context, w period.Window) (Summary, error) {
	records, err := a.listExpenses(ctx, w)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	byCategory := newTally()
	byMode := newTally()

	for _, r := range records {
		s.TotalExpenses.Paise += r.Amount.Paise
		s.TransactionCount++
		if r.Amount.Paise > s.HighestTransaction.Paise {
			s.HighestTransaction = r.Amount
		}
		if r.Amount.Paise > 0 && (s.LowestTransaction.Paise == 0 || r.Amount.Paise < s.LowestTransaction.Paise) {
			s.LowestTransaction = r.Amount
		}
		byCategory.add(string(r.Category), r.Amount.Paise)
		byMode.add(string(r.Mode), r.Amount.Paise)
	}

	s.AvgTransaction = average(s.TotalExpenses, s.TransactionCount)
	s.TopCategory = core.Category(byCategory.top())
	s.TopPaymentMode = core.PaymentMode(byMode.top())
	return s, nil
}

// SpendingTrends returns per-month totals for the most recent monthsBack
// months ending at the current month, each with deltas against the previous
// entry. The first entry always carries zero deltas; a zero predecessor
// yields a zero percent change rather than a division fault.
func (a *Aggregator) SpendingTrends(ctx context.Context, monthsBack int) ([]TrendPoint, error) {
	if monthsBack < 1 {
		monthsBack = 1
	}
	now := a.now()

	out := make([]TrendPoint, 0, monthsBack)
	for i := monthsBack - 1; i >= 0; i-- {
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
		w := period.MonthWindow(first.Year(), int(first.Month()))

		records, err := a.listExpenses(ctx, w)
		if err != nil {
			return nil, err
		}

		p := TrendPoint{Year: first.Year(), Month: int(first.Month())}
		for _, r := range records {
			p.TotalAmount.Paise += r.Amount.Paise
			p.TransactionCount++
		}
		p.AvgTransaction = average(p.TotalAmount, p.TransactionCount)

		if len(out) > 0 {
			prev := out[len(out)-1]
			p.ChangeAmount = core.Money{Paise: p.TotalAmount.Paise - prev.TotalAmount.Paise}
			if prev.TotalAmount.Paise > 0 {
				p.ChangePercent = round1(100 * float64(p.ChangeAmount.Paise) / float64(prev.TotalAmount.Paise))
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// DashboardView computes the summary and all three breakdowns concurrently.
// The inputs are read-only, so the fan-out is safe.
func (a *Aggregator) DashboardView(ctx context.Context, w period.Window) (Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		d.Summary, err = a.ExpenseSummary(ctx, w)
		return err
	})
	g.Go(func() error {
		var err error
		d.Categories, err = a.CategoryBreakdown(ctx, w)
		return err
	})
	g.Go(func() error {
		var err error
		d.Modes, err = a.PaymentModeBreakdown(ctx, w)
		return err
	})
	g.Go(func() error {
		var err error
		d.Banks, err = a.BankwiseBreakdown(ctx, w)
		return err
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// bucketize groups records by key in first-encountered order and fills in
// percentage shares.
func bucketize(records []core.TransactionRecord, key func(core.TransactionRecord) string) []Bucket {
	index := make(map[string]int)
	var buckets []Bucket
	var grandTotal int64

	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, Bucket{Key: k})
		}
		buckets[i].TotalAmount.Paise += r.Amount.Paise
		buckets[i].TransactionCount++
		grandTotal += r.Amount.Paise
	}

	if grandTotal > 0 {
		for i := range buckets {
			buckets[i].Percentage = round1(100 * float64(buckets[i].TotalAmount.Paise) / float64(grandTotal))
		}
	}
	return buckets
}

// tally accumulates amounts per key, remembering first-encountered order so
// that ties break deterministically.
type tally struct {
	sums  map[string]int64
	order []string
}

func newTally() *tally {
	return &tally{sums: make(map[string]int64)}
}

func (t *tally) add(key string, paise int64) {
	if _, ok := t.sums[key]; !ok {
		t.order = append(t.order, key)
	}
	t.sums[key] += paise
}

// top returns the key with the largest sum; ties go to the key seen first.
func (t *tally) top() string {
	var best string
	var bestSum int64 = -1
	for _, k := range t.order {
		if t.sums[k] > bestSum {
			best, bestSum = k, t.sums[k]
		}
	}
	return best
}

func average(total core.Money, count int) float64 {
	if count == 0 {
		return 0
	}
	return round2(total.Rupees() / float64(count))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
