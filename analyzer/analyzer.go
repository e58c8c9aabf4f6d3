/*
Package analyzer computes dashboard statistics from a sheet snapshot.

PURPOSE:
  Pure read-side analysis over engine.Row slices: overall summary,
  monthly sales, outstanding-balance aging, and missing-data checks.
  All money math goes through shopspring/decimal; sheet cells arrive
  as formatted strings ("1,500,000", "₩500,000", "-") and are parsed
  leniently.

DESIGN:
  An Analyzer is built per request from the current snapshot and never
  mutates its rows. Time-dependent results (aging buckets, default
  year) take the clock at construction so a report is internally
  consistent.

SEE ALSO:
  - engine/types.go: the column constants referenced throughout
  - api/handlers.go: the HTTP surface over these reports
*/
package analyzer

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siteops/sheetsync/engine"
)

// Aging bucket labels for outstanding balances, keyed off days since
// the work-end date.
const (
	PeriodWithin30  = "30일 이내"
	Period31To60    = "31-60일"
	Period61To90    = "61-90일"
	PeriodOver90    = "90일 초과"
	PeriodOngoing   = "진행중"
	topOutstandingN = 10
)

// DefaultCriticalFields are the columns checked by the missing-data
// report when the configuration does not override them.
var DefaultCriticalFields = []string{
	engine.ColProjectCode,
	engine.ColCompany,
	engine.ColOwner,
	engine.ColClient,
	engine.ColAddress,
	engine.ColWorkDetail,
	engine.ColWorkStart,
	engine.ColAmount2,
	engine.ColSiteManager,
	engine.ColManagerPhone,
}

// Analyzer computes reports over a fixed set of rows.
type Analyzer struct {
	rows []engine.Row
	now  time.Time
}

// New builds an analyzer over the snapshot's rows. A nil snapshot
// yields an analyzer over zero rows.
func New(snap *engine.Snapshot, now time.Time) *Analyzer {
	var rows []engine.Row
	if snap != nil {
		rows = snap.Rows
	}
	return &Analyzer{rows: rows, now: now}
}

// ==== AMOUNT AND DATE PARSING ====

var amountReplacer = strings.NewReplacer(",", "", "₩", "", "￦", "", "원", "", " ", "")

// ParseAmount reads a formatted currency cell. Empty cells and the
// literal "-" placeholder report ok=false.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = amountReplacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006. 1. 2",
	"2006.01.02",
	"2006/01/02",
	"2006-1-2",
}

// ParseDate reads a date cell in any of the formats the sheet has
// historically used.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if s == "" || s == "-" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ==== SUMMARY ====

// Summary is the dashboard headline card.
type Summary struct {
	TotalProjects      int             `json:"total_projects"`
	CompletedProjects  int             `json:"completed_projects"`
	InProgressProjects int             `json:"in_progress_projects"`
	PendingProjects    int             `json:"pending_projects"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	TotalReceived      decimal.Decimal `json:"total_received"`
	TotalOutstanding   decimal.Decimal `json:"total_outstanding"`
	AvgProjectAmount   decimal.Decimal `json:"avg_project_amount"`
	CollectionRate     decimal.Decimal `json:"collection_rate"`
}

// Summary computes overall project and money totals.
//
// A project counts as completed when 공사 종료 is set, in progress when
// 공사 시작 is set but 공사 종료 is not, and pending otherwise. Received
// money is the sum of 계약금, 중도금 and 잔금.
func (a *Analyzer) Summary() Summary {
	s := Summary{
		TotalAmount:      decimal.Zero,
		TotalReceived:    decimal.Zero,
		TotalOutstanding: decimal.Zero,
		AvgProjectAmount: decimal.Zero,
		CollectionRate:   decimal.Zero,
	}
	s.TotalProjects = len(a.rows)

	amountCount := 0
	for _, row := range a.rows {
		_, ended := ParseDate(row.Get(engine.ColWorkEnd))
		_, started := ParseDate(row.Get(engine.ColWorkStart))
		switch {
		case ended:
			s.CompletedProjects++
		case started:
			s.InProgressProjects++
		}

		if amt, ok := ParseAmount(row.Get(engine.ColAmount2)); ok {
			s.TotalAmount = s.TotalAmount.Add(amt)
			amountCount++
		}
		for _, col := range []string{engine.ColDownPayment, engine.ColMidPayment, engine.ColFinalPayment} {
			if amt, ok := ParseAmount(row.Get(col)); ok {
				s.TotalReceived = s.TotalReceived.Add(amt)
			}
		}
		if amt, ok := ParseAmount(row.Get(engine.ColOutstanding)); ok {
			s.TotalOutstanding = s.TotalOutstanding.Add(amt)
		}
	}
	s.PendingProjects = s.TotalProjects - s.CompletedProjects - s.InProgressProjects

	if amountCount > 0 {
		s.AvgProjectAmount = s.TotalAmount.DivRound(decimal.NewFromInt(int64(amountCount)), 0)
	}
	if s.TotalAmount.IsPositive() {
		s.CollectionRate = s.TotalReceived.
			Mul(decimal.NewFromInt(100)).
			DivRound(s.TotalAmount, 1)
	}
	return s
}

// ==== MONTHLY SALES ====

// MonthlySales is one month's sales line within a year.
type MonthlySales struct {
	Month       int             `json:"month"`
	Revenue     decimal.Decimal `json:"revenue"`
	AvgAmount   decimal.Decimal `json:"avg_amount"`
	Count       int             `json:"count"`
	Outstanding decimal.Decimal `json:"outstanding"`
	NetProfit   decimal.Decimal `json:"net_profit"`
}

// MonthlySales groups projects by the month of their work-start date
// within the given year. Pass 0 for the current year. Months with no
// projects are omitted.
func (a *Analyzer) MonthlySales(year int) []MonthlySales {
	if year == 0 {
		year = a.now.Year()
	}

	byMonth := make(map[int]*MonthlySales)
	for _, row := range a.rows {
		start, ok := ParseDate(row.Get(engine.ColWorkStart))
		if !ok || start.Year() != year {
			continue
		}
		m := byMonth[int(start.Month())]
		if m == nil {
			m = &MonthlySales{
				Month:       int(start.Month()),
				Revenue:     decimal.Zero,
				Outstanding: decimal.Zero,
				NetProfit:   decimal.Zero,
			}
			byMonth[m.Month] = m
		}
		m.Count++
		if amt, ok := ParseAmount(row.Get(engine.ColAmount2)); ok {
			m.Revenue = m.Revenue.Add(amt)
		}
		if amt, ok := ParseAmount(row.Get(engine.ColOutstanding)); ok {
			m.Outstanding = m.Outstanding.Add(amt)
		}
		if amt, ok := ParseAmount(row.Get(engine.ColNetProfit)); ok {
			m.NetProfit = m.NetProfit.Add(amt)
		}
	}

	out := make([]MonthlySales, 0, len(byMonth))
	for _, m := range byMonth {
		if m.Count > 0 {
			m.AvgAmount = m.Revenue.DivRound(decimal.NewFromInt(int64(m.Count)), 0)
		} else {
			m.AvgAmount = decimal.Zero
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// ==== OUTSTANDING BALANCES ====

// OutstandingEntry is one project carrying an unpaid balance.
type OutstandingEntry struct {
	ProjectCode string          `json:"project_code"`
	Address     string          `json:"address"`
	Owner       string          `json:"owner"`
	Amount      decimal.Decimal `json:"amount"`
	WorkEnd     string          `json:"work_end"`
	Contact     string          `json:"contact"`
	Period      string          `json:"period"`
}

// PeriodSummary aggregates outstanding balances within one aging bucket.
type PeriodSummary struct {
	Period string          `json:"period"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
	Owners []string        `json:"owners"`
}

// OwnerOutstanding is one owner's total unpaid balance.
type OwnerOutstanding struct {
	Owner  string          `json:"owner"`
	Amount decimal.Decimal `json:"amount"`
}

// OutstandingReport is the full aging breakdown.
type OutstandingReport struct {
	TotalCases  int                `json:"total_cases"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Periods     []PeriodSummary    `json:"periods"`
	Top         []OutstandingEntry `json:"top_outstanding"`
	ByOwner     []OwnerOutstanding `json:"by_person"`
}

var periodOrder = []string{PeriodWithin30, Period31To60, Period61To90, PeriodOver90, PeriodOngoing}

func classifyPeriod(workEnd time.Time, ended bool, now time.Time) string {
	if !ended {
		return PeriodOngoing
	}
	days := int(now.Sub(workEnd).Hours() / 24)
	switch {
	case days <= 30:
		return PeriodWithin30
	case days <= 60:
		return Period31To60
	case days <= 90:
		return Period61To90
	default:
		return PeriodOver90
	}
}

// Outstanding analyzes every project whose 미수금 is positive: totals,
// per-aging-bucket summaries, the top unpaid projects and per-owner
// totals.
func (a *Analyzer) Outstanding() OutstandingReport {
	report := OutstandingReport{TotalAmount: decimal.Zero}

	var entries []OutstandingEntry
	buckets := make(map[string]*PeriodSummary)
	bucketOwners := make(map[string]map[string]bool)
	ownerTotals := make(map[string]decimal.Decimal)
	var ownerOrder []string

	for _, row := range a.rows {
		amt, ok := ParseAmount(row.Get(engine.ColOutstanding))
		if !ok || !amt.IsPositive() {
			continue
		}
		workEnd, ended := ParseDate(row.Get(engine.ColWorkEnd))
		period := classifyPeriod(workEnd, ended, a.now)
		owner := row.Get(engine.ColOwner)

		entries = append(entries, OutstandingEntry{
			ProjectCode: row.Code(),
			Address:     row.Get(engine.ColAddress),
			Owner:       owner,
			Amount:      amt,
			WorkEnd:     row.Get(engine.ColWorkEnd),
			Contact:     row.Get(engine.ColManagerPhone),
			Period:      period,
		})
		report.TotalCases++
		report.TotalAmount = report.TotalAmount.Add(amt)

		b := buckets[period]
		if b == nil {
			b = &PeriodSummary{Period: period, Amount: decimal.Zero}
			buckets[period] = b
			bucketOwners[period] = make(map[string]bool)
		}
		b.Count++
		b.Amount = b.Amount.Add(amt)
		if owner != "" && !bucketOwners[period][owner] {
			bucketOwners[period][owner] = true
			b.Owners = append(b.Owners, owner)
		}

		if owner != "" {
			if _, seen := ownerTotals[owner]; !seen {
				ownerOrder = append(ownerOrder, owner)
			}
			ownerTotals[owner] = ownerTotals[owner].Add(amt)
		}
	}

	for _, period := range periodOrder {
		if b := buckets[period]; b != nil {
			report.Periods = append(report.Periods, *b)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Amount.GreaterThan(entries[j].Amount)
	})
	if len(entries) > topOutstandingN {
		entries = entries[:topOutstandingN]
	}
	report.Top = entries

	for _, owner := range ownerOrder {
		report.ByOwner = append(report.ByOwner, OwnerOutstanding{Owner: owner, Amount: ownerTotals[owner]})
	}
	sort.SliceStable(report.ByOwner, func(i, j int) bool {
		return report.ByOwner[i].Amount.GreaterThan(report.ByOwner[j].Amount)
	})
	return report
}

// ==== MISSING DATA ====

// FieldMissing reports how often one critical field is empty.
type FieldMissing struct {
	MissingCount      int     `json:"missing_count"`
	MissingPercentage float64 `json:"missing_percentage"`
}

// FieldProjects lists the projects where one field is empty for an owner.
type FieldProjects struct {
	Field        string   `json:"field"`
	MissingCount int      `json:"missing_count"`
	Projects     []string `json:"projects"`
}

// OwnerMissing is one owner's missing-data tally.
type OwnerMissing struct {
	TotalMissing    int             `json:"total_missing"`
	CriticalMissing []FieldProjects `json:"critical_missing"`
}

// MissingReport is the full missing-data check.
type MissingReport struct {
	FieldAnalysis       map[string]FieldMissing `json:"field_analysis"`
	OwnerAnalysis       map[string]OwnerMissing `json:"person_analysis"`
	TotalCriticalFields int                     `json:"total_critical_fields"`
	OverallMissingRate  float64                 `json:"overall_missing_rate"`
}

// MissingData checks the given critical fields across every row: a
// per-field empty count, a per-owner breakdown listing which projects
// are incomplete, and an overall missing rate. Pass nil to check
// DefaultCriticalFields.
func (a *Analyzer) MissingData(criticalFields []string) MissingReport {
	if len(criticalFields) == 0 {
		criticalFields = DefaultCriticalFields
	}
	report := MissingReport{
		FieldAnalysis:       make(map[string]FieldMissing),
		OwnerAnalysis:       make(map[string]OwnerMissing),
		TotalCriticalFields: len(criticalFields),
	}

	totalMissing := 0
	for _, field := range criticalFields {
		count := 0
		for _, row := range a.rows {
			if row.Get(field) == "" {
				count++
			}
		}
		fm := FieldMissing{MissingCount: count}
		if len(a.rows) > 0 {
			fm.MissingPercentage = float64(count) / float64(len(a.rows)) * 100
		}
		report.FieldAnalysis[field] = fm
		totalMissing += count
	}

	var owners []string
	seen := make(map[string]bool)
	for _, row := range a.rows {
		owner := row.Get(engine.ColOwner)
		if owner != "" && !seen[owner] {
			seen[owner] = true
			owners = append(owners, owner)
		}
	}
	for _, owner := range owners {
		om := OwnerMissing{}
		for _, field := range criticalFields {
			var projects []string
			for _, row := range a.rows {
				if row.Get(engine.ColOwner) != owner {
					continue
				}
				if row.Get(field) == "" {
					projects = append(projects, row.Code())
				}
			}
			if len(projects) > 0 {
				om.TotalMissing += len(projects)
				om.CriticalMissing = append(om.CriticalMissing, FieldProjects{
					Field:        field,
					MissingCount: len(projects),
					Projects:     projects,
				})
			}
		}
		report.OwnerAnalysis[owner] = om
	}

	if len(a.rows) > 0 && len(criticalFields) > 0 {
		report.OverallMissingRate = float64(totalMissing) /
			float64(len(a.rows)*len(criticalFields)) * 100
	}
	return report
}
