package analyzer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteops/sheetsync/engine"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func snapOf(rows ...engine.Row) *engine.Snapshot {
	return engine.NewSnapshot(engine.SheetColumns, rows, testNow)
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1,500,000", "1500000", true},
		{"₩500,000", "500000", true},
		{"  2500000 ", "2500000", true},
		{"-", "0", false},
		{"", "0", false},
		{"3500000원", "3500000", true},
		{"abc", "0", false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if ok {
			assert.Equal(t, tc.want, got.String(), "input %q", tc.in)
		}
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2026-08-01", "2026. 8. 1", "2026. 8. 1.", "2026.08.01", "2026/08/01", "2026-8-1"} {
		got, ok := ParseDate(in)
		require.True(t, ok, "input %q", in)
		assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), got, "input %q", in)
	}
	_, ok := ParseDate("")
	assert.False(t, ok)
	_, ok = ParseDate("-")
	assert.False(t, ok)
}

func TestSummary(t *testing.T) {
	// GIVEN one completed, one in-progress and one pending project
	a := New(snapOf(
		engine.Row{
			engine.ColProjectCode:  "G0001-YG",
			engine.ColWorkStart:    "2026-06-01",
			engine.ColWorkEnd:      "2026-07-01",
			engine.ColAmount2:      "1,000,000",
			engine.ColDownPayment:  "300,000",
			engine.ColFinalPayment: "200,000",
			engine.ColOutstanding:  "500,000",
		},
		engine.Row{
			engine.ColProjectCode: "P0002-JW",
			engine.ColWorkStart:   "2026-08-01",
			engine.ColAmount2:     "3,000,000",
			engine.ColDownPayment: "1,500,000",
		},
		engine.Row{
			engine.ColProjectCode: "G0003-YG",
		},
	), testNow)

	s := a.Summary()

	assert.Equal(t, 3, s.TotalProjects)
	assert.Equal(t, 1, s.CompletedProjects)
	assert.Equal(t, 1, s.InProgressProjects)
	assert.Equal(t, 1, s.PendingProjects)
	assert.Equal(t, "4000000", s.TotalAmount.String())
	assert.Equal(t, "2000000", s.TotalReceived.String())
	assert.Equal(t, "500000", s.TotalOutstanding.String())
	assert.Equal(t, "2000000", s.AvgProjectAmount.String())
	assert.Equal(t, "50", s.CollectionRate.String())
}

func TestSummary_EmptyRows(t *testing.T) {
	s := New(nil, testNow).Summary()
	assert.Equal(t, 0, s.TotalProjects)
	assert.True(t, s.CollectionRate.IsZero())
}

func TestMonthlySales_GroupsByStartMonth(t *testing.T) {
	a := New(snapOf(
		engine.Row{engine.ColProjectCode: "G0001-YG", engine.ColWorkStart: "2026-03-05", engine.ColAmount2: "1,000,000", engine.ColNetProfit: "100,000"},
		engine.Row{engine.ColProjectCode: "G0002-YG", engine.ColWorkStart: "2026-03-20", engine.ColAmount2: "2,000,000", engine.ColOutstanding: "500,000"},
		engine.Row{engine.ColProjectCode: "P0003-JW", engine.ColWorkStart: "2026-07-10", engine.ColAmount2: "4,000,000"},
		engine.Row{engine.ColProjectCode: "P0004-JW", engine.ColWorkStart: "2025-03-01", engine.ColAmount2: "9,000,000"},
	), testNow)

	months := a.MonthlySales(2026)

	require.Len(t, months, 2)
	assert.Equal(t, 3, months[0].Month)
	assert.Equal(t, 2, months[0].Count)
	assert.Equal(t, "3000000", months[0].Revenue.String())
	assert.Equal(t, "1500000", months[0].AvgAmount.String())
	assert.Equal(t, "500000", months[0].Outstanding.String())
	assert.Equal(t, "100000", months[0].NetProfit.String())
	assert.Equal(t, 7, months[1].Month)
	assert.Equal(t, "4000000", months[1].Revenue.String())
}

func TestMonthlySales_ZeroYearMeansCurrentYear(t *testing.T) {
	a := New(snapOf(
		engine.Row{engine.ColProjectCode: "G0001-YG", engine.ColWorkStart: "2026-01-15", engine.ColAmount2: "1,000,000"},
	), testNow)

	months := a.MonthlySales(0)
	require.Len(t, months, 1)
	assert.Equal(t, 1, months[0].Month)
}

func TestOutstanding_AgingBuckets(t *testing.T) {
	// GIVEN unpaid projects ending 10, 45, 75 and 200 days ago, plus one
	// still in progress and one fully paid
	day := func(daysAgo int) string {
		return testNow.AddDate(0, 0, -daysAgo).Format("2006-01-02")
	}
	a := New(snapOf(
		engine.Row{engine.ColProjectCode: "A0001-YG", engine.ColOwner: "박용구", engine.ColWorkEnd: day(10), engine.ColOutstanding: "100,000"},
		engine.Row{engine.ColProjectCode: "A0002-JW", engine.ColOwner: "정진우", engine.ColWorkEnd: day(45), engine.ColOutstanding: "400,000"},
		engine.Row{engine.ColProjectCode: "A0003-YG", engine.ColOwner: "박용구", engine.ColWorkEnd: day(75), engine.ColOutstanding: "200,000"},
		engine.Row{engine.ColProjectCode: "A0004-JW", engine.ColOwner: "정진우", engine.ColWorkEnd: day(200), engine.ColOutstanding: "300,000"},
		engine.Row{engine.ColProjectCode: "A0005-YG", engine.ColOwner: "박용구", engine.ColOutstanding: "50,000"},
		engine.Row{engine.ColProjectCode: "A0006-JW", engine.ColOwner: "정진우", engine.ColWorkEnd: day(5), engine.ColOutstanding: "0"},
	), testNow)

	report := a.Outstanding()

	assert.Equal(t, 5, report.TotalCases)
	assert.Equal(t, "1050000", report.TotalAmount.String())

	// buckets appear in aging order, ongoing last
	require.Len(t, report.Periods, 5)
	assert.Equal(t, PeriodWithin30, report.Periods[0].Period)
	assert.Equal(t, Period31To60, report.Periods[1].Period)
	assert.Equal(t, Period61To90, report.Periods[2].Period)
	assert.Equal(t, PeriodOver90, report.Periods[3].Period)
	assert.Equal(t, PeriodOngoing, report.Periods[4].Period)
	assert.Equal(t, "400000", report.Periods[1].Amount.String())
	assert.Equal(t, []string{"정진우"}, report.Periods[1].Owners)

	// top list sorted by amount descending
	require.NotEmpty(t, report.Top)
	assert.Equal(t, "A0002-JW", report.Top[0].ProjectCode)

	// per-owner totals sorted descending
	require.Len(t, report.ByOwner, 2)
	assert.Equal(t, "정진우", report.ByOwner[0].Owner)
	assert.Equal(t, "700000", report.ByOwner[0].Amount.String())
	assert.Equal(t, "350000", report.ByOwner[1].Amount.String())
}

func TestOutstanding_NoUnpaidProjects(t *testing.T) {
	a := New(snapOf(
		engine.Row{engine.ColProjectCode: "G0001-YG", engine.ColOutstanding: "0"},
	), testNow)

	report := a.Outstanding()
	assert.Equal(t, 0, report.TotalCases)
	assert.True(t, report.TotalAmount.IsZero())
	assert.Empty(t, report.Periods)
}

func TestMissingData(t *testing.T) {
	fields := []string{engine.ColProjectCode, engine.ColAddress, engine.ColAmount2}
	a := New(snapOf(
		engine.Row{engine.ColProjectCode: "G0001-YG", engine.ColOwner: "박용구", engine.ColAddress: "서울", engine.ColAmount2: "1,000"},
		engine.Row{engine.ColProjectCode: "G0002-YG", engine.ColOwner: "박용구"},
		engine.Row{engine.ColProjectCode: "P0003-JW", engine.ColOwner: "정진우", engine.ColAddress: "평택"},
	), testNow)

	report := a.MissingData(fields)

	assert.Equal(t, 3, report.TotalCriticalFields)
	assert.Equal(t, 0, report.FieldAnalysis[engine.ColProjectCode].MissingCount)
	assert.Equal(t, 1, report.FieldAnalysis[engine.ColAddress].MissingCount)
	assert.Equal(t, 2, report.FieldAnalysis[engine.ColAmount2].MissingCount)
	assert.InDelta(t, 33.33, report.FieldAnalysis[engine.ColAddress].MissingPercentage, 0.01)

	yg := report.OwnerAnalysis["박용구"]
	assert.Equal(t, 2, yg.TotalMissing)
	require.Len(t, yg.CriticalMissing, 2)
	assert.Equal(t, engine.ColAddress, yg.CriticalMissing[0].Field)
	assert.Equal(t, []string{"G0002-YG"}, yg.CriticalMissing[0].Projects)

	jw := report.OwnerAnalysis["정진우"]
	assert.Equal(t, 1, jw.TotalMissing)
	assert.Equal(t, engine.ColAmount2, jw.CriticalMissing[0].Field)

	// 3 of 9 cells empty
	assert.InDelta(t, 33.33, report.OverallMissingRate, 0.01)
}

func TestMissingData_DefaultsWhenNil(t *testing.T) {
	a := New(snapOf(engine.Row{engine.ColProjectCode: "G0001-YG"}), testNow)
	report := a.MissingData(nil)
	assert.Equal(t, len(DefaultCriticalFields), report.TotalCriticalFields)
}

func TestCollectionRateUsesDecimalMath(t *testing.T) {
	a := New(snapOf(
		engine.Row{engine.ColProjectCode: "G0001-YG", engine.ColAmount2: "3", engine.ColDownPayment: "1"},
	), testNow)
	s := a.Summary()
	assert.True(t, s.CollectionRate.Equal(decimal.RequireFromString("33.3")))
}
