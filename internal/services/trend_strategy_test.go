package services

import (
	"testing"

	"finassist/internal/core"
)

func TestFixedTotalsTrend(t *testing.T) {
	got := FixedTotalsTrend{}.Trend(TrendInput{
		TotalIncome:  core.Money{Cents: 50000},
		TotalExpense: core.Money{Cents: 18000},
		Balance:      core.Money{Cents: 32000},
		Expenses:     []core.Expense{{Amount: core.Money{Cents: 18000}, Date: core.NewDate(2024, 1, 3)}},
	})

	want := map[string]int64{"Income": 50000, "Expense": 18000, "Balance": 32000}
	if len(got) != len(want) {
		t.Fatalf("FixedTotalsTrend returned %d keys, want %d: %v", len(got), len(want), got)
	}
	for k, cents := range want {
		if got[k].Cents != cents {
			t.Errorf("trend[%s] = %d, want %d", k, got[k].Cents, cents)
		}
	}
}

func TestCalendarMonthTrend(t *testing.T) {
	tests := []struct {
		name     string
		expenses []core.Expense
		want     map[string]int64
	}{
		{
			name:     "no expenses",
			expenses: nil,
			want:     map[string]int64{},
		},
		{
			name: "buckets by month of expense date",
			expenses: []core.Expense{
				{Amount: core.Money{Cents: 1000}, Date: core.NewDate(2024, 1, 31)},
				{Amount: core.Money{Cents: 500}, Date: core.NewDate(2024, 1, 1)},
				{Amount: core.Money{Cents: 700}, Date: core.NewDate(2024, 3, 15)},
			},
			want: map[string]int64{"2024-01": 1500, "2024-03": 700},
		},
		{
			name: "crosses a year boundary",
			expenses: []core.Expense{
				{Amount: core.Money{Cents: 100}, Date: core.NewDate(2023, 12, 31)},
				{Amount: core.Money{Cents: 200}, Date: core.NewDate(2024, 1, 1)},
			},
			want: map[string]int64{"2023-12": 100, "2024-01": 200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalendarMonthTrend{}.Trend(TrendInput{Expenses: tt.expenses})
			if len(got) != len(tt.want) {
				t.Fatalf("got %d buckets, want %d: %v", len(got), len(tt.want), got)
			}
			for k, cents := range tt.want {
				if got[k].Cents != cents {
					t.Errorf("trend[%s] = %d, want %d", k, got[k].Cents, cents)
				}
			}
		})
	}
}

func TestTrendStrategyFor(t *testing.T) {
	tests := []struct {
		reportType core.ReportType
		want       TrendStrategy
		wantErr    bool
	}{
		{core.ReportMonthly, FixedTotalsTrend{}, false},
		{core.ReportAnnual, CalendarMonthTrend{}, false},
		{core.ReportCustom, CalendarMonthTrend{}, false},
		{core.ReportType("Weekly"), nil, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.reportType), func(t *testing.T) {
			got, err := TrendStrategyFor(tt.reportType)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TrendStrategyFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TrendStrategyFor() = %T, want %T", got, tt.want)
			}
		})
	}
}
