package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"finassist/internal/core"
	"finassist/internal/ports"
)

// Computer produces the figures of a report for one owner and period.
type Computer interface {
	Compute(ctx context.Context, owner string, p core.Period) (core.Computation, error)
}

// Engine is the aggregation engine. It reads records and never writes.
type Engine struct {
	source ports.RecordSource
}

func NewEngine(source ports.RecordSource) *Engine {
	return &Engine{source: source}
}

// Compute fetches the owner's records for the period window and aggregates them.
func (e *Engine) Compute(ctx context.Context, owner string, p core.Period) (core.Computation, error) {
	records, err := e.Fetch(ctx, owner, p.Window)
	if err != nil {
		return core.Computation{}, err
	}
	return Aggregate(p, records)
}

// Fetch reads the four record kinds concurrently. The first failure
// cancels the others and is returned wrapped in core.ErrSourceUnavailable.
func (e *Engine) Fetch(ctx context.Context, owner string, w core.Window) (core.Records, error) {
	var rec core.Records
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		incomes, err := e.source.ListIncomes(gctx, owner, w)
		if err != nil {
			return fmt.Errorf("%w: list incomes: %w", core.ErrSourceUnavailable, err)
		}
		rec.Incomes = incomes
		return nil
	})
	g.Go(func() error {
		expenses, err := e.source.ListExpenses(gctx, owner, w)
		if err != nil {
			return fmt.Errorf("%w: list expenses: %w", core.ErrSourceUnavailable, err)
		}
		rec.Expenses = expenses
		return nil
	})
	g.Go(func() error {
		bills, err := e.source.ListPaidBills(gctx, owner, w)
		if err != nil {
			return fmt.Errorf("%w: list paid bills: %w", core.ErrSourceUnavailable, err)
		}
		rec.Bills = bills
		return nil
	})
	g.Go(func() error {
		invoices, err := e.source.ListPaidInvoices(gctx, owner, w)
		if err != nil {
			return fmt.Errorf("%w: list paid invoices: %w", core.ErrSourceUnavailable, err)
		}
		rec.Invoices = invoices
		return nil
	})

	if err := g.Wait(); err != nil {
		return core.Records{}, err
	}
	return rec, nil
}

// categoryTotals accumulates one category during a single Aggregate call.
type categoryTotals struct {
	amount core.Money
	count  int
	daily  map[string]core.Money
}

// Aggregate computes totals, category summary, trend and per-category
// details. Records outside the window and unpaid bills or invoices are
// ignored. Details follow the first-occurrence order of their category.
func Aggregate(p core.Period, rec core.Records) (core.Computation, error) {
	strategy, err := TrendStrategyFor(p.Type)
	if err != nil {
		return core.Computation{}, err
	}

	var totalIncome core.Money
	for _, in := range rec.Incomes {
		if p.Window.Contains(in.Date) {
			totalIncome = totalIncome.Add(in.Amount)
		}
	}

	var (
		totalExpense core.Money
		inWindow     = make([]core.Expense, 0, len(rec.Expenses))
		order        []string
		byCategory   = make(map[string]*categoryTotals)
	)
	for _, ex := range rec.Expenses {
		if !p.Window.Contains(ex.Date) {
			continue
		}
		inWindow = append(inWindow, ex)
		totalExpense = totalExpense.Add(ex.Amount)

		key := ex.CategoryKey()
		acc, ok := byCategory[key]
		if !ok {
			acc = &categoryTotals{daily: make(map[string]core.Money)}
			byCategory[key] = acc
			order = append(order, key)
		}
		acc.amount = acc.amount.Add(ex.Amount)
		acc.count++
		day := ex.Date.String()
		acc.daily[day] = acc.daily[day].Add(ex.Amount)
	}
	for _, b := range rec.Bills {
		if b.IsPaid && p.Window.Contains(b.DueDate) {
			totalExpense = totalExpense.Add(b.Amount)
		}
	}
	for _, inv := range rec.Invoices {
		if inv.IsPaid && p.Window.Contains(inv.DueDate) {
			totalExpense = totalExpense.Add(inv.Amount)
		}
	}

	balance := totalIncome.Sub(totalExpense)

	summary := make(map[string]core.Money, len(order))
	details := make([]core.ReportDetail, 0, len(order))
	for _, cat := range order {
		acc := byCategory[cat]
		summary[cat] = acc.amount
		details = append(details, core.ReportDetail{
			Category:          cat,
			Amount:            acc.amount,
			TransactionCount:  acc.count,
			AverageAmount:     core.AverageOf(acc.amount, acc.count),
			PercentageOfTotal: core.PercentOf(acc.amount, totalExpense),
			DailyDistribution: acc.daily,
		})
	}

	return core.Computation{
		TotalIncome:     totalIncome,
		TotalExpense:    totalExpense,
		Balance:         balance,
		CategorySummary: summary,
		MonthlyTrend: strategy.Trend(TrendInput{
			TotalIncome:  totalIncome,
			TotalExpense: totalExpense,
			Balance:      balance,
			Expenses:     inWindow,
		}),
		Details: details,
	}, nil
}
