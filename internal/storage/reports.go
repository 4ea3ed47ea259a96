package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/ports"
)

const reportColumns = `id, user_id, report_type, period, title, start_date, end_date,
	total_income_cents, total_expense_cents, balance_cents,
	category_summary, monthly_trend, notes, generated_at`

const detailColumns = `id, report_id, category, amount_cents, transaction_count,
	average_amount_cents, percentage_of_total, daily_distribution`

const insertReportSQL = `INSERT INTO financial_reports (
	user_id, report_type, period, title, start_date, end_date,
	total_income_cents, total_expense_cents, balance_cents,
	category_summary, monthly_trend, notes, generated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

const insertDetailSQL = `INSERT INTO report_details (
	report_id, category, amount_cents, transaction_count,
	average_amount_cents, percentage_of_total, daily_distribution
) VALUES (?, ?, ?, ?, ?, ?, ?)`

func scanReport(row rowScanner) (core.Report, error) {
	var (
		rep core.Report
		typ string
	)
	err := row.Scan(
		&rep.ID, &rep.Owner, &typ, &rep.Period, &rep.Title,
		dateValue{&rep.StartDate}, dateValue{&rep.EndDate},
		&rep.TotalIncome.Cents, &rep.TotalExpense.Cents, &rep.Balance.Cents,
		moneyMap{&rep.CategorySummary}, moneyMap{&rep.MonthlyTrend},
		&rep.Notes, timeValue{&rep.GeneratedAt},
	)
	if err != nil {
		return core.Report{}, err
	}
	rep.Type = core.ReportType(typ)
	return rep, nil
}

func scanDetail(row rowScanner) (core.ReportDetail, error) {
	var d core.ReportDetail
	err := row.Scan(
		&d.ID, &d.ReportID, &d.Category, &d.Amount.Cents, &d.TransactionCount,
		&d.AverageAmount.Cents, percentValue{&d.PercentageOfTotal}, moneyMap{&d.DailyDistribution},
	)
	return d, err
}

func (r *SQLRepository) FindReport(ctx context.Context, owner string, t core.ReportType, period string) (core.Report, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+reportColumns+`
		FROM financial_reports WHERE user_id = ? AND report_type = ? AND period = ?`),
		owner, string(t), period)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Report{}, core.ErrReportNotFound
	}
	if err != nil {
		return core.Report{}, fmt.Errorf("find report: %w", err)
	}
	return rep, nil
}

func (r *SQLRepository) GetReport(ctx context.Context, owner string, id int64) (core.Report, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+reportColumns+`
		FROM financial_reports WHERE id = ? AND user_id = ?`), id, owner)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Report{}, core.ErrReportNotFound
	}
	if err != nil {
		return core.Report{}, fmt.Errorf("get report %d: %w", id, err)
	}
	return rep, nil
}

func (r *SQLRepository) ListReports(ctx context.Context, owner string) ([]core.Report, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT `+reportColumns+`
		FROM financial_reports WHERE user_id = ? ORDER BY generated_at DESC, id DESC`), owner)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]core.Report, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *SQLRepository) ListReportDetails(ctx context.Context, reportID int64) ([]core.ReportDetail, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT `+detailColumns+`
		FROM report_details WHERE report_id = ? ORDER BY id`), reportID)
	if err != nil {
		return nil, fmt.Errorf("list report details: %w", err)
	}
	defer rows.Close()

	out := make([]core.ReportDetail, 0)
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report detail: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// WithinTx runs fn against a transaction-bound writer.
func (r *SQLRepository) WithinTx(ctx context.Context, fn func(ports.ReportWriter) error) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&txWriter{q: tx, dialect: r.dialect})
	})
}

// DeleteReport removes the report and its details. Details are deleted
// explicitly so the result does not depend on foreign key enforcement.
func (r *SQLRepository) DeleteReport(ctx context.Context, owner string, id int64) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var found int64
		err := tx.QueryRowContext(ctx, r.rebind(`SELECT id FROM financial_reports WHERE id = ? AND user_id = ?`), id, owner).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrReportNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup report %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM report_details WHERE report_id = ?`), id); err != nil {
			return fmt.Errorf("delete report details: %w", err)
		}
		if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM financial_reports WHERE id = ?`), id); err != nil {
			return fmt.Errorf("delete report: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "Report rows deleted", applog.FieldReportID, id, applog.FieldOperation, applog.OpDelete)
	return nil
}

// txWriter implements ports.ReportWriter on top of an open transaction.
type txWriter struct {
	q       queryer
	dialect Dialect
}

func (w *txWriter) InsertReport(ctx context.Context, rep core.Report) (int64, error) {
	summary, err := encodeMoneyMap(rep.CategorySummary)
	if err != nil {
		return 0, fmt.Errorf("encode category summary: %w", err)
	}
	trend, err := encodeMoneyMap(rep.MonthlyTrend)
	if err != nil {
		return 0, fmt.Errorf("encode monthly trend: %w", err)
	}

	var id int64
	err = w.q.QueryRowContext(ctx, rebind(w.dialect, insertReportSQL),
		rep.Owner, string(rep.Type), rep.Period, rep.Title,
		dateArg(rep.StartDate), dateArg(rep.EndDate),
		rep.TotalIncome.Cents, rep.TotalExpense.Cents, rep.Balance.Cents,
		summary, trend, rep.Notes, timeArg(w.dialect, rep.GeneratedAt),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %w", core.ErrDuplicateReport, err)
		}
		return 0, fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

func (w *txWriter) InsertReportDetails(ctx context.Context, details []core.ReportDetail) error {
	query := rebind(w.dialect, insertDetailSQL)
	for _, d := range details {
		daily, err := encodeMoneyMap(d.DailyDistribution)
		if err != nil {
			return fmt.Errorf("encode daily distribution of %q: %w", d.Category, err)
		}
		_, err = w.q.ExecContext(ctx, query,
			d.ReportID, d.Category, d.Amount.Cents, d.TransactionCount,
			d.AverageAmount.Cents, d.PercentageOfTotal.String(), daily,
		)
		if err != nil {
			return fmt.Errorf("insert detail %q: %w", d.Category, err)
		}
	}
	return nil
}
