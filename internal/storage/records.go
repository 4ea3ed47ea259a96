package storage

import (
	"context"
	"database/sql"
	"fmt"

	"finassist/internal/core"
)

func (r *SQLRepository) ListIncomes(ctx context.Context, owner string, w core.Window) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT id, user_id, amount_cents, date, description
		FROM incomes WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date, id`),
		owner, dateArg(w.Start), dateArg(w.End))
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		var in core.Income
		if err := rows.Scan(&in.ID, &in.Owner, &in.Amount.Cents, dateValue{&in.Date}, &in.Description); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *SQLRepository) ListExpenses(ctx context.Context, owner string, w core.Window) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT id, user_id, amount_cents, date, category, description
		FROM expenses WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date, id`),
		owner, dateArg(w.Start), dateArg(w.End))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.ID, &e.Owner, &e.Amount.Cents, dateValue{&e.Date}, &e.Category, &e.Description); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLRepository) ListPaidBills(ctx context.Context, owner string, w core.Window) ([]core.Bill, error) {
	rows, err := r.queryPaid(ctx, "bills", owner, w)
	if err != nil {
		return nil, fmt.Errorf("list paid bills: %w", err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		var b core.Bill
		if err := rows.Scan(&b.ID, &b.Owner, &b.Amount.Cents, dateValue{&b.DueDate}, &b.IsPaid, &b.Description); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLRepository) ListPaidInvoices(ctx context.Context, owner string, w core.Window) ([]core.Invoice, error) {
	rows, err := r.queryPaid(ctx, "invoices", owner, w)
	if err != nil {
		return nil, fmt.Errorf("list paid invoices: %w", err)
	}
	defer rows.Close()

	var out []core.Invoice
	for rows.Next() {
		var inv core.Invoice
		if err := rows.Scan(&inv.ID, &inv.Owner, &inv.Amount.Cents, dateValue{&inv.DueDate}, &inv.IsPaid, &inv.Description); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// queryPaid selects paid rows of a due-dated table. table is never user input.
func (r *SQLRepository) queryPaid(ctx context.Context, table, owner string, w core.Window) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.rebind(`SELECT id, user_id, amount_cents, due_date, is_paid, description
		FROM `+table+` WHERE user_id = ? AND is_paid = TRUE AND due_date >= ? AND due_date <= ? ORDER BY due_date, id`),
		owner, dateArg(w.Start), dateArg(w.End))
}

// ImportRecords inserts every record in one transaction. Record ids are
// assigned by the database.
func (r *SQLRepository) ImportRecords(ctx context.Context, rec core.Records) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, in := range rec.Incomes {
			if err := core.ValidateOwner(in.Owner); err != nil {
				return fmt.Errorf("income: %w", err)
			}
			if _, err := tx.ExecContext(ctx, r.rebind(`INSERT INTO incomes (user_id, amount_cents, date, description) VALUES (?, ?, ?, ?)`),
				in.Owner, in.Amount.Cents, dateArg(in.Date), in.Description); err != nil {
				return fmt.Errorf("insert income: %w", err)
			}
		}
		for _, e := range rec.Expenses {
			if err := core.ValidateOwner(e.Owner); err != nil {
				return fmt.Errorf("expense: %w", err)
			}
			if _, err := tx.ExecContext(ctx, r.rebind(`INSERT INTO expenses (user_id, amount_cents, date, category, description) VALUES (?, ?, ?, ?, ?)`),
				e.Owner, e.Amount.Cents, dateArg(e.Date), e.Category, e.Description); err != nil {
				return fmt.Errorf("insert expense: %w", err)
			}
		}
		for _, b := range rec.Bills {
			if err := core.ValidateOwner(b.Owner); err != nil {
				return fmt.Errorf("bill: %w", err)
			}
			if _, err := tx.ExecContext(ctx, r.rebind(`INSERT INTO bills (user_id, amount_cents, due_date, is_paid, description) VALUES (?, ?, ?, ?, ?)`),
				b.Owner, b.Amount.Cents, dateArg(b.DueDate), b.IsPaid, b.Description); err != nil {
				return fmt.Errorf("insert bill: %w", err)
			}
		}
		for _, inv := range rec.Invoices {
			if err := core.ValidateOwner(inv.Owner); err != nil {
				return fmt.Errorf("invoice: %w", err)
			}
			if _, err := tx.ExecContext(ctx, r.rebind(`INSERT INTO invoices (user_id, amount_cents, due_date, is_paid, description) VALUES (?, ?, ?, ?, ?)`),
				inv.Owner, inv.Amount.Cents, dateArg(inv.DueDate), inv.IsPaid, inv.Description); err != nil {
				return fmt.Errorf("insert invoice: %w", err)
			}
		}
		return nil
	})
}
