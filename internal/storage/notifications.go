package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finassist/internal/core"
)

func (r *SQLRepository) CreateNotification(ctx context.Context, n core.Notification) (int64, error) {
	if err := core.ValidateOwner(n.Owner); err != nil {
		return 0, err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	ref := sql.NullInt64{Int64: n.ReferenceID, Valid: n.ReferenceID != 0}

	var id int64
	err := r.db.QueryRowContext(ctx, r.rebind(`INSERT INTO notifications
		(user_id, title, message, type, is_read, created_at, reference_id, reference_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		n.Owner, n.Title, n.Message, n.Type, n.IsRead, r.timeArg(n.CreatedAt), ref, n.ReferenceType,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

// ListNotifications returns the owner's notifications, oldest first.
func (r *SQLRepository) ListNotifications(ctx context.Context, owner string) ([]core.Notification, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT id, user_id, title, message, type, is_read, created_at, reference_id, reference_type
		FROM notifications WHERE user_id = ? ORDER BY created_at, id`), owner)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var (
			n   core.Notification
			ref sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &n.Owner, &n.Title, &n.Message, &n.Type, &n.IsRead, timeValue{&n.CreatedAt}, &ref, &n.ReferenceType); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ReferenceID = ref.Int64
		out = append(out, n)
	}
	return out, rows.Err()
}
