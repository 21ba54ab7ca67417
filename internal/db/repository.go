package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/platform"
)

// Repository stores legacy-tier local notifications. It is the legacy
// scheduling primitive: a row is one scheduled notification with an absolute
// fire date.
type Repository struct {
	db     *DB
	logger *zap.Logger
}

var _ platform.LegacyScheduler = (*Repository)(nil)

func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// ScheduleLocalNotification inserts n as a pending row.
func (r *Repository) ScheduleLocalNotification(ctx context.Context, n platform.LegacyNotification) error {
	row := fromLegacy(n)

	query := `
		INSERT INTO local_notifications (
			id, fire_date, alert_title, alert_body, alert_action,
			sound_name, repeat_interval_ms, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		row.ID,
		row.FireDate,
		row.AlertTitle,
		row.AlertBody,
		row.AlertAction,
		row.SoundName,
		row.RepeatInterval.Milliseconds(),
		row.Status,
	).Scan(&row.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert local notification: %w", err)
	}

	r.logger.Debug("local notification stored",
		zap.String("id", row.ID.String()),
		zap.Time("fire_date", row.FireDate),
		zap.Duration("repeat_interval", row.RepeatInterval),
	)
	return nil
}

// ClaimDue marks up to limit pending rows whose fire date has passed as
// delivered and returns them as they were before the update. Repeating rows
// stay pending with the fire date moved forward by one interval. Concurrent
// callers never claim the same row.
func (r *Repository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*LocalNotification, error) {
	query := `
		WITH due AS (
			SELECT id, fire_date
			FROM local_notifications
			WHERE status = 'pending' AND fire_date <= $1
			ORDER BY fire_date
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE local_notifications n
		SET
			status = CASE WHEN n.repeat_interval_ms > 0 THEN 'pending' ELSE 'delivered' END,
			fire_date = CASE
				WHEN n.repeat_interval_ms > 0 THEN n.fire_date + n.repeat_interval_ms * INTERVAL '1 millisecond'
				ELSE n.fire_date
			END,
			delivered_at = $1
		FROM due
		WHERE n.id = due.id
		RETURNING
			n.id, due.fire_date, n.alert_title, n.alert_body, n.alert_action,
			n.sound_name, n.repeat_interval_ms, n.created_at, n.delivered_at
	`

	rows, err := r.db.Pool().Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due local notifications: %w", err)
	}
	defer rows.Close()

	var claimed []*LocalNotification
	for rows.Next() {
		var (
			n        LocalNotification
			repeatMS int64
		)
		if err := rows.Scan(
			&n.ID,
			&n.FireDate,
			&n.AlertTitle,
			&n.AlertBody,
			&n.AlertAction,
			&n.SoundName,
			&repeatMS,
			&n.CreatedAt,
			&n.DeliveredAt,
		); err != nil {
			return nil, fmt.Errorf("scan local notification: %w", err)
		}
		n.RepeatInterval = time.Duration(repeatMS) * time.Millisecond
		n.Status = StatusDelivered
		claimed = append(claimed, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return claimed, nil
}

// Get returns one row by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*LocalNotification, error) {
	query := `
		SELECT
			id, fire_date, alert_title, alert_body, alert_action,
			sound_name, repeat_interval_ms, status, created_at, delivered_at
		FROM local_notifications
		WHERE id = $1
	`

	var (
		n        LocalNotification
		repeatMS int64
	)
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&n.ID,
		&n.FireDate,
		&n.AlertTitle,
		&n.AlertBody,
		&n.AlertAction,
		&n.SoundName,
		&repeatMS,
		&n.Status,
		&n.CreatedAt,
		&n.DeliveredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("local notification not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query local notification: %w", err)
	}
	n.RepeatInterval = time.Duration(repeatMS) * time.Millisecond
	return &n, nil
}

// CountPending returns the number of rows waiting to fire.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool().QueryRow(ctx,
		"SELECT COUNT(*) FROM local_notifications WHERE status = 'pending'",
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending local notifications: %w", err)
	}
	return count, nil
}
