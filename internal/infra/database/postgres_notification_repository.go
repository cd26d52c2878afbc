// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"watering_notification_bot/internal/domain/notification"
)

var ErrNotificationNotFound = errors.New("notification not found")

const selectNotification = `SELECT id, user_id, plant_id, notification_type, message, sent_at, humidity, device_id, is_latest, created_at
               FROM notifications`

type PostgresNotificationRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db, now: time.Now}
}

// Record appends rec. In one transaction the previous latest record of the same
// (user, plant, type) loses its is_latest hint and rec is inserted as the new latest.
func (r *PostgresNotificationRepository) Record(ctx context.Context, rec *notification.Record) error {
	if !rec.Type.Valid() {
		return fmt.Errorf("unknown notification type %q", rec.Type)
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = r.now()
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceError("failed to begin notification transaction", err)
	}
	defer txn.Rollback() // Rollback if not committed

	_, err = txn.ExecContext(ctx,
		`UPDATE notifications SET is_latest = FALSE
          WHERE user_id = $1 AND plant_id = $2 AND notification_type = $3 AND is_latest`,
		rec.UserID, rec.PlantID, string(rec.Type))
	if err != nil {
		return persistenceError("error clearing latest notification flag", err)
	}

	err = txn.QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, plant_id, notification_type, message, sent_at, humidity, device_id, is_latest)
          VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
          RETURNING id, created_at`,
		rec.UserID, rec.PlantID, string(rec.Type), rec.Message, rec.SentAt, rec.Humidity, rec.DeviceID,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return persistenceError("error inserting notification", err)
	}

	if err := txn.Commit(); err != nil {
		return persistenceError("failed to commit notification", err)
	}
	rec.IsLatest = true
	return nil
}

// Latest orders by sent_at, never by the is_latest hint.
func (r *PostgresNotificationRepository) Latest(ctx context.Context, userID string, plantID int64, t notification.Type) (*notification.Record, error) {
	query := selectNotification + `
               WHERE user_id = $1 AND plant_id = $2 AND notification_type = $3
               ORDER BY sent_at DESC, id DESC LIMIT 1`
	return r.getOne(ctx, query, userID, plantID, string(t))
}

func (r *PostgresNotificationRepository) LatestAny(ctx context.Context, userID string, plantID int64) (*notification.Record, error) {
	query := selectNotification + `
               WHERE user_id = $1 AND plant_id = $2
               ORDER BY sent_at DESC, id DESC LIMIT 1`
	return r.getOne(ctx, query, userID, plantID)
}

// LatestAnyOnDevice skips rows without a recorded channel.
func (r *PostgresNotificationRepository) LatestAnyOnDevice(ctx context.Context, userID string, plantID int64, deviceID int) (*notification.Record, error) {
	query := selectNotification + `
               WHERE user_id = $1 AND plant_id = $2 AND device_id = $3
               ORDER BY sent_at DESC, id DESC LIMIT 1`
	return r.getOne(ctx, query, userID, plantID, deviceID)
}

func (r *PostgresNotificationRepository) ListRecent(ctx context.Context, userID string, plantID int64, limit int) ([]*notification.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	query := selectNotification + `
               WHERE user_id = $1 AND plant_id = $2
               ORDER BY sent_at DESC, id DESC LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, userID, plantID, limit)
	if err != nil {
		return nil, persistenceError("error listing recent notifications", err)
	}
	defer rows.Close()

	records := make([]*notification.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("error iterating notifications", err)
	}
	return records, nil
}

func (r *PostgresNotificationRepository) getOne(ctx context.Context, query string, args ...any) (*notification.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return rec, nil
}

func scanRecord(row rowScanner) (*notification.Record, error) {
	var (
		rec notification.Record
		typ string
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.PlantID, &typ, &rec.Message, &rec.SentAt, &rec.Humidity, &rec.DeviceID, &rec.IsLatest, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, persistenceError("error scanning notification", err)
	}
	rec.Type = notification.Type(typ)
	return &rec, nil
}
