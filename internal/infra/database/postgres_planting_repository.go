package database

import (
	"context"
	"database/sql"
	"errors"

	"watering_notification_bot/internal/domain/planting"
)

var (
	ErrPlantingNotFound  = errors.New("planting not found")
	ErrDuplicatePlanting = errors.New("planting with this plant and device already exists")
)

const selectPlanting = `SELECT pl.id, pl.user_id, pl.plant_id, pl.device_id, COALESCE(NULLIF(p.name_jp, ''), p.name_en), pl.created_at
               FROM plantings pl
               JOIN plants p ON p.id = pl.plant_id`

type PostgresPlantingRepository struct {
	db *sql.DB
}

func NewPostgresPlantingRepository(db *sql.DB) *PostgresPlantingRepository {
	return &PostgresPlantingRepository{db: db}
}

// Register stores a new binding. ErrDuplicatePlanting when (user, plant, device) exists.
func (r *PostgresPlantingRepository) Register(ctx context.Context, p *planting.Planting) error {
	query := `INSERT INTO plantings (user_id, plant_id, device_id)
               VALUES ($1, $2, $3)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, p.UserID, p.PlantID, p.DeviceID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePlanting
		}
		return persistenceError("error registering planting", err)
	}
	return nil
}

func (r *PostgresPlantingRepository) GetByID(ctx context.Context, id int64) (*planting.Planting, error) {
	p := &planting.Planting{}
	err := r.db.QueryRowContext(ctx, selectPlanting+` WHERE pl.id = $1`, id).
		Scan(&p.ID, &p.UserID, &p.PlantID, &p.DeviceID, &p.PlantName, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlantingNotFound
		}
		return nil, persistenceError("error getting planting by ID", err)
	}
	return p, nil
}

func (r *PostgresPlantingRepository) ListByUser(ctx context.Context, userID string) ([]*planting.Planting, error) {
	rows, err := r.db.QueryContext(ctx, selectPlanting+` WHERE pl.user_id = $1 ORDER BY pl.id`, userID)
	if err != nil {
		return nil, persistenceError("error listing plantings by user", err)
	}
	defer rows.Close()
	return scanPlantings(rows)
}

func (r *PostgresPlantingRepository) ListAll(ctx context.Context) ([]*planting.Planting, error) {
	rows, err := r.db.QueryContext(ctx, selectPlanting+` ORDER BY pl.user_id, pl.id`)
	if err != nil {
		return nil, persistenceError("error listing plantings", err)
	}
	defer rows.Close()
	return scanPlantings(rows)
}

func (r *PostgresPlantingRepository) Delete(ctx context.Context, id int64, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM plantings WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return persistenceError("error deleting planting", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceError("error reading affected rows", err)
	}
	if n == 0 {
		return ErrPlantingNotFound
	}
	return nil
}

// Helper to scan multiple rows
func scanPlantings(rows *sql.Rows) ([]*planting.Planting, error) {
	plantings := make([]*planting.Planting, 0)
	for rows.Next() {
		p := &planting.Planting{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.PlantID, &p.DeviceID, &p.PlantName, &p.CreatedAt); err != nil {
			return nil, persistenceError("error scanning planting row", err)
		}
		plantings = append(plantings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("error iterating planting rows", err)
	}
	return plantings, nil
}
