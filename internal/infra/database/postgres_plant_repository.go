package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"watering_notification_bot/internal/domain/plant"
)

var ErrPlantNotFound = errors.New("plant not found")

type PostgresPlantRepository struct {
	db *sql.DB
}

func NewPostgresPlantRepository(db *sql.DB) *PostgresPlantRepository {
	return &PostgresPlantRepository{db: db}
}

func (r *PostgresPlantRepository) GetByID(ctx context.Context, id int64) (*plant.Plant, error) {
	query := `SELECT id, name_jp, name_en, description, image_url, created_at, updated_at
               FROM plants WHERE id = $1`
	p := &plant.Plant{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.NameJP, &p.NameEN, &p.Description, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlantNotFound
		}
		return nil, persistenceError("error getting plant by ID", err)
	}
	return p, nil
}

// UpsertPlant inserts or replaces the plant keyed by its classifier label id.
func (r *PostgresPlantRepository) UpsertPlant(ctx context.Context, p *plant.Plant) error {
	query := `INSERT INTO plants (id, name_jp, name_en, description, image_url)
               VALUES ($1, $2, $3, $4, $5)
               ON CONFLICT (id) DO UPDATE
               SET name_jp = EXCLUDED.name_jp, name_en = EXCLUDED.name_en,
                   description = EXCLUDED.description, image_url = EXCLUDED.image_url, updated_at = NOW()
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.NameJP, p.NameEN, p.Description, p.ImageURL).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return persistenceError(fmt.Sprintf("error upserting plant %d", p.ID), err)
	}
	return nil
}

// UpsertProfile inserts or replaces the profile keyed by (plant_id, month).
func (r *PostgresPlantRepository) UpsertProfile(ctx context.Context, p *plant.Profile) error {
	query := `INSERT INTO watering_profiles (plant_id, month, frequency, amount, humidity_when_dry, humidity_when_watered)
               VALUES ($1, $2, $3, $4, $5, $6)
               ON CONFLICT ON CONSTRAINT watering_profiles_plant_month_key DO UPDATE
               SET frequency = EXCLUDED.frequency, amount = EXCLUDED.amount,
                   humidity_when_dry = EXCLUDED.humidity_when_dry, humidity_when_watered = EXCLUDED.humidity_when_watered
               RETURNING id`
	err := r.db.QueryRowContext(ctx, query, p.PlantID, p.Month, p.Frequency, p.Amount, p.HumidityWhenDry, p.HumidityWhenWatered).Scan(&p.ID)
	if err != nil {
		return persistenceError(fmt.Sprintf("error upserting profile plant=%d month=%d", p.PlantID, p.Month), err)
	}
	return nil
}

func (r *PostgresPlantRepository) ListProfiles(ctx context.Context) ([]*plant.Profile, error) {
	query := `SELECT id, plant_id, month, frequency, amount, humidity_when_dry, humidity_when_watered
               FROM watering_profiles ORDER BY plant_id, month`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistenceError("error listing watering profiles", err)
	}
	defer rows.Close()

	profiles := make([]*plant.Profile, 0)
	for rows.Next() {
		p := &plant.Profile{}
		if err := rows.Scan(&p.ID, &p.PlantID, &p.Month, &p.Frequency, &p.Amount, &p.HumidityWhenDry, &p.HumidityWhenWatered); err != nil {
			return nil, persistenceError("error scanning watering profile", err)
		}
		profiles = append(profiles, p)
	}
	if err = rows.Err(); err != nil {
		return nil, persistenceError("error iterating watering profiles", err)
	}
	return profiles, nil
}
