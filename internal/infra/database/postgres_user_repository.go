package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"watering_notification_bot/internal/domain/user"
)

var ErrUserNotFound = errors.New("user not found")

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// GetOrCreate inserts the user in the IDLE state when missing and returns the stored row.
func (r *PostgresUserRepository) GetOrCreate(ctx context.Context, id string) (*user.User, error) {
	query := `INSERT INTO users (id) VALUES ($1)
               ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
               RETURNING id, state_kind, state_plant_id, created_at, updated_at`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("error getting or creating user %s: %w", id, err)
	}
	return u, nil
}

func (r *PostgresUserRepository) ListAll(ctx context.Context) ([]*user.User, error) {
	query := `SELECT id, state_kind, state_plant_id, created_at, updated_at FROM users ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistenceError("error listing users", err)
	}
	defer rows.Close()

	users := make([]*user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, persistenceError("error iterating users", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) UpdateState(ctx context.Context, id string, s user.State) error {
	kind, plantID := user.EncodeState(s)
	query := `UPDATE users SET state_kind = $1, state_plant_id = $2, updated_at = NOW() WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, string(kind), plantID, id)
	if err != nil {
		return persistenceError("error updating user state", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceError("error reading affected rows", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var (
		u       user.User
		kind    string
		plantID sql.NullInt64
	)
	if err := row.Scan(&u.ID, &kind, &plantID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, persistenceError("scan user", err)
	}
	state, err := user.DecodeState(user.StateKind(kind), plantID)
	if err != nil {
		return nil, err
	}
	u.State = state
	return &u, nil
}
