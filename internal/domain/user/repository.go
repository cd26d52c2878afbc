package user

import "context"

// Repository defines the operations for persisting and retrieving User entities.
type Repository interface {
	// GetOrCreate returns the user, creating it in the Idle state when missing.
	GetOrCreate(ctx context.Context, id string) (*User, error)
	ListAll(ctx context.Context) ([]*User, error)
	UpdateState(ctx context.Context, id string, s State) error
}
