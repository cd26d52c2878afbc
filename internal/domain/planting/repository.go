package planting

import "context"

// Repository defines the operations for persisting and retrieving Planting entities.
type Repository interface {
	Register(ctx context.Context, p *Planting) error
	GetByID(ctx context.Context, id int64) (*Planting, error)
	ListByUser(ctx context.Context, userID string) ([]*Planting, error)
	ListAll(ctx context.Context) ([]*Planting, error)
	// Delete removes the planting only when it belongs to userID.
	Delete(ctx context.Context, id int64, userID string) error
}
