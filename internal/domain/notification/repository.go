// internal/domain/notification/repository.go
package notification

import "context"

// Repository is the append-only notification ledger.
type Repository interface {
	// Record appends rec and fills in ID, SentAt (when zero) and CreatedAt.
	// The previous latest record of the same (user, plant, type) loses its is_latest hint.
	Record(ctx context.Context, rec *Record) error
	// Latest returns the most recent record of the given type, ordered by sent_at.
	Latest(ctx context.Context, userID string, plantID int64, t Type) (*Record, error)
	// LatestAny returns the most recent record of any type, ordered by sent_at.
	LatestAny(ctx context.Context, userID string, plantID int64) (*Record, error)
	// LatestAnyOnDevice is LatestAny restricted to records read from one sensor channel.
	LatestAnyOnDevice(ctx context.Context, userID string, plantID int64, deviceID int) (*Record, error)
	// ListRecent returns up to limit records for the pair, newest first.
	ListRecent(ctx context.Context, userID string, plantID int64, limit int) ([]*Record, error)
}
