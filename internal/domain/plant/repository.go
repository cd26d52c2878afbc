package plant

import "context"

// Repository defines operations on plants and their monthly watering profiles.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Plant, error)
	UpsertPlant(ctx context.Context, p *Plant) error
	UpsertProfile(ctx context.Context, p *Profile) error // Keyed by (plant_id, month)
	ListProfiles(ctx context.Context) ([]*Profile, error)
}
