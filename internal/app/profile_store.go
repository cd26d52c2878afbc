package app

import (
	"context"
	"fmt"
	"time"

	"watering_notification_bot/internal/domain/plant"
)

type profileKey struct {
	plantID int64
	month   time.Month
}

// ProfileStore is an in-memory, read-only index of watering profiles by (plant, month).
// It is built once at startup and safe for concurrent reads.
type ProfileStore struct {
	profiles map[profileKey]*plant.Profile
}

// NewProfileStore indexes profiles. Rows with a month outside 1..12 are ignored; for
// duplicated (plant, month) keys the last row wins.
func NewProfileStore(profiles []*plant.Profile) *ProfileStore {
	s := &ProfileStore{profiles: make(map[profileKey]*plant.Profile, len(profiles))}
	for _, p := range profiles {
		if p == nil || p.Month < 1 || p.Month > 12 {
			continue
		}
		s.profiles[profileKey{plantID: p.PlantID, month: time.Month(p.Month)}] = p
	}
	return s
}

// LoadProfileStore reads every profile from repo.
func LoadProfileStore(ctx context.Context, repo plant.Repository) (*ProfileStore, error) {
	profiles, err := repo.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load watering profiles: %w", err)
	}
	return NewProfileStore(profiles), nil
}

// Get returns the profile of plantID for month, or false when there is none.
func (s *ProfileStore) Get(plantID int64, month time.Month) (*plant.Profile, bool) {
	p, ok := s.profiles[profileKey{plantID: plantID, month: month}]
	return p, ok
}

// Len returns the number of indexed profiles.
func (s *ProfileStore) Len() int {
	return len(s.profiles)
}
