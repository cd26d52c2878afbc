package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"watering_notification_bot/internal/domain/plant"
	"watering_notification_bot/internal/domain/watering"
)

// ParsePlants maps rows with columns id, name_jp, name_en, description and
// originalContentUrl (or image_url).
func ParsePlants(rows []Row) ([]*plant.Plant, error) {
	plants := make([]*plant.Plant, 0, len(rows))
	for _, r := range rows {
		id, err := strconv.ParseInt(r.Get("id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid id %q", r.Line, r.Get("id"))
		}
		p := &plant.Plant{
			ID:     id,
			NameJP: r.Get("name_jp"),
			NameEN: r.Get("name_en"),
		}
		if p.NameJP == "" && p.NameEN == "" {
			return nil, fmt.Errorf("line %d: plant %d has no name", r.Line, id)
		}
		if d := r.Get("description"); d != "" {
			p.Description = sql.NullString{String: d, Valid: true}
		}
		if u := r.Get("originalContentUrl", "image_url"); u != "" {
			p.ImageURL = sql.NullString{String: u, Valid: true}
		}
		plants = append(plants, p)
	}
	return plants, nil
}

// ParseProfiles maps rows with columns plant_ID, month, frequency, quantity (or amount),
// humidity_when_dry and humidity_when_watered.
func ParseProfiles(rows []Row) ([]*plant.Profile, error) {
	profiles := make([]*plant.Profile, 0, len(rows))
	for _, r := range rows {
		var errs []error
		plantID, err := strconv.ParseInt(r.Get("plant_id"), 10, 64)
		errs = append(errs, fieldErr("plant_ID", err))
		month, err := strconv.Atoi(r.Get("month"))
		errs = append(errs, fieldErr("month", err))
		dry, err := strconv.Atoi(r.Get("humidity_when_dry"))
		errs = append(errs, fieldErr("humidity_when_dry", err))
		watered, err := strconv.Atoi(r.Get("humidity_when_watered"))
		errs = append(errs, fieldErr("humidity_when_watered", err))
		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("line %d: %w", r.Line, err)
		}
		if month < 1 || month > 12 {
			return nil, fmt.Errorf("line %d: month %d out of range", r.Line, month)
		}

		profiles = append(profiles, &plant.Profile{
			PlantID:             plantID,
			Month:               month,
			Frequency:           r.Get("frequency"),
			Amount:              r.Get("quantity", "amount"),
			HumidityWhenDry:     dry,
			HumidityWhenWatered: watered,
		})
	}
	return profiles, nil
}

func fieldErr(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s: %w", name, err)
}

// Importer upserts seed data through the plant repository.
type Importer struct {
	plants plant.Repository
	logger *logrus.Entry
}

func NewImporter(pr plant.Repository, logger *logrus.Entry) *Importer {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Importer{plants: pr, logger: logger}
}

func (i *Importer) ImportPlants(ctx context.Context, path string) (int, error) {
	rows, err := ReadTable(path)
	if err != nil {
		return 0, err
	}
	plants, err := ParsePlants(rows)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	for n, p := range plants {
		if err := i.plants.UpsertPlant(ctx, p); err != nil {
			return n, err
		}
	}
	i.logger.WithFields(logrus.Fields{"file": path, "count": len(plants)}).Info("Plants imported")
	return len(plants), nil
}

// ImportProfiles upserts every profile. Frequencies the engine cannot interpret are imported
// anyway and reported, since the scheduler skips such plantings with a warning.
func (i *Importer) ImportProfiles(ctx context.Context, path string) (int, error) {
	rows, err := ReadTable(path)
	if err != nil {
		return 0, err
	}
	profiles, err := ParseProfiles(rows)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	for n, p := range profiles {
		if _, err := watering.ParseFrequency(p.Frequency); err != nil {
			i.logger.WithFields(logrus.Fields{"plant_id": p.PlantID, "month": p.Month}).WithError(err).Warn("Profile frequency cannot be interpreted")
		}
		if err := i.plants.UpsertProfile(ctx, p); err != nil {
			return n, err
		}
	}
	i.logger.WithFields(logrus.Fields{"file": path, "count": len(profiles)}).Info("Watering profiles imported")
	return len(profiles), nil
}
