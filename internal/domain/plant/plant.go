package plant

import (
	"database/sql"
	"time"
)

// Plant is a species known to the classifier. ID matches the classifier label id.
type Plant struct {
	ID          int64
	NameJP      string
	NameEN      string
	Description sql.NullString
	ImageURL    sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayName prefers the Japanese name and falls back to the English one.
func (p *Plant) DisplayName() string {
	if p.NameJP != "" {
		return p.NameJP
	}
	return p.NameEN
}

// Profile is the watering policy of one plant for one calendar month.
// Corresponds to the 'watering_profiles' table.
type Profile struct {
	ID      int64
	PlantID int64
	Month   int // 1..12
	// Frequency is free text. "2日に1回" carries an interval in days; text without a number
	// means "water when the soil reads dry".
	Frequency string
	Amount    string // Display only
	// HumidityWhenDry is a raw ADC threshold. Higher raw values mean drier soil.
	HumidityWhenDry int
	// HumidityWhenWatered is the expected raw reading right after a correct watering.
	HumidityWhenWatered int
}
