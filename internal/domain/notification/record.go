// internal/domain/notification/record.go
package notification

import (
	"database/sql"
	"time"
)

// Record is one entry of the notification ledger.
// Corresponds to the 'notifications' table.
type Record struct {
	ID       int64
	UserID   string // Foreign Key to users.id
	PlantID  int64  // Foreign Key to plants.id
	Type     Type
	Message  string
	SentAt   time.Time
	Humidity sql.NullInt64 // Raw sensor reading observed at send time
	DeviceID sql.NullInt64 // Sensor channel Humidity was read from
	// IsLatest is a denormalised hint only. "Latest" is always resolved by sent_at ordering.
	IsLatest  bool
	CreatedAt time.Time
}

// HumidityValue returns the observed reading and whether one was recorded.
func (r *Record) HumidityValue() (int, bool) {
	if r == nil || !r.Humidity.Valid {
		return 0, false
	}
	return int(r.Humidity.Int64), true
}
