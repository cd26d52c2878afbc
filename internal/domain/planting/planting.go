package planting

import "time"

// Planting binds one user to one plant species and one sensor channel.
// Corresponds to the 'plantings' table; (user_id, plant_id, device_id) is unique.
type Planting struct {
	ID        int64
	UserID    string
	PlantID   int64
	DeviceID  int    // ADC channel 0..7
	PlantName string // Joined from plants for display
	CreatedAt time.Time
}
