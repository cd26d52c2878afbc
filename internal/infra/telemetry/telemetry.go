// Package telemetry publishes moisture readings and watering decisions to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domainTelemetry "watering_notification_bot/internal/domain/telemetry"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "watering"

// Topic builds "<prefix>/<user>/<plant>/<kind>".
func Topic(prefix, userID string, plantID int64, kind string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return fmt.Sprintf("%s/%s/%d/%s", prefix, userID, plantID, kind)
}

// ReadingPayload is the JSON body of a moisture message.
type ReadingPayload struct {
	Timestamp string `json:"timestamp"`
	DeviceID  int    `json:"device_id"`
	Value     int    `json:"value"`
}

// DecisionPayload is the JSON body of a decision message.
type DecisionPayload struct {
	Timestamp string `json:"timestamp"`
	Notify    bool   `json:"notify"`
	Reason    string `json:"reason"`
	Mode      string `json:"mode,omitempty"`
	Humidity  *int   `json:"humidity,omitempty"`
}

// FormatReadingPayload creates the JSON payload for a reading.
func FormatReadingPayload(r domainTelemetry.Reading) ([]byte, error) {
	return json.Marshal(ReadingPayload{
		Timestamp: r.ReadAt.UTC().Format(time.RFC3339),
		DeviceID:  r.DeviceID,
		Value:     r.Value,
	})
}

// FormatDecisionPayload creates the JSON payload for a decision.
func FormatDecisionPayload(d domainTelemetry.Decision) ([]byte, error) {
	return json.Marshal(DecisionPayload{
		Timestamp: d.DecidedAt.UTC().Format(time.RFC3339),
		Notify:    d.Notify,
		Reason:    d.Reason,
		Mode:      d.Mode,
		Humidity:  d.Humidity,
	})
}
