package watering

import (
	"watering_notification_bot/internal/domain/notification"
	"watering_notification_bot/internal/domain/plant"
)

// EffectivenessTolerance is the band, in ADC units, treated as "no meaningful difference".
const EffectivenessTolerance = 100

// Classification is the outcome of an effectiveness judgement.
type Classification string

const (
	JustRight    Classification = "just_right"
	UnderWatered Classification = "under_watered"
	OverWatered  Classification = "over_watered"
)

// Message returns the text sent to the user for c.
func (c Classification) Message() string {
	switch c {
	case JustRight:
		return "水やりの量はちょうど良いです。"
	case UnderWatered:
		return "今回は水量が少ないみたいです。次回はもう少し多めに水やりしてください。"
	case OverWatered:
		return "水量が多いみたいです。次回は少し控えめに水やりしてください。"
	default:
		return ""
	}
}

// Judgement is a post-hoc assessment of the watering that followed a reminder.
type Judgement struct {
	Classification  Classification
	Message         string
	CurrentHumidity int
	TargetHumidity  int
}

// JudgeEffectiveness compares the current reading with the one recorded on the latest
// watering reminder and with the profile's expected post-watering reading. It returns nil
// when no judgement can be made: no latest record, latest is not a watering reminder, the
// reminder carried no reading, or the reading has not moved by more than the tolerance.
func (e *Engine) JudgeEffectiveness(profile *plant.Profile, currentHumidity int, latest *notification.Record) *Judgement {
	if profile == nil || latest == nil || latest.Type != notification.TypeWatering {
		return nil
	}
	previous, ok := latest.HumidityValue()
	if !ok {
		return nil
	}
	if abs(currentHumidity-previous) <= EffectivenessTolerance {
		return nil
	}

	target := profile.HumidityWhenWatered
	var c Classification
	switch {
	case abs(currentHumidity-target) <= EffectivenessTolerance:
		c = JustRight
	case currentHumidity > target+EffectivenessTolerance:
		// Still reads dry
		c = UnderWatered
	default:
		c = OverWatered
	}

	return &Judgement{
		Classification:  c,
		Message:         c.Message(),
		CurrentHumidity: currentHumidity,
		TargetHumidity:  target,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
