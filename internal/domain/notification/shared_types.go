// internal/domain/notification/shared_types.go
package notification

// Type distinguishes the kinds of records kept in the notification ledger.
type Type string

const (
	TypeWatering         Type = "watering"          // "time to water" reminder
	TypeWateringFeedback Type = "watering_feedback" // post-hoc judgement of a previous watering
)

// Valid reports whether t is one of the known notification types.
func (t Type) Valid() bool {
	switch t {
	case TypeWatering, TypeWateringFeedback:
		return true
	default:
		return false
	}
}
