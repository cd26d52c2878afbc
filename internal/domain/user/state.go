package user

import (
	"database/sql"
	"fmt"
)

// StateKind is the persisted tag of a conversation State.
type StateKind string

const (
	StateIdle                 StateKind = "IDLE"
	StateAwaitingConfirmation StateKind = "AWAITING_CONFIRMATION"
	StateAwaitingDeviceID     StateKind = "AWAITING_DEVICE_ID"
)

// State is the registration conversation state of a user. Exactly one of
// Idle, AwaitingConfirmation or AwaitingDeviceID.
type State interface {
	Kind() StateKind
	isState()
}

// Idle means no registration is in progress.
type Idle struct{}

// AwaitingConfirmation means a classification result for PlantID waits for a yes/no answer.
type AwaitingConfirmation struct{ PlantID int64 }

// AwaitingDeviceID means PlantID was confirmed and the sensor channel is expected next.
type AwaitingDeviceID struct{ PlantID int64 }

func (Idle) Kind() StateKind                 { return StateIdle }
func (AwaitingConfirmation) Kind() StateKind { return StateAwaitingConfirmation }
func (AwaitingDeviceID) Kind() StateKind     { return StateAwaitingDeviceID }

func (Idle) isState()                 {}
func (AwaitingConfirmation) isState() {}
func (AwaitingDeviceID) isState()     {}

// EncodeState splits s into the columns stored in the users table.
func EncodeState(s State) (StateKind, sql.NullInt64) {
	switch v := s.(type) {
	case AwaitingConfirmation:
		return StateAwaitingConfirmation, sql.NullInt64{Int64: v.PlantID, Valid: true}
	case AwaitingDeviceID:
		return StateAwaitingDeviceID, sql.NullInt64{Int64: v.PlantID, Valid: true}
	default:
		return StateIdle, sql.NullInt64{}
	}
}

// DecodeState rebuilds a State from its stored columns.
func DecodeState(kind StateKind, plantID sql.NullInt64) (State, error) {
	switch kind {
	case StateIdle, "":
		return Idle{}, nil
	case StateAwaitingConfirmation:
		if !plantID.Valid {
			return nil, fmt.Errorf("state %s requires a plant id", kind)
		}
		return AwaitingConfirmation{PlantID: plantID.Int64}, nil
	case StateAwaitingDeviceID:
		if !plantID.Valid {
			return nil, fmt.Errorf("state %s requires a plant id", kind)
		}
		return AwaitingDeviceID{PlantID: plantID.Int64}, nil
	default:
		return nil, fmt.Errorf("unknown conversation state %q", kind)
	}
}
