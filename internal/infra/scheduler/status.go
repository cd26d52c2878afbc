package scheduler

import (
	"sync"
	"time"
)

// State is the phase of the watering loop.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateWaiting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateWaiting:
		return "waiting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PassResult summarises one polling pass.
type PassResult struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Users      int       `json:"users"`
	Plantings  int       `json:"plantings"`
	Notified   int       `json:"notified"`
	Feedback   int       `json:"feedback"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Aborted    bool      `json:"aborted"`
	QuietHours bool      `json:"quiet_hours,omitempty"`
}

// Snapshot is a copy of the loop status safe to hand out.
type Snapshot struct {
	State     string      `json:"state"`
	Passes    int         `json:"passes"`
	LastPass  *PassResult `json:"last_pass,omitempty"`
	LastError string      `json:"last_error,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Status is shared between the loop and the HTTP status endpoint.
type Status struct {
	mu        sync.RWMutex
	state     State
	passes    int
	lastPass  *PassResult
	lastError string
	updatedAt time.Time
}

func NewStatus() *Status {
	return &Status{}
}

func (s *Status) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.updatedAt = time.Now()
}

func (s *Status) recordPass(r PassResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes++
	s.lastPass = &r
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.updatedAt = time.Now()
}

func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		State:     s.state.String(),
		Passes:    s.passes,
		LastError: s.lastError,
		UpdatedAt: s.updatedAt,
	}
	if s.lastPass != nil {
		p := *s.lastPass
		snap.LastPass = &p
	}
	return snap
}
