package scheduler

import "time"

// QuietHours suppresses polling passes during the night.
// With Start=22 and End=8 the loop is quiet from 22:00 until 07:59 local time.
type QuietHours struct {
	Enabled bool
	Start   int // First quiet hour, 0..23
	End     int // First active hour, 0..23
	Backoff time.Duration
}

// Active reports whether t (already in the loop's location) falls into quiet hours.
func (q QuietHours) Active(t time.Time) bool {
	if !q.Enabled || q.Start == q.End {
		return false
	}
	h := t.Hour()
	if q.Start > q.End {
		return h >= q.Start || h < q.End
	}
	return h >= q.Start && h < q.End
}
