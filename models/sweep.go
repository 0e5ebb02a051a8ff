package models

import "time"

// SweepStatus represents the state of a sweep run
type SweepStatus string

const (
	SweepRunning   SweepStatus = "running"
	SweepCompleted SweepStatus = "completed"
	SweepCancelled SweepStatus = "cancelled"
)

// SweepRun is the status record of one sweep, kept in memory for the
// status endpoints
type SweepRun struct {
	ID           string      `json:"id"`
	Trigger      string      `json:"trigger"`
	Status       SweepStatus `json:"status"`
	Products     int         `json:"products"`
	Failed       []string    `json:"failed,omitempty"`
	Observations int         `json:"observations"`
	Changes      int         `json:"changes"`
	StartedAt    time.Time   `json:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// IsActive returns true while the sweep is still running
func (r SweepRun) IsActive() bool {
	return r.Status == SweepRunning
}

// Duration returns how long the sweep ran, or has been running
func (r SweepRun) Duration() time.Duration {
	end := time.Now()
	if r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	return end.Sub(r.StartedAt)
}
