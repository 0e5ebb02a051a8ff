package scheduler

import (
	"sync"
	"time"

	"pricewatch/models"
)

const defaultMaxRuns = 50

// SweepLog keeps the status of the most recent sweeps
type SweepLog struct {
	mu      sync.RWMutex
	runs    map[string]*models.SweepRun
	order   []string
	maxRuns int
}

func NewSweepLog(maxRuns int) *SweepLog {
	if maxRuns <= 0 {
		maxRuns = defaultMaxRuns
	}
	return &SweepLog{
		runs:    make(map[string]*models.SweepRun),
		maxRuns: maxRuns,
	}
}

func (l *SweepLog) start(id, trigger string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.runs[id] = &models.SweepRun{
		ID:        id,
		Trigger:   trigger,
		Status:    models.SweepRunning,
		StartedAt: at,
	}
	l.order = append(l.order, id)

	// drop the oldest finished runs
	for len(l.order) > l.maxRuns {
		oldest := l.order[0]
		if run := l.runs[oldest]; run != nil && run.IsActive() {
			break
		}
		delete(l.runs, oldest)
		l.order = l.order[1:]
	}
}

func (l *SweepLog) finish(report SweepReport, cancelled bool, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	run, ok := l.runs[report.ID]
	if !ok {
		return
	}
	run.Status = models.SweepCompleted
	if cancelled {
		run.Status = models.SweepCancelled
	}
	run.Products = report.Products
	run.Failed = append([]string(nil), report.Failed...)
	run.Observations = report.Observations
	run.Changes = report.Changes()
	run.CompletedAt = &at
}

// Get returns a copy of the run with the given id
func (l *SweepLog) Get(id string) (models.SweepRun, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	run, ok := l.runs[id]
	if !ok {
		return models.SweepRun{}, false
	}
	return *run, true
}

// Recent returns up to n runs, newest first. n <= 0 returns all of them.
func (l *SweepLog) Recent(n int) []models.SweepRun {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.order) {
		n = len(l.order)
	}
	out := make([]models.SweepRun, 0, n)
	for i := len(l.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *l.runs[l.order[i]])
	}
	return out
}

// Stats counts the kept runs by status
func (l *SweepLog) Stats() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := map[string]int{"total": len(l.runs)}
	for _, run := range l.runs {
		stats[string(run.Status)]++
	}
	return stats
}
