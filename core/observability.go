package core

import "time"

// JobExecutionRecord captures a completed job execution event.
type JobExecutionRecord struct {
	JobID      JobID
	Name       string
	CenterName string
	Category   Category
	WorkerID   int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// CategoryStats is the queue state of one category.
type CategoryStats struct {
	Category Category
	Queued   int
}

// CenterStats represents runtime observability state for a Center.
type CenterStats struct {
	Name        string
	State       string
	Workers     int
	Running     bool
	Categories  []CategoryStats
	Active      int
	Outstanding int64
	Delayed     int
	Completed   int64
	Rejected    int64

	LastJobName string
	LastJobAt   time.Time
}

// Queued returns the total number of queued jobs across categories.
func (s CenterStats) Queued() int {
	total := 0
	for _, c := range s.Categories {
		total += c.Queued
	}
	return total
}
