package sweep

import (
	"time"

	sweepscan "ipsweep/backend/scanner/sweep"
)

// Task describes a running or completed sweep job.
type Task struct {
	ID          int64                `json:"id"`
	Status      int                  `json:"status"`
	CreatedAt   time.Time            `json:"createdAt"`
	StartedAt   time.Time            `json:"startedAt"`
	CompletedAt time.Time            `json:"completedAt"`
	Params      sweepscan.ScanParams `json:"params"`
	Metrics     TaskMetrics          `json:"metrics"`
	Error       string               `json:"error,omitempty"`
	ExportFile  string               `json:"exportFile,omitempty"`
}

// TaskMetrics keeps lightweight counters used to render progress.
type TaskMetrics struct {
	Planned     int       `json:"planned"`
	Dispatched  int       `json:"dispatched"`
	Completed   int       `json:"completed"`
	ResultCount int       `json:"resultCount"`
	LastResult  time.Time `json:"lastResult"`
	Active      int       `json:"active"`
	PPS         float64   `json:"pps"`
	UptimeMs    int64     `json:"uptimeMs"`
}

// TaskEvent is the payload of every sweep event. Observation is set on
// per-host events only.
type TaskEvent struct {
	TaskID      int64                  `json:"taskId"`
	Status      int                    `json:"status"`
	Observation *sweepscan.Observation `json:"observation,omitempty"`
	Metrics     TaskMetrics            `json:"metrics"`
	Message     string                 `json:"message,omitempty"`
	Error       string                 `json:"error,omitempty"`
}
