package sweep

import "time"

// TimeLayout renders observation timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Observation is the record of one host that answered its probe.
type Observation struct {
	Address     string    `json:"address"`
	DisplayName string    `json:"displayName"`
	ObservedAt  time.Time `json:"observedAt"`
}

// Timestamp formats ObservedAt in local time.
func (o Observation) Timestamp() string {
	return o.ObservedAt.Local().Format(TimeLayout)
}

// Row returns the observation as spreadsheet cells.
func (o Observation) Row() []string {
	return []string{o.Address, o.DisplayName, o.Timestamp()}
}

// ScanResult accumulates observations of one sweep in arrival order.
type ScanResult struct {
	Prefix       string        `json:"prefix"`
	Planned      int           `json:"planned"`
	Observations []Observation `json:"observations"`
	StartedAt    time.Time     `json:"startedAt"`
	CompletedAt  time.Time     `json:"completedAt"`
}

func newScanResult(prefix string, planned int) *ScanResult {
	return &ScanResult{
		Prefix:       prefix,
		Planned:      planned,
		Observations: make([]Observation, 0, 16),
		StartedAt:    time.Now(),
	}
}

func (r *ScanResult) append(o Observation) {
	r.Observations = append(r.Observations, o)
}

// Len is the number of hosts that responded.
func (r *ScanResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Observations)
}

// Addresses lists responding addresses in arrival order.
func (r *ScanResult) Addresses() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Observations))
	for _, o := range r.Observations {
		out = append(out, o.Address)
	}
	return out
}

// Elapsed reports the wall time of a completed sweep.
func (r *ScanResult) Elapsed() time.Duration {
	if r == nil || r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
