// Package model defines the persisted types shared by the stores and CLI.
package model

import "time"

// RunStatus represents the current state of a processing run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams captures the inputs of a run so re-runs are auditable.
type RunParams struct {
	RadiusM        float64           `json:"radius_m,omitempty"`
	MaxDistanceKM  float64           `json:"max_distance_km,omitempty"`
	DataDir        string            `json:"data_dir,omitempty"`
	OutputDir      string            `json:"output_dir,omitempty"`
	InputChecksums map[string]string `json:"input_checksums,omitempty"`
}

// Run represents a single invocation of the preprocess or filter command.
type Run struct {
	ID        string     `json:"id"`
	Command   string     `json:"command"`
	Params    RunParams  `json:"params"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Buildings        int            `json:"buildings"`
	SkippedBuildings int            `json:"skipped_buildings,omitempty"`
	Amenities        int            `json:"amenities"`
	Trees            int            `json:"trees"`
	RadiusM          float64        `json:"radius_m,omitempty"`
	TypeTotals       map[string]int `json:"type_totals,omitempty"`
	Layers           []string       `json:"layers,omitempty"`
	Kept             int            `json:"kept,omitempty"`
	Removed          int            `json:"removed,omitempty"`
	DurationMS       int64          `json:"duration_ms"`
}

// LayerChecksum records the content hash of a written output layer.
// Unchanged checksums across runs are the idempotency check.
type LayerChecksum struct {
	Name         string    `json:"name"`
	SHA256       string    `json:"sha256"`
	FeatureCount int       `json:"feature_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}
