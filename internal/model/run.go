// Package model holds the run ledger types shared by the store and pipeline.
package model

import (
	"time"
)

// RunStatus represents the current state of a suitability analysis run.
type RunStatus string

const (
	RunStatusQueued        RunStatus = "queued"
	RunStatusLoading       RunStatus = "loading"
	RunStatusReclassifying RunStatus = "reclassifying"
	RunStatusCombining     RunStatus = "combining"
	RunStatusPersisting    RunStatus = "persisting"
	RunStatusComplete      RunStatus = "complete"
	RunStatusFailed        RunStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// Analysis describes what a run scores.
type Analysis struct {
	Name    string   `json:"name"`
	Crop    string   `json:"crop"`
	Factors []string `json:"factors"`
	SRID    int      `json:"srid,omitempty"`
}

// Run represents a single overlay run for an analysis area.
type Run struct {
	ID        string     `json:"id"`
	Analysis  Analysis   `json:"analysis"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Rows         int            `json:"rows"`
	Cols         int            `json:"cols"`
	Cells        int            `json:"cells"`
	Vetoed       int            `json:"vetoed"`
	Suitable     int            `json:"suitable"`
	MeanScore    float64        `json:"mean_score"`
	MaxScore     float64        `json:"max_score"`
	Histogram    map[int]int    `json:"histogram"`
	FactorVetoes map[string]int `json:"factor_vetoes,omitempty"`
	Footprint    []byte         `json:"footprint,omitempty"` // EWKB polygon
	Outputs      []string       `json:"outputs"`
	Phases       []PhaseResult  `json:"phases"`
	DurationMs   int64          `json:"duration_ms"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FactorVeto counts the cells one factor scored not suitable in a run.
type FactorVeto struct {
	RunID  string `json:"run_id"`
	Factor string `json:"factor"`
	Cells  int    `json:"cells"`
}
