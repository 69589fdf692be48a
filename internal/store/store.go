// Package store persists the run ledger: one record per overlay run, its
// phases, and per-factor veto counts.
package store

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sells-group/land-suitability/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	Crop         string          `json:"crop,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for suitability runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, analysis model.Analysis) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, reason string) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error

	// Factor vetoes
	SaveFactorVetoes(ctx context.Context, runID string, counts map[string]int) error
	ListFactorVetoes(ctx context.Context, runID string) ([]model.FactorVeto, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock sets the time source used for ledger timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{clock: clockwork.NewRealClock()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

const defaultListLimit = 100

// vetoRows flattens counts into (run_id, factor, cells) rows ordered by factor.
func vetoRows(runID string, counts map[string]int) [][]any {
	rows := make([][]any, 0, len(counts))
	for _, f := range slices.Sorted(maps.Keys(counts)) {
		rows = append(rows, []any{runID, f, counts[f]})
	}
	return rows
}
