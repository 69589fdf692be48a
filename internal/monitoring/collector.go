// Package monitoring watches the run ledger and raises alerts when runs fail
// too often or when overlays come back almost entirely vetoed.
package monitoring

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/sells-group/land-suitability/internal/model"
	"github.com/sells-group/land-suitability/internal/store"
)

// collectLimit caps the runs read per snapshot.
const collectLimit = 10000

// Snapshot holds a point-in-time view of run-ledger health.
type Snapshot struct {
	// Runs created within the lookback window.
	Total      int     `json:"total"`
	Complete   int     `json:"complete"`
	Failed     int     `json:"failed"`
	InProgress int     `json:"in_progress"`
	FailRate   float64 `json:"fail_rate"`

	// Cell counts over completed runs.
	Cells       int     `json:"cells"`
	VetoedCells int     `json:"vetoed_cells"`
	VetoedShare float64 `json:"vetoed_share"`
	MeanScore   float64 `json:"mean_score"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the part of the ledger the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector builds snapshots from the run ledger.
type Collector struct {
	runs  RunLister
	clock clockwork.Clock
}

// NewCollector creates a collector. A nil clock uses real time.
func NewCollector(runs RunLister, clock clockwork.Clock) *Collector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{runs: runs, clock: clock}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.clock.Now().UTC()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        collectLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.Total = len(runs)
	var scoreSum float64
	var scored int
	for _, r := range runs {
		switch {
		case r.Status == model.RunStatusComplete:
			snap.Complete++
		case r.Status == model.RunStatusFailed:
			snap.Failed++
		case !r.Status.Terminal():
			snap.InProgress++
		}
		if r.Status != model.RunStatusComplete || r.Result == nil {
			continue
		}
		snap.Cells += r.Result.Cells
		snap.VetoedCells += r.Result.Vetoed
		if r.Result.Suitable > 0 {
			scoreSum += r.Result.MeanScore
			scored++
		}
	}

	if finished := snap.Complete + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if snap.Cells > 0 {
		snap.VetoedShare = float64(snap.VetoedCells) / float64(snap.Cells)
	}
	if scored > 0 {
		snap.MeanScore = scoreSum / float64(scored)
	}
	return snap, nil
}
