// Package pipeline runs one suitability analysis end to end: load the raw
// factor grids, reclassify them, overlay the scores, and persist the outputs
// along with a ledger record of the run.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/land-suitability/internal/model"
	"github.com/sells-group/land-suitability/internal/observability"
	"github.com/sells-group/land-suitability/internal/raster"
	"github.com/sells-group/land-suitability/internal/resilience"
	"github.com/sells-group/land-suitability/internal/store"
	"github.com/sells-group/land-suitability/internal/suitability"
)

// Phase names recorded in the run ledger.
const (
	PhaseLoad       = "load"
	PhaseValidate   = "validate"
	PhaseReclassify = "reclassify"
	PhaseOverlay    = "overlay"
	PhasePersist    = "persist"
)

// Request names the analysis to run.
type Request struct {
	Name string
	// Factors to overlay. Empty means every factor the rule set scores.
	Factors []suitability.Factor
	// SRID labels the analysis area in the ledger.
	SRID int
}

// Result is the outcome of a successful run.
type Result struct {
	RunID        string
	Factors      []suitability.Factor
	Scored       map[suitability.Factor]*raster.Grid
	Overlay      *suitability.Result
	Summary      suitability.Summary
	FactorVetoes map[suitability.Factor]int
	Transform    raster.GeoTransform
	Footprint    []byte
	Outputs      []string
	Phases       []model.PhaseResult
}

// Pipeline wires a rule set to a raster source, a sink, and the run ledger.
type Pipeline struct {
	rules   *suitability.RuleSet
	source  Source
	sink    Sink
	store   store.Store
	metrics *observability.Metrics
	clock   clockwork.Clock
	combine suitability.CombineOptions
	retry   resilience.RetryConfig
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records run metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock sets the time source for phase and run durations.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithCombineOptions tunes the overlay partitioning.
func WithCombineOptions(o suitability.CombineOptions) Option {
	return func(p *Pipeline) { p.combine = o }
}

// WithRetry sets the retry policy for source loads and sink writes.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(p *Pipeline) { p.retry = cfg }
}

// New creates a Pipeline. The rule set is validated once here.
func New(rules *suitability.RuleSet, src Source, sink Sink, st store.Store, opts ...Option) (*Pipeline, error) {
	if rules == nil {
		return nil, eris.New("pipeline: rule set is required")
	}
	if err := rules.Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: rule set")
	}
	if src == nil || sink == nil || st == nil {
		return nil, eris.New("pipeline: source, sink and store are required")
	}

	p := &Pipeline{
		rules:  rules,
		source: src,
		sink:   sink,
		store:  st,
		clock:  clockwork.NewRealClock(),
		retry:  resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.retry.Clock == nil {
		p.retry.Clock = p.clock
	}
	return p, nil
}

// Run executes one analysis. Nothing is written to the sink unless every
// layer loads, validates, reclassifies and combines cleanly.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	factors, err := p.resolveFactors(req.Factors)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("analysis", req.Name),
		zap.String("crop", p.rules.Crop),
	)

	run, err := p.store.CreateRun(ctx, model.Analysis{
		Name:    req.Name,
		Crop:    p.rules.Crop,
		Factors: factorNames(factors),
		SRID:    req.SRID,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting run", zap.Int("factors", len(factors)))

	start := p.clock.Now()
	if p.metrics != nil {
		p.metrics.RunsStarted.Inc()
		p.metrics.RunsInFlight.Inc()
		defer p.metrics.RunsInFlight.Dec()
	}

	result := &Result{RunID: run.ID, Factors: factors}

	// Ledger writes outlive a cancelled run so the failure is still recorded.
	ledgerCtx := context.WithoutCancel(ctx)

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ledgerCtx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	var phasesMu sync.Mutex
	trackPhase := func(name string, fn func() (map[string]any, error)) error {
		phase, phaseErr := p.store.CreatePhase(ledgerCtx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		phaseStart := p.clock.Now()
		meta, fnErr := fn()
		elapsed := p.clock.Since(phaseStart)

		pr := model.PhaseResult{
			Name:     name,
			Status:   model.PhaseStatusComplete,
			Duration: elapsed.Milliseconds(),
			Metadata: meta,
		}
		if fnErr != nil {
			pr.Status = model.PhaseStatusFailed
			pr.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", pr.Duration),
				zap.Error(fnErr),
			)
		} else {
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", pr.Duration),
			)
		}

		if phase != nil {
			if err := p.store.CompletePhase(ledgerCtx, phase.ID, &pr); err != nil {
				log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(err))
			}
		}
		if p.metrics != nil {
			p.metrics.PhaseDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		}

		phasesMu.Lock()
		result.Phases = append(result.Phases, pr)
		phasesMu.Unlock()
		return fnErr
	}

	fail := func(err error) (*Result, error) {
		if failErr := p.store.FailRun(ledgerCtx, run.ID, err.Error()); failErr != nil {
			log.Warn("pipeline: failed to record run failure", zap.Error(failErr))
		}
		if p.metrics != nil {
			p.metrics.RunsFinished.WithLabelValues(string(model.RunStatusFailed)).Inc()
			p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
		}
		log.Error("pipeline: run failed", zap.Error(err))
		return nil, eris.Wrapf(err, "pipeline: run %s", run.ID)
	}

	// ===== Load =====
	setStatus(model.RunStatusLoading)
	var raw *suitability.Registry
	if err := trackPhase(PhaseLoad, func() (map[string]any, error) {
		var loadErr error
		result.Transform, raw, loadErr = p.load(ctx, factors)
		return map[string]any{"layers": len(factors)}, loadErr
	}); err != nil {
		return fail(err)
	}

	// ===== Validate =====
	if err := trackPhase(PhaseValidate, func() (map[string]any, error) {
		if err := raw.Validate(); err != nil {
			return nil, err
		}
		return map[string]any{"shape": raw.Shape().String()}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Reclassify =====
	setStatus(model.RunStatusReclassifying)
	var scored *suitability.Registry
	if err := trackPhase(PhaseReclassify, func() (map[string]any, error) {
		var reErr error
		scored, reErr = p.reclassify(ctx, raw)
		return nil, reErr
	}); err != nil {
		return fail(err)
	}

	// ===== Overlay =====
	setStatus(model.RunStatusCombining)
	if err := trackPhase(PhaseOverlay, func() (map[string]any, error) {
		overlay, err := suitability.Combine(ctx, scored, p.combine)
		if err != nil {
			return nil, err
		}
		vetoes, err := suitability.VetoCounts(scored)
		if err != nil {
			return nil, err
		}
		if !result.Transform.IsZero() {
			fp, err := result.Transform.FootprintEWKB(overlay.Shape())
			if err != nil {
				return nil, err
			}
			result.Footprint = fp
		}
		result.Overlay = overlay
		result.Summary = suitability.Summarize(overlay)
		result.FactorVetoes = vetoes
		result.Scored = make(map[suitability.Factor]*raster.Grid, len(factors))
		for _, f := range factors {
			result.Scored[f], _ = scored.Get(f)
		}
		return map[string]any{
			"cells":  result.Summary.Cells,
			"vetoed": result.Summary.Vetoed,
		}, nil
	}); err != nil {
		return fail(err)
	}

	// ===== Persist =====
	setStatus(model.RunStatusPersisting)
	if err := trackPhase(PhasePersist, func() (map[string]any, error) {
		outputs, err := p.persist(ctx, run.ID, result)
		result.Outputs = outputs
		return map[string]any{"outputs": len(outputs)}, err
	}); err != nil {
		return fail(err)
	}

	elapsed := p.clock.Since(start)
	if err := p.store.CompleteRun(ledgerCtx, run.ID, runResult(result, elapsed)); err != nil {
		return fail(eris.Wrap(err, "complete run"))
	}

	if p.metrics != nil {
		p.metrics.CellsProcessed.Add(float64(result.Summary.Cells))
		p.metrics.CellsVetoed.Add(float64(result.Summary.Vetoed))
		p.metrics.RunsFinished.WithLabelValues(string(model.RunStatusComplete)).Inc()
		p.metrics.RunDuration.Observe(elapsed.Seconds())
	}

	log.Info("pipeline: run complete",
		zap.Int("cells", result.Summary.Cells),
		zap.Int("vetoed", result.Summary.Vetoed),
		zap.Float64("mean_score", result.Summary.MeanScore),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

// resolveFactors defaults to the rule set's factors and rejects factors the
// rule set cannot score.
func (p *Pipeline) resolveFactors(requested []suitability.Factor) ([]suitability.Factor, error) {
	known := p.rules.Factors()
	if len(requested) == 0 {
		return known, nil
	}

	scored := make(map[suitability.Factor]bool, len(known))
	for _, f := range known {
		scored[f] = true
	}
	seen := make(map[suitability.Factor]bool, len(requested))
	for _, f := range requested {
		if !scored[f] {
			return nil, eris.Errorf("pipeline: no %s table for factor %s", p.rules.Crop, f)
		}
		if seen[f] {
			return nil, eris.Errorf("pipeline: factor %s requested twice", f)
		}
		seen[f] = true
	}
	return append([]suitability.Factor(nil), requested...), nil
}

// load fetches the reference geotransform and every raw factor grid.
func (p *Pipeline) load(ctx context.Context, factors []suitability.Factor) (raster.GeoTransform, *suitability.Registry, error) {
	gt, err := resilience.DoVal(ctx, p.retryFor("load", "reference"), p.source.Reference)
	if err != nil {
		return raster.GeoTransform{}, nil, eris.Wrap(err, "load reference")
	}

	grids := make([]*raster.Grid, len(factors))
	err = p.eachFactor(ctx, factors, func(ctx context.Context, i int, f suitability.Factor) error {
		g, err := resilience.DoVal(ctx, p.retryFor("load", string(f)), func(ctx context.Context) (*raster.Grid, error) {
			return p.source.Load(ctx, f)
		})
		if err != nil {
			return eris.Wrapf(err, "load layer %s", f)
		}
		grids[i] = g
		return nil
	})
	if err != nil {
		return raster.GeoTransform{}, nil, err
	}

	reg := suitability.NewRegistry(factors...)
	for i, f := range factors {
		if err := reg.Add(f, grids[i]); err != nil {
			return raster.GeoTransform{}, nil, err
		}
	}
	return gt, reg, nil
}

// reclassify scores every raw grid into a new registry.
func (p *Pipeline) reclassify(ctx context.Context, raw *suitability.Registry) (*suitability.Registry, error) {
	factors := raw.Factors()
	scored := make([]*raster.Grid, len(factors))
	err := p.eachFactor(ctx, factors, func(_ context.Context, i int, f suitability.Factor) error {
		g, _ := raw.Get(f)
		out, err := p.rules.Reclassify(f, g)
		if err != nil {
			return err
		}
		scored[i] = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	reg := suitability.NewRegistry(factors...)
	for i, f := range factors {
		if err := reg.Add(f, scored[i]); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// persist stages the scored layers and the aggregate, saves the veto counts
// and then commits the staged grids. Any failure discards what was staged, so
// a failed run publishes nothing.
func (p *Pipeline) persist(ctx context.Context, runID string, res *Result) (outputs []string, err error) {
	defer func() {
		if err == nil {
			return
		}
		outputs = nil
		if derr := p.sink.Discard(context.WithoutCancel(ctx), runID); derr != nil {
			zap.L().Warn("pipeline: discard staged outputs failed",
				zap.String("component", "pipeline"),
				zap.String("run_id", runID),
				zap.Error(derr),
			)
		}
	}()

	var staged []string
	write := func(name string, g *raster.Grid) error {
		err := resilience.Do(ctx, p.retryFor("write", name), func(ctx context.Context) error {
			return p.sink.Write(ctx, runID, name, g, res.Transform)
		})
		if err != nil {
			return eris.Wrapf(err, "write %s", name)
		}
		staged = append(staged, name)
		return nil
	}

	for _, f := range res.Factors {
		if err := write(string(f), res.Scored[f]); err != nil {
			return nil, err
		}
	}
	if err := write(AggregateName, res.Overlay.Scores); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(res.FactorVetoes))
	for f, n := range res.FactorVetoes {
		counts[string(f)] = n
	}
	if err := p.store.SaveFactorVetoes(context.WithoutCancel(ctx), runID, counts); err != nil {
		return nil, eris.Wrap(err, "save factor vetoes")
	}

	err = resilience.Do(ctx, p.retryFor("commit", runID), func(ctx context.Context) error {
		return p.sink.Commit(ctx, runID)
	})
	if err != nil {
		return nil, eris.Wrap(err, "commit outputs")
	}
	return staged, nil
}

// eachFactor runs fn for every factor with bounded parallelism and returns
// the error of the lowest-indexed failing factor.
func (p *Pipeline) eachFactor(ctx context.Context, factors []suitability.Factor, fn func(context.Context, int, suitability.Factor) error) error {
	errs := make([]error, len(factors))

	var g errgroup.Group
	limit := p.combine.Workers
	if limit <= 0 {
		limit = len(factors)
	}
	g.SetLimit(limit)
	for i, f := range factors {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fn(ctx, i, f)
			return nil
		})
	}
	// The group only bounds concurrency; each goroutine records its own error
	// by index and returns nil, so Wait has nothing to report.
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) retryFor(operation, target string) resilience.RetryConfig {
	cfg := p.retry
	logRetry := resilience.RetryLogger(operation, target)
	cfg.OnRetry = func(attempt int, err error) {
		logRetry(attempt, err)
		if p.metrics != nil {
			p.metrics.IORetries.WithLabelValues(operation).Inc()
		}
	}
	return cfg
}

func runResult(res *Result, elapsed time.Duration) *model.RunResult {
	shape := res.Overlay.Shape()
	vetoes := make(map[string]int, len(res.FactorVetoes))
	for f, n := range res.FactorVetoes {
		vetoes[string(f)] = n
	}
	return &model.RunResult{
		Rows:         shape.Rows,
		Cols:         shape.Cols,
		Cells:        res.Summary.Cells,
		Vetoed:       res.Summary.Vetoed,
		Suitable:     res.Summary.Suitable,
		MeanScore:    res.Summary.MeanScore,
		MaxScore:     res.Summary.MaxScore,
		Histogram:    res.Summary.Histogram,
		FactorVetoes: vetoes,
		Footprint:    res.Footprint,
		Outputs:      res.Outputs,
		Phases:       res.Phases,
		DurationMs:   elapsed.Milliseconds(),
	}
}

func factorNames(factors []suitability.Factor) []string {
	out := make([]string, len(factors))
	for i, f := range factors {
		out[i] = string(f)
	}
	return out
}
