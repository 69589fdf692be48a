package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/land-suitability/internal/config"
	"github.com/sells-group/land-suitability/internal/resilience"
	"github.com/sells-group/land-suitability/internal/store"
	"github.com/sells-group/land-suitability/internal/suitability"
)

// RuleSetFor resolves the configured rule set. An empty path selects the
// built-in avocado tables.
func RuleSetFor(cfg config.RulesConfig) (*suitability.RuleSet, error) {
	if cfg.Path == "" {
		if cfg.Crop != "" && cfg.Crop != "avocado" {
			return nil, eris.Errorf("pipeline: no built-in rules for crop %q", cfg.Crop)
		}
		return suitability.AvocadoRuleSet(), nil
	}

	rs, err := suitability.LoadRuleFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	switch {
	case rs.Crop == "":
		rs.Crop = cfg.Crop
	case cfg.Crop != "" && rs.Crop != cfg.Crop:
		return nil, eris.Errorf("pipeline: rule file %s is for crop %q, configured %q", cfg.Path, rs.Crop, cfg.Crop)
	}
	return rs, nil
}

// NewFromConfig builds a pipeline from application config, opening the
// configured run ledger. The returned close func releases the ledger.
func NewFromConfig(ctx context.Context, cfg *config.Config, src Source, sink Sink, opts ...Option) (*Pipeline, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	rules, err := RuleSetFor(cfg.Rules)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: open store")
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.IO.MaxAttempts
	retry.InitialBackoff = cfg.IO.InitialBackoff
	retry.MaxBackoff = cfg.IO.MaxBackoff

	base := []Option{
		WithCombineOptions(suitability.CombineOptions{
			Workers:  cfg.Overlay.Workers,
			BandRows: cfg.Overlay.BandRows,
		}),
		WithRetry(retry),
	}
	p, err := New(rules, src, sink, st, append(base, opts...)...)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}
	return p, st.Close, nil
}
