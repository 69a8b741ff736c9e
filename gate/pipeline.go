package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/kdd/codemap"
	"github.com/c360studio/kdd/resolver"
	"github.com/c360studio/kdd/uv"
)

// ErrUnknownGate is returned for a gate number outside 1-8.
var ErrUnknownGate = errors.New("unknown gate")

// PipelineResult is the outcome of running the gates for one Value Unit.
type PipelineResult struct {
	RunID      string        `json:"runId"`
	UV         *uv.ValueUnit `json:"uv"`
	Gates      []Result      `json:"gates"`
	Status     Status        `json:"status"`
	DurationMs int64         `json:"durationMs"`
	StartedAt  time.Time     `json:"startedAt"`
}

// Pipeline runs the gates in order. Each gate recomputes what it needs from
// the shared resolver and code mapper; no gate reads another's result.
type Pipeline struct {
	env     *env
	gates   []Gate
	metrics *Metrics
	now     func() time.Time
}

// NewPipeline creates a Pipeline with its own resolver, mapper, runner and
// metrics registry.
func NewPipeline(opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	code := opts.Code
	if code.Logger == nil {
		code.Logger = logger
	}
	e := &env{
		opts:     opts,
		resolver: resolver.New(opts.SpecsDir, logger),
		mapper:   codemap.NewMapper(opts.ProjectRoot, code),
		runner:   NewRunner(opts.ProjectRoot, opts.Timeout, logger),
		logger:   logger,
	}
	return &Pipeline{
		env: e,
		gates: []Gate{
			captureGate{e},
			domainGate{e},
			behaviorGate{e},
			experienceGate{e},
			verificationGate{e},
			physicalGate{e},
			codeGate{e},
			evidenceGate{e},
		},
		metrics: NewMetrics(),
		now:     time.Now,
	}
}

// Gates returns the gates in execution order.
func (p *Pipeline) Gates() []Gate { return p.gates }

// Resolver returns the resolver shared by the gates.
func (p *Pipeline) Resolver() *resolver.Resolver { return p.env.resolver }

// Metrics returns the pipeline's metrics.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// Run executes every gate, or only gateNumber when it is non-zero.
func (p *Pipeline) Run(ctx context.Context, v *uv.ValueUnit, gateNumber int) (*PipelineResult, error) {
	if gateNumber < 0 || gateNumber > len(p.gates) {
		return nil, fmt.Errorf("gate %d: %w", gateNumber, ErrUnknownGate)
	}

	start := p.now()
	result := &PipelineResult{
		RunID:     uuid.New().String(),
		UV:        v,
		StartedAt: start,
	}
	gates := p.gates
	if v.LoadError != "" {
		// Nothing past capture can run without a parsed document.
		r := loadFailure(v.Path, v.LoadError)
		result.Gates = append(result.Gates, r)
		p.metrics.observeGate(r)
		gates = nil
	}
	for _, g := range gates {
		if gateNumber != 0 && g.Number() != gateNumber {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run pipeline: %w", err)
		}
		r := p.runGate(ctx, g, v)
		result.Gates = append(result.Gates, r)
		p.metrics.observeGate(r)
	}

	statuses := make([]Status, len(result.Gates))
	for i, g := range result.Gates {
		statuses[i] = g.Status
	}
	result.Status = Aggregate(statuses...)
	result.DurationMs = p.now().Sub(start).Milliseconds()
	p.metrics.observePipeline(result.Status)

	p.env.logger.Info("Pipeline finished",
		slog.String("uv", v.ID),
		slog.String("run_id", result.RunID),
		slog.String("status", string(result.Status)),
		slog.Int64("duration_ms", result.DurationMs))
	return result, nil
}

// runGate times one gate and converts an escalated error into a failing item.
func (p *Pipeline) runGate(ctx context.Context, g Gate, v *uv.ValueUnit) Result {
	start := p.now()
	r, err := g.Check(ctx, v)
	if err != nil {
		p.env.logger.Warn("Gate error",
			slog.Int("gate", g.Number()),
			slog.String("uv", v.ID),
			slog.String("error", err.Error()))
		r = Result{
			Gate:    g.Number(),
			Name:    g.Name(),
			Status:  StatusFail,
			Items:   []Item{{Description: "Gate error", Status: StatusFail, Detail: err.Error()}},
			Summary: "Gate could not complete",
		}
	}
	r.DurationMs = p.now().Sub(start).Milliseconds()
	p.env.logger.Debug("Gate finished",
		slog.Int("gate", r.Gate),
		slog.String("status", string(r.Status)),
		slog.Int64("duration_ms", r.DurationMs))
	return r
}

// RunAll runs the pipeline for each unit in order.
func (p *Pipeline) RunAll(ctx context.Context, units []*uv.ValueUnit, gateNumber int) ([]*PipelineResult, error) {
	results := make([]*PipelineResult, 0, len(units))
	for _, v := range units {
		r, err := p.Run(ctx, v, gateNumber)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// Overall folds the status of several pipeline results.
func Overall(results []*PipelineResult) Status {
	statuses := make([]Status, len(results))
	for i, r := range results {
		statuses[i] = r.Status
	}
	return Aggregate(statuses...)
}
