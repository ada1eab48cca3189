// Package analysis runs compliance analysis cycles. A cycle either draws a
// score locally or sends a generated contract to the audit service; either
// way the result is a risk.Assessment that replaces the previous one only on
// success.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mbd888/compliance-dashboard/internal/audit"
	"github.com/mbd888/compliance-dashboard/internal/risk"
	"github.com/mbd888/compliance-dashboard/internal/traces"
	"github.com/mbd888/compliance-dashboard/internal/validation"
)

// ErrBusy is returned when a cycle is triggered while another is loading.
var ErrBusy = errors.New("analysis already in progress")

// State is the runner's position in a cycle.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Path identifies where an assessment came from.
type Path string

const (
	PathLocal Path = "local"
	PathAudit Path = "audit"
)

// ScoreSource produces the score for a local analysis.
type ScoreSource interface {
	Score(ctx context.Context) (float64, error)
}

// ScoreFunc adapts a function to ScoreSource.
type ScoreFunc func(ctx context.Context) (float64, error)

func (f ScoreFunc) Score(ctx context.Context) (float64, error) { return f(ctx) }

// RandomScores draws a uniform integer score in [0, 100).
var RandomScores ScoreFunc = func(context.Context) (float64, error) {
	return float64(rand.IntN(100)), nil //nolint:gosec // display score, not security sensitive
}

// Auditor is the audit service surface the runner needs.
type Auditor interface {
	GenerateTemplate(ctx context.Context, cfg audit.ContractConfig) (string, error)
	AuditContract(ctx context.Context, contractCode string, cfg audit.ContractConfig) (risk.Assessment, error)
}

// Result is a completed assessment with its provenance.
type Result struct {
	risk.Assessment
	Source      Path      `json:"source"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Status is a point-in-time view of the runner.
type Status struct {
	State     State     `json:"state"`
	Path      Path      `json:"path,omitempty"`
	Error     string    `json:"error,omitempty"`
	Last      *Result   `json:"last"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithScoreSource replaces the local score source.
func WithScoreSource(s ScoreSource) Option {
	return func(r *Runner) { r.scores = s }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// Runner drives analysis cycles. At most one cycle and one template request
// run at a time; extra triggers get ErrBusy.
type Runner struct {
	mu         sync.Mutex
	state      State
	path       Path
	lastErr    error
	last       *Result
	updatedAt  time.Time
	templating bool

	auditor  Auditor
	scores   ScoreSource
	rules    risk.RuleSet
	now      func() time.Time
	logger   *slog.Logger
	onChange []func(Status)
}

// NewRunner creates an idle runner.
func NewRunner(auditor Auditor, opts ...Option) *Runner {
	r := &Runner{
		state:   StateIdle,
		auditor: auditor,
		scores:  RandomScores,
		rules:   risk.DefaultRules(),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.updatedAt = r.now()
	return r
}

// OnChange registers fn to receive every state transition. Callbacks run
// synchronously after the runner's lock is released.
func (r *Runner) OnChange(fn func(Status)) {
	r.mu.Lock()
	r.onChange = append(r.onChange, fn)
	r.mu.Unlock()
}

// Status returns the current state and last successful result.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

// Last returns the most recent successful result, or nil.
func (r *Runner) Last() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// RunLocal runs a cycle on a locally drawn score.
func (r *Runner) RunLocal(ctx context.Context) (*Result, error) {
	return r.run(ctx, PathLocal, func(ctx context.Context) (risk.Assessment, error) {
		score, err := r.scores.Score(ctx)
		if err != nil {
			return risk.Assessment{}, err
		}
		return risk.Classify(score, r.rules)
	})
}

// RunAudit validates the form, submits contractCode to the audit service and
// adopts the returned assessment. Invalid input is rejected before the cycle
// starts and leaves the state untouched.
func (r *Runner) RunAudit(ctx context.Context, form audit.FormFields, contractCode string) (*Result, error) {
	cfg, err := audit.BuildAuditRequest(form)
	var errs validation.ValidationErrors
	if err != nil && !errors.As(err, &errs) {
		return nil, err
	}
	errs = append(errs, validation.Validate(validation.Required("contractCode", contractCode))...)
	if len(errs) > 0 {
		return nil, errs
	}
	return r.run(ctx, PathAudit, func(ctx context.Context) (risk.Assessment, error) {
		return r.auditor.AuditContract(ctx, contractCode, cfg)
	})
}

// GenerateTemplate asks the audit service for contract code matching the
// form. It has its own busy flag and does not change the cycle state.
func (r *Runner) GenerateTemplate(ctx context.Context, form audit.FormFields) (string, error) {
	cfg, err := audit.BuildAuditRequest(form)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	if r.templating {
		r.mu.Unlock()
		cyclesTotal.WithLabelValues("template", resultBusy).Inc()
		return "", ErrBusy
	}
	r.templating = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.templating = false
		r.mu.Unlock()
	}()

	ctx, span := traces.StartSpan(ctx, "analysis.template", traces.Jurisdiction(cfg.Jurisdiction))
	code, err := r.auditor.GenerateTemplate(ctx, cfg)
	traces.End(span, err)
	if err != nil {
		cyclesTotal.WithLabelValues("template", resultFailed).Inc()
		r.logger.Warn("template generation failed", "error", err)
		return "", err
	}
	cyclesTotal.WithLabelValues("template", resultSucceeded).Inc()
	return code, nil
}

func (r *Runner) run(ctx context.Context, path Path, analyze func(context.Context) (risk.Assessment, error)) (_ *Result, err error) {
	r.mu.Lock()
	if r.state == StateLoading {
		r.mu.Unlock()
		cyclesTotal.WithLabelValues(string(path), resultBusy).Inc()
		return nil, ErrBusy
	}
	r.state = StateLoading
	r.path = path
	r.lastErr = nil
	r.updatedAt = r.now()
	r.notify()

	ctx, span := traces.StartSpan(ctx, "analysis.run", traces.AnalysisPath(string(path)))
	defer func() { traces.End(span, err) }()

	start := time.Now()
	a, err := r.guard(ctx, path, analyze)
	cycleDuration.WithLabelValues(string(path)).Observe(time.Since(start).Seconds())

	r.mu.Lock()
	r.updatedAt = r.now()
	if err != nil {
		r.state = StateFailed
		r.lastErr = err
		r.notify()
		cyclesTotal.WithLabelValues(string(path), resultFailed).Inc()
		r.logger.Warn("analysis failed", "path", path, "error", err)
		return nil, err
	}

	res := &Result{Assessment: a, Source: path, EvaluatedAt: r.updatedAt}
	r.state = StateSucceeded
	r.last = res
	r.notify()
	span.SetAttributes(traces.RiskScore(a.RiskScore))
	cyclesTotal.WithLabelValues(string(path), resultSucceeded).Inc()
	r.logger.Info("analysis completed", "path", path, "risk_score", a.RiskScore, "status", a.Status)
	return res, nil
}

// guard turns a panic inside analyze into a failed cycle so the runner never
// stays in the loading state.
func (r *Runner) guard(ctx context.Context, path Path, analyze func(context.Context) (risk.Assessment, error)) (a risk.Assessment, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("analysis panicked", "path", path, "panic", p)
			a, err = risk.Assessment{}, fmt.Errorf("analysis panicked: %v", p)
		}
	}()
	return analyze(ctx)
}

// notify must be called with r.mu held; it releases the lock before invoking
// callbacks.
func (r *Runner) notify() {
	st := r.statusLocked()
	fns := r.onChange
	r.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func (r *Runner) statusLocked() Status {
	st := Status{State: r.state, Path: r.path, Last: r.last, UpdatedAt: r.updatedAt}
	if r.lastErr != nil {
		st.Error = r.lastErr.Error()
	}
	return st
}
