// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/perflab/services/bench/fixture"
	"github.com/AleutianAI/perflab/services/bench/oracle"
	"github.com/AleutianAI/perflab/services/bench/registry"
	"github.com/AleutianAI/perflab/services/bench/scoring"
	"github.com/AleutianAI/perflab/services/bench/telemetry"
	"github.com/AleutianAI/perflab/services/bench/timing"
)

const tracerName = "perflab.runner"

// Candidate outcomes recorded on the candidates counter.
const (
	outcomeScored      = "scored"
	outcomeCheckFailed = "check_failed"
	outcomeMutated     = "mutated"
	outcomeFatal       = "fatal"
)

// =============================================================================
// Options
// =============================================================================

// Option configures a Runner.
type Option func(*Runner)

// WithOracle replaces the default oracle.
func WithOracle(o *oracle.Oracle) Option {
	return func(r *Runner) {
		if o != nil {
			r.oracle = o
		}
	}
}

// WithReporter sets the progress reporter.
func WithReporter(rep Reporter) Option {
	return func(r *Runner) {
		if rep != nil {
			r.reporter = rep
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics enables otel instrument recording.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithSkipCheck runs candidates without checking their output.
func WithSkipCheck(skip bool) Option {
	return func(r *Runner) {
		r.skipCheck = skip
	}
}

// WithOddDim overrides the odd dimension checked before each configured one.
func WithOddDim(dim int) Option {
	return func(r *Runner) {
		r.oddDim = dim
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// WithHost records host information on the result instead of detecting it.
func WithHost(h timing.Host) Option {
	return func(r *Runner) {
		r.host = &h
	}
}

// =============================================================================
// Runner
// =============================================================================

// Runner drives every enabled candidate through check, measure and score.
//
// Thread Safety:
//
//	Not safe for concurrent use. Candidates run strictly one at a time so
//	measurements never overlap.
type Runner struct {
	registry *registry.Registry
	arena    *fixture.Arena
	counter  timing.CycleCounter
	suites   map[registry.Operation]Suite

	oracle    *oracle.Oracle
	reporter  Reporter
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	skipCheck bool
	oddDim    int
	runID     string
	host      *timing.Host
}

// New creates a Runner.
//
// Description:
//
//	Every suite is validated and every dimension, including the odd one,
//	must fit in the arena. At most one suite per operation is accepted.
//
// Inputs:
//
//	reg - The candidate registry. Its requested operations are run.
//	arena - Fixture storage sized for the largest dimension.
//	counter - Cycle counter used for measurement.
//	suites - Dimensions and baselines per operation.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Runner - The runner.
//	error - ErrInvalidSuite wrapped with the reason.
func New(reg *registry.Registry, arena *fixture.Arena, counter timing.CycleCounter, suites []Suite, opts ...Option) (*Runner, error) {
	if reg == nil || arena == nil || counter == nil {
		return nil, fmt.Errorf("%w: registry, arena and counter are required", ErrInvalidSuite)
	}

	r := &Runner{
		registry: reg,
		arena:    arena,
		counter:  counter,
		suites:   make(map[registry.Operation]Suite, len(suites)),
		oracle:   oracle.New(),
		reporter: nopReporter{},
		logger:   slog.Default(),
		oddDim:   DefaultOddDim,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.oddDim <= 0 || r.oddDim > arena.MaxDim() {
		return nil, fmt.Errorf("%w: odd dimension %d outside arena (max %d)", ErrInvalidSuite, r.oddDim, arena.MaxDim())
	}
	for _, s := range suites {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.suites[s.Op]; dup {
			return nil, fmt.Errorf("%w: duplicate suite for %s", ErrInvalidSuite, s.Op)
		}
		for _, d := range s.Dims {
			if d > arena.MaxDim() {
				return nil, fmt.Errorf("%w: %s dimension %d exceeds arena (max %d)", ErrInvalidSuite, s.Op, d, arena.MaxDim())
			}
		}
		r.suites[s.Op] = s
	}
	return r, nil
}

// Suite returns the suite configured for op.
func (r *Runner) Suite(op registry.Operation) (Suite, bool) {
	s, ok := r.suites[op]
	return s, ok
}

// Run benchmarks every enabled candidate of every requested operation.
//
// Description:
//
//	Operations run in the fixed order rotate, rotate_t, blend, blend_v,
//	smooth; candidates in registration order. A failed check moves on to
//	the next candidate. A non-positive CPE aborts the whole run: the
//	offending candidate is still reported, then the partial result is
//	returned with an error wrapping scoring.ErrNonPositiveCPE.
//
// Inputs:
//
//	ctx - Cancellation stops the run before the next measurement.
//
// Outputs:
//
//	*Result - The run, partial if err is non-nil.
//	error - ErrNoSuite, a fatal scoring error or the context error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "runner.Run")
	defer span.End()

	res := &Result{
		ID:        r.runID,
		StartedAt: time.Now().UTC(),
		Seed:      r.arena.Seed(),
		SkipCheck: r.skipCheck,
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if r.host != nil {
		res.Host = *r.host
	} else {
		res.Host = timing.DetectHost()
	}
	span.SetAttributes(attribute.String("run.id", res.ID))

	logger := r.logger.With(slog.String("run_id", res.ID))
	logger.Info("run started", slog.Int64("seed", res.Seed), slog.Bool("skip_check", r.skipCheck))

	finish := func(err error) (*Result, error) {
		res.FinishedAt = time.Now().UTC()
		if err != nil {
			telemetry.RecordError(span, err)
			logger.Error("run aborted", slog.String("error", err.Error()))
			return res, err
		}
		telemetry.RecordRunCompleted(res.FinishedAt)
		telemetry.SetSpanOK(span)
		r.reporter.RunFinished(res)
		logger.Info("run finished", slog.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
		return res, nil
	}

	for _, op := range r.registry.RequestedOperations() {
		suite, ok := r.suites[op]
		if !ok {
			return finish(fmt.Errorf("%w: %s", ErrNoSuite, op))
		}

		res.Ops = append(res.Ops, OpResult{Op: op, Suite: suite})
		opRes := &res.Ops[len(res.Ops)-1]
		r.reporter.OperationStarted(op)
		logger.Info("benchmarking operation", slog.String("op", op.Name()))

		for _, entry := range r.registry.Enabled(op) {
			er, err := r.RunEntry(ctx, suite, entry)
			if er.State() == StateScored {
				er.Improved = opRes.Best.Offer(er.Score.Mean, er.Description)
				telemetry.RecordScore(op.Name(), er.Description, suite.Dims, er.CPEs, er.Score.Mean)
				er.advance(StateReported, 0)
			}
			r.reporter.EntryFinished(suite, &er)
			opRes.Entries = append(opRes.Entries, er)
			if err != nil {
				return finish(err)
			}
		}
		telemetry.RecordBestScore(op.Name(), opRes.Best.Mean)
	}
	return finish(nil)
}

// RunEntry drives one candidate through the per-dimension state machine.
//
// Description:
//
//	For each configured dimension: run and check at the odd dimension,
//	run and check at the dimension itself, then measure on a freshly
//	generated fixture. Once every dimension is measured the candidate is
//	scored against the suite's baselines. With skip-check enabled the
//	candidate still runs at both dimensions but its output is not
//	inspected.
//
//	A failed check ends the candidate in StateFailed with Verdict and
//	FailedDim set and a nil error. A non-positive CPE ends it in
//	StateFailed with Err set, and that error is also returned. The
//	measured CPEs are stored on the entry.
//
// Inputs:
//
//	ctx - Passed to the cycle counter.
//	suite - Dimensions and baselines.
//	entry - The candidate.
//
// Outputs:
//
//	EntryResult - The candidate's transitions and outcome.
//	error - Non-nil only when the run must stop.
func (r *Runner) RunEntry(ctx context.Context, suite Suite, entry *registry.Entry) (EntryResult, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "runner.RunEntry")
	defer span.End()
	span.SetAttributes(
		attribute.String("op", suite.Op.Name()),
		attribute.String("candidate", entry.Description),
	)

	er := EntryResult{
		Op:          suite.Op,
		Description: entry.Description,
		CPEs:        make([]float64, len(suite.Dims)),
	}
	logger := r.logger.With(slog.String("op", suite.Op.Name()), slog.String("candidate", entry.Description))

	fail := func(err error) (EntryResult, error) {
		er.advance(StateFailed, 0)
		er.Err = err
		telemetry.RecordError(span, err)
		return er, err
	}

	for i, dim := range suite.Dims {
		if ok, err := r.runAndCheck(ctx, suite.Op, entry, r.oddDim, true, &er); err != nil {
			return fail(err)
		} else if !ok {
			logger.Warn("correctness check failed", slog.Int("dim", r.oddDim))
			return er, nil
		}
		er.advance(StateOddDimChecked, r.oddDim)

		if ok, err := r.runAndCheck(ctx, suite.Op, entry, dim, false, &er); err != nil {
			return fail(err)
		} else if !ok {
			logger.Warn("correctness check failed", slog.Int("dim", dim))
			return er, nil
		}
		er.advance(StateDimChecked, dim)

		f, err := r.arena.Create(dim)
		if err != nil {
			return fail(err)
		}
		start := time.Now()
		cycles, err := r.counter.Measure(ctx, func() {
			entry.Kernel.Transform(dim, f.Original, f.Result)
		})
		if err != nil {
			return fail(fmt.Errorf("measure %s at %d: %w", entry.Description, dim, err))
		}
		er.CPEs[i] = scoring.CPE(cycles, dim)
		if sr, ok := r.counter.(timing.StatsReporter); ok {
			er.Stats = append(er.Stats, sr.LastStats())
		}
		r.metrics.RecordMeasurement(ctx, suite.Op.Name(), dim, er.CPEs[i], time.Since(start))
		logger.Debug("measured", slog.Int("dim", dim), slog.Float64("cpe", er.CPEs[i]))
		er.advance(StateMeasured, dim)
	}
	entry.CPEs = append(entry.CPEs[:0], er.CPEs...)

	score, err := scoring.Compute(suite.Dims, suite.Baselines, er.CPEs)
	if err != nil {
		r.metrics.RecordCandidate(ctx, suite.Op.Name(), outcomeFatal)
		return fail(fmt.Errorf("candidate %q: %w", entry.Description, err))
	}
	er.Score = &score
	er.advance(StateScored, 0)
	r.metrics.RecordCandidate(ctx, suite.Op.Name(), outcomeScored)
	telemetry.SetSpanOK(span)
	logger.Info("candidate scored", slog.Float64("mean", score.Mean))
	return er, nil
}

// runAndCheck runs the candidate once on a fresh fixture of dim and checks
// the output. It reports false with the verdict recorded on er when the
// check fails.
func (r *Runner) runAndCheck(ctx context.Context, op registry.Operation, entry *registry.Entry, dim int, odd bool, er *EntryResult) (bool, error) {
	f, err := r.arena.Create(dim)
	if err != nil {
		return false, err
	}
	entry.Kernel.Transform(dim, f.Original, f.Result)
	if r.skipCheck {
		return true, nil
	}

	v, err := r.oracle.Check(op.Kind(), f)
	if err != nil {
		return false, err
	}
	if v.OK() {
		return true, nil
	}

	er.Verdict = &v
	er.FailedDim = dim
	er.FailedOddDim = odd
	er.advance(StateFailed, dim)

	outcome := outcomeCheckFailed
	if errors.Is(v.Err(), oracle.ErrOriginalMutated) {
		outcome = outcomeMutated
	}
	r.metrics.RecordCheckFailure(ctx, op.Name(), dim, outcome)
	r.metrics.RecordCandidate(ctx, op.Name(), outcome)
	return false, nil
}
