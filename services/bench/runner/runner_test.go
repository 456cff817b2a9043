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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/perflab/services/bench/fixture"
	"github.com/AleutianAI/perflab/services/bench/oracle"
	"github.com/AleutianAI/perflab/services/bench/pixel"
	"github.com/AleutianAI/perflab/services/bench/registry"
	"github.com/AleutianAI/perflab/services/bench/scoring"
	"github.com/AleutianAI/perflab/services/bench/timing"
)

const testOddDim = 5

var testDims = []int{4, 8, 16}

// meter is a fake cycle counter: kernels report their cost per element
// through it and Measure converts that to total cycles.
type meter struct {
	cpe float64
	dim int
}

func (m *meter) Measure(_ context.Context, fn func()) (float64, error) {
	fn()
	return m.cpe * float64(m.dim*m.dim), nil
}

// rotateAt returns a correct rotation kernel that costs cpe cycles per
// element.
func rotateAt(m *meter, cpe float64) registry.KernelFunc {
	return func(dim int, src, dst []pixel.Pixel) {
		m.cpe, m.dim = cpe, dim
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				dst[pixel.Index(dim-1-j, i, dim)] = src[pixel.Index(i, j, dim)]
			}
		}
	}
}

// brokenAbove rotates correctly up to limit and does nothing above it.
func brokenAbove(m *meter, limit int) registry.KernelFunc {
	good := rotateAt(m, 1)
	return func(dim int, src, dst []pixel.Pixel) {
		m.cpe, m.dim = 1, dim
		if dim <= limit {
			good(dim, src, dst)
		}
	}
}

type recorder struct {
	started  []registry.Operation
	entries  []EntryResult
	finished *Result
}

func (r *recorder) OperationStarted(op registry.Operation) { r.started = append(r.started, op) }
func (r *recorder) EntryFinished(_ Suite, e *EntryResult) { r.entries = append(r.entries, *e) }
func (r *recorder) RunFinished(res *Result)                { r.finished = res }

func rotateSuite() Suite {
	return Suite{Op: registry.Rotate, Dims: testDims, Baselines: []float64{8, 8, 8}}
}

func newRunner(t *testing.T, reg *registry.Registry, counter timing.CycleCounter, opts ...Option) *Runner {
	t.Helper()
	arena, err := fixture.NewArena(16, fixture.DefaultSeed)
	require.NoError(t, err)
	opts = append([]Option{WithOddDim(testOddDim), WithRunID("test-run"), WithHost(timing.Host{Arch: "test"})}, opts...)
	r, err := New(reg, arena, counter, []Suite{rotateSuite()}, opts...)
	require.NoError(t, err)
	return r
}

func TestRunEntry_Scored(t *testing.T) {
	m := &meter{}
	reg := registry.New()
	reg.MustRegister(registry.Rotate, rotateAt(m, 2), "fast")
	r := newRunner(t, reg, m)

	entry := reg.Entries(registry.Rotate)[0]
	er, err := r.RunEntry(context.Background(), rotateSuite(), entry)
	require.NoError(t, err)

	assert.Equal(t, StateScored, er.State())
	assert.Equal(t, []float64{2, 2, 2}, er.CPEs)
	assert.Equal(t, er.CPEs, entry.CPEs)
	require.NotNil(t, er.Score)
	assert.InDelta(t, 4.0, er.Score.Mean, 1e-9)
	assert.Nil(t, er.Verdict)

	want := []Transition{
		{StateOddDimChecked, testOddDim}, {StateDimChecked, 4}, {StateMeasured, 4},
		{StateOddDimChecked, testOddDim}, {StateDimChecked, 8}, {StateMeasured, 8},
		{StateOddDimChecked, testOddDim}, {StateDimChecked, 16}, {StateMeasured, 16},
		{StateScored, 0},
	}
	assert.Equal(t, want, er.Transitions)
}

func TestRunEntry_FailsAtOddDim(t *testing.T) {
	m := &meter{}
	reg := registry.New()
	reg.MustRegister(registry.Rotate, brokenAbove(m, 4), "odd-broken")
	r := newRunner(t, reg, m)

	er, err := r.RunEntry(context.Background(), rotateSuite(), reg.Entries(registry.Rotate)[0])
	require.NoError(t, err)

	assert.True(t, er.Failed())
	assert.Equal(t, testOddDim, er.FailedDim)
	assert.True(t, er.FailedOddDim)
	require.NotNil(t, er.Verdict)
	assert.False(t, er.Verdict.OK())
	assert.Nil(t, er.Score)
	assert.Equal(t, []float64{0, 0, 0}, er.CPEs)
}

func TestRunEntry_FailsAtLaterDim(t *testing.T) {
	m := &meter{}
	reg := registry.New()
	reg.MustRegister(registry.Rotate, brokenAbove(m, 8), "big-broken")
	r := newRunner(t, reg, m)

	er, err := r.RunEntry(context.Background(), rotateSuite(), reg.Entries(registry.Rotate)[0])
	require.NoError(t, err)

	assert.True(t, er.Failed())
	assert.Equal(t, 16, er.FailedDim)
	assert.False(t, er.FailedOddDim)
	assert.Equal(t, []float64{1, 1, 0}, er.CPEs)
}

func TestRunEntry_MutatedOriginal(t *testing.T) {
	m := &meter{}
	reg := registry.New()
	reg.MustRegister(registry.Rotate, registry.KernelFunc(func(dim int, src, dst []pixel.Pixel) {
		rotateAt(m, 1)(dim, src, dst)
		src[0].Red++
	}), "scribbler")
	r := newRunner(t, reg, m)

	er, err := r.RunEntry(context.Background(), rotateSuite(), reg.Entries(registry.Rotate)[0])
	require.NoError(t, err)
	require.NotNil(t, er.Verdict)
	assert.True(t, er.Verdict.OriginalMutated)
	assert.ErrorIs(t, er.Verdict.Err(), oracle.ErrOriginalMutated)
}

func TestRunEntry_SkipCheck(t *testing.T) {
	m := &meter{}
	reg := registry.New()
	reg.MustRegister(registry.Rotate, brokenAbove(m, 0), "noop")
	r := newRunner(t, reg, m, WithSkipCheck(true))

	er, err := r.RunEntry(context.Background(), rotateSuite(), reg.Entries(registry.Rotate)[0])
	require.NoError(t, err)
	assert.Equal(t, StateScored, er.State())
}

func TestRunEntry_NonPositiveCPEIsFatal(t *testing.T) {
	m := &meter{}
	reg := registry.New()
	reg.MustRegister(registry.Rotate, rotateAt(m, 0), "free")
	r := newRunner(t, reg, m)

	er, err := r.RunEntry(context.Background(), rotateSuite(), reg.Entries(registry.Rotate)[0])
	require.Error(t, err)
	assert.True(t, errors.Is(err, scoring.ErrNonPositiveCPE))
	assert.True(t, er.Failed())
	assert.Equal(t, err, er.Err)
}

func TestRunEntry_MeasureError(t *testing.T) {
	m := &meter{}
	reg := registry.New()
	reg.MustRegister(registry.Rotate, rotateAt(m, 1), "ok")
	fails := timing.CounterFunc(func(ctx context.Context, fn func()) (float64, error) {
		return 0, context.Canceled
	})
	r := newRunner(t, reg, fails)

	_, err := r.RunEntry(context.Background(), rotateSuite(), reg.Entries(registry.Rotate)[0])
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_BestScoreAndReporting(t *testing.T) {
	m := &meter{}
	reg := registry.New()
	reg.MustRegister(registry.Rotate, rotateAt(m, 4), "slow")
	reg.MustRegister(registry.Rotate, brokenAbove(m, 0), "broken")
	reg.MustRegister(registry.Rotate, rotateAt(m, 1), "fast")
	reg.MustRegister(registry.Rotate, rotateAt(m, 1), "tie")
	reg.MustRegister(registry.Rotate, rotateAt(m, 2), "disabled")
	reg.Request(registry.Rotate)
	for _, d := range []string{"slow", "broken", "fast", "tie"} {
		reg.Enable(registry.Rotate, d)
	}

	rec := &recorder{}
	r := newRunner(t, reg, m, WithReporter(rec))

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "test-run", res.ID)
	assert.Equal(t, fixture.DefaultSeed, res.Seed)
	assert.Equal(t, []registry.Operation{registry.Rotate}, rec.started)
	require.Len(t, rec.entries, 4)
	assert.Same(t, res, rec.finished)

	best := res.Best(registry.Rotate)
	assert.Equal(t, "fast", best.Description)
	assert.InDelta(t, 8.0, best.Mean, 1e-9)

	op := res.Op(registry.Rotate)
	require.NotNil(t, op)
	assert.True(t, op.Entries[0].Improved)
	assert.True(t, op.Entries[1].Failed())
	assert.True(t, op.Entries[2].Improved)
	assert.False(t, op.Entries[3].Improved, "ties keep the earlier candidate")
	assert.Equal(t, StateReported, op.Entries[2].State())

	assert.Equal(t, scoring.Record{}, res.Best(registry.Blend))
}

func TestRun_FatalStopsRun(t *testing.T) {
	m := &meter{}
	reg := registry.New()
	reg.MustRegister(registry.Rotate, rotateAt(m, -1), "negative")
	reg.MustRegister(registry.Rotate, rotateAt(m, 1), "never-run")
	reg.Request(registry.Rotate)
	reg.EnableAll(registry.Rotate)

	rec := &recorder{}
	r := newRunner(t, reg, m, WithReporter(rec))

	res, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, scoring.ErrNonPositiveCPE)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "negative", rec.entries[0].Description)
	assert.Nil(t, rec.finished)
	assert.Len(t, res.Op(registry.Rotate).Entries, 1)
}

func TestRun_NoSuite(t *testing.T) {
	m := &meter{}
	reg := registry.New()
	reg.MustRegister(registry.Smooth, rotateAt(m, 1), "smooth")
	reg.Request(registry.Smooth)
	reg.EnableAll(registry.Smooth)
	r := newRunner(t, reg, m)

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoSuite)
}

func TestNew_Validation(t *testing.T) {
	arena, err := fixture.NewArena(16, 1)
	require.NoError(t, err)
	reg := registry.New()
	m := &meter{}

	tests := []struct {
		name   string
		suites []Suite
		opts   []Option
	}{
		{"dim exceeds arena", []Suite{{Op: registry.Rotate, Dims: []int{32}, Baselines: []float64{1}}}, nil},
		{"odd dim exceeds arena", []Suite{rotateSuite()}, []Option{WithOddDim(17)}},
		{"baseline count", []Suite{{Op: registry.Rotate, Dims: []int{4, 8}, Baselines: []float64{1}}}, []Option{WithOddDim(5)}},
		{"zero baseline", []Suite{{Op: registry.Rotate, Dims: []int{4}, Baselines: []float64{0}}}, []Option{WithOddDim(5)}},
		{"duplicate", []Suite{rotateSuite(), rotateSuite()}, []Option{WithOddDim(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(reg, arena, m, tt.suites, tt.opts...)
			assert.ErrorIs(t, err, ErrInvalidSuite)
		})
	}
}

func TestStateText(t *testing.T) {
	for s := StateCreated; s <= StateFailed; s++ {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back State
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	var s State
	assert.Error(t, s.UnmarshalText([]byte("bogus")))
}
