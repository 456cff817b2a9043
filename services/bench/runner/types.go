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
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/perflab/services/bench/oracle"
	"github.com/AleutianAI/perflab/services/bench/registry"
	"github.com/AleutianAI/perflab/services/bench/scoring"
	"github.com/AleutianAI/perflab/services/bench/timing"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidSuite indicates a suite whose dimensions and baselines
	// cannot be used.
	ErrInvalidSuite = errors.New("invalid suite")

	// ErrNoSuite indicates a requested operation has no configured suite.
	ErrNoSuite = errors.New("no suite configured for operation")
)

// DefaultOddDim is the non-power-of-two dimension every candidate is
// checked at before each configured dimension.
const DefaultOddDim = 96

// -----------------------------------------------------------------------------
// State
// -----------------------------------------------------------------------------

// State is a step in a candidate's run.
type State int

const (
	// StateCreated is the initial state.
	StateCreated State = iota

	// StateOddDimChecked means the odd-dimension check passed.
	StateOddDimChecked

	// StateDimChecked means the check at a configured dimension passed.
	StateDimChecked

	// StateMeasured means a configured dimension was timed.
	StateMeasured

	// StateScored means ratios and the geometric mean were computed.
	StateScored

	// StateReported means the result was handed to the reporter.
	StateReported

	// StateFailed is terminal: a check failed or the measurement was unusable.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOddDimChecked:
		return "odd_dim_checked"
	case StateDimChecked:
		return "dim_checked"
	case StateMeasured:
		return "measured"
	case StateScored:
		return "scored"
	case StateReported:
		return "reported"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transition records entering a state, with the dimension it concerned
// (zero when not dimension-specific).
type Transition struct {
	State State `json:"state"`
	Dim   int   `json:"dim,omitempty"`
}

// -----------------------------------------------------------------------------
// Suite
// -----------------------------------------------------------------------------

// Suite is the dimension and baseline configuration of one operation.
type Suite struct {
	Op        registry.Operation `json:"op"`
	Dims      []int              `json:"dims"`
	Baselines []float64          `json:"baselines"`
}

// Validate checks the suite has one positive baseline per positive dimension.
func (s Suite) Validate() error {
	if !s.Op.Valid() {
		return fmt.Errorf("%w: unknown operation %d", ErrInvalidSuite, int(s.Op))
	}
	if len(s.Dims) == 0 {
		return fmt.Errorf("%w: %s has no dimensions", ErrInvalidSuite, s.Op)
	}
	if len(s.Dims) != len(s.Baselines) {
		return fmt.Errorf("%w: %s has %d dimensions but %d baselines",
			ErrInvalidSuite, s.Op, len(s.Dims), len(s.Baselines))
	}
	for i, d := range s.Dims {
		if d <= 0 {
			return fmt.Errorf("%w: %s dimension %d is not positive", ErrInvalidSuite, s.Op, d)
		}
		if !(s.Baselines[i] > 0) {
			return fmt.Errorf("%w: %s baseline for %d is not positive", ErrInvalidSuite, s.Op, d)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// EntryResult is the outcome of running one candidate.
type EntryResult struct {
	Op          registry.Operation `json:"op"`
	Description string             `json:"description"`
	Transitions []Transition       `json:"transitions"`

	// CPEs holds one value per configured dimension; unmeasured
	// dimensions stay zero.
	CPEs  []float64      `json:"cpes"`
	Stats []timing.Stats `json:"stats,omitempty"`

	// Score is set once the candidate reaches StateScored.
	Score *scoring.Score `json:"score,omitempty"`

	// Verdict and FailedDim are set when a correctness check failed.
	// FailedOddDim marks a failure of the odd-dimension check.
	Verdict      *oracle.Verdict `json:"verdict,omitempty"`
	FailedDim    int             `json:"failed_dim,omitempty"`
	FailedOddDim bool            `json:"failed_odd_dim,omitempty"`

	// Improved is true if this candidate became the operation's best.
	Improved bool `json:"improved"`

	// Err is set when the candidate aborted the run.
	Err error `json:"-"`
}

// State returns the current state.
func (e *EntryResult) State() State {
	if len(e.Transitions) == 0 {
		return StateCreated
	}
	return e.Transitions[len(e.Transitions)-1].State
}

// Failed reports whether the candidate ended in StateFailed.
func (e *EntryResult) Failed() bool {
	return e.State() == StateFailed
}

func (e *EntryResult) advance(s State, dim int) {
	e.Transitions = append(e.Transitions, Transition{State: s, Dim: dim})
}

// OpResult collects the candidates of one operation.
type OpResult struct {
	Op      registry.Operation `json:"op"`
	Suite   Suite              `json:"suite"`
	Entries []EntryResult      `json:"entries"`
	Best    scoring.Record     `json:"best"`
}

// Result is the outcome of one run.
type Result struct {
	ID         string      `json:"id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Seed       int64       `json:"seed"`
	SkipCheck  bool        `json:"skip_check"`
	Host       timing.Host `json:"host"`
	Ops        []OpResult  `json:"ops"`
}

// Op returns the result for op, or nil if op was not run.
func (r *Result) Op(op registry.Operation) *OpResult {
	for i := range r.Ops {
		if r.Ops[i].Op == op {
			return &r.Ops[i]
		}
	}
	return nil
}

// Best returns op's best-score record; the empty record if op was not run.
func (r *Result) Best(op registry.Operation) scoring.Record {
	if o := r.Op(op); o != nil {
		return o.Best
	}
	return scoring.Record{}
}

// -----------------------------------------------------------------------------
// Reporter
// -----------------------------------------------------------------------------

// Reporter receives run progress as it happens.
type Reporter interface {
	// OperationStarted is called before the first candidate of op runs.
	OperationStarted(op registry.Operation)

	// EntryFinished is called once per candidate, scored or failed.
	EntryFinished(suite Suite, entry *EntryResult)

	// RunFinished is called once after every operation ran.
	RunFinished(result *Result)
}

type nopReporter struct{}

func (nopReporter) OperationStarted(registry.Operation) {}
func (nopReporter) EntryFinished(Suite, *EntryResult)   {}
func (nopReporter) RunFinished(*Result)                 {}

// MultiReporter fans progress out to several reporters in order.
type MultiReporter []Reporter

// OperationStarted forwards to every reporter.
func (m MultiReporter) OperationStarted(op registry.Operation) {
	for _, r := range m {
		r.OperationStarted(op)
	}
}

// EntryFinished forwards to every reporter.
func (m MultiReporter) EntryFinished(suite Suite, entry *EntryResult) {
	for _, r := range m {
		r.EntryFinished(suite, entry)
	}
}

// RunFinished forwards to every reporter.
func (m MultiReporter) RunFinished(result *Result) {
	for _, r := range m {
		r.RunFinished(result)
	}
}

// MarshalText encodes the state as its string form.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state from its string form.
func (s *State) UnmarshalText(text []byte) error {
	for c := StateCreated; c <= StateFailed; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}
