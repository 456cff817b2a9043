// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry holds the candidate implementations of every operation
// and decides which of them a run benchmarks.
//
// Candidates are registered disabled, in order. A run then enables them in
// exactly one of three ways:
//
//	autograder      one synthetic entry per operation bound to the canonical kernel
//	selection file  entries named by "<Tag>:<Description>" lines
//	default         every entry of every requested operation
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/AleutianAI/perflab/services/bench/pixel"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNilKernel is returned when registering a nil kernel.
	ErrNilKernel = errors.New("kernel must not be nil")

	// ErrEmptyDescription is returned when registering without a description.
	ErrEmptyDescription = errors.New("description must not be empty")

	// ErrUnknownOperation is returned for an unrecognized operation.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrUnknownTag is returned for an unrecognized selection tag.
	ErrUnknownTag = errors.New("unknown selection tag")

	// ErrSelectionIO is returned when a selection file cannot be opened,
	// read or written.
	ErrSelectionIO = errors.New("selection file I/O")
)

// =============================================================================
// Kernel
// =============================================================================

// Kernel is one candidate implementation of an operation.
//
// Transform reads the dim×dim image src and writes the dim×dim image dst.
// It must not write to src.
type Kernel interface {
	Transform(dim int, src, dst []pixel.Pixel)
}

// KernelFunc adapts an ordinary function to the Kernel interface.
type KernelFunc func(dim int, src, dst []pixel.Pixel)

// Transform calls f(dim, src, dst).
func (f KernelFunc) Transform(dim int, src, dst []pixel.Pixel) {
	f(dim, src, dst)
}

// =============================================================================
// Entry
// =============================================================================

// Entry is one registered candidate.
//
// Enabled and CPEs are mutated during a run; entries are never removed
// except by UseCanonical.
type Entry struct {
	Kernel      Kernel
	Description string
	Enabled     bool
	CPEs        []float64
}

// =============================================================================
// Registry
// =============================================================================

// Registry holds the ordered candidates of every operation and the set of
// operations a run was asked to benchmark.
//
// Thread Safety:
//
//	Safe for concurrent use via read-write mutex. Entry values handed out
//	by Entries are owned by the orchestrator during a run.
type Registry struct {
	mu        sync.RWMutex
	entries   map[Operation][]*Entry
	requested map[Operation]bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries:   make(map[Operation][]*Entry),
		requested: make(map[Operation]bool),
	}
}

// Register appends a disabled candidate to op.
//
// Description:
//
//	Registration order is preserved and is the order candidates run in.
//	Duplicate descriptions are allowed; a selection line enables every
//	entry with a matching description.
//
// Inputs:
//
//	op - The operation the kernel implements.
//	kernel - The candidate. Must not be nil.
//	description - Human-readable name, used verbatim in selection files.
//
// Outputs:
//
//	error - ErrUnknownOperation, ErrNilKernel or ErrEmptyDescription.
func (r *Registry) Register(op Operation, kernel Kernel, description string) error {
	if !op.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownOperation, int(op))
	}
	if kernel == nil {
		return ErrNilKernel
	}
	if description == "" {
		return ErrEmptyDescription
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[op] = append(r.entries[op], &Entry{
		Kernel:      kernel,
		Description: description,
	})
	return nil
}

// MustRegister registers a candidate and panics on error.
//
// Use only while wiring kernels at startup.
func (r *Registry) MustRegister(op Operation, kernel Kernel, description string) {
	if err := r.Register(op, kernel, description); err != nil {
		panic(fmt.Sprintf("registry: failed to register %q for %s: %v", description, op, err))
	}
}

// Entries returns op's candidates in registration order.
//
// The returned slice is a copy; the *Entry values are shared.
func (r *Registry) Entries(op Operation) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, len(r.entries[op]))
	copy(out, r.entries[op])
	return out
}

// Enabled returns op's enabled candidates in registration order.
func (r *Registry) Enabled(op Operation) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for _, e := range r.entries[op] {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of candidates registered for op.
func (r *Registry) Len(op Operation) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[op])
}

// EnableAll enables every candidate of op.
func (r *Registry) EnableAll(op Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries[op] {
		e.Enabled = true
	}
}

// Enable enables every candidate of op whose description matches exactly.
//
// Outputs:
//
//	int - Number of entries enabled.
func (r *Registry) Enable(op Operation, description string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries[op] {
		if e.Description == description {
			e.Enabled = true
			n++
		}
	}
	return n
}

// Request marks op as requested for benchmarking.
func (r *Registry) Request(ops ...Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range ops {
		if op.Valid() {
			r.requested[op] = true
		}
	}
}

// Requested reports whether op was requested.
func (r *Registry) Requested(op Operation) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.requested[op]
}

// RequestedOperations returns the requested operations in fixed order.
func (r *Registry) RequestedOperations() []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Operation
	for _, op := range Operations {
		if r.requested[op] {
			out = append(out, op)
		}
	}
	return out
}

// UseCanonical replaces op's candidates with one enabled entry bound to the
// operation's production kernel and marks op requested.
//
// This is the autograder override; it discards every registered candidate
// of op.
func (r *Registry) UseCanonical(op Operation, kernel Kernel, description string) error {
	if !op.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownOperation, int(op))
	}
	if kernel == nil {
		return ErrNilKernel
	}
	if description == "" {
		description = op.Name() + "() function"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[op] = []*Entry{{Kernel: kernel, Description: description, Enabled: true}}
	r.requested[op] = true
	return nil
}

// =============================================================================
// Selection modes
// =============================================================================

// Canonical names the production kernel of an operation.
type Canonical struct {
	Kernel      Kernel
	Description string
}

// SelectAll requests ops (every operation when ops is empty) and enables
// all of their candidates.
func (r *Registry) SelectAll(ops []Operation) {
	if len(ops) == 0 {
		ops = Operations
	}
	r.Request(ops...)
	for _, op := range ops {
		r.EnableAll(op)
	}
}

// SelectAutograder binds each of ops (every operation when ops is empty) to
// its canonical kernel, bypassing the registered candidates.
//
// Outputs:
//
//	error - ErrUnknownOperation if an operation has no canonical kernel.
func (r *Registry) SelectAutograder(ops []Operation, canonical map[Operation]Canonical) error {
	if len(ops) == 0 {
		ops = Operations
	}
	for _, op := range ops {
		c, ok := canonical[op]
		if !ok {
			return fmt.Errorf("%w: no canonical kernel for %s", ErrUnknownOperation, op)
		}
		if err := r.UseCanonical(op, c.Kernel, c.Description); err != nil {
			return err
		}
	}
	return nil
}
