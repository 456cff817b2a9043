// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/perflab/pkg/logging"
	"github.com/AleutianAI/perflab/services/bench/oracle"
	"github.com/AleutianAI/perflab/services/bench/pixel"
)

var noop = KernelFunc(func(int, []pixel.Pixel, []pixel.Pixel) {})

// =============================================================================
// Operation Tests
// =============================================================================

func TestOperation_Names(t *testing.T) {
	tests := []struct {
		op    Operation
		name  string
		title string
		tag   byte
		kind  oracle.Kind
	}{
		{Rotate, "rotate", "Rotate", 'R', oracle.KindRotate},
		{RotateT, "rotate_t", "Rotate_T", 'T', oracle.KindRotate},
		{Blend, "blend", "Blend", 'B', oracle.KindBlend},
		{BlendV, "blend_v", "Blend_V", 'V', oracle.KindBlend},
		{Smooth, "smooth", "Smooth", 'S', oracle.KindSmooth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.op.Name())
			assert.Equal(t, tt.name, tt.op.String())
			assert.Equal(t, tt.title, tt.op.Title())
			assert.Equal(t, tt.tag, tt.op.Tag())
			assert.Equal(t, tt.kind, tt.op.Kind())

			parsed, err := ParseOperation(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.op, parsed)

			byTag, err := OperationForTag(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.op, byTag)
		})
	}

	_, err := ParseOperation("sharpen")
	assert.ErrorIs(t, err, ErrUnknownOperation)
	_, err = OperationForTag('X')
	assert.ErrorIs(t, err, ErrUnknownTag)
	assert.False(t, Operation(9).Valid())
}

// =============================================================================
// Registry Tests
// =============================================================================

func TestRegister_DisabledInOrder(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Register(Rotate, noop, fmt.Sprintf("rotate v%d", i)))
	}

	entries := r.Entries(Rotate)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("rotate v%d", i), e.Description)
		assert.False(t, e.Enabled)
	}
	assert.Empty(t, r.Enabled(Rotate))
	assert.Equal(t, 0, r.Len(Smooth))
}

func TestRegister_Errors(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Register(Rotate, nil, "x"), ErrNilKernel)
	assert.ErrorIs(t, r.Register(Rotate, noop, ""), ErrEmptyDescription)
	assert.ErrorIs(t, r.Register(Operation(-1), noop, "x"), ErrUnknownOperation)
	assert.Panics(t, func() { r.MustRegister(Rotate, nil, "x") })
}

func TestEnableAll(t *testing.T) {
	r := New()
	r.MustRegister(Blend, noop, "a")
	r.MustRegister(Blend, noop, "b")
	r.MustRegister(Smooth, noop, "c")

	r.EnableAll(Blend)
	assert.Len(t, r.Enabled(Blend), 2)
	assert.Empty(t, r.Enabled(Smooth))
}

func TestSelectAll_DefaultsToEveryOperation(t *testing.T) {
	r := New()
	for _, op := range Operations {
		r.MustRegister(op, noop, op.Name())
	}

	r.SelectAll(nil)
	assert.Equal(t, Operations, r.RequestedOperations())
	for _, op := range Operations {
		assert.Len(t, r.Enabled(op), 1)
	}

	r2 := New()
	for _, op := range Operations {
		r2.MustRegister(op, noop, op.Name())
	}
	r2.SelectAll([]Operation{Smooth, Rotate})
	assert.Equal(t, []Operation{Rotate, Smooth}, r2.RequestedOperations())
	assert.Empty(t, r2.Enabled(Blend))
}

func TestSelectAutograder(t *testing.T) {
	r := New()
	r.MustRegister(Rotate, noop, "naive")
	r.MustRegister(Rotate, noop, "fast")

	canonical := map[Operation]Canonical{}
	for _, op := range Operations {
		canonical[op] = Canonical{Kernel: noop, Description: op.Name() + "() function"}
	}

	require.NoError(t, r.SelectAutograder(nil, canonical))
	entries := r.Entries(Rotate)
	require.Len(t, entries, 1)
	assert.Equal(t, "rotate() function", entries[0].Description)
	assert.True(t, entries[0].Enabled)
	assert.Equal(t, Operations, r.RequestedOperations())

	err := New().SelectAutograder([]Operation{Smooth}, map[Operation]Canonical{})
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestUseCanonical_DefaultDescription(t *testing.T) {
	r := New()
	require.NoError(t, r.UseCanonical(BlendV, noop, ""))
	assert.Equal(t, "blend_v() function", r.Entries(BlendV)[0].Description)
	assert.True(t, r.Requested(BlendV))
}

// =============================================================================
// Selection File Tests
// =============================================================================

func TestLoad_EnablesMatching(t *testing.T) {
	r := New()
	r.MustRegister(Rotate, noop, "naive_rotate: Naive baseline implementation")
	r.MustRegister(Rotate, noop, "pointer_rotate: walk with pointers")
	r.MustRegister(Smooth, noop, "naive_smooth: Naive baseline implementation")

	input := "R:pointer_rotate: walk with pointers\n" +
		"S:naive_smooth: Naive baseline implementation\r\n"
	res, err := r.Load(strings.NewReader(input), logging.Nop())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 2, res.Enabled)
	assert.Empty(t, res.Skipped)

	enabled := r.Enabled(Rotate)
	require.Len(t, enabled, 1)
	assert.Equal(t, "pointer_rotate: walk with pointers", enabled[0].Description)
	assert.Len(t, r.Enabled(Smooth), 1)
	assert.Equal(t, []Operation{Rotate, Smooth}, r.RequestedOperations())
}

func TestLoad_TagMustMatchOperation(t *testing.T) {
	r := New()
	r.MustRegister(Rotate, noop, "shared name")
	r.MustRegister(RotateT, noop, "shared name")

	_, err := r.Load(strings.NewReader("T:shared name\n"), logging.Nop())
	require.NoError(t, err)
	assert.Empty(t, r.Enabled(Rotate))
	assert.Len(t, r.Enabled(RotateT), 1)
}

func TestLoad_SkipsMalformed(t *testing.T) {
	r := New()
	r.MustRegister(Blend, noop, "blend: ok")

	input := strings.Join([]string{
		"no separator here",
		"X:unknown tag",
		"RB:two letter tag",
		"B:",
		"",
		"B:blend: ok",
		"B:not registered",
	}, "\n")

	var logs bytes.Buffer
	logger := logging.New(logging.Config{Output: &logs}).Slog()
	res, err := r.Load(strings.NewReader(input), logger)
	require.NoError(t, err)

	require.Len(t, res.Skipped, 4)
	assert.Equal(t, 1, res.Skipped[0].Line)
	assert.Equal(t, 2, res.Skipped[1].Line)
	assert.Equal(t, 3, res.Skipped[2].Line)
	assert.Equal(t, 4, res.Skipped[3].Line)
	assert.Equal(t, []string{"B:not registered"}, res.Unmatched)
	assert.Equal(t, 2, res.Records)
	assert.Len(t, r.Enabled(Blend), 1)
	assert.Equal(t, 4, strings.Count(logs.String(), "skipping selection record"))
}

func TestDump_AllRegisteredInFixedOrder(t *testing.T) {
	r := New()
	r.MustRegister(Smooth, noop, "s1")
	r.MustRegister(Rotate, noop, "r1")
	r.MustRegister(Rotate, noop, "r2")
	r.MustRegister(Blend, noop, "b1")

	var buf bytes.Buffer
	require.NoError(t, r.Dump(&buf, []Operation{Smooth, Rotate}))
	assert.Equal(t, "R:r1\nR:r2\nS:s1\n", buf.String())
}

func TestDumpEnabled_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for _, size := range []int{1, 3, 20, 100} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			build := func() *Registry {
				r := New()
				for i := 0; i < size; i++ {
					r.MustRegister(Blend, noop, fmt.Sprintf("blend #%d: variant, with punctuation!", i))
				}
				return r
			}

			src := build()
			var want []string
			for _, e := range src.Entries(Blend) {
				if rng.IntN(2) == 0 {
					e.Enabled = true
					want = append(want, e.Description)
				}
			}

			var buf bytes.Buffer
			require.NoError(t, src.DumpEnabled(&buf, []Operation{Blend}))

			dst := build()
			_, err := dst.Load(&buf, logging.Nop())
			require.NoError(t, err)

			var got []string
			for _, e := range dst.Enabled(Blend) {
				got = append(got, e.Description)
			}
			sort.Strings(want)
			sort.Strings(got)
			assert.Equal(t, want, got)
		})
	}
}

func TestDumpFile_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "funcs.txt")

	r := New()
	r.MustRegister(RotateT, noop, "rotate_t: naive")
	require.NoError(t, r.DumpFile(path, []Operation{RotateT}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "T:rotate_t: naive\n", string(data))

	r2 := New()
	r2.MustRegister(RotateT, noop, "rotate_t: naive")
	res, err := r2.LoadFile(path, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Enabled)
}

func TestSelectionIO_Errors(t *testing.T) {
	r := New()
	_, err := r.LoadFile(filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.True(t, IsSelectionIO(err))
	assert.Contains(t, err.Error(), "can't open file")

	err = r.DumpFile(filepath.Join(t.TempDir(), "no", "such", "dir.txt"), Operations)
	assert.True(t, errors.Is(err, ErrSelectionIO))
}
