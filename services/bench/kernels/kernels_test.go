// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kernels

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/perflab/services/bench/fixture"
	"github.com/AleutianAI/perflab/services/bench/oracle"
	"github.com/AleutianAI/perflab/services/bench/registry"
)

func TestCandidatesPassOracle(t *testing.T) {
	arena, err := fixture.NewArena(130, fixture.DefaultSeed)
	require.NoError(t, err)
	o := oracle.New()

	for _, c := range candidates {
		for _, dim := range []int{1, 2, 3, 7, 64, 96, 130} {
			t.Run(fmt.Sprintf("%s/%d", c.desc, dim), func(t *testing.T) {
				f, err := arena.Create(dim)
				require.NoError(t, err)

				c.kernel(dim, f.Original, f.Result)

				v, err := o.Check(c.op.Kind(), f)
				require.NoError(t, err)
				assert.True(t, v.OK(), v.Diagnostic())
			})
		}
	}
}

func TestBlendMatchesReferenceExactly(t *testing.T) {
	arena, err := fixture.NewArena(64, 7)
	require.NoError(t, err)
	f, err := arena.Create(64)
	require.NoError(t, err)

	for _, kernel := range []registry.KernelFunc{NaiveBlend, HoistedBlend, BlendV, ParallelBlend} {
		kernel(64, f.Original, f.Result)
		for k, got := range f.Result {
			require.Equal(t, oracle.BlendPixel(f.Original[k], f.Background), got, "pixel %d", k)
		}
	}
}

func TestRegister(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg))

	for _, op := range registry.Operations {
		entries := reg.Entries(op)
		require.NotEmpty(t, entries, op.Name())
		assert.Contains(t, entries[0].Description, op.Name()+": Current working version")
	}
	assert.Equal(t, 8, reg.Len(registry.Rotate))
	assert.Empty(t, reg.Enabled(registry.Rotate))
}

func TestCanonical(t *testing.T) {
	canonical := Canonical()
	require.Len(t, canonical, len(registry.Operations))

	reg := registry.New()
	require.NoError(t, Register(reg))
	require.NoError(t, reg.SelectAutograder(nil, canonical))

	for _, op := range registry.Operations {
		enabled := reg.Enabled(op)
		require.Len(t, enabled, 1)
		assert.Equal(t, op.Name()+"() function", enabled[0].Description)
	}
}

func TestBands_CoverEveryRowOnce(t *testing.T) {
	for _, dim := range []int{1, 15, 16, 100, 1024} {
		seen := make([]int, dim)
		counts := make(chan [2]int, dim)
		bands(dim, func(from, to int) {
			counts <- [2]int{from, to}
		})
		close(counts)
		for r := range counts {
			for i := r[0]; i < r[1]; i++ {
				seen[i]++
			}
		}
		for i, n := range seen {
			require.Equal(t, 1, n, "dim %d row %d", dim, i)
		}
	}
}
