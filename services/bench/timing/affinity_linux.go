// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build linux

package timing

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pinToCPU restricts the calling thread to one CPU and returns a function
// restoring the previous mask. The caller must hold runtime.LockOSThread.
func pinToCPU(cpu int) (func(), error) {
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return nil, fmt.Errorf("get affinity: %w", err)
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("set affinity to cpu %d: %w", cpu, err)
	}
	return func() { _ = unix.SchedSetaffinity(0, &prev) }, nil
}
