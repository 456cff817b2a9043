// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package timing

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// fallbackGHz is used when the host does not report its clock rate.
const fallbackGHz = 1.0

// Host describes the machine measurements were taken on.
type Host struct {
	Arch     string   `json:"arch"`
	OS       string   `json:"os"`
	NumCPU   int      `json:"num_cpu"`
	ClockGHz float64  `json:"clock_ghz"`
	Detected bool     `json:"clock_detected"`
	Features []string `json:"features"`
}

var detectHost = sync.OnceValue(func() Host {
	h := Host{
		Arch:     runtime.GOARCH,
		OS:       runtime.GOOS,
		NumCPU:   runtime.NumCPU(),
		ClockGHz: fallbackGHz,
		Features: cpuFeatures(),
	}
	if f, err := os.Open("/proc/cpuinfo"); err == nil {
		defer f.Close()
		if ghz, ok := parseCPUInfoGHz(f); ok {
			h.ClockGHz = ghz
			h.Detected = true
		}
	}
	return h
})

// DetectHost returns the host description. The probe runs once per process.
func DetectHost() Host {
	return detectHost()
}

// parseCPUInfoGHz reads the first "cpu MHz" line of a /proc/cpuinfo stream.
func parseCPUInfoGHz(r io.Reader) (float64, bool) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "cpu MHz" {
			continue
		}
		mhz, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || mhz <= 0 {
			return 0, false
		}
		return mhz / 1000, true
	}
	return 0, false
}
