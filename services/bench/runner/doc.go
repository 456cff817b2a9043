// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner sequences fixture generation, correctness checks, timing and
// scoring for every enabled candidate of every requested operation.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                            Runner                                │
//	├──────────────────────────────────────────────────────────────────┤
//	│                                                                  │
//	│  ┌────────────┐   ┌────────────┐   ┌────────────┐   ┌─────────┐  │
//	│  │  registry  │──▶│  fixture   │──▶│   oracle   │──▶│ timing  │  │
//	│  │ candidates │   │   Arena    │   │  Verdict   │   │ Counter │  │
//	│  └────────────┘   └────────────┘   └────────────┘   └─────────┘  │
//	│                                                          │       │
//	│                                   ┌────────────┐         ▼       │
//	│                                   │  Reporter  │◀── scoring ──   │
//	│                                   └────────────┘   Record/Score  │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Candidate state machine
//
//	Created ─▶ OddDimChecked ─▶ DimChecked(d1) ─▶ Measured(d1) ─▶ ...
//	        ─▶ DimChecked(dk) ─▶ Measured(dk) ─▶ Scored ─▶ Reported
//
// For every configured dimension d the candidate first runs on a fresh
// fixture of the odd dimension, then on a fresh fixture of d, and both
// outputs are checked. Only then is a third fresh fixture of d handed to the
// cycle counter. Any failed check moves the candidate to Failed and it is
// not timed again; other candidates are unaffected.
//
// A non-positive CPE is different: it means the cycle counter is broken, so
// Run stops and returns an error wrapping scoring.ErrNonPositiveCPE.
//
// # Thread Safety
//
// A Runner is single-threaded. The only concurrency is whatever happens
// inside a candidate kernel.
package runner
