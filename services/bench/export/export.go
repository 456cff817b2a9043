// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export ships finished runs to external stores: InfluxDB for
// time-series dashboards and Google Cloud Storage for archival.
package export

import (
	"context"
	"errors"

	"github.com/AleutianAI/perflab/services/bench/runner"
)

// Sink receives a finished run.
type Sink interface {
	// Export writes the run. Implementations must not retain res.
	Export(ctx context.Context, res *runner.Result) error

	// Close releases the sink's client.
	Close() error
}

// Multi exports to every sink and joins their errors.
type Multi []Sink

// Export calls every sink, even after one fails.
func (m Multi) Export(ctx context.Context, res *runner.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Export(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
