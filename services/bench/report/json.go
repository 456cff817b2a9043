// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/AleutianAI/perflab/services/bench/registry"
	"github.com/AleutianAI/perflab/services/bench/runner"
)

// JSON writes the finished run as one indented document.
type JSON struct {
	w   io.Writer
	err error
}

// NewJSON creates a JSON reporter writing to w.
func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

// Err returns the encoding error, if any.
func (j *JSON) Err() error {
	return j.err
}

// OperationStarted is a no-op.
func (j *JSON) OperationStarted(registry.Operation) {}

// EntryFinished is a no-op; entries are part of the final document.
func (j *JSON) EntryFinished(runner.Suite, *runner.EntryResult) {}

// RunFinished encodes the result.
func (j *JSON) RunFinished(res *runner.Result) {
	j.err = Encode(j.w, res)
}

// Encode writes res as indented JSON.
func Encode(w io.Writer, res *runner.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode run %s: %w", res.ID, err)
	}
	return nil
}
