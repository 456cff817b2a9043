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
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// maxLineBytes bounds a single selection record.
const maxLineBytes = 64 * 1024

// SkippedLine is a selection record the decoder could not use.
type SkippedLine struct {
	Line   int
	Text   string
	Reason string
}

// LoadResult summarizes one selection file load.
type LoadResult struct {
	// Records is the number of well-formed records read.
	Records int

	// Enabled is the number of entries enabled.
	Enabled int

	// Skipped lists malformed records in file order.
	Skipped []SkippedLine

	// Unmatched lists well-formed records that named no registered entry.
	Unmatched []string
}

// Load enables the entries named by a selection stream.
//
// Description:
//
//	Each record is "<Tag>:<Description>". The tag is a single letter from
//	R, T, B, V, S; the description is everything after the first colon up
//	to the end of line, with a trailing carriage return dropped. Every entry
//	of the tagged operation whose description matches exactly is enabled
//	and the operation is marked requested. Malformed records are skipped
//	with a warning. Blank lines are ignored.
//
// Inputs:
//
//	rd - The selection stream.
//	logger - Receives a warning per skipped record. Nil uses slog.Default().
//
// Outputs:
//
//	LoadResult - What was enabled, skipped and left unmatched.
//	error - Wraps ErrSelectionIO if the stream cannot be read.
func (r *Registry) Load(rd io.Reader, logger *slog.Logger) (LoadResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var res LoadResult
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		op, desc, reason := decodeRecord(text)
		if reason != "" {
			res.Skipped = append(res.Skipped, SkippedLine{Line: lineNo, Text: text, Reason: reason})
			logger.Warn("skipping selection record",
				slog.Int("line", lineNo),
				slog.String("reason", reason),
				slog.String("text", text),
			)
			continue
		}

		res.Records++
		n := r.Enable(op, desc)
		if n == 0 {
			res.Unmatched = append(res.Unmatched, text)
			logger.Debug("selection record matched nothing",
				slog.Int("line", lineNo),
				slog.String("op", op.Name()),
				slog.String("description", desc),
			)
			continue
		}
		res.Enabled += n
		r.Request(op)
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("%w: read: %v", ErrSelectionIO, err)
	}
	return res, nil
}

// decodeRecord splits one record, returning a non-empty reason if it is
// malformed.
func decodeRecord(text string) (Operation, string, string) {
	tag, desc, ok := strings.Cut(text, ":")
	if !ok {
		return 0, "", "missing ':' separator"
	}
	if len(tag) != 1 {
		return 0, "", fmt.Sprintf("tag %q is not a single letter", tag)
	}
	op, err := OperationForTag(tag[0])
	if err != nil {
		return 0, "", fmt.Sprintf("unknown tag %q", tag)
	}
	if desc == "" {
		return 0, "", "empty description"
	}
	return op, desc, ""
}

// Dump writes one record per registered entry of each of ops.
//
// Description:
//
//	Operations are written in fixed order regardless of the order of ops;
//	entries in registration order. Loading the output enables every entry
//	that was registered at dump time.
func (r *Registry) Dump(w io.Writer, ops []Operation) error {
	return r.dump(w, ops, false)
}

// DumpEnabled writes one record per enabled entry of each of ops.
//
// Loading the output into a registry with the same candidates re-selects
// exactly the entries that were enabled at dump time.
func (r *Registry) DumpEnabled(w io.Writer, ops []Operation) error {
	return r.dump(w, ops, true)
}

func (r *Registry) dump(w io.Writer, ops []Operation, enabledOnly bool) error {
	want := make(map[Operation]bool, len(ops))
	for _, op := range ops {
		want[op] = true
	}

	bw := bufio.NewWriter(w)
	for _, op := range Operations {
		if !want[op] {
			continue
		}
		for _, e := range r.Entries(op) {
			if enabledOnly && !e.Enabled {
				continue
			}
			if _, err := fmt.Fprintf(bw, "%c:%s\n", op.Tag(), e.Description); err != nil {
				return fmt.Errorf("%w: write: %v", ErrSelectionIO, err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: write: %v", ErrSelectionIO, err)
	}
	return nil
}

// LoadFile opens path and calls Load.
//
// Outputs:
//
//	error - Wraps ErrSelectionIO if the file cannot be opened or read.
func (r *Registry) LoadFile(path string, logger *slog.Logger) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("%w: can't open file %s: %v", ErrSelectionIO, path, err)
	}
	defer f.Close()
	return r.Load(f, logger)
}

// DumpFile creates path and calls Dump.
//
// Outputs:
//
//	error - Wraps ErrSelectionIO if the file cannot be created or written.
func (r *Registry) DumpFile(path string, ops []Operation) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: can't open file %s: %v", ErrSelectionIO, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %v", ErrSelectionIO, path, cerr)
		}
	}()
	return r.Dump(f, ops)
}

// IsSelectionIO reports whether err is a selection file I/O failure.
func IsSelectionIO(err error) bool {
	return errors.Is(err, ErrSelectionIO)
}
