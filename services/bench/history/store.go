// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/perflab/services/bench/registry"
	"github.com/AleutianAI/perflab/services/bench/runner"
	"github.com/AleutianAI/perflab/services/bench/scoring"
)

var (
	// ErrNotFound indicates no run with the requested ID is stored.
	ErrNotFound = errors.New("run not found")

	// ErrInvalidID indicates a run ID that is not a UUID.
	ErrInvalidID = errors.New("invalid run id")
)

var (
	runPrefix = []byte("run/")
	idPrefix  = []byte("id/")
)

// Summary is the compact view of a stored run.
type Summary struct {
	ID        string                    `json:"id"`
	StartedAt time.Time                 `json:"started_at"`
	SkipCheck bool                      `json:"skip_check"`
	Best      map[string]scoring.Record `json:"best"`
}

// Summarize builds the summary of a run.
func Summarize(res *runner.Result) Summary {
	s := Summary{
		ID:        res.ID,
		StartedAt: res.StartedAt,
		SkipCheck: res.SkipCheck,
		Best:      make(map[string]scoring.Record, len(res.Ops)),
	}
	for _, op := range res.Ops {
		s.Best[op.Op.Name()] = op.Best
	}
	return s
}

// Delta is the change of one operation's best score between two runs.
type Delta struct {
	Op       registry.Operation `json:"op"`
	Previous scoring.Record     `json:"previous"`
	Current  scoring.Record     `json:"current"`
	Change   float64            `json:"change"`
}

// Compare returns the best-score change of every operation present in both
// runs, in the fixed operation order.
func Compare(previous, current Summary) []Delta {
	var out []Delta
	for _, op := range registry.Operations {
		prev, okPrev := previous.Best[op.Name()]
		cur, okCur := current.Best[op.Name()]
		if !okPrev || !okCur {
			continue
		}
		out = append(out, Delta{Op: op, Previous: prev, Current: cur, Change: cur.Mean - prev.Mean})
	}
	return out
}

// Store persists runs.
//
// Thread Safety:
//
//	Safe for concurrent use; BadgerDB serializes transactions.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	path   string
}

// Open opens the history store.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, path: cfg.Path}, nil
}

// Close runs one value-log GC pass and closes the database.
func (s *Store) Close() error {
	if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
		s.logger.Warn("history value log GC error", slog.String("error", err.Error()))
	}
	return s.db.Close()
}

// Path returns the database path, or empty string for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// withTxn executes fn within a read-write transaction and commits if fn
// returns nil.
func (s *Store) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := s.db.NewTransaction(true)
	defer txn.Discard()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// withReadTxn executes fn within a read-only transaction.
func (s *Store) withReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := s.db.NewTransaction(false)
	defer txn.Discard()
	return fn(txn)
}

func runKey(res *runner.Result) []byte {
	return fmt.Appendf(nil, "%s%020d/%s", runPrefix, res.StartedAt.UnixNano(), res.ID)
}

func idKey(id string) []byte {
	return append(append([]byte(nil), idPrefix...), id...)
}

// Save stores a finished run.
//
// Description:
//
//	The run is stored under a chronological key and indexed by ID. Saving
//	the same ID twice replaces the index entry.
//
// Inputs:
//
//	ctx - Checked before the transaction starts.
//	res - The run. ID must be a UUID.
//
// Outputs:
//
//	error - ErrInvalidID, an encoding error or a database error.
func (s *Store) Save(ctx context.Context, res *runner.Result) error {
	if _, err := uuid.Parse(res.ID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, res.ID)
	}
	value, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", res.ID, err)
	}

	key := runKey(res)
	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(idKey(res.ID), key)
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", res.ID, err)
	}
	s.logger.Debug("run saved", slog.String("run_id", res.ID), slog.Int("bytes", len(value)))
	return nil
}

// Get loads a run by ID.
func (s *Store) Get(ctx context.Context, id string) (*runner.Result, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	var res runner.Result
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &res)
		})
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// List returns up to limit run summaries, newest first. A non-positive
// limit returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	var out []Summary
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = runPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration seeks to the last key with the prefix
		seek := append(append([]byte(nil), runPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(runPrefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var res runner.Result
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &res)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, Summarize(&res))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Previous returns the newest run stored before the run with ID id, or
// ErrNotFound if there is none.
func (s *Store) Previous(ctx context.Context, id string) (Summary, error) {
	var (
		out   Summary
		found bool
	)
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = runPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(key); it.ValidForPrefix(runPrefix); it.Next() {
			if bytes.Equal(it.Item().Key(), key) {
				continue
			}
			var res runner.Result
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &res)
			}); err != nil {
				return err
			}
			out, found = Summarize(&res), true
			return nil
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	if !found {
		return Summary{}, fmt.Errorf("%w: no run before %s", ErrNotFound, id)
	}
	return out, nil
}
