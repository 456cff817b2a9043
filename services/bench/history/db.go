// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history persists finished benchmark runs in an embedded BadgerDB
// so later runs can be compared against earlier ones.
//
// Key layout:
//
//	run/<20-digit unix nanos>/<run id>  → JSON-encoded runner.Result
//	id/<run id>                         → the run/ key above
//
// Keys under run/ sort chronologically, so List iterates newest first with
// a reverse iterator.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package history

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the history database.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string `yaml:"path" json:"path"`

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool `yaml:"in_memory" json:"in_memory"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`

	// Logger receives BadgerDB's internal logging.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns a persistent configuration under the user's home
// directory.
func DefaultConfig() Config {
	path := filepath.Join(".perflab", "history")
	if home, err := os.UserHomeDir(); err == nil {
		path = filepath.Join(home, path)
	}
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// openDB opens a BadgerDB instance with the given configuration.
//
// Description:
//
//	Opens the database at the configured path, or in memory if InMemory
//	is true. Creates the directory if it doesn't exist.
//
// Inputs:
//
//	cfg - Database configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*badger.DB - The opened database. Caller must call Close() when done.
//	error - Non-nil if path is invalid or database cannot be opened.
func openDB(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}
