// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/AleutianAI/perflab/services/bench/report"
	"github.com/AleutianAI/perflab/services/bench/runner"
)

// ErrGCSConfig indicates a missing bucket name.
var ErrGCSConfig = errors.New("gcs export requires a bucket")

// GCSConfig locates the bucket runs are archived to.
type GCSConfig struct {
	Bucket string `yaml:"bucket" json:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix"`

	// CredentialsFile is a service account key; application default
	// credentials are used when empty.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
}

type objectWriterFunc func(ctx context.Context, name string) io.WriteCloser

// GCSSink archives each run as one JSON object.
type GCSSink struct {
	client *storage.Client
	prefix string
	open   objectWriterFunc
}

// NewGCSSink creates a storage client for cfg.Bucket.
func NewGCSSink(ctx context.Context, cfg GCSConfig) (*GCSSink, error) {
	if cfg.Bucket == "" {
		return nil, ErrGCSConfig
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	bucket := client.Bucket(cfg.Bucket)
	return &GCSSink{
		client: client,
		prefix: cfg.Prefix,
		open: func(ctx context.Context, name string) io.WriteCloser {
			w := bucket.Object(name).NewWriter(ctx)
			w.ContentType = "application/json"
			w.CacheControl = "no-cache, no-store, must-revalidate"
			return w
		},
	}, nil
}

// ObjectName returns the object a run is archived under:
// <prefix>/<yyyy>/<mm>/<dd>/<run id>.json.
func ObjectName(prefix string, res *runner.Result) string {
	day := res.StartedAt.UTC().Format("2006/01/02")
	return path.Join(prefix, day, res.ID+".json")
}

// Export uploads the run.
func (s *GCSSink) Export(ctx context.Context, res *runner.Result) error {
	var buf bytes.Buffer
	if err := report.Encode(&buf, res); err != nil {
		return err
	}

	name := ObjectName(s.prefix, res)
	w := s.open(ctx, name)
	if _, err := io.Copy(w, &buf); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to upload run %s to %s: %w", res.ID, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", name, err)
	}
	return nil
}

// Close closes the storage client.
func (s *GCSSink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
