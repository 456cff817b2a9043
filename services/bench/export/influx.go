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
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/perflab/services/bench/runner"
)

// ErrInfluxConfig indicates an incomplete InfluxDB configuration.
var ErrInfluxConfig = errors.New("influxdb export requires url, org and bucket")

// InfluxConfig locates the InfluxDB bucket runs are written to.
type InfluxConfig struct {
	URL    string `yaml:"url" json:"url"`
	Token  string `yaml:"-" json:"-"`
	Org    string `yaml:"org" json:"org"`
	Bucket string `yaml:"bucket" json:"bucket"`
}

// InfluxConfigFromEnv fills unset fields from INFLUXDB_URL, INFLUXDB_TOKEN,
// INFLUXDB_ORG and INFLUXDB_BUCKET.
func InfluxConfigFromEnv(cfg InfluxConfig) InfluxConfig {
	if cfg.URL == "" {
		cfg.URL = os.Getenv("INFLUXDB_URL")
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("INFLUXDB_TOKEN")
	}
	if cfg.Org == "" {
		cfg.Org = os.Getenv("INFLUXDB_ORG")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = os.Getenv("INFLUXDB_BUCKET")
	}
	return cfg
}

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes runs as InfluxDB points.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI pointWriter
}

// NewInfluxSink connects to InfluxDB. The connection is not probed until
// the first write.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, ErrInfluxConfig
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

// Export writes every point of the run in one blocking batch.
func (s *InfluxSink) Export(ctx context.Context, res *runner.Result) error {
	points := Points(res)
	if len(points) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points for run %s: %w", len(points), res.ID, err)
	}
	return nil
}

// Close closes the client.
func (s *InfluxSink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// Points converts a run into InfluxDB points.
//
// Description:
//
//	perflab_cpe      one per measured dimension of a scored candidate
//	                 tags op, candidate, dim, run_id; fields cpe,
//	                 baseline, speedup
//	perflab_score    one per scored candidate; field mean
//	perflab_best     one per operation; fields mean, candidate
//
// Every point is stamped with the run's finish time.
func Points(res *runner.Result) []*write.Point {
	var points []*write.Point
	at := res.FinishedAt
	for _, op := range res.Ops {
		for _, e := range op.Entries {
			if e.Score == nil {
				continue
			}
			for i, dim := range e.Score.Dims {
				points = append(points, influxdb2.NewPointWithMeasurement("perflab_cpe").
					AddTag("op", op.Op.Name()).
					AddTag("candidate", e.Description).
					AddTag("dim", strconv.Itoa(dim)).
					AddTag("run_id", res.ID).
					AddField("cpe", e.Score.CPEs[i]).
					AddField("baseline", e.Score.Baselines[i]).
					AddField("speedup", e.Score.Ratios[i]).
					SetTime(at))
			}
			points = append(points, influxdb2.NewPoint(
				"perflab_score",
				map[string]string{"op": op.Op.Name(), "candidate": e.Description, "run_id": res.ID},
				map[string]interface{}{"mean": e.Score.Mean},
				at,
			))
		}
		points = append(points, influxdb2.NewPoint(
			"perflab_best",
			map[string]string{"op": op.Op.Name(), "run_id": res.ID},
			map[string]interface{}{"mean": op.Best.Mean, "candidate": op.Best.Description},
			at,
		))
	}
	return points
}
