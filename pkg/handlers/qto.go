package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/nuulab/ifcjobs/pkg/volume"
	"github.com/nuulab/ifcjobs/pkg/worker"
)

// QtoRequest is the request schema for ifc5d (quantity take-off) jobs,
// also reachable at the legacy /calculate-qtos path (spec §4.5, §4 decision 3).
type QtoRequest struct {
	Filename       string `json:"filename"`
	OutputFilename string `json:"output_filename"`
}

// Validate sanitizes the request's filenames.
func (r *QtoRequest) Validate() error {
	in, err := volume.Sanitize(r.Filename)
	if err != nil {
		return fmt.Errorf("filename: %w", err)
	}
	out, err := volume.Sanitize(r.OutputFilename)
	if err != nil {
		return fmt.Errorf("output_filename: %w", err)
	}
	r.Filename, r.OutputFilename = in, out
	return nil
}

// RegisterQto binds the "tasks.run_ifc5d_qto" handler.
func RegisterQto(r *worker.Registry, d Deps) {
	worker.Register(r, "tasks.run_ifc5d_qto", func(ctx context.Context, req QtoRequest) (any, error) {
		start := time.Now()
		if _, err := d.requireInput(req.Filename); err != nil {
			return nil, err
		}

		path, err := d.placeholderArtifact(ctx, "qto", req.OutputFilename, map[string]any{
			"transform": "ifc5d_qto",
			"source":    req.Filename,
		})
		if err != nil {
			return nil, err
		}

		return Result{OutputFilename: req.OutputFilename, OutputPath: path, DurationMS: timed(start)}, nil
	})
}
