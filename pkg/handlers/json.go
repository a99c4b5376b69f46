package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/nuulab/ifcjobs/pkg/volume"
	"github.com/nuulab/ifcjobs/pkg/worker"
)

// JSONRequest is the request schema for ifc2json jobs (spec §4.5).
type JSONRequest struct {
	Filename       string `json:"filename"`
	OutputFilename string `json:"output_filename"`
}

// Validate sanitizes the request's filenames.
func (r *JSONRequest) Validate() error {
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

// RegisterJSON binds the "tasks.run_ifc2json" handler.
func RegisterJSON(r *worker.Registry, d Deps) {
	worker.Register(r, "tasks.run_ifc2json", func(ctx context.Context, req JSONRequest) (any, error) {
		start := time.Now()
		if _, err := d.requireInput(req.Filename); err != nil {
			return nil, err
		}

		path, err := d.placeholderArtifact(ctx, "json", req.OutputFilename, map[string]any{
			"transform": "ifc2json",
			"source":    req.Filename,
		})
		if err != nil {
			return nil, err
		}

		return Result{OutputFilename: req.OutputFilename, OutputPath: path, DurationMS: timed(start)}, nil
	})
}
