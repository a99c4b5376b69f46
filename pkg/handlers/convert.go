package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/nuulab/ifcjobs/pkg/volume"
	"github.com/nuulab/ifcjobs/pkg/worker"
)

// ConvertRequest is the request schema for the ifcconvert queue (spec §4.5).
type ConvertRequest struct {
	InputFilename  string `json:"input_filename"`
	OutputFilename string `json:"output_filename"`
}

// Validate sanitizes the request's filenames, run by the gateway before
// the job ever reaches the broker (spec §4.5 point 2, §7 "validation").
func (r *ConvertRequest) Validate() error {
	in, err := volume.Sanitize(r.InputFilename)
	if err != nil {
		return fmt.Errorf("input_filename: %w", err)
	}
	out, err := volume.Sanitize(r.OutputFilename)
	if err != nil {
		return fmt.Errorf("output_filename: %w", err)
	}
	r.InputFilename, r.OutputFilename = in, out
	return nil
}

// RegisterConvert binds the "tasks.run_ifcconvert" handler.
func RegisterConvert(r *worker.Registry, d Deps) {
	worker.Register(r, "tasks.run_ifcconvert", func(ctx context.Context, req ConvertRequest) (any, error) {
		start := time.Now()
		inputPath, err := d.requireInput(req.InputFilename)
		if err != nil {
			return nil, err
		}

		path, err := d.placeholderArtifact(ctx, "converted", req.OutputFilename, map[string]any{
			"source":      inputPath,
			"transform":   "ifcconvert",
			"output_name": req.OutputFilename,
		})
		if err != nil {
			return nil, err
		}

		return Result{OutputFilename: req.OutputFilename, OutputPath: path, DurationMS: timed(start)}, nil
	})
}
