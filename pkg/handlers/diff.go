package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/nuulab/ifcjobs/pkg/volume"
	"github.com/nuulab/ifcjobs/pkg/worker"
)

// DiffRequest is the request schema for ifcdiff jobs (spec §4.5).
type DiffRequest struct {
	OldFile        string `json:"old_file"`
	NewFile        string `json:"new_file"`
	OutputFilename string `json:"output_filename"`
	FilterGeometry bool   `json:"filter_geometry"`
	FilterProps    bool   `json:"filter_properties"`
}

// Validate sanitizes the request's filenames.
func (r *DiffRequest) Validate() error {
	oldFile, err := volume.Sanitize(r.OldFile)
	if err != nil {
		return fmt.Errorf("old_file: %w", err)
	}
	newFile, err := volume.Sanitize(r.NewFile)
	if err != nil {
		return fmt.Errorf("new_file: %w", err)
	}
	out, err := volume.Sanitize(r.OutputFilename)
	if err != nil {
		return fmt.Errorf("output_filename: %w", err)
	}
	r.OldFile, r.NewFile, r.OutputFilename = oldFile, newFile, out
	return nil
}

// RegisterDiff binds the "tasks.run_ifcdiff" handler.
func RegisterDiff(r *worker.Registry, d Deps) {
	worker.Register(r, "tasks.run_ifcdiff", func(ctx context.Context, req DiffRequest) (any, error) {
		start := time.Now()
		if _, err := d.requireInput(req.OldFile); err != nil {
			return nil, err
		}
		if _, err := d.requireInput(req.NewFile); err != nil {
			return nil, err
		}

		path, err := d.placeholderArtifact(ctx, "diff", req.OutputFilename, map[string]any{
			"transform":       "ifcdiff",
			"old_file":        req.OldFile,
			"new_file":        req.NewFile,
			"filter_geometry": req.FilterGeometry,
			"filter_props":    req.FilterProps,
		})
		if err != nil {
			return nil, err
		}

		return Result{OutputFilename: req.OutputFilename, OutputPath: path, DurationMS: timed(start)}, nil
	})
}
