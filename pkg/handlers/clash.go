package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/nuulab/ifcjobs/pkg/volume"
	"github.com/nuulab/ifcjobs/pkg/worker"
)

// ClashSet names one group of models to test against each other.
type ClashSet struct {
	Name string   `json:"name"`
	A    []string `json:"a"`
	B    []string `json:"b"`
}

// ClashRequest is the request schema for ifcclash jobs (spec §4.5).
type ClashRequest struct {
	ClashSets      []ClashSet `json:"clash_sets"`
	Tolerance      float64    `json:"tolerance"`
	OutputFilename string     `json:"output_filename"`
}

// Validate sanitizes every model filename named across all clash sets and
// the output filename, and rejects a request naming no sets or an empty
// set (spec §4.5, §8 invariant 10).
func (r *ClashRequest) Validate() error {
	out, err := volume.Sanitize(r.OutputFilename)
	if err != nil {
		return fmt.Errorf("output_filename: %w", err)
	}
	r.OutputFilename = out

	if len(r.ClashSets) == 0 {
		return fmt.Errorf("clash_sets: at least one set is required")
	}
	if r.Tolerance < 0 {
		return fmt.Errorf("tolerance: must not be negative")
	}

	for i := range r.ClashSets {
		set := &r.ClashSets[i]
		if set.Name == "" {
			return fmt.Errorf("clash_sets[%d].name: required", i)
		}
		if len(set.A)+len(set.B) == 0 {
			return fmt.Errorf("clash_sets[%d]: must name at least one model", i)
		}
		if err := sanitizeAll(set.A); err != nil {
			return fmt.Errorf("clash_sets[%d].a: %w", i, err)
		}
		if err := sanitizeAll(set.B); err != nil {
			return fmt.Errorf("clash_sets[%d].b: %w", i, err)
		}
	}
	return nil
}

// sanitizeAll sanitizes each filename in names in place.
func sanitizeAll(names []string) error {
	for i, name := range names {
		clean, err := volume.Sanitize(name)
		if err != nil {
			return err
		}
		names[i] = clean
	}
	return nil
}

// RegisterClash binds the "tasks.run_ifcclash_detection" handler.
func RegisterClash(r *worker.Registry, d Deps) {
	worker.Register(r, "tasks.run_ifcclash_detection", func(ctx context.Context, req ClashRequest) (any, error) {
		start := time.Now()
		for _, set := range req.ClashSets {
			for _, filename := range append(append([]string{}, set.A...), set.B...) {
				if _, err := d.requireInput(filename); err != nil {
					return nil, err
				}
			}
		}

		path, err := d.placeholderArtifact(ctx, "clash", req.OutputFilename, map[string]any{
			"transform": "ifcclash_detection",
			"tolerance": req.Tolerance,
			"set_count": len(req.ClashSets),
		})
		if err != nil {
			return nil, err
		}

		return Result{OutputFilename: req.OutputFilename, OutputPath: path, DurationMS: timed(start)}, nil
	})
}
