package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/nuulab/ifcjobs/pkg/volume"
	"github.com/nuulab/ifcjobs/pkg/worker"
)

// PatchRequest is the request schema for ifcpatch execute jobs (spec §4.5).
type PatchRequest struct {
	InputFile  string `json:"input_file"`
	OutputFile string `json:"output_file"`
	Recipe     string `json:"recipe"`
	Arguments  []any  `json:"arguments"`
	UseCustom  bool   `json:"use_custom"`
}

// Validate sanitizes the request's filenames and requires a recipe name.
func (r *PatchRequest) Validate() error {
	in, err := volume.Sanitize(r.InputFile)
	if err != nil {
		return fmt.Errorf("input_file: %w", err)
	}
	out, err := volume.Sanitize(r.OutputFile)
	if err != nil {
		return fmt.Errorf("output_file: %w", err)
	}
	if r.Recipe == "" {
		return fmt.Errorf("recipe: required")
	}
	r.InputFile, r.OutputFile = in, out
	return nil
}

// PatchListRequest is the request schema for the synchronous-style
// patch-list job (spec §4.5 "Patch-list").
type PatchListRequest struct {
	IncludeBuiltin bool `json:"include_builtin"`
	IncludeCustom  bool `json:"include_custom"`
}

// PatchListResult is the inline response shape the gateway's patch-list
// endpoint hands back once the worker's result arrives.
type PatchListResult struct {
	Recipes      []string `json:"recipes"`
	BuiltinCount int      `json:"builtin_count"`
	CustomCount  int      `json:"custom_count"`
	TotalCount   int      `json:"total_count"`
}

// RegisterPatch binds "tasks.run_ifcpatch" and "tasks.list_ifcpatch_recipes".
func RegisterPatch(r *worker.Registry, d Deps, recipes *RecipeRegistry) {
	worker.Register(r, "tasks.run_ifcpatch", func(ctx context.Context, req PatchRequest) (any, error) {
		start := time.Now()
		if _, err := d.requireInput(req.InputFile); err != nil {
			return nil, err
		}

		builtin, custom := recipes.Counts()
		found := false
		for _, rec := range recipes.List(!req.UseCustom, req.UseCustom) {
			if rec.Name == req.Recipe {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("handlers: unknown patch recipe %q (have %d builtin, %d custom)", req.Recipe, builtin, custom)
		}

		path, err := d.placeholderArtifact(ctx, "patch", req.OutputFile, map[string]any{
			"transform":  "ifcpatch",
			"source":     req.InputFile,
			"recipe":     req.Recipe,
			"use_custom": req.UseCustom,
			"arguments":  req.Arguments,
		})
		if err != nil {
			return nil, err
		}

		return Result{OutputFilename: req.OutputFile, OutputPath: path, DurationMS: timed(start)}, nil
	})

	worker.Register(r, "tasks.list_ifcpatch_recipes", func(ctx context.Context, req PatchListRequest) (any, error) {
		recs := recipes.List(req.IncludeBuiltin, req.IncludeCustom)
		builtin, custom := recipes.Counts()

		names := make([]string, 0, len(recs))
		for _, rec := range recs {
			names = append(names, rec.Name)
		}

		return PatchListResult{
			Recipes:      names,
			BuiltinCount: builtin,
			CustomCount:  custom,
			TotalCount:   builtin + custom,
		}, nil
	})
}
