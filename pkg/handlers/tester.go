package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/nuulab/ifcjobs/pkg/volume"
	"github.com/nuulab/ifcjobs/pkg/worker"
)

// TesterRequest is the request schema for ifctester jobs (spec §4.5).
type TesterRequest struct {
	IFCFilename    string `json:"ifc_filename"`
	IDSFilename    string `json:"ids_filename"`
	OutputFilename string `json:"output_filename"`
	ReportType     string `json:"report_type"`
}

// Validate sanitizes the request's filenames.
func (r *TesterRequest) Validate() error {
	ifcName, err := volume.Sanitize(r.IFCFilename)
	if err != nil {
		return fmt.Errorf("ifc_filename: %w", err)
	}
	idsName, err := volume.Sanitize(r.IDSFilename)
	if err != nil {
		return fmt.Errorf("ids_filename: %w", err)
	}
	out, err := volume.Sanitize(r.OutputFilename)
	if err != nil {
		return fmt.Errorf("output_filename: %w", err)
	}
	r.IFCFilename, r.IDSFilename, r.OutputFilename = ifcName, idsName, out
	return nil
}

// RegisterTester binds the "tasks.run_ifctester_validation" handler.
func RegisterTester(r *worker.Registry, d Deps) {
	worker.Register(r, "tasks.run_ifctester_validation", func(ctx context.Context, req TesterRequest) (any, error) {
		start := time.Now()
		if _, err := d.requireInput(req.IFCFilename); err != nil {
			return nil, err
		}
		if _, err := d.requireInput(req.IDSFilename); err != nil {
			return nil, err
		}

		reportType := req.ReportType
		if reportType == "" {
			reportType = "html"
		}

		path, err := d.placeholderArtifact(ctx, "tester", req.OutputFilename, map[string]any{
			"transform":   "ifctester_validation",
			"ifc_source":  req.IFCFilename,
			"ids_source":  req.IDSFilename,
			"report_type": reportType,
		})
		if err != nil {
			return nil, err
		}

		return Result{OutputFilename: req.OutputFilename, OutputPath: path, DurationMS: timed(start)}, nil
	})
}
