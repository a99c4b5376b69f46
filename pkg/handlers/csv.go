package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/nuulab/ifcjobs/pkg/volume"
	"github.com/nuulab/ifcjobs/pkg/worker"
)

// CSVExportRequest is the request schema for ifccsv export jobs (spec §4.5).
type CSVExportRequest struct {
	Filename       string   `json:"filename"`
	OutputFilename string   `json:"output_filename"`
	Format         string   `json:"format"`
	Delimiter      string   `json:"delimiter"`
	NullValue      string   `json:"null_value"`
	Query          string   `json:"query"`
	Attributes     []string `json:"attributes"`
}

var validCSVFormats = map[string]bool{"csv": true, "xlsx": true, "ods": true}

// Validate sanitizes the request's filenames and, if set, checks Format
// against the kinds the export handler knows how to produce (spec §4.5).
func (r *CSVExportRequest) Validate() error {
	in, err := volume.Sanitize(r.Filename)
	if err != nil {
		return fmt.Errorf("filename: %w", err)
	}
	out, err := volume.Sanitize(r.OutputFilename)
	if err != nil {
		return fmt.Errorf("output_filename: %w", err)
	}
	if r.Format != "" && !validCSVFormats[r.Format] {
		return fmt.Errorf("format: must be one of csv, xlsx, ods, got %q", r.Format)
	}
	r.Filename, r.OutputFilename = in, out
	return nil
}

// CSVImportRequest is the request schema for ifccsv import jobs (spec §4.5).
type CSVImportRequest struct {
	IFCFilename    string `json:"ifc_filename"`
	CSVFilename    string `json:"csv_filename"`
	OutputFilename string `json:"output_filename,omitempty"`
}

// Validate sanitizes the request's filenames. OutputFilename is optional
// (the import handler falls back to IFCFilename) so it is only sanitized
// when present.
func (r *CSVImportRequest) Validate() error {
	ifcName, err := volume.Sanitize(r.IFCFilename)
	if err != nil {
		return fmt.Errorf("ifc_filename: %w", err)
	}
	csvName, err := volume.Sanitize(r.CSVFilename)
	if err != nil {
		return fmt.Errorf("csv_filename: %w", err)
	}
	r.IFCFilename, r.CSVFilename = ifcName, csvName

	if r.OutputFilename != "" {
		out, err := volume.Sanitize(r.OutputFilename)
		if err != nil {
			return fmt.Errorf("output_filename: %w", err)
		}
		r.OutputFilename = out
	}
	return nil
}

// RegisterCSV binds the ifccsv export and import handlers.
func RegisterCSV(r *worker.Registry, d Deps) {
	worker.Register(r, "tasks.run_ifccsv_export", func(ctx context.Context, req CSVExportRequest) (any, error) {
		start := time.Now()
		if _, err := d.requireInput(req.Filename); err != nil {
			return nil, err
		}

		format := req.Format
		if format == "" {
			format = "csv"
		}

		path, err := d.placeholderArtifact(ctx, "csv", req.OutputFilename, map[string]any{
			"source":     req.Filename,
			"transform":  "ifccsv_export",
			"format":     format,
			"delimiter":  req.Delimiter,
			"null_value": req.NullValue,
			"query":      req.Query,
			"attributes": req.Attributes,
		})
		if err != nil {
			return nil, err
		}

		return Result{OutputFilename: req.OutputFilename, OutputPath: path, DurationMS: timed(start)}, nil
	})

	worker.Register(r, "tasks.run_ifccsv_import", func(ctx context.Context, req CSVImportRequest) (any, error) {
		start := time.Now()
		if _, err := d.requireInput(req.IFCFilename); err != nil {
			return nil, err
		}
		if _, err := d.requireInput(req.CSVFilename); err != nil {
			return nil, err
		}

		outputFilename := req.OutputFilename
		if outputFilename == "" {
			outputFilename = req.IFCFilename
		}

		path, err := d.placeholderArtifact(ctx, "csv", outputFilename, map[string]any{
			"ifc_source": req.IFCFilename,
			"csv_source": req.CSVFilename,
			"transform":  "ifccsv_import",
		})
		if err != nil {
			return nil, err
		}

		return Result{OutputFilename: outputFilename, OutputPath: path, DurationMS: timed(start)}, nil
	})
}
