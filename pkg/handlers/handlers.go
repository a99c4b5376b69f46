// Package handlers implements the worker-side transformation handlers for
// each IFC job kind. The actual file-format transformations (IFC parsing,
// geometry clash detection, CSV/Tester/Diff/Qto computation) are out of
// scope for the job-orchestration core this module implements; each
// handler here is an illustrative stand-in that performs the real I/O
// contract -- reading declared inputs from the shared volume, writing a
// placeholder artifact atomically, and returning a typed result -- so the
// surrounding runtime, registry, and gateway can be exercised end to end.
// A production deployment swaps the body of each handler for a call into
// the real transformation engine without touching its registration or
// request/result shape.
package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nuulab/ifcjobs/pkg/volume"
)

// Result is the common shape returned by every handler that produces a
// single output artifact. It satisfies worker.ResultWithOutputs so the
// runtime fsyncs the file before publishing the finished status.
type Result struct {
	OutputFilename string `json:"output_filename"`
	OutputPath     string `json:"output_path"`
	DurationMS     int64  `json:"duration_ms"`
}

func (r Result) OutputPaths() []string { return []string{r.OutputPath} }

// Deps bundles the collaborators every handler in this package needs.
// One Deps is constructed per worker process and closed over by every
// Register call for that process's queue.
type Deps struct {
	Roots volume.Roots
}

// requireInput resolves and stats a declared input filename, failing
// clearly if the client-named file never arrived under the uploads root.
func (d Deps) requireInput(filename string) (string, error) {
	path, err := d.Roots.UploadPath(filename)
	if err != nil {
		return "", fmt.Errorf("handlers: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("handlers: input %q not found under uploads root: %w", filename, err)
	}
	return path, nil
}

// placeholderArtifact writes a small marker file standing in for the real
// transformation output, atomically, under the given kind's output
// directory.
func (d Deps) placeholderArtifact(ctx context.Context, kind, outputFilename string, note map[string]any) (string, error) {
	path, err := d.Roots.OutputPath(kind, outputFilename)
	if err != nil {
		return "", fmt.Errorf("handlers: %w", err)
	}

	body, err := marshalNote(note)
	if err != nil {
		return "", err
	}
	if err := volume.WriteAtomic(path, body, 0o644); err != nil {
		return "", fmt.Errorf("handlers: writing %s: %w", kind, err)
	}
	return path, nil
}

func timed(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
