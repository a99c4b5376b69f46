// Package volume implements the shared-filesystem contract that gateway
// and worker processes use to exchange large artifacts without streaming
// them through the broker: three mounted roots, filename sanitization,
// and an atomic write-then-rename helper for publishing worker output.
package volume

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Roots are the three named mount points every gateway and worker process
// shares identically (spec C7). Defaults match the conventional Docker
// Compose / Kubernetes volume mounts; override via environment variables
// when wiring a process's config.
type Roots struct {
	Uploads  string // client-provided inputs, read by workers.
	Output   string // per-kind output directories, written by workers.
	Examples string // static sample files served read-only.
}

// DefaultRoots mirrors the hard-coded paths the legacy system used,
// now sourced from configuration rather than baked into the binary.
func DefaultRoots() Roots {
	return Roots{
		Uploads:  "/uploads",
		Output:   "/output",
		Examples: "/examples",
	}
}

// ErrUnsafeName is returned by Sanitize for any filename that attempts
// path traversal, an absolute path, or contains control characters.
var ErrUnsafeName = errors.New("volume: unsafe filename")

// Sanitize validates a client-supplied filename relative to a root
// (subdirectory segments are allowed, at any depth) and returns it
// cleaned. It rejects empty names, absolute paths, `..` segments that
// escape the root, null bytes, and control characters below 0x20 other
// than tab, matching the gateway's input discipline (spec §4.7).
func Sanitize(name string) (string, error) {
	if name == "" {
		return "", ErrUnsafeName
	}
	for _, r := range name {
		if r == 0 || (r < 0x20 && r != '\t') {
			return "", ErrUnsafeName
		}
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return "", ErrUnsafeName
	}

	cleaned := filepath.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../") {
		return "", ErrUnsafeName
	}
	if filepath.IsAbs(cleaned) {
		return "", ErrUnsafeName
	}
	return cleaned, nil
}

// UploadPath resolves a sanitized client filename against the uploads root.
func (r Roots) UploadPath(name string) (string, error) {
	clean, err := Sanitize(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.Uploads, clean), nil
}

// OutputDir returns the per-kind output directory, e.g. "clash" -> /output/clash.
func (r Roots) OutputDir(kind string) string {
	return filepath.Join(r.Output, kind)
}

// OutputPath resolves a sanitized output filename under a kind's directory.
func (r Roots) OutputPath(kind, name string) (string, error) {
	clean, err := Sanitize(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.OutputDir(kind), clean), nil
}

// ExamplePath resolves a sanitized filename against the read-only examples root.
func (r Roots) ExamplePath(name string) (string, error) {
	clean, err := Sanitize(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.Examples, clean), nil
}

// WriteAtomic writes data to path by first writing to a sibling temporary
// file and renaming it into place, so a concurrent reader (the gateway,
// serving a download token) never observes a partially written file
// (spec §5, shared-resource policy).
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("volume: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("volume: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("volume: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("volume: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("volume: close: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("volume: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("volume: rename: %w", err)
	}
	return nil
}
