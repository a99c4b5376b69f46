package gateway

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nuulab/ifcjobs/internal/httpclient"
	"github.com/nuulab/ifcjobs/pkg/volume"
)

const maxUploadBytes = 512 << 20 // 512 MiB, generous for IFC models.

// handleUpload accepts a multipart file upload under /upload/{kind} and
// stores it under the shared uploads root, sanitizing the client-provided
// filename (spec §4.7).
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	clean, err := volume.Sanitize(header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsafe filename")
		return
	}

	path := filepath.Join(s.cfg.Roots.Uploads, clean)
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if err := volume.WriteAtomic(path, data, 0o644); err != nil {
		s.logger.Error().Err(err).Msg("upload write failed")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	s.logger.Info().Str("filename", clean).Int("bytes", len(data)).Msg("upload stored")
	writeJSON(w, http.StatusOK, map[string]string{"filename": clean})
}

type downloadFromURLRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// handleDownloadFromURL fetches a remote file (via the resilient retrying
// HTTP client) and stores it under the uploads root so a subsequent
// enqueue can reference it by filename.
func (s *Server) handleDownloadFromURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req downloadFromURLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeError(w, http.StatusBadRequest, "url must be http(s)")
		return
	}

	clean, err := volume.Sanitize(req.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsafe filename")
		return
	}

	fetcher := httpclient.NewArtifactFetcher(httpclient.DefaultFetchConfig())
	resp, err := fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadGateway, "fetch failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("remote returned %d", resp.StatusCode))
		return
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to read remote body")
		return
	}

	path := filepath.Join(s.cfg.Roots.Uploads, clean)
	if err := volume.WriteAtomic(path, data, 0o644); err != nil {
		s.logger.Error().Err(err).Msg("download-from-url write failed")
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	s.logger.Info().Str("filename", clean).Str("source", req.URL).Msg("fetched remote file")
	writeJSON(w, http.StatusOK, map[string]string{"filename": clean})
}

// handleListDirectories lists the uploads root and each per-kind output
// directory, giving a client enough to build a file picker.
func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	listing := map[string][]string{}

	listing["uploads"] = listNames(s.cfg.Roots.Uploads)
	listing["examples"] = listNames(s.cfg.Roots.Examples)
	for _, kind := range outputKinds {
		listing["output/"+kind] = listNames(s.cfg.Roots.OutputDir(kind))
	}

	writeJSON(w, http.StatusOK, listing)
}

var outputKinds = []string{"converted", "csv", "clash", "tester", "diff", "qto", "json", "patch"}

func listNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []string{}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
