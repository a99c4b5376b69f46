package gateway

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nuulab/ifcjobs/pkg/metrics"
	"github.com/nuulab/ifcjobs/pkg/token"
)

type createDownloadLinkRequest struct {
	FilePath string `json:"file_path"`
}

type createDownloadLinkResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// handleCreateDownloadLink mints a token scoped to one artifact path
// under an output directory (spec C6). file_path is interpreted as
// "<kind>/<filename>" relative to the output root.
func (s *Server) handleCreateDownloadLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createDownloadLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, filename, ok := splitKindPath(req.FilePath)
	if !ok {
		writeError(w, http.StatusBadRequest, "file_path must be <kind>/<filename>")
		return
	}

	path, err := s.cfg.Roots.OutputPath(kind, filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsafe file path")
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	id, err := s.cfg.Tokens.Mint(r.Context(), token.Grant{Path: path, Kind: kind})
	if err != nil {
		s.logger.Error().Err(err).Msg("mint failed")
		writeError(w, http.StatusInternalServerError, "failed to mint token")
		return
	}

	metrics.TokensMinted.WithLabelValues(kind).Inc()
	expiresAt := time.Now().Add(s.cfg.Tokens.TTL()).Format(rfc3339)
	writeJSON(w, http.StatusOK, createDownloadLinkResponse{Token: id, ExpiresAt: expiresAt})
}

// handleDownload redeems a token and streams the bound artifact.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	const prefix = "/download/"
	if len(r.URL.Path) <= len(prefix) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id := r.URL.Path[len(prefix):]

	grant, err := s.cfg.Tokens.Redeem(r.Context(), id)
	if err != nil {
		if errors.Is(err, token.ErrInvalid) {
			metrics.TokensRedeemed.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusGone, "invalid or expired token")
			return
		}
		writeError(w, http.StatusInternalServerError, "token lookup failed")
		return
	}

	f, err := os.Open(grant.Path)
	if err != nil {
		metrics.TokensRedeemed.WithLabelValues("missing_artifact").Inc()
		writeError(w, http.StatusNotFound, "artifact no longer available")
		return
	}
	defer f.Close()
	metrics.TokensRedeemed.WithLabelValues("ok").Inc()

	ctype := mime.TypeByExtension(filepath.Ext(grant.Path))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(grant.Path)+`"`)

	modTime := time.Now()
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	http.ServeContent(w, r, filepath.Base(grant.Path), modTime, f)
}

func splitKindPath(filePath string) (kind, filename string, ok bool) {
	filePath = strings.TrimPrefix(filePath, "/")
	idx := strings.Index(filePath, "/")
	if idx <= 0 || idx == len(filePath)-1 {
		return "", "", false
	}
	return filePath[:idx], filePath[idx+1:], true
}
