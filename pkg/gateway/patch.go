package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nuulab/ifcjobs/pkg/broker"
)

var errPatchListFailed = errors.New("gateway: patch-list job did not finish successfully")

func decodeResult(raw json.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}

type patchListRequest struct {
	IncludeBuiltin bool `json:"include_builtin"`
	IncludeCustom  bool `json:"include_custom"`
}

// handlePatchListRecipes enqueues a recipe-list job on the patch queue
// and blocks up to PatchListWait polling the broker for its result,
// returning it inline rather than a job id (spec §4.5 "Patch-list",
// §5 "synchronous-style" endpoint). If the patch worker hasn't produced
// a result within the wait budget, it returns 408.
func (s *Server) handlePatchListRecipes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req patchListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := broker.New("ifcpatch", "tasks.list_ifcpatch_recipes", req, 30*time.Second)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.cfg.Broker.Enqueue(r.Context(), job); err != nil {
		writeError(w, http.StatusServiceUnavailable, "broker unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.PatchListWait)
	defer cancel()

	result, err := s.pollForResult(ctx, job.ID)
	if err != nil {
		writeError(w, http.StatusRequestTimeout, "patch worker did not respond in time")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) pollForResult(ctx context.Context, jobID string) (interface{}, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, err := s.cfg.Broker.Get(ctx, jobID)
		if err == nil && job.Status.Terminal() {
			if job.Status == broker.StatusFinished {
				var result map[string]any
				if decodeErr := decodeResult(job.Result, &result); decodeErr == nil {
					return result, nil
				}
			}
			return nil, errPatchListFailed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
