package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nuulab/ifcjobs/pkg/broker"
	"github.com/nuulab/ifcjobs/pkg/codec"
	"github.com/nuulab/ifcjobs/pkg/metrics"
)

// enqueueHandler builds the generic per-kind enqueue endpoint: decode,
// validate, timeout-assign, encode, enqueue, return the job id (spec
// §4.5 points 2-5). The per-kind request is strict-decoded and sanitized
// before broker.New is ever called, so a malformed or unsafe request
// ("validation", spec §7) never reaches the broker (spec §7, §8 invariant
// 10, testable property 10).
func (s *Server) enqueueHandler(spec QueueSpec) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req := spec.NewRequest()
		if err := codec.StrictDecode(body, req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		job, err := broker.New(spec.Queue, spec.HandlerName, req, spec.Timeout)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := s.cfg.Broker.Enqueue(r.Context(), job); err != nil {
			s.logger.Error().Err(err).Str("queue", spec.Queue).Msg("enqueue failed")
			writeError(w, http.StatusServiceUnavailable, "broker unavailable")
			return
		}

		metrics.JobsEnqueued.WithLabelValues(spec.Queue).Inc()
		s.logger.Info().Str("job_id", job.ID).Str("queue", spec.Queue).Msg("job enqueued")
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
	})
}

// jobStatusResponse is the body returned by GET /jobs/{id}/status.
type jobStatusResponse struct {
	ID         string           `json:"id"`
	Status     broker.Status    `json:"status"`
	EnqueuedAt string           `json:"enqueued_at"`
	StartedAt  *string          `json:"started_at,omitempty"`
	EndedAt    *string          `json:"ended_at,omitempty"`
	Result     json.RawMessage  `json:"result,omitempty"`
	Error      *broker.JobError `json:"error,omitempty"`
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.cfg.Broker.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		writeError(w, http.StatusServiceUnavailable, "broker unavailable")
		return
	}
	if job.Status == broker.StatusUnknown {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	resp := jobStatusResponse{
		ID:         job.ID,
		Status:     job.Status,
		EnqueuedAt: job.EnqueuedAt.Format(rfc3339),
		Result:     job.Result,
		Error:      job.Error,
	}
	if job.StartedAt != nil {
		t := job.StartedAt.Format(rfc3339)
		resp.StartedAt = &t
	}
	if job.EndedAt != nil {
		t := job.EndedAt.Format(rfc3339)
		resp.EndedAt = &t
	}

	s.logger.Debug().Str("job_id", id).Str("status", string(job.Status)).Msg("status read")
	writeJSON(w, http.StatusOK, resp)
}

const rfc3339 = "2006-01-02T15:04:05.000Z07:00"

// handleJobEvents is a diagnostic supplement to /jobs/{id}/status: it
// surfaces the same status transitions in timeline form, so an operator
// can see e.g. that a job sat queued for a long stretch before starting,
// which the single-snapshot status endpoint can't show (SPEC_FULL §3).
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request, id string) {
	events, err := s.cfg.Broker.ListEvents(r.Context(), id)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		writeError(w, http.StatusServiceUnavailable, "broker unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "events": events})
}
