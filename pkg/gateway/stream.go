package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nuulab/ifcjobs/pkg/broker"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The gateway is consumed by first-party clients behind the same
	// admission check as every other endpoint; no cross-origin policy
	// beyond that is implied here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const streamPollInterval = 500 * time.Millisecond

// handleJobStream is a supplement to the polling /jobs/{id}/status
// endpoint: it pushes the job's status on a short interval until the job
// reaches a terminal state or the client disconnects, saving a client
// that only cares about "is it done yet" from busy-polling.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request, id string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	var lastStatus broker.Status
	for {
		job, err := s.cfg.Broker.Get(r.Context(), id)
		if err != nil {
			return
		}

		if job.Status != lastStatus {
			lastStatus = job.Status
			if err := conn.WriteJSON(streamEvent{ID: id, Status: job.Status, Result: job.Result, Error: job.Error}); err != nil {
				return
			}
		}
		if job.Status.Terminal() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

type streamEvent struct {
	ID     string           `json:"id"`
	Status broker.Status    `json:"status"`
	Result json.RawMessage  `json:"result,omitempty"`
	Error  *broker.JobError `json:"error,omitempty"`
}
