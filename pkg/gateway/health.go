package gateway

import (
	"net/http"
	"time"

	"github.com/nuulab/ifcjobs/pkg/broker"
	"github.com/nuulab/ifcjobs/pkg/metrics"
)

type healthResponse struct {
	Status string               `json:"status"`
	Broker string               `json:"broker"`
	Uptime string               `json:"uptime"`
	Queues []broker.QueueStatus `json:"queues"`
}

// handleHealth reports gateway status, broker reachability, and the
// symbolic state of every known queue (spec C8). Exempt from admission.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	brokerStatus := "reachable"
	if err := s.cfg.Broker.Ping(ctx); err != nil {
		brokerStatus = "unreachable"
	}

	queues := make([]broker.QueueStatus, 0, len(KnownQueues()))
	for _, q := range KnownQueues() {
		status := broker.Describe(ctx, s.cfg.Broker, q)
		queues = append(queues, status)
		metrics.QueueDepth.WithLabelValues(q).Set(float64(status.Depth))
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Broker: brokerStatus,
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Queues: queues,
	})
}
