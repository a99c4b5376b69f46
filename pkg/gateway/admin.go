package gateway

import (
	"net/http"

	"github.com/nuulab/ifcjobs/pkg/broker"
)

// handleAdminQueues is a supplemental diagnostic endpoint reporting depth
// and symbolic health for every known queue in one call, for operators
// who don't want to poll /health's full payload.
func (s *Server) handleAdminQueues(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	queues := make([]broker.QueueStatus, 0, len(KnownQueues()))
	for _, q := range KnownQueues() {
		queues = append(queues, broker.Describe(ctx, s.cfg.Broker, q))
	}
	writeJSON(w, http.StatusOK, map[string]any{"queues": queues})
}
