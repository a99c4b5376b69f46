package broker

import "context"

// QueueState is the symbolic health of a single queue, reported
// alongside its numeric depth on the gateway's /health endpoint (spec C8).
type QueueState string

const (
	// QueueHealthy means the broker is reachable and the queue has
	// received at least one job during its lifetime.
	QueueHealthy QueueState = "healthy"
	// QueueWaiting means the broker is reachable but the queue has never
	// received a job. This is deliberately distinct from an error.
	QueueWaiting QueueState = "waiting (no jobs yet)"
	// QueueUnreachable means the broker could not be contacted.
	QueueUnreachable QueueState = "unreachable"
)

// QueueStatus pairs a queue's depth with its symbolic health state.
type QueueStatus struct {
	Name  string     `json:"name"`
	Depth int64      `json:"depth"`
	State QueueState `json:"state"`
}

// Describe computes the health of a single queue against b.
func Describe(ctx context.Context, b Broker, queue string) QueueStatus {
	if err := b.Ping(ctx); err != nil {
		return QueueStatus{Name: queue, State: QueueUnreachable}
	}

	depth, err := b.QueueDepth(ctx, queue)
	if err != nil {
		return QueueStatus{Name: queue, State: QueueUnreachable}
	}

	total, err := b.TotalEnqueued(ctx, queue)
	if err != nil {
		return QueueStatus{Name: queue, Depth: depth, State: QueueUnreachable}
	}

	if total == 0 {
		return QueueStatus{Name: queue, Depth: depth, State: QueueWaiting}
	}
	return QueueStatus{Name: queue, Depth: depth, State: QueueHealthy}
}
