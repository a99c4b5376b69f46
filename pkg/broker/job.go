// Package broker provides the durable, at-most-once work queue that sits
// between the gateway and the worker pools: typed job records, FIFO queues
// partitioned by kind, and the status lifecycle every job moves through.
package broker

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nuulab/ifcjobs/pkg/codec"
)

// Status is a job's position in its lifecycle. Once a job reaches a
// terminal status (Finished, Failed, TimedOut) it never changes again.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
	// StatusUnknown is returned for a job id the broker has no record of,
	// either because it was never enqueued or its retention window lapsed.
	StatusUnknown Status = "unknown"
)

// Terminal reports whether a status is a final outcome.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// ErrorKind classifies why a job did not finish successfully. See spec §7.
type ErrorKind string

const (
	ErrValidation ErrorKind = "validation"
	ErrAuth       ErrorKind = "auth"
	ErrDecode     ErrorKind = "decode"
	ErrHandler    ErrorKind = "handler"
	ErrTimeout    ErrorKind = "timeout"
	ErrBroker     ErrorKind = "broker"
	ErrNotFound   ErrorKind = "not_found"
)

// JobError is the uniform error envelope attached to failed and timed-out
// jobs. The gateway surfaces it verbatim without needing to know the
// handler's kind.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Stack   string    `json:"stack,omitempty"`
}

func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Kind) + ": " + e.Message
}

// Job is a single unit of work dispatched to a queue-specific worker pool.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	HandlerName string          `json:"handler_name"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
	// Timeout is the per-job maximum wall-clock duration. It is fixed at
	// enqueue time and never renegotiated by the runtime.
	Timeout time.Duration   `json:"timeout"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JobError       `json:"error,omitempty"`
}

// New builds a job ready for Broker.Enqueue. payload is marshaled as the
// job's self-describing request body.
func New(queue, handlerName string, payload any, timeout time.Duration) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          uuid.NewString(),
		Queue:       queue,
		HandlerName: handlerName,
		Payload:     data,
		Status:      StatusQueued,
		EnqueuedAt:  time.Now().UTC(),
		Timeout:     timeout,
	}, nil
}

// UnmarshalPayload decodes the job's payload into v, rejecting unknown
// fields so request/handler skew is caught at decode time rather than
// silently ignored.
func (j *Job) UnmarshalPayload(v any) error {
	return codec.StrictDecode(j.Payload, v)
}
