package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/nuulab/ifcjobs/pkg/broker"
	"github.com/nuulab/ifcjobs/pkg/codec"
	"github.com/nuulab/ifcjobs/pkg/metrics"
)

// popWait bounds each BlockPop call so shutdown signals remain observable
// between pops (spec §4.3).
const popWait = 5 * time.Second

// ResultWithOutputs is implemented by handler results that wrote files the
// runtime should fsync before publishing Finished (SPEC_FULL §4 decision 4).
type ResultWithOutputs interface {
	OutputPaths() []string
}

// Runtime is the per-process loop bound to exactly one queue. It pulls
// jobs strictly sequentially; horizontal concurrency comes from running
// more Runtime processes against the same queue, never from running
// handlers concurrently within one (spec §4.3, §5).
type Runtime struct {
	Broker   broker.Broker
	Registry *Registry
	Queue    string
	Logger   zerolog.Logger

	// backoff bounds how long the runtime waits after a broker-transport
	// error before retrying BlockPop (spec §7: capped exponential, 1s-30s).
	backoffBase time.Duration
	backoffCap  time.Duration
}

// New creates a runtime bound to queue, using b to pop/publish and reg to
// resolve handler_name strings to executable handlers.
func New(b broker.Broker, reg *Registry, queue string, logger zerolog.Logger) *Runtime {
	return &Runtime{
		Broker:      b,
		Registry:    reg,
		Queue:       queue,
		Logger:      logger.With().Str("queue", queue).Logger(),
		backoffBase: time.Second,
		backoffCap:  30 * time.Second,
	}
}

// Run processes jobs until ctx is canceled. It never returns an error for
// individual job failures -- those are always published to the broker --
// only for conditions that prevent the loop from continuing at all, which
// in this design is just ctx cancellation (nil).
func (rt *Runtime) Run(ctx context.Context) error {
	backoff := rt.backoffBase

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		job, err := rt.Broker.BlockPop(ctx, rt.Queue, popWait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			rt.Logger.Warn().Err(err).Dur("backoff", backoff).Msg("broker unreachable, retrying pop")
			metrics.BrokerErrors.WithLabelValues(rt.Queue).Inc()
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > rt.backoffCap {
				backoff = rt.backoffCap
			}
			continue
		}
		backoff = rt.backoffBase

		if job == nil {
			continue
		}

		rt.processJob(ctx, job)
	}
}

func (rt *Runtime) processJob(ctx context.Context, job *broker.Job) {
	log := rt.Logger.With().Str("job_id", job.ID).Str("handler", job.HandlerName).Logger()
	log.Info().Msg("job started")
	metrics.JobsStarted.WithLabelValues(rt.Queue).Inc()
	metrics.WorkersBusy.WithLabelValues(rt.Queue).Set(1)
	defer metrics.WorkersBusy.WithLabelValues(rt.Queue).Set(0)
	start := time.Now()

	handler, ok := rt.Registry.Resolve(job.HandlerName)
	if !ok {
		rt.publishFail(ctx, job, broker.StatusFailed, broker.JobError{
			Kind:    broker.ErrDecode,
			Message: "unknown handler " + job.HandlerName,
		}, log)
		return
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &handlerPanic{value: r, stack: string(debug.Stack())}}
			}
		}()
		result, err := handler(ctx, job.Payload)
		done <- outcome{result: result, err: err}
	}()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		rt.publishOutcome(ctx, job, out.result, out.err, start, log)
	case <-timer.C:
		// The handler keeps running to completion in the background; its
		// eventual result is discarded once it arrives on `done`.
		log.Warn().Dur("timeout", timeout).Msg("job timed out")
		rt.publishFail(ctx, job, broker.StatusTimedOut, broker.JobError{
			Kind:    broker.ErrTimeout,
			Message: "handler exceeded declared timeout",
		}, log)
		metrics.JobsTimedOut.WithLabelValues(rt.Queue).Inc()
		go func() { <-done }()
	}
}

func (rt *Runtime) publishOutcome(ctx context.Context, job *broker.Job, result any, err error, start time.Time, log zerolog.Logger) {
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			rt.publishFail(ctx, job, broker.StatusFailed, broker.JobError{
				Kind:    broker.ErrDecode,
				Message: decodeErr.Error(),
			}, log)
			return
		}

		var panicErr *handlerPanic
		if errors.As(err, &panicErr) {
			rt.publishFail(ctx, job, broker.StatusFailed, broker.JobError{
				Kind:    broker.ErrHandler,
				Message: panicErr.Error(),
				Stack:   panicErr.stack,
			}, log)
			return
		}

		rt.publishFail(ctx, job, broker.StatusFailed, broker.JobError{
			Kind:    broker.ErrHandler,
			Message: err.Error(),
		}, log)
		return
	}

	if paths, ok := result.(ResultWithOutputs); ok {
		for _, p := range paths.OutputPaths() {
			if err := fsyncPath(p); err != nil {
				log.Warn().Err(err).Str("path", p).Msg("failed to fsync handler output")
			}
		}
	}

	encoded, encErr := codec.Encode(result)
	if encErr != nil {
		rt.publishFail(ctx, job, broker.StatusFailed, broker.JobError{
			Kind:    broker.ErrHandler,
			Message: "failed to encode result: " + encErr.Error(),
		}, log)
		return
	}

	if err := rt.Broker.Complete(ctx, job.ID, encoded); err != nil {
		log.Error().Err(err).Msg("failed to publish finished status")
		return
	}

	metrics.JobsCompleted.WithLabelValues(rt.Queue).Inc()
	metrics.JobDuration.WithLabelValues(rt.Queue).Observe(time.Since(start).Seconds())
	log.Info().Dur("duration", time.Since(start)).Msg("job finished")
}

func (rt *Runtime) publishFail(ctx context.Context, job *broker.Job, status broker.Status, jobErr broker.JobError, log zerolog.Logger) {
	if err := rt.Broker.Fail(ctx, job.ID, status, jobErr); err != nil {
		log.Error().Err(err).Msg("failed to publish failure status")
		return
	}
	metrics.JobsFailed.WithLabelValues(rt.Queue, string(jobErr.Kind)).Inc()
	log.Error().Str("error_kind", string(jobErr.Kind)).Str("message", jobErr.Message).Msg("job failed")
}

type handlerPanic struct {
	value any
	stack string
}

func (p *handlerPanic) Error() string {
	if err, ok := p.value.(error); ok {
		return "handler panicked: " + err.Error()
	}
	return "handler panicked"
}
