package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nuulab/ifcjobs/pkg/broker"
)

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestBroker(t *testing.T) *broker.RedisBroker {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return broker.NewRedisBrokerFromClient(client, broker.Config{ResultTTL: time.Hour})
}

// waitTerminal polls the broker until job id reaches a terminal status or
// the deadline passes, returning the last observed job.
func waitTerminal(t *testing.T, b *broker.RedisBroker, id string, deadline time.Duration) *broker.Job {
	t.Helper()
	ctx := context.Background()
	until := time.Now().Add(deadline)
	for time.Now().Before(until) {
		job, err := b.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal status within %s", id, deadline)
	return nil
}

// TestRuntimeEnforcesTimeout proves a handler that outlives its declared
// timeout is published StatusTimedOut well within 500ms of a 50ms timeout,
// and that its late return value never overwrites the published result
// (spec §8 invariant 7, scenario S3).
func TestRuntimeEnforcesTimeout(t *testing.T) {
	b := newTestBroker(t)
	reg := NewRegistry()

	release := make(chan struct{})
	handlerDone := make(chan struct{})
	Register(reg, "tasks.slow", func(ctx context.Context, req struct{}) (any, error) {
		<-release
		close(handlerDone)
		return map[string]string{"late": "result"}, nil
	})

	job, err := broker.New("ifctester", "tasks.slow", map[string]string{}, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := b.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}

	popped, err := b.BlockPop(ctx, "ifctester", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if popped == nil {
		t.Fatal("expected job to be popped")
	}

	rt := New(b, reg, "ifctester", discardLogger())

	start := time.Now()
	rt.processJob(ctx, popped)
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Fatalf("processJob blocked past timeout+tick: took %s", elapsed)
	}

	got, err := b.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != broker.StatusTimedOut {
		t.Fatalf("want timed_out, got %s", got.Status)
	}
	if got.Error == nil || got.Error.Kind != broker.ErrTimeout {
		t.Fatalf("want error kind timeout, got %+v", got.Error)
	}

	// Let the handler actually finish and try to publish its late result.
	close(release)
	select {
	case <-handlerDone:
	case <-time.After(time.Second):
		t.Fatal("handler goroutine never finished")
	}
	// Give the background drain goroutine a moment to run.
	time.Sleep(50 * time.Millisecond)

	after, err := b.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Status != broker.StatusTimedOut {
		t.Fatalf("late handler result overwrote terminal status: got %s", after.Status)
	}
	if len(after.Result) != 0 {
		t.Fatalf("late handler result leaked into job: %s", after.Result)
	}
}

// TestRuntimeUnknownHandlerNameFailsDecode proves an unregistered
// handler_name resolves to a terminal failed/decode outcome without ever
// invoking a handler body (spec §4.4, §8 invariant 9, scenario S2).
func TestRuntimeUnknownHandlerNameFailsDecode(t *testing.T) {
	b := newTestBroker(t)
	reg := NewRegistry()

	job, err := broker.New("ifc2json", "tasks.no_such_handler", map[string]string{}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := b.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}

	popped, err := b.BlockPop(ctx, "ifc2json", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if popped == nil {
		t.Fatal("expected job to be popped")
	}

	rt := New(b, reg, "ifc2json", discardLogger())
	rt.processJob(ctx, popped)

	got, err := b.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != broker.StatusFailed {
		t.Fatalf("want failed, got %s", got.Status)
	}
	if got.Error == nil || got.Error.Kind != broker.ErrDecode {
		t.Fatalf("want error kind decode, got %+v", got.Error)
	}
}

// TestRuntimeRunRespectsContextCancellation proves Run returns cleanly once
// its context is canceled, matching the shutdown contract processJob's
// caller relies on.
func TestRuntimeRunRespectsContextCancellation(t *testing.T) {
	b := newTestBroker(t)
	reg := NewRegistry()
	rt := New(b, reg, "ifcclash", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on cancellation: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
