package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBroker(t *testing.T) *RedisBroker {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisBrokerFromClient(client, Config{ResultTTL: time.Hour})
}

func TestEnqueueBlockPopFIFO(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	ids := make([]string, 0, 3)
	for _, name := range []string{"a", "b", "c"} {
		job, err := New("ifcconvert", "tasks.convert", map[string]string{"name": name}, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if err := b.Enqueue(ctx, job); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, job.ID)
	}

	for _, want := range ids {
		got, err := b.BlockPop(ctx, "ifcconvert", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil {
			t.Fatal("expected a job, got nil")
		}
		if got.ID != want {
			t.Fatalf("FIFO violated: want %s, got %s", want, got.ID)
		}
		if got.Status != StatusStarted {
			t.Fatalf("expected Started after pop, got %s", got.Status)
		}
	}
}

func TestBlockPopEmptyQueueReturnsNil(t *testing.T) {
	b := newTestBroker(t)
	job, err := b.BlockPop(context.Background(), "ifcclash", 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if job != nil {
		t.Fatalf("expected nil job on empty queue, got %+v", job)
	}
}

func TestTerminalStatusIsMonotonic(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	job, _ := New("ifc2json", "tasks.json", map[string]string{"filename": "a.ifc"}, time.Minute)
	if err := b.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}

	if err := b.Complete(ctx, job.ID, json.RawMessage(`{"ok":true}`)); err != nil {
		t.Fatal(err)
	}

	// A later Fail must not override the already-terminal Finished status.
	if err := b.Fail(ctx, job.ID, StatusFailed, JobError{Kind: ErrHandler, Message: "too late"}); err != nil {
		t.Fatal(err)
	}

	got, err := b.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFinished {
		t.Fatalf("terminal status mutated: want finished, got %s", got.Status)
	}
	if string(got.Result) != `{"ok":true}` {
		t.Fatalf("result mutated: got %s", got.Result)
	}
}

func TestGetUnknownJob(t *testing.T) {
	b := newTestBroker(t)
	got, err := b.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusUnknown {
		t.Fatalf("want unknown status, got %s", got.Status)
	}
}

func TestQueueDepthAndHealthState(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	fresh := Describe(ctx, b, "ifcclash")
	if fresh.State != QueueWaiting {
		t.Fatalf("want waiting state for untouched queue, got %s", fresh.State)
	}

	job, _ := New("ifcclash", "tasks.clash", map[string]string{}, time.Minute)
	if err := b.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}

	depth, err := b.QueueDepth(ctx, "ifcclash")
	if err != nil {
		t.Fatal(err)
	}
	if depth != 1 {
		t.Fatalf("want depth 1, got %d", depth)
	}

	status := Describe(ctx, b, "ifcclash")
	if status.State != QueueHealthy {
		t.Fatalf("want healthy state, got %s", status.State)
	}
}

func TestListEventsRecordsTransitions(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	job, _ := New("ifcconvert", "tasks.convert", map[string]string{"name": "a"}, time.Minute)
	if err := b.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}
	if _, err := b.BlockPop(ctx, "ifcconvert", time.Second); err != nil {
		t.Fatal(err)
	}
	if err := b.Complete(ctx, job.ID, json.RawMessage(`{"ok":true}`)); err != nil {
		t.Fatal(err)
	}

	events, err := b.ListEvents(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []Status{StatusQueued, StatusStarted, StatusFinished}
	if len(events) != len(want) {
		t.Fatalf("want %d events, got %d: %+v", len(want), len(events), events)
	}
	for i, w := range want {
		if events[i].Status != w {
			t.Fatalf("event %d: want %s, got %s", i, w, events[i].Status)
		}
	}
}

func TestListEventsUnknownJobIsEmpty(t *testing.T) {
	b := newTestBroker(t)
	events, err := b.ListEvents(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("want no events, got %+v", events)
	}
}
