package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds connection and retention settings for a Redis-backed broker.
type Config struct {
	// Address is the broker's host:port.
	Address string
	// Password for authentication, empty if none.
	Password string
	// Database selects the Redis logical database.
	Database int
	// ResultTTL is how long a terminal job record survives before it is
	// reaped (spec §6, default 24h).
	ResultTTL time.Duration
}

// DefaultConfig returns sensible defaults matching spec §6's recommended
// BROKER_URL / JOB_RESULT_TTL_SECONDS values.
func DefaultConfig() Config {
	return Config{
		Address:   "localhost:6379",
		ResultTTL: 24 * time.Hour,
	}
}

// Broker is the narrow surface the gateway and workers use to read and
// write queues and job records (spec C1).
type Broker interface {
	// Enqueue writes the job record and appends its id to its queue.
	Enqueue(ctx context.Context, job *Job) error
	// BlockPop pops the next id from queue, blocking up to maxWait, reads
	// its record and marks it Started. Returns (nil, nil) on an empty wait.
	BlockPop(ctx context.Context, queue string, maxWait time.Duration) (*Job, error)
	// SetStatus sets a non-terminal status. A no-op once the job is terminal.
	SetStatus(ctx context.Context, id string, status Status) error
	// Complete publishes a terminal Finished status with its result.
	Complete(ctx context.Context, id string, result json.RawMessage) error
	// Fail publishes a terminal Failed or TimedOut status with its error.
	Fail(ctx context.Context, id string, status Status, jobErr JobError) error
	// Get reads a job record. Returns a Job with Status Unknown, nil error
	// if the id has never existed or has been reaped.
	Get(ctx context.Context, id string) (*Job, error)
	// ListEvents returns the recorded status-transition timeline for id,
	// oldest first. A diagnostic supplement to Get, never authoritative.
	ListEvents(ctx context.Context, id string) ([]Event, error)
	// QueueDepth returns the approximate number of ids waiting on queue.
	QueueDepth(ctx context.Context, queue string) (int64, error)
	// TotalEnqueued returns the lifetime count of jobs ever enqueued on
	// queue, used to distinguish an idle-but-used queue from one that has
	// never received work (spec C8's "waiting" health state).
	TotalEnqueued(ctx context.Context, queue string) (int64, error)
	// Ping checks broker reachability.
	Ping(ctx context.Context) error
	Close() error
}

// RedisBroker implements Broker against a Redis-compatible store (spec
// assumes a Redis-compatible list/hash/pub-sub store; any such server,
// including DragonflyDB, satisfies the contract).
type RedisBroker struct {
	client *redis.Client
	cfg    Config

	setIfNotTerminal *redis.Script
}

// NewRedisBroker dials the broker and verifies it is reachable.
func NewRedisBroker(cfg Config) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("broker: failed to connect: %w", err)
	}

	return newRedisBroker(client, cfg), nil
}

// NewRedisBrokerFromClient wraps an already-constructed client without
// pinging it; the tests use it to run the broker against miniredis.
func NewRedisBrokerFromClient(client *redis.Client, cfg Config) *RedisBroker {
	return newRedisBroker(client, cfg)
}

func newRedisBroker(client *redis.Client, cfg Config) *RedisBroker {
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultConfig().ResultTTL
	}

	// Guards every terminal-state write: a job that already reached a
	// terminal status never moves again (spec §8 invariant 3).
	script := redis.NewScript(`
		local status = redis.call("HGET", KEYS[1], "status")
		if status == ARGV[1] or status == ARGV[2] or status == ARGV[3] then
			return 0
		end
		for i = 4, #ARGV, 2 do
			redis.call("HSET", KEYS[1], ARGV[i], ARGV[i+1])
		end
		return 1
	`)

	return &RedisBroker{client: client, cfg: cfg, setIfNotTerminal: script}
}

func queueKey(name string) string      { return "queue:" + name }
func jobKey(id string) string          { return "job:" + id }
func queueStatsKey(name string) string { return "queue:" + name + ":stats" }

func timeToField(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func fieldToTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func jobToFields(job *Job) map[string]string {
	fields := map[string]string{
		"queue":       job.Queue,
		"handler":     job.HandlerName,
		"payload":     string(job.Payload),
		"status":      string(job.Status),
		"timeout":     strconv.FormatFloat(job.Timeout.Seconds(), 'f', -1, 64),
		"enqueued_at": timeToField(&job.EnqueuedAt),
		"started_at":  timeToField(job.StartedAt),
		"ended_at":    timeToField(job.EndedAt),
	}
	if job.Result != nil {
		fields["result"] = string(job.Result)
	}
	if job.Error != nil {
		data, _ := json.Marshal(job.Error)
		fields["error"] = string(data)
	}
	return fields
}

func fieldsToJob(id string, fields map[string]string) *Job {
	if len(fields) == 0 {
		return &Job{ID: id, Status: StatusUnknown}
	}

	timeoutSec, _ := strconv.ParseFloat(fields["timeout"], 64)
	job := &Job{
		ID:          id,
		Queue:       fields["queue"],
		HandlerName: fields["handler"],
		Status:      Status(fields["status"]),
		Timeout:     time.Duration(timeoutSec * float64(time.Second)),
		StartedAt:   fieldToTime(fields["started_at"]),
		EndedAt:     fieldToTime(fields["ended_at"]),
	}
	if t := fieldToTime(fields["enqueued_at"]); t != nil {
		job.EnqueuedAt = *t
	}
	if fields["payload"] != "" {
		job.Payload = json.RawMessage(fields["payload"])
	}
	if fields["result"] != "" {
		job.Result = json.RawMessage(fields["result"])
	}
	if fields["error"] != "" {
		var je JobError
		if err := json.Unmarshal([]byte(fields["error"]), &je); err == nil {
			job.Error = &je
		}
	}
	return job
}

// Enqueue writes the job hash and appends its id to the queue list in a
// single pipeline so a concurrent reader never observes one without the
// other (spec C1: enqueue is atomic w.r.t. concurrent enqueues).
func (b *RedisBroker) Enqueue(ctx context.Context, job *Job) error {
	fields := jobToFields(job)
	key := jobKey(job.ID)

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.LPush(ctx, queueKey(job.Queue), job.ID)
		pipe.HIncrBy(ctx, queueStatsKey(job.Queue), "total_enqueued", 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("broker: enqueue failed: %w", err)
	}
	b.recordEvent(ctx, job.ID, StatusQueued)
	return nil
}

// BlockPop removes the next id from queue (blocking up to maxWait),
// reads its record, and marks it Started. Exactly one of two racing
// workers observes a given job id, because BRPOP itself is the only
// point of contention.
func (b *RedisBroker) BlockPop(ctx context.Context, queue string, maxWait time.Duration) (*Job, error) {
	result, err := b.client.BRPop(ctx, maxWait, queueKey(queue)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("broker: block pop failed: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	id := result[1]

	fields, err := b.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("broker: read popped job failed: %w", err)
	}
	job := fieldsToJob(id, fields)
	if job.Status == StatusUnknown {
		// Record already reaped between push and pop; nothing to run.
		return nil, nil
	}

	now := time.Now().UTC()
	if err := b.setFields(ctx, id, StatusStarted, map[string]string{
		"status":     string(StatusStarted),
		"started_at": timeToField(&now),
	}); err != nil {
		return nil, err
	}

	job.Status = StatusStarted
	job.StartedAt = &now
	return job, nil
}

// SetStatus sets a non-terminal status (e.g. Started). Guarded by the
// same terminal check as Complete/Fail for consistency, though in
// practice only Started is ever set this way post-enqueue.
func (b *RedisBroker) SetStatus(ctx context.Context, id string, status Status) error {
	return b.setFields(ctx, id, status, map[string]string{"status": string(status)})
}

// Complete publishes a terminal Finished status. Once a job is terminal
// this and every subsequent Complete/Fail call is a no-op.
func (b *RedisBroker) Complete(ctx context.Context, id string, result json.RawMessage) error {
	now := time.Now().UTC()
	return b.setFields(ctx, id, StatusFinished, map[string]string{
		"status":   string(StatusFinished),
		"ended_at": timeToField(&now),
		"result":   string(result),
	})
}

// Fail publishes a terminal Failed or TimedOut status with its error.
func (b *RedisBroker) Fail(ctx context.Context, id string, status Status, jobErr JobError) error {
	if !status.Terminal() || status == StatusFinished {
		return fmt.Errorf("broker: Fail requires a failing terminal status, got %q", status)
	}
	now := time.Now().UTC()
	data, err := json.Marshal(jobErr)
	if err != nil {
		return fmt.Errorf("broker: marshal job error: %w", err)
	}
	return b.setFields(ctx, id, status, map[string]string{
		"status":   string(status),
		"ended_at": timeToField(&now),
		"error":    string(data),
	})
}

func (b *RedisBroker) setFields(ctx context.Context, id string, newStatus Status, fields map[string]string) error {
	key := jobKey(id)
	args := make([]any, 0, 3+len(fields)*2)
	args = append(args, string(StatusFinished), string(StatusFailed), string(StatusTimedOut))
	for k, v := range fields {
		args = append(args, k, v)
	}

	applied, err := b.setIfNotTerminal.Run(ctx, b.client, []string{key}, args...).Int()
	if err != nil {
		return fmt.Errorf("broker: status update failed: %w", err)
	}

	if applied == 1 {
		if newStatus.Terminal() {
			b.client.Expire(ctx, key, b.cfg.ResultTTL)
		}
		b.recordEvent(ctx, id, newStatus)
	}
	return nil
}

// Get reads a job record. A reaped or never-seen id comes back with
// Status Unknown and a nil error, per spec's idempotent-read contract.
func (b *RedisBroker) Get(ctx context.Context, id string) (*Job, error) {
	fields, err := b.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("broker: get failed: %w", err)
	}
	return fieldsToJob(id, fields), nil
}

// QueueDepth returns the approximate length of queue. May transiently
// under- or over-read under concurrent producers/consumers.
func (b *RedisBroker) QueueDepth(ctx context.Context, queue string) (int64, error) {
	return b.client.LLen(ctx, queueKey(queue)).Result()
}

// TotalEnqueued returns the lifetime count of jobs enqueued on queue.
func (b *RedisBroker) TotalEnqueued(ctx context.Context, queue string) (int64, error) {
	v, err := b.client.HGet(ctx, queueStatsKey(queue), "total_enqueued").Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("broker: total enqueued failed: %w", err)
	}
	return v, nil
}

// Ping checks broker reachability for health probes.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

// Client returns the underlying Redis client, used by the distributed lock
// so it shares one connection pool with the broker.
func (b *RedisBroker) Client() *redis.Client {
	return b.client
}
