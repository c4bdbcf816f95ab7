package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	applogger "SessionLens/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed work queue with delayed retries kept in a
// sorted set and a dead letter list for exhausted messages.
type RedisQueue struct {
	l      *applogger.Logger
	cfg    Config
	client *redis.Client
	prefix string
	now    func() time.Time
	newID  func() string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type RedisQueueOption func(*RedisQueue)

func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(q *RedisQueue) { q.prefix = prefix }
}

func WithClock(now func() time.Time) RedisQueueOption {
	return func(q *RedisQueue) { q.now = now }
}

func WithIDGenerator(fn func() string) RedisQueueOption {
	return func(q *RedisQueue) { q.newID = fn }
}

func NewRedisQueue(l *applogger.Logger, cfg Config, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if l == nil {
		l = applogger.Nop()
	}
	cfg.normalize()
	q := &RedisQueue{
		l:      l,
		cfg:    cfg,
		client: client,
		prefix: "sessionlens:queue",
		now:    time.Now,
		newID:  uuid.NewString,
		jobs:   make(map[string]Job),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Register adds a job. A second job for the same type is ignored.
func (q *RedisQueue) Register(jobs ...Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range jobs {
		if _, ok := q.jobs[job.Type()]; ok {
			q.l.Warn("job already registered", applogger.String("job", job.Name()))
			continue
		}
		q.jobs[job.Type()] = job
		q.l.Info("job registered", applogger.String("job", job.Name()), applogger.String("type", job.Type()))
	}
}

// Start pings Redis and launches the workers and the retry mover. Without
// registered jobs the queue only publishes.
func (q *RedisQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	q.cancel = stop
	q.running = true
	if len(q.jobs) == 0 {
		q.l.Info("queue started in publish-only mode")
		return nil
	}
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(runCtx, i)
	}
	q.wg.Add(1)
	go q.retryLoop(runCtx)
	q.l.Info("queue started", applogger.Int("workers", q.cfg.Workers), applogger.String("prefix", q.prefix))
	return nil
}

// Stop cancels the workers and waits for in-flight messages until ctx ends.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("stop queue: %w", ctx.Err())
	case <-done:
		q.l.Info("queue stopped")
		return nil
	}
}

// Enqueue pushes payload as a new message and returns its id.
func (q *RedisQueue) Enqueue(ctx context.Context, msgType string, payload any) (string, error) {
	q.mu.RLock()
	running := q.running
	q.mu.RUnlock()
	if !running {
		return "", ErrNotRunning
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{ID: q.newID(), Type: msgType, Payload: raw, EnqueuedAt: q.now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key("messages"), string(data)).Err(); err != nil {
		return "", fmt.Errorf("lpush: %w", err)
	}
	return msg.ID, nil
}

func (q *RedisQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			q.l.Debug("queue worker stopping", applogger.Int("worker_id", id))
			return
		default:
		}

		res, err := q.client.BRPop(ctx, q.cfg.PollTimeout, q.key("messages")).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			q.l.Error("brpop failed", applogger.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if len(res) == 2 {
			q.handle(ctx, res[1])
		}
	}
}

// handle runs the job for one raw message and schedules a retry or dead
// letters it on failure.
func (q *RedisQueue) handle(ctx context.Context, raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		q.l.Error("unmarshal message", applogger.Error(err))
		q.deadLetter(ctx, raw)
		return
	}

	q.mu.RLock()
	job, ok := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !ok {
		q.l.Error("no job for message", applogger.String("type", msg.Type), applogger.String("id", msg.ID))
		q.deadLetter(ctx, raw)
		return
	}

	final := msg.Attempts >= q.cfg.RetryLimit
	start := time.Now()
	err := job.Handle(WithDelivery(ctx, Delivery{MessageID: msg.ID, Attempt: msg.Attempts + 1, Final: final}), msg.Payload)
	if err == nil {
		q.l.Debug("message processed",
			applogger.String("id", msg.ID),
			applogger.String("job", job.Name()),
			applogger.Duration("elapsed", time.Since(start)),
		)
		return
	}
	if errors.Is(err, context.Canceled) {
		q.l.Warn("message cancelled", applogger.String("id", msg.ID), applogger.String("job", job.Name()))
		return
	}

	q.l.Error("message failed",
		applogger.String("id", msg.ID),
		applogger.String("job", job.Name()),
		applogger.Int("attempt", msg.Attempts+1),
		applogger.Error(err),
	)
	if final {
		q.deadLetter(ctx, raw)
		return
	}
	msg.Attempts++
	q.scheduleRetry(ctx, msg)
}

func (q *RedisQueue) scheduleRetry(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		q.l.Error("marshal retry", applogger.Error(err))
		return
	}
	at := q.now().Add(q.cfg.RetryDelay)
	if err := q.client.ZAdd(ctx, q.key("retry"), redis.Z{Score: float64(at.Unix()), Member: string(data)}).Err(); err != nil {
		q.l.Error("zadd retry", applogger.Error(err))
	}
}

func (q *RedisQueue) deadLetter(ctx context.Context, raw string) {
	if err := q.client.LPush(ctx, q.key("dlq"), raw).Err(); err != nil {
		q.l.Error("lpush dlq", applogger.Error(err))
	}
}

func (q *RedisQueue) retryLoop(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.promoteDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
				q.l.Error("promote retries", applogger.Error(err))
			}
		}
	}
}

// promoteDue moves retries whose time has come back onto the main list.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, q.key("retry"), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(q.now().Unix(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("fetch retries: %w", err)
	}
	for _, member := range due {
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, q.key("retry"), member)
		pipe.LPush(ctx, q.key("messages"), member)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("requeue retry: %w", err)
		}
	}
	return nil
}

func (q *RedisQueue) key(name string) string {
	return q.prefix + ":" + name
}

var _ Publisher = (*RedisQueue)(nil)
