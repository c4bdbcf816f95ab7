package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotRunning is returned by Enqueue before Start or after Stop.
var ErrNotRunning = errors.New("queue not running")

// Publisher enqueues work for the registered jobs.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload any) (string, error)
}

type Config struct {
	Workers     int
	RetryLimit  int
	RetryDelay  time.Duration
	PollTimeout time.Duration
}

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
}

// Message is the envelope stored in Redis.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Decode unmarshals a job payload into T.
func Decode[T any](payload json.RawMessage) (*T, error) {
	var out T
	if len(payload) == 0 {
		return nil, fmt.Errorf("decode payload: empty")
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}
