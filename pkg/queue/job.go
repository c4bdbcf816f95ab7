package queue

import (
	"context"
	"encoding/json"
)

// Job handles every message of one type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job consumes.
	Type() string

	Handle(ctx context.Context, payload json.RawMessage) error
}

// Delivery describes the current attempt at handling a message.
type Delivery struct {
	MessageID string
	Attempt   int  // 1-based
	Final     bool // no retry follows a failure
}

type deliveryKey struct{}

// WithDelivery attaches d to ctx. The queue sets it before calling Handle.
func WithDelivery(ctx context.Context, d Delivery) context.Context {
	return context.WithValue(ctx, deliveryKey{}, d)
}

// DeliveryFrom returns the delivery attached to ctx, if any.
func DeliveryFrom(ctx context.Context) (Delivery, bool) {
	d, ok := ctx.Value(deliveryKey{}).(Delivery)
	return d, ok
}
