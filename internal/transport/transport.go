// Package transport defines the pub/sub surface live channels subscribe on.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is matched by every subscription failure.
var ErrUnavailable = errors.New("transport unavailable")

// Handler receives raw message payloads. It may be called from any goroutine.
type Handler func(payload []byte)

// Subscription is an active channel subscription.
type Subscription interface {
	Unsubscribe() error
}

// Transport subscribes handlers to named channels.
type Transport interface {
	Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error)
	Close() error
}

// ChannelError reports a failed subscription to one channel.
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("subscribe %s: %v", e.Channel, e.Err)
}

// Unwrap exposes the cause and ErrUnavailable to errors.Is.
func (e *ChannelError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// NewChannelError wraps err for channel.
func NewChannelError(channel string, err error) error {
	return &ChannelError{Channel: channel, Err: err}
}
