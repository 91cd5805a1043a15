package service

import (
	"context"
	"errors"
	"time"
)

// ErrDeliveryFailed wraps any failure to hand a code to the delivery channel.
var ErrDeliveryFailed = errors.New("two-factor code delivery failed")

// Notifier delivers a two-factor code to an address.
type Notifier interface {
	Send(ctx context.Context, address, code string, ttl time.Duration) error
}
