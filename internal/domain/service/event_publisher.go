package service

import (
	"context"
)

// TwoFactorCodeEvent asks the mail worker to deliver a one-time code.
type TwoFactorCodeEvent struct {
	RequestID  string `json:"request_id,omitempty"` // For distributed tracing
	EventID    string `json:"event_id"`
	Address    string `json:"address"`
	Code       string `json:"code"`
	TTLSeconds int    `json:"ttl_seconds"`
	IssuedAt   int64  `json:"issued_at"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishTwoFactorCode publishes a code delivery event
	PublishTwoFactorCode(ctx context.Context, event *TwoFactorCodeEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
