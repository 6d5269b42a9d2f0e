package domain

import (
	"context"
	"time"
)

const (
	SubjectRoutingPrefix      = "proxycall.routing."
	SubjectConfirmationPrefix = "proxycall.confirmation."
	SubjectPoolPrefix         = "proxycall.pool."
)

// EventPublisher publishes serialized events on a subject.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// RoutingEvent is emitted for every routing decision.
type RoutingEvent struct {
	Channel    Channel      `json:"channel"`
	Proxy      string       `json:"proxy"`
	Origin     string       `json:"origin"`
	Kind       DecisionKind `json:"kind"`
	Reason     string       `json:"reason,omitempty"`
	ClientID   int64        `json:"client_id,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// ConfirmationEvent is emitted when a pending confirmation changes status.
type ConfirmationEvent struct {
	PendingID   string        `json:"pending_id"`
	Status      PendingStatus `json:"status"`
	ProxyNumber string        `json:"proxy_number,omitempty"`
	ClientID    int64         `json:"client_id,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

// PoolEvent is emitted when numbers are added to or removed from the pool.
type PoolEvent struct {
	Action      string     `json:"action"`
	PhoneNumber string     `json:"phone_number"`
	CountryISO  string     `json:"country_iso"`
	NumberType  NumberType `json:"number_type"`
	OccurredAt  time.Time  `json:"occurred_at"`
}
