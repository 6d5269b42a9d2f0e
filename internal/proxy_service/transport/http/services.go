package http

import (
	"context"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/app"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// Router decides where an inbound call or message goes.
type Router interface {
	Route(ctx context.Context, ev domain.InboundEvent) (domain.Decision, error)
}

// Messenger sends SMS for relayed messages.
type Messenger interface {
	SendMessage(ctx context.Context, from, to, body string) error
}

// ReplayGuard drops carrier retries of events already handled.
type ReplayGuard interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// ConfirmationService is the phone verification workflow.
type ConfirmationService interface {
	Intake(ctx context.Context, req app.IntakeRequest) (*domain.PendingConfirmation, error)
	CreatePending(ctx context.Context, req app.CreatePendingRequest) (*app.PendingResult, error)
	VerifyOtp(ctx context.Context, proxy, origin, submitted string) (*app.VerifyResult, error)
}

// ExpiryService expires stale confirmations and frees their proxies.
type ExpiryService interface {
	SweepOlderThan(ctx context.Context, hours int) (*app.SweepResult, error)
}

// PoolService manages the proxy number inventory.
type PoolService interface {
	ListAvailable(ctx context.Context, country string, numberType domain.NumberType) ([]domain.PoolEntry, domain.Availability, error)
	Provision(ctx context.Context, country string, order domain.FallbackOrder, quantity int) ([]app.ReplenishResult, error)
	Release(ctx context.Context, token string) (int, error)
	Remove(ctx context.Context, phone string) (*domain.PoolEntry, error)
	RewireWebhooks(ctx context.Context, filter app.RewireFilter, dryRun bool) (*app.RewireReport, error)
}

// ClientService reads and mutates provisioned clients.
type ClientService interface {
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	Create(ctx context.Context, req app.CreateClientRequest) (*domain.Client, error)
	UpdateContact(ctx context.Context, id int64, contact domain.Contact) (*domain.Client, []string, error)
}
