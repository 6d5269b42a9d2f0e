package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/app"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) Route(ctx context.Context, ev domain.InboundEvent) (domain.Decision, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(domain.Decision), args.Error(1)
}

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) SendMessage(ctx context.Context, from, to, body string) error {
	args := m.Called(ctx, from, to, body)
	return args.Error(0)
}

type MockReplayGuard struct {
	mock.Mock
}

func (m *MockReplayGuard) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReplayGuard) Forget(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

type MockConfirmations struct {
	mock.Mock
}

func (m *MockConfirmations) Intake(ctx context.Context, req app.IntakeRequest) (*domain.PendingConfirmation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PendingConfirmation), args.Error(1)
}

func (m *MockConfirmations) CreatePending(ctx context.Context, req app.CreatePendingRequest) (*app.PendingResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.PendingResult), args.Error(1)
}

func (m *MockConfirmations) VerifyOtp(ctx context.Context, proxy, origin, submitted string) (*app.VerifyResult, error) {
	args := m.Called(ctx, proxy, origin, submitted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.VerifyResult), args.Error(1)
}

type MockExpiry struct {
	mock.Mock
}

func (m *MockExpiry) SweepOlderThan(ctx context.Context, hours int) (*app.SweepResult, error) {
	args := m.Called(ctx, hours)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.SweepResult), args.Error(1)
}

type MockPool struct {
	mock.Mock
}

func (m *MockPool) ListAvailable(ctx context.Context, country string, numberType domain.NumberType) ([]domain.PoolEntry, domain.Availability, error) {
	args := m.Called(ctx, country, numberType)
	entries, _ := args.Get(0).([]domain.PoolEntry)
	available, _ := args.Get(1).(domain.Availability)
	return entries, available, args.Error(2)
}

func (m *MockPool) Provision(ctx context.Context, country string, order domain.FallbackOrder, quantity int) ([]app.ReplenishResult, error) {
	args := m.Called(ctx, country, order, quantity)
	results, _ := args.Get(0).([]app.ReplenishResult)
	return results, args.Error(1)
}

func (m *MockPool) Release(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

func (m *MockPool) Remove(ctx context.Context, phone string) (*domain.PoolEntry, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PoolEntry), args.Error(1)
}

func (m *MockPool) RewireWebhooks(ctx context.Context, filter app.RewireFilter, dryRun bool) (*app.RewireReport, error) {
	args := m.Called(ctx, filter, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.RewireReport), args.Error(1)
}

type MockClients struct {
	mock.Mock
}

func (m *MockClients) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}

func (m *MockClients) Create(ctx context.Context, req app.CreateClientRequest) (*domain.Client, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}

func (m *MockClients) UpdateContact(ctx context.Context, id int64, contact domain.Contact) (*domain.Client, []string, error) {
	args := m.Called(ctx, id, contact)
	fields, _ := args.Get(1).([]string)
	if args.Get(0) == nil {
		return nil, fields, args.Error(2)
	}
	return args.Get(0).(*domain.Client), fields, args.Error(2)
}

type testServer struct {
	router        *MockRouter
	messenger     *MockMessenger
	guard         *MockReplayGuard
	confirmations *MockConfirmations
	expiry        *MockExpiry
	pool          *MockPool
	clients       *MockClients
	handler       http.Handler
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer mounts every handler on the production router. withGuard
// controls whether the webhook handler gets a replay guard.
func newTestServer(t *testing.T, withGuard bool) *testServer {
	t.Helper()
	s := &testServer{
		router:        new(MockRouter),
		messenger:     new(MockMessenger),
		guard:         new(MockReplayGuard),
		confirmations: new(MockConfirmations),
		expiry:        new(MockExpiry),
		pool:          new(MockPool),
		clients:       new(MockClients),
	}
	log := testLogger()
	validate := validator.New()

	var guard ReplayGuard
	if withGuard {
		guard = s.guard
	}
	s.handler = NewRouter(Handlers{
		Webhooks:      NewWebhookHandler(s.router, s.messenger, guard, log, "en-US"),
		Confirmations: NewConfirmationHandler(s.confirmations, s.expiry, log, validate),
		Pool:          NewPoolHandler(s.pool, log, validate),
		Clients:       NewClientHandler(s.clients, log, validate),
	}, 5*time.Second)

	t.Cleanup(func() {
		s.router.AssertExpectations(t)
		s.messenger.AssertExpectations(t)
		s.guard.AssertExpectations(t)
		s.confirmations.AssertExpectations(t)
		s.expiry.AssertExpectations(t)
		s.pool.AssertExpectations(t)
		s.clients.AssertExpectations(t)
	})
	return s
}

func (s *testServer) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) doJSON(method, target, body string) *httptest.ResponseRecorder {
	return s.do(method, target, "application/json", body)
}

func extractField(t *testing.T, body []byte, field string) string {
	t.Helper()
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	return string(raw[field])
}
