package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/repository"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/repository/memory"
)

// --- Mocks ---

type MockCarrier struct {
	mock.Mock
}

func (m *MockCarrier) PurchaseNumber(ctx context.Context, countryISO string, numberType domain.NumberType) (string, error) {
	args := m.Called(ctx, countryISO, numberType)
	return args.String(0), args.Error(1)
}

func (m *MockCarrier) ConfigureWebhooks(ctx context.Context, phoneNumber string) error {
	args := m.Called(ctx, phoneNumber)
	return args.Error(0)
}

func (m *MockCarrier) SendMessage(ctx context.Context, from, to, body string) error {
	args := m.Called(ctx, from, to, body)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// recordingPublisher keeps every published subject.
type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

// failingStore fails every operation with err.
type failingStore struct {
	err error
}

func (s *failingStore) ReadAll(ctx context.Context) ([][]string, error) { return nil, s.err }
func (s *failingStore) WriteRange(ctx context.Context, row int, cells []domain.Cell) error {
	return s.err
}
func (s *failingStore) ReadCell(ctx context.Context, row, col int) (string, error) { return "", s.err }
func (s *failingStore) AppendRow(ctx context.Context, values []string) error { return s.err }

// readOnlyStore serves reads from inner and rejects writes.
type readOnlyStore struct {
	inner *memory.RowStore
}

func (s *readOnlyStore) ReadAll(ctx context.Context) ([][]string, error) { return s.inner.ReadAll(ctx) }
func (s *readOnlyStore) WriteRange(ctx context.Context, row int, cells []domain.Cell) error {
	return errors.New("read-only store")
}
func (s *readOnlyStore) ReadCell(ctx context.Context, row, col int) (string, error) {
	return s.inner.ReadCell(ctx, row, col)
}
func (s *readOnlyStore) AppendRow(ctx context.Context, values []string) error {
	return errors.New("read-only store")
}

func newClientTableOn(store domain.RowStore) *repository.ClientTable {
	return repository.NewClientTable(store)
}

// --- Fixture ---

var fixedNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// permissiveCarrier accepts every webhook and message call.
func permissiveCarrier() *MockCarrier {
	c := new(MockCarrier)
	c.On("ConfigureWebhooks", mock.Anything, mock.Anything).Return(nil)
	c.On("SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return c
}

type fixture struct {
	poolStore    *memory.RowStore
	pendingStore *memory.RowStore
	clientStore  *memory.RowStore

	pool    *repository.PoolTable
	pending *repository.PendingTable
	clients *repository.ClientTable

	carrier   *MockCarrier
	events    *recordingPublisher
	manager   *PoolManager
	directory *ClientDirectory
	workflow  *ConfirmationWorkflow
}

func newFixture(t *testing.T, carrier *MockCarrier) *fixture {
	t.Helper()
	f := &fixture{
		poolStore:    memory.NewRowStore(),
		pendingStore: memory.NewRowStore(),
		clientStore:  memory.NewRowStore(),
		carrier:      carrier,
		events:       &recordingPublisher{},
	}
	f.pool = repository.NewPoolTable(f.poolStore)
	f.pending = repository.NewPendingTable(f.pendingStore)
	f.clients = repository.NewClientTable(f.clientStore)

	log := testLogger()
	f.manager = NewPoolManager(f.pool, carrier, f.events, log, DefaultPoolConfig())
	f.manager.now = func() time.Time { return fixedNow }
	f.directory = NewClientDirectory(f.clients, f.manager, NewCountryCodes(), log)
	f.workflow = NewConfirmationWorkflow(f.pending, f.manager, f.directory, carrier, nil, f.events, log, ConfirmationConfig{OTPLength: 6})
	f.workflow.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) addPoolEntry(t *testing.T, e domain.PoolEntry) {
	t.Helper()
	if e.CountryISO == "" {
		e.CountryISO = "FR"
	}
	if e.NumberType == "" {
		e.NumberType = domain.NumberTypeMobile
	}
	if e.Status == "" {
		e.Status = domain.PoolStatusAvailable
	}
	require.NoError(t, f.pool.AppendEntry(context.Background(), e))
}

func (f *fixture) addClient(t *testing.T, c domain.Client) {
	t.Helper()
	require.NoError(t, f.clients.AppendClient(context.Background(), c))
}

func (f *fixture) entry(t *testing.T, phone string) domain.PoolEntry {
	t.Helper()
	entries, err := f.pool.Entries(context.Background())
	require.NoError(t, err)
	for _, e := range entries {
		if domain.SamePhone(e.PhoneNumber, phone) {
			return e
		}
	}
	t.Fatalf("pool entry %s not found", phone)
	return domain.PoolEntry{}
}

func (f *fixture) pendingRow(t *testing.T, id string) domain.PendingConfirmation {
	t.Helper()
	p, err := f.pending.FindByID(context.Background(), id)
	require.NoError(t, err)
	return *p
}
