package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/repository"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/repository/memory"
)

// slowAppendStore delays every append so concurrent inserts overlap.
type slowAppendStore struct {
	*memory.RowStore
	delay time.Duration
}

func (s *slowAppendStore) AppendRow(ctx context.Context, values []string) error {
	time.Sleep(s.delay)
	return s.RowStore.AppendRow(ctx, values)
}

func TestClientDirectory_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, permissiveCarrier())
	f.addPoolEntry(t, domain.PoolEntry{PhoneNumber: "+33611111111"})
	f.addClient(t, domain.Client{ID: 41, Name: "Someone", Mail: "someone@example.com", RealPhone: "+33600000099"})

	client, err := f.directory.Create(ctx, CreateClientRequest{Contact: janeContact, CountryISO: "FR"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), client.ID)
	assert.Equal(t, "+33611111111", client.ProxyNumber)
	assert.Equal(t, "+33", client.CountryCode)

	entry := f.entry(t, "+33611111111")
	assert.Equal(t, domain.PoolStatusAssigned, entry.Status)
	assert.Equal(t, "client:42", entry.ReservedBy)

	_, err = f.directory.Create(ctx, CreateClientRequest{
		Contact: domain.Contact{Name: "Other", Mail: "other@example.com", Phone: "+33600000001"}, CountryISO: "FR",
	})
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
}

func TestClientDirectory_Create_Exhausted(t *testing.T) {
	f := newFixture(t, permissiveCarrier())
	_, err := f.directory.Create(context.Background(), CreateClientRequest{Contact: janeContact, CountryISO: "FR"})
	assert.True(t, errors.Is(err, domain.ErrPoolExhausted))

	all, err := f.clients.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestClientDirectory_MatchPrefersEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, permissiveCarrier())
	f.addClient(t, domain.Client{ID: 1, Name: "By Phone", Mail: "a@example.com", RealPhone: "+33600000001"})
	f.addClient(t, domain.Client{ID: 2, Name: "By Mail", Mail: "jane@example.com", RealPhone: "+33600000002"})

	c, next, err := f.directory.Match(ctx, "JANE@example.com", "+33600000001")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(2), c.ID)
	assert.Equal(t, int64(3), next)

	c, _, err = f.directory.Match(ctx, "nobody@example.com", "33600000001")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(1), c.ID)

	c, _, err = f.directory.Match(ctx, "nobody@example.com", "+33600000077")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestClientDirectory_UpdateContact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, permissiveCarrier())
	f.addClient(t, domain.Client{
		ID: 1, Name: "Jane", Mail: "jane@example.com", RealPhone: "+33600000001",
		ProxyNumber: "+33611111111", CountryCode: "+33", ISOResidency: "FR",
	})

	updated, changed, err := f.directory.UpdateContact(ctx, 1, domain.Contact{Phone: "+4915111111111"})
	require.NoError(t, err)
	assert.Equal(t, []string{"phone"}, changed)
	assert.Equal(t, "+4915111111111", updated.RealPhone)
	assert.Equal(t, "+49", updated.CountryCode)
	assert.Equal(t, "DE", updated.ISOResidency)
	assert.Equal(t, "+33611111111", updated.ProxyNumber)

	_, _, err = f.directory.UpdateContact(ctx, 1, domain.Contact{Mail: "not-an-email"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, _, err = f.directory.UpdateContact(ctx, 99, domain.Contact{Name: "Ghost"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestClientDirectory_ApplyContactKeepsProxy(t *testing.T) {
	f := newFixture(t, permissiveCarrier())
	existing := domain.Client{ID: 1, Name: "Jane", RealPhone: "+33600000001", ProxyNumber: "+33611111111"}
	f.addClient(t, existing)

	_, err := f.directory.ApplyContact(context.Background(), existing, janeContact, "+33622222222")
	assert.True(t, errors.Is(err, domain.ErrProxyImmutable))

	client, err := f.directory.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Jane", client.Name)
}

func TestNextClientID(t *testing.T) {
	assert.Equal(t, int64(1), nextClientID(nil))
	assert.Equal(t, int64(8), nextClientID([]domain.Client{{ID: 3}, {ID: 7}, {ID: 0}}))
}

func TestClientDirectory_Create_ConcurrentIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, permissiveCarrier())
	f.addPoolEntry(t, domain.PoolEntry{PhoneNumber: "+33611111111"})
	f.addPoolEntry(t, domain.PoolEntry{PhoneNumber: "+33622222222"})

	clients := repository.NewClientTable(&slowAppendStore{RowStore: memory.NewRowStore(), delay: 20 * time.Millisecond})
	require.NoError(t, clients.Init(ctx))
	directory := NewClientDirectory(clients, f.manager, NewCountryCodes(), testLogger())

	created := make([]*domain.Client, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i := range created {
		i := i
		g.Go(func() error {
			c, err := directory.Create(gctx, CreateClientRequest{
				Contact: domain.Contact{
					Name:  fmt.Sprintf("C%d", i),
					Mail:  fmt.Sprintf("c%d@example.com", i),
					Phone: fmt.Sprintf("+3360000001%d", i),
				},
				CountryISO: "FR",
			})
			created[i] = c
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.NotEqual(t, created[0].ID, created[1].ID)

	all, err := clients.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotEqual(t, all[0].ID, all[1].ID)
	for _, c := range created {
		stored, err := directory.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.Name, stored.Name)
		assert.Equal(t, c.Row, stored.Row)
	}
}

func TestClientDirectory_Insert_RenumbersTakenID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, permissiveCarrier())
	f.addClient(t, domain.Client{ID: 5, Name: "First", Mail: "first@example.com", RealPhone: "+33600000005"})
	f.addClient(t, domain.Client{ID: 3, Name: "Older", Mail: "older@example.com", RealPhone: "+33600000003"})

	c, err := f.directory.Insert(ctx, domain.Client{ID: 5, Name: "Second", Mail: "second@example.com", RealPhone: "+33600000006"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), c.ID)

	stored, err := f.directory.GetByID(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, "Second", stored.Name)
	first, err := f.directory.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "First", first.Name)
}
