package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

const (
	testProxy     = "+33900000000"
	testRealPhone = "+33600000001"
)

func newRoutingFixture(t *testing.T, cfg RoutingConfig) (*fixture, *RoutingEngine) {
	t.Helper()
	f := newFixture(t, permissiveCarrier())
	f.addClient(t, domain.Client{
		ID: 1, Name: "Jane Doe", Mail: "jane@example.com",
		RealPhone: testRealPhone, ProxyNumber: testProxy, CountryCode: "+33", ISOResidency: "FR",
	})
	engine := NewRoutingEngine(f.directory, f.workflow, NewCountryCodes(), f.events, testLogger(), cfg)
	return f, engine
}

func voice(origin string) domain.InboundEvent {
	return domain.InboundEvent{Channel: domain.ChannelVoice, Proxy: testProxy, Origin: origin}
}

func TestRoutingEngine_Determinism(t *testing.T) {
	ctx := context.Background()
	f, engine := newRoutingFixture(t, RoutingConfig{CountryPolicy: CountryPolicyExact})

	d, err := engine.Route(ctx, voice("+33700000002"))
	require.NoError(t, err)
	assert.Equal(t, domain.Connect(testProxy, testRealPhone), d)

	client, err := f.directory.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "+33700000002", client.LastCaller)

	d, err = engine.Route(ctx, voice(testRealPhone))
	require.NoError(t, err)
	assert.Equal(t, domain.Connect(testProxy, "+33700000002"), d)

	client, err = f.directory.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "+33700000002", client.LastCaller)

	d, err = engine.Route(ctx, voice("+49123456789"))
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionReject, d.Kind)
	assert.Equal(t, domain.ReasonCountry, d.Reason)

	client, err = f.directory.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "+33700000002", client.LastCaller)

	assert.Equal(t, []string{
		"proxycall.routing.connect", "proxycall.routing.connect", "proxycall.routing.reject",
	}, f.events.Subjects())
}

func TestRoutingEngine_SelfCallbackWithoutRecentContact(t *testing.T) {
	_, engine := newRoutingFixture(t, RoutingConfig{})

	d, err := engine.Route(context.Background(), voice(testRealPhone))
	require.NoError(t, err)
	assert.Equal(t, domain.Reject(domain.ReasonNoRecentContact, msgNoRecentContact), d)
}

func TestRoutingEngine_UnknownProxy(t *testing.T) {
	_, engine := newRoutingFixture(t, RoutingConfig{})

	d, err := engine.Route(context.Background(), domain.InboundEvent{
		Channel: domain.ChannelVoice, Proxy: "+33911111111", Origin: "+33700000002",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Reject(domain.ReasonUnknownProxy, msgUnknownProxy), d)
}

func TestRoutingEngine_CountryPolicies(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      RoutingConfig
		origin   string
		wantKind domain.DecisionKind
	}{
		{name: "exact same code", cfg: RoutingConfig{CountryPolicy: CountryPolicyExact}, origin: "+33700000002", wantKind: domain.DecisionConnect},
		{name: "exact other code", cfg: RoutingConfig{CountryPolicy: CountryPolicyExact}, origin: "+32470000000", wantKind: domain.DecisionReject},
		{name: "allow list both listed", cfg: RoutingConfig{CountryPolicy: CountryPolicyAllowList, AllowedCodes: []string{"+33", "32"}}, origin: "+32470000000", wantKind: domain.DecisionConnect},
		{name: "allow list origin not listed", cfg: RoutingConfig{CountryPolicy: CountryPolicyAllowList, AllowedCodes: []string{"+33", "+32"}}, origin: "+14155550100", wantKind: domain.DecisionReject},
		{name: "unknown policy falls back to exact", cfg: RoutingConfig{CountryPolicy: "bogus", AllowedCodes: []string{"+33", "+32"}}, origin: "+32470000000", wantKind: domain.DecisionReject},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, engine := newRoutingFixture(t, tc.cfg)
			d, err := engine.Route(context.Background(), voice(tc.origin))
			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, d.Kind)
		})
	}
}

func TestRoutingEngine_ClientWithoutStoredCodeIsGatedOnRealPhone(t *testing.T) {
	testCases := []struct {
		name      string
		realPhone string
		origin    string
		wantKind  domain.DecisionKind
	}{
		{name: "listed code other country", realPhone: "+375291234567", origin: "+4915112345678", wantKind: domain.DecisionReject},
		{name: "listed code same country", realPhone: "+375291234567", origin: "+375447654321", wantKind: domain.DecisionConnect},
		{name: "unlisted code other country", realPhone: "+999000000001", origin: "+14155550100", wantKind: domain.DecisionReject},
		{name: "unlisted code same prefix", realPhone: "+999000000001", origin: "+999000000002", wantKind: domain.DecisionConnect},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, permissiveCarrier())
			f.addClient(t, domain.Client{ID: 1, Name: "Jane Doe", RealPhone: tc.realPhone, ProxyNumber: testProxy})
			engine := NewRoutingEngine(f.directory, nil, NewCountryCodes(), nil, testLogger(), RoutingConfig{})

			d, err := engine.Route(context.Background(), voice(tc.origin))
			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, d.Kind)
		})
	}
}

func TestRoutingEngine_CreatedClientIsGatedByCountry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, permissiveCarrier())
	f.addPoolEntry(t, domain.PoolEntry{PhoneNumber: testProxy})

	client, err := f.directory.Create(ctx, CreateClientRequest{
		Contact:    domain.Contact{Name: "Ivan", Mail: "ivan@example.com", Phone: "+375291234567"},
		CountryISO: "FR",
	})
	require.NoError(t, err)
	assert.Equal(t, "+375", client.CountryCode)
	assert.Equal(t, "BY", client.ISOResidency)

	engine := NewRoutingEngine(f.directory, nil, NewCountryCodes(), nil, testLogger(), RoutingConfig{CountryPolicy: CountryPolicyExact})
	d, err := engine.Route(ctx, voice("+4915112345678"))
	require.NoError(t, err)
	assert.Equal(t, domain.Reject(domain.ReasonCountry, msgCountryBlocked), d)
}

func TestRoutingEngine_MessagesAreRelayed(t *testing.T) {
	ctx := context.Background()
	_, engine := newRoutingFixture(t, RoutingConfig{})

	d, err := engine.Route(ctx, domain.InboundEvent{
		Channel: domain.ChannelMessage, Proxy: testProxy, Origin: "+33700000002", Body: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Relay(testProxy, testRealPhone, "hello"), d)

	d, err = engine.Route(ctx, domain.InboundEvent{
		Channel: domain.ChannelMessage, Proxy: testProxy, Origin: testRealPhone, Body: "hi back",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Relay(testProxy, "+33700000002", "hi back"), d)
}

func TestRoutingEngine_InterceptsOTPReplies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, permissiveCarrier())
	f.addPoolEntry(t, domain.PoolEntry{PhoneNumber: "+33611111111"})
	intake(t, f, "P1", janeContact)
	pending, err := f.workflow.CreatePending(ctx, CreatePendingRequest{PendingID: "P1", CountryISO: "FR"})
	require.NoError(t, err)
	engine := NewRoutingEngine(f.directory, f.workflow, NewCountryCodes(), nil, testLogger(), RoutingConfig{})

	msg := domain.InboundEvent{Channel: domain.ChannelMessage, Proxy: pending.ProxyNumber, Origin: "33600000001"}

	msg.Body = "0000"
	d, err := engine.Route(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, domain.Reject(domain.ReasonConfirmation, msgInvalidCode), d)

	call := msg
	call.Channel = domain.ChannelVoice
	d, err = engine.Route(ctx, call)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonUnknownProxy, d.Reason)

	msg.Body = "Code " + pending.OTP
	d, err = engine.Route(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonConfirmation, d.Reason)
	assert.Empty(t, d.Message)

	d, err = engine.Route(ctx, domain.InboundEvent{
		Channel: domain.ChannelVoice, Proxy: pending.ProxyNumber, Origin: "+33700000002",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Connect("+33611111111", "+33600000001"), d)
}

func TestRoutingEngine_StorageFailureIsUnavailable(t *testing.T) {
	f := newFixture(t, permissiveCarrier())
	failing := &failingStore{err: errors.New("connection refused")}
	f.directory.clients = newClientTableOn(failing)
	engine := NewRoutingEngine(f.directory, nil, NewCountryCodes(), nil, testLogger(), RoutingConfig{})

	d, err := engine.Route(context.Background(), voice("+33700000002"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))
	assert.Equal(t, domain.Reject(domain.ReasonUnavailable, msgUnavailable), d)
}

func TestRoutingEngine_LastCallerWriteFailureStillConnects(t *testing.T) {
	ctx := context.Background()
	f, _ := newRoutingFixture(t, RoutingConfig{})
	store := &readOnlyStore{inner: f.clientStore}
	f.directory.clients = newClientTableOn(store)
	engine := NewRoutingEngine(f.directory, nil, NewCountryCodes(), nil, testLogger(), RoutingConfig{})

	d, err := engine.Route(ctx, voice("+33700000002"))
	require.NoError(t, err)
	assert.Equal(t, domain.Connect(testProxy, testRealPhone), d)
}
