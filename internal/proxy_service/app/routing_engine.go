package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Tech-Aware/ProxyCall/internal/platform/logger"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// Country gate policies.
const (
	CountryPolicyExact     = "exact"
	CountryPolicyAllowList = "allow_list"
)

const (
	msgUnknownProxy    = "This proxy number is not recognized."
	msgCountryBlocked  = "This number is not accessible from your country."
	msgNoRecentContact = "No recent contact for this proxy."
	msgUnavailable     = "Service temporarily unavailable."
	msgInvalidCode     = "ProxyCall - invalid code, please try again."
)

// RoutingConfig holds configuration specific to the RoutingEngine.
type RoutingConfig struct {
	CountryPolicy string   `mapstructure:"ROUTING_COUNTRY_POLICY"`
	AllowedCodes  []string `mapstructure:"ROUTING_ALLOWED_CODES"`
}

// RoutingEngine decides where an inbound call or message goes.
type RoutingEngine struct {
	clients      *ClientDirectory
	confirmation *ConfirmationWorkflow
	countries    *CountryCodes
	events       eventPublisher
	logger       *slog.Logger
	policy       string
	allowed      map[string]struct{}
	now          func() time.Time
}

// NewRoutingEngine creates a RoutingEngine. confirmation may be nil, in which
// case OTP replies are routed like any other message.
func NewRoutingEngine(
	clients *ClientDirectory,
	confirmation *ConfirmationWorkflow,
	countries *CountryCodes,
	events domain.EventPublisher,
	log *slog.Logger,
	cfg RoutingConfig,
) *RoutingEngine {
	policy := cfg.CountryPolicy
	if policy != CountryPolicyAllowList {
		policy = CountryPolicyExact
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedCodes))
	for _, code := range cfg.AllowedCodes {
		if code = normalizeCode(code); code != "" {
			allowed[code] = struct{}{}
		}
	}
	log = log.With("component", "routing_engine")
	return &RoutingEngine{
		clients:      clients,
		confirmation: confirmation,
		countries:    countries,
		events:       eventPublisher{pub: events, logger: log},
		logger:       log,
		policy:       policy,
		allowed:      allowed,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Route produces the decision for ev. Unknown proxies and blocked countries
// are ordinary Reject decisions. When err is non-nil the returned decision is
// a Reject carrying a generic "temporarily unavailable" message.
func (e *RoutingEngine) Route(ctx context.Context, ev domain.InboundEvent) (domain.Decision, error) {
	ev.Proxy = domain.ToE164(ev.Proxy)
	ev.Origin = domain.ToE164(ev.Origin)

	decision, clientID, err := e.route(ctx, ev)
	if err != nil {
		e.logger.ErrorContext(ctx, "Routing failed", "error", err, "channel", ev.Channel,
			"proxy", logger.MaskPhone(ev.Proxy), "origin", logger.MaskPhone(ev.Origin))
		decision = domain.Reject(domain.ReasonUnavailable, msgUnavailable)
	}

	routingDecisionsCounter.WithLabelValues(string(ev.Channel), string(decision.Kind), decision.Reason).Inc()
	e.events.publish(ctx, domain.SubjectRoutingPrefix+string(decision.Kind), domain.RoutingEvent{
		Channel:    ev.Channel,
		Proxy:      ev.Proxy,
		Origin:     ev.Origin,
		Kind:       decision.Kind,
		Reason:     decision.Reason,
		ClientID:   clientID,
		OccurredAt: e.now(),
	})
	return decision, err
}

func (e *RoutingEngine) route(ctx context.Context, ev domain.InboundEvent) (domain.Decision, int64, error) {
	if ev.Channel == domain.ChannelMessage && e.confirmation != nil {
		decision, handled, err := e.interceptConfirmation(ctx, ev)
		if err != nil || handled {
			return decision, 0, err
		}
	}

	client, err := e.clients.GetByProxy(ctx, ev.Proxy)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.InfoContext(ctx, "Inbound event for unknown proxy", "proxy", logger.MaskPhone(ev.Proxy))
			return domain.Reject(domain.ReasonUnknownProxy, msgUnknownProxy), 0, nil
		}
		return domain.Decision{}, 0, err
	}

	if !e.countryAllowed(ev.Origin, client) {
		e.logger.InfoContext(ctx, "Inbound event blocked by country gate", "client_id", client.ID,
			"origin_code", e.countries.CodeOf(ev.Origin), "client_code", client.CountryCode)
		return domain.Reject(domain.ReasonCountry, msgCountryBlocked), client.ID, nil
	}

	if domain.SamePhone(ev.Origin, client.RealPhone) {
		if client.LastCaller == "" {
			return domain.Reject(domain.ReasonNoRecentContact, msgNoRecentContact), client.ID, nil
		}
		return e.deliver(ev, client.LastCaller), client.ID, nil
	}

	if !domain.SamePhone(client.LastCaller, ev.Origin) {
		if err := e.clients.SetLastCaller(ctx, *client, ev.Origin); err != nil {
			e.logger.WarnContext(ctx, "Failed to record last caller", "error", err, "client_id", client.ID)
		}
	}
	return e.deliver(ev, client.RealPhone), client.ID, nil
}

// interceptConfirmation hands an OTP reply to the confirmation workflow.
// handled is false when no pending confirmation matches the pair.
func (e *RoutingEngine) interceptConfirmation(ctx context.Context, ev domain.InboundEvent) (domain.Decision, bool, error) {
	pending, err := e.confirmation.FindPending(ctx, ev.Proxy, ev.Origin)
	if err != nil {
		return domain.Decision{}, false, err
	}
	if pending == nil {
		return domain.Decision{}, false, nil
	}

	res, err := e.confirmation.VerifyOtp(ctx, ev.Proxy, ev.Origin, ev.Body)
	if err != nil {
		return domain.Decision{}, true, err
	}
	switch res.Outcome {
	case domain.OutcomeInvalidCode:
		return domain.Reject(domain.ReasonConfirmation, msgInvalidCode), true, nil
	case domain.OutcomeNoPending:
		// Completed concurrently; route as a normal message.
		return domain.Decision{}, false, nil
	default:
		// The workflow already sent the confirmation SMS.
		return domain.Reject(domain.ReasonConfirmation, ""), true, nil
	}
}

func (e *RoutingEngine) deliver(ev domain.InboundEvent, to string) domain.Decision {
	if ev.Channel == domain.ChannelMessage {
		return domain.Relay(ev.Proxy, to, ev.Body)
	}
	return domain.Connect(ev.Proxy, to)
}

// countryAllowed applies the configured policy. A client without a stored
// country code is gated on the code derived from its real phone.
func (e *RoutingEngine) countryAllowed(origin string, client *domain.Client) bool {
	clientCode := normalizeCode(client.CountryCode)
	if clientCode == "" {
		clientCode = e.countries.Derive(client.RealPhone)
	}
	if clientCode == "" {
		return false
	}
	originCode, _, ok := e.countries.Lookup(origin)
	if !ok {
		// Fall back to a prefix test for codes missing from the table.
		return strings.HasPrefix(domain.Digits(origin), strings.TrimPrefix(clientCode, "+"))
	}
	if originCode == clientCode {
		return true
	}
	if e.policy != CountryPolicyAllowList {
		return false
	}
	_, originOK := e.allowed[originCode]
	_, clientOK := e.allowed[clientCode]
	return originOK && clientOK
}
