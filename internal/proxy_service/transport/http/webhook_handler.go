package http

import (
	"log/slog"
	"net/http"
	"strings"

	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Tech-Aware/ProxyCall/internal/platform/logger"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

const msgRelayFailed = "Service temporarily unavailable."

// WebhookHandler answers the carrier's voice and messaging webhooks.
type WebhookHandler struct {
	router    Router
	messenger Messenger
	guard     ReplayGuard
	logger    *slog.Logger
	language  string
}

// NewWebhookHandler creates a WebhookHandler. guard may be nil, in which case
// carrier retries are routed again.
func NewWebhookHandler(router Router, messenger Messenger, guard ReplayGuard, log *slog.Logger, voiceLanguage string) *WebhookHandler {
	return &WebhookHandler{
		router:    router,
		messenger: messenger,
		guard:     guard,
		logger:    log.With("handler", "webhook"),
		language:  voiceLanguage,
	}
}

// HandleVoice routes an inbound call.
func (h *WebhookHandler) HandleVoice(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.ChannelVoice, "CallSid")
}

// HandleSMS routes an inbound message.
func (h *WebhookHandler) HandleSMS(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.ChannelMessage, "MessageSid")
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, channel domain.Channel, sidField string) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	log := h.logger.With("request_id", requestID, "channel", channel)

	if err := r.ParseForm(); err != nil {
		log.WarnContext(ctx, "Failed to parse webhook form", "error", err)
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	ev := domain.InboundEvent{
		Channel: channel,
		Proxy:   strings.TrimSpace(r.PostForm.Get("To")),
		Origin:  strings.TrimSpace(r.PostForm.Get("From")),
		Body:    r.PostForm.Get("Body"),
		EventID: strings.TrimSpace(r.PostForm.Get(sidField)),
	}
	if ev.Proxy == "" || ev.Origin == "" {
		log.WarnContext(ctx, "Webhook without From or To")
		http.Error(w, "From and To are required", http.StatusBadRequest)
		return
	}
	log = log.With("event_id", ev.EventID, "proxy", ev.Proxy, "origin", logger.MaskPhone(ev.Origin))

	if h.guard != nil && ev.EventID != "" {
		first, err := h.guard.FirstSeen(ctx, ev.EventID)
		if err != nil {
			log.WarnContext(ctx, "Replay guard unavailable, routing anyway", "error", err)
		} else if !first {
			log.InfoContext(ctx, "Duplicate webhook dropped")
			h.respond(w, r, log, twimlResponse{})
			return
		}
	}

	decision, err := h.router.Route(ctx, ev)
	if err != nil {
		log.ErrorContext(ctx, "Routing failed", "error", err)
		h.forget(r, log, ev.EventID)
	}

	h.respond(w, r, log, h.render(r, log, channel, decision))
}

// render turns a decision into carrier instructions. Relays are executed
// here and answered with an empty response.
func (h *WebhookHandler) render(r *http.Request, log *slog.Logger, channel domain.Channel, d domain.Decision) twimlResponse {
	ctx := r.Context()
	switch d.Kind {
	case domain.DecisionConnect:
		return twimlResponse{Dial: &twimlDial{CallerID: d.From, Number: d.To}}
	case domain.DecisionRelay:
		if err := h.messenger.SendMessage(ctx, d.From, d.To, d.Body); err != nil {
			log.ErrorContext(ctx, "Failed to relay message", "error", err)
			return twimlResponse{Message: &twimlMessage{Text: msgRelayFailed}}
		}
		return twimlResponse{}
	default:
		if d.Message == "" {
			if channel == domain.ChannelVoice {
				return twimlResponse{Hangup: &struct{}{}}
			}
			return twimlResponse{}
		}
		if channel == domain.ChannelVoice {
			return twimlResponse{Say: &twimlSay{Language: h.language, Text: d.Message}, Hangup: &struct{}{}}
		}
		return twimlResponse{Message: &twimlMessage{Text: d.Message}}
	}
}

func (h *WebhookHandler) respond(w http.ResponseWriter, r *http.Request, log *slog.Logger, resp twimlResponse) {
	if err := writeTwiML(w, resp); err != nil {
		log.ErrorContext(r.Context(), "Failed to write TwiML response", "error", err)
	}
}

func (h *WebhookHandler) forget(r *http.Request, log *slog.Logger, eventID string) {
	if h.guard == nil || eventID == "" {
		return
	}
	if err := h.guard.Forget(r.Context(), eventID); err != nil {
		log.WarnContext(r.Context(), "Failed to clear replay marker", "error", err)
	}
}
