package http

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

const (
	proxyNumber  = "+33900000000"
	clientPhone  = "+33600000001"
	callerNumber = "+33611111111"
)

func webhookForm(from, to, sidField, sid, body string) string {
	form := url.Values{}
	if from != "" {
		form.Set("From", from)
	}
	if to != "" {
		form.Set("To", to)
	}
	if sid != "" {
		form.Set(sidField, sid)
	}
	if body != "" {
		form.Set("Body", body)
	}
	return form.Encode()
}

func (s *testServer) postWebhook(path, form string) (int, string) {
	rr := s.do(http.MethodPost, path, "application/x-www-form-urlencoded", form)
	return rr.Code, rr.Body.String()
}

func TestWebhookHandler_VoiceConnectRendersDial(t *testing.T) {
	s := newTestServer(t, false)
	ev := domain.InboundEvent{Channel: domain.ChannelVoice, Proxy: proxyNumber, Origin: callerNumber, EventID: "CA1"}
	s.router.On("Route", mock.Anything, ev).Return(domain.Connect(proxyNumber, clientPhone), nil).Once()

	code, body := s.postWebhook("/webhooks/voice", webhookForm(callerNumber, proxyNumber, "CallSid", "CA1", ""))

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, body, `<Response><Dial callerId="+33900000000"><Number>+33600000001</Number></Dial></Response>`)
}

func TestWebhookHandler_VoiceRejectSaysAndHangsUp(t *testing.T) {
	s := newTestServer(t, false)
	s.router.On("Route", mock.Anything, mock.AnythingOfType("domain.InboundEvent")).
		Return(domain.Reject(domain.ReasonCountry, "This number is not accessible from your country."), nil).Once()

	code, body := s.postWebhook("/webhooks/voice", webhookForm(callerNumber, proxyNumber, "CallSid", "CA2", ""))

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `<Say language="en-US">This number is not accessible from your country.</Say><Hangup></Hangup>`)
}

func TestWebhookHandler_SMSRelaySendsThroughCarrier(t *testing.T) {
	s := newTestServer(t, false)
	ev := domain.InboundEvent{Channel: domain.ChannelMessage, Proxy: proxyNumber, Origin: callerNumber, Body: "hello", EventID: "SM1"}
	s.router.On("Route", mock.Anything, ev).Return(domain.Relay(proxyNumber, clientPhone, "hello"), nil).Once()
	s.messenger.On("SendMessage", mock.Anything, proxyNumber, clientPhone, "hello").Return(nil).Once()

	code, body := s.postWebhook("/webhooks/sms", webhookForm(callerNumber, proxyNumber, "MessageSid", "SM1", "hello"))

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<Response></Response>")
}

func TestWebhookHandler_SMSRelayFailureAnswersUnavailable(t *testing.T) {
	s := newTestServer(t, false)
	s.router.On("Route", mock.Anything, mock.AnythingOfType("domain.InboundEvent")).
		Return(domain.Relay(proxyNumber, clientPhone, "hello"), nil).Once()
	s.messenger.On("SendMessage", mock.Anything, proxyNumber, clientPhone, "hello").
		Return(&domain.CarrierError{Op: "send message", Err: errors.New("timeout")}).Once()

	_, body := s.postWebhook("/webhooks/sms", webhookForm(callerNumber, proxyNumber, "MessageSid", "SM2", "hello"))

	assert.Contains(t, body, "<Message>Service temporarily unavailable.</Message>")
}

func TestWebhookHandler_SilentRejectOnMessage(t *testing.T) {
	s := newTestServer(t, false)
	s.router.On("Route", mock.Anything, mock.AnythingOfType("domain.InboundEvent")).
		Return(domain.Reject(domain.ReasonConfirmation, ""), nil).Once()

	_, body := s.postWebhook("/webhooks/sms", webhookForm(callerNumber, proxyNumber, "MessageSid", "SM3", "123456"))

	assert.Contains(t, body, "<Response></Response>")
}

func TestWebhookHandler_RejectOnMessageRepliesWithText(t *testing.T) {
	s := newTestServer(t, false)
	s.router.On("Route", mock.Anything, mock.AnythingOfType("domain.InboundEvent")).
		Return(domain.Reject(domain.ReasonNoRecentContact, "No recent contact for this proxy."), nil).Once()

	_, body := s.postWebhook("/webhooks/sms", webhookForm(clientPhone, proxyNumber, "MessageSid", "SM4", "hi"))

	assert.Contains(t, body, "<Message>No recent contact for this proxy.</Message>")
}

func TestWebhookHandler_MissingFromIsBadRequest(t *testing.T) {
	s := newTestServer(t, false)

	code, _ := s.postWebhook("/webhooks/voice", webhookForm("", proxyNumber, "CallSid", "CA3", ""))

	assert.Equal(t, http.StatusBadRequest, code)
	s.router.AssertNotCalled(t, "Route", mock.Anything, mock.Anything)
}

func TestWebhookHandler_DuplicateIsDropped(t *testing.T) {
	s := newTestServer(t, true)
	s.guard.On("FirstSeen", mock.Anything, "CA4").Return(false, nil).Once()

	code, body := s.postWebhook("/webhooks/voice", webhookForm(callerNumber, proxyNumber, "CallSid", "CA4", ""))

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<Response></Response>")
	s.router.AssertNotCalled(t, "Route", mock.Anything, mock.Anything)
}

func TestWebhookHandler_RoutingErrorForgetsEvent(t *testing.T) {
	s := newTestServer(t, true)
	s.guard.On("FirstSeen", mock.Anything, "CA5").Return(true, nil).Once()
	s.guard.On("Forget", mock.Anything, "CA5").Return(nil).Once()
	s.router.On("Route", mock.Anything, mock.AnythingOfType("domain.InboundEvent")).
		Return(domain.Reject(domain.ReasonUnavailable, "Service temporarily unavailable."),
			&domain.StorageError{Op: "read", Err: errors.New("connection refused")}).Once()

	code, body := s.postWebhook("/webhooks/voice", webhookForm(callerNumber, proxyNumber, "CallSid", "CA5", ""))

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<Say language=\"en-US\">Service temporarily unavailable.</Say>")
}

func TestWebhookHandler_GuardOutageStillRoutes(t *testing.T) {
	s := newTestServer(t, true)
	s.guard.On("FirstSeen", mock.Anything, "CA6").Return(false, errors.New("redis down")).Once()
	s.router.On("Route", mock.Anything, mock.AnythingOfType("domain.InboundEvent")).
		Return(domain.Connect(proxyNumber, clientPhone), nil).Once()

	_, body := s.postWebhook("/webhooks/voice", webhookForm(callerNumber, proxyNumber, "CallSid", "CA6", ""))

	assert.Contains(t, body, "<Dial")
}
