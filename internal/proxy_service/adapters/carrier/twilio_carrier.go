package carrier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Tech-Aware/ProxyCall/internal/platform/logger"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

const (
	apiVersion       = "2010-04-01"
	VoiceWebhookPath = "/webhooks/voice"
	SMSWebhookPath   = "/webhooks/sms"
)

// TwilioConfig holds the account credentials and the public base URL the
// carrier calls back on.
type TwilioConfig struct {
	AccountSID    string `mapstructure:"CARRIER_ACCOUNT_SID"`
	AuthToken     string `mapstructure:"CARRIER_AUTH_TOKEN"`
	APIBaseURL    string `mapstructure:"CARRIER_API_BASE_URL"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
}

// TwilioCarrier implements domain.Carrier over the Twilio REST API.
type TwilioCarrier struct {
	logger     *slog.Logger
	httpClient *http.Client
	cfg        TwilioConfig
}

func NewTwilioCarrier(logger *slog.Logger, cfg TwilioConfig, httpClient *http.Client) *TwilioCarrier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.twilio.com"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &TwilioCarrier{
		logger:     logger.With("provider", "twilio"),
		httpClient: httpClient,
		cfg:        cfg,
	}
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

type availableNumbersResponse struct {
	AvailablePhoneNumbers []struct {
		PhoneNumber string `json:"phone_number"`
	} `json:"available_phone_numbers"`
}

type incomingNumber struct {
	SID         string `json:"sid"`
	PhoneNumber string `json:"phone_number"`
}

type incomingNumbersResponse struct {
	IncomingPhoneNumbers []incomingNumber `json:"incoming_phone_numbers"`
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// VoiceURL is the voice webhook configured on every proxy.
func (c *TwilioCarrier) VoiceURL() string { return c.cfg.PublicBaseURL + VoiceWebhookPath }

// SMSURL is the messaging webhook configured on every proxy.
func (c *TwilioCarrier) SMSURL() string { return c.cfg.PublicBaseURL + SMSWebhookPath }

// PurchaseNumber buys the first number the carrier offers for country and
// type, wiring its webhooks at purchase time.
func (c *TwilioCarrier) PurchaseNumber(ctx context.Context, countryISO string, numberType domain.NumberType) (string, error) {
	category := "Mobile"
	if numberType == domain.NumberTypeLocal {
		category = "Local"
	}
	search := url.Values{"PageSize": {"1"}, "SmsEnabled": {"true"}, "VoiceEnabled": {"true"}}
	var available availableNumbersResponse
	path := fmt.Sprintf("/AvailablePhoneNumbers/%s/%s.json", url.PathEscape(strings.ToUpper(countryISO)), category)
	if err := c.do(ctx, http.MethodGet, path, search, nil, &available); err != nil {
		return "", &domain.CarrierError{Op: "search numbers", Err: err}
	}
	if len(available.AvailablePhoneNumbers) == 0 {
		return "", &domain.CarrierError{
			Op:  "search numbers",
			Err: fmt.Errorf("no %s number offered for %s", numberType, countryISO),
		}
	}

	form := url.Values{
		"PhoneNumber":  {available.AvailablePhoneNumbers[0].PhoneNumber},
		"FriendlyName": {fmt.Sprintf("ProxyCall %s %s", strings.ToUpper(countryISO), numberType)},
	}
	c.webhookParams(form)
	var bought incomingNumber
	if err := c.do(ctx, http.MethodPost, "/IncomingPhoneNumbers.json", nil, form, &bought); err != nil {
		return "", &domain.CarrierError{Op: "purchase number", Err: err}
	}
	c.logger.InfoContext(ctx, "Number purchased", "country", countryISO, "number_type", numberType,
		"phone_number", logger.MaskPhone(bought.PhoneNumber), "sid", bought.SID)
	return bought.PhoneNumber, nil
}

// ConfigureWebhooks points the voice and SMS webhooks of phoneNumber at this
// service.
func (c *TwilioCarrier) ConfigureWebhooks(ctx context.Context, phoneNumber string) error {
	var list incomingNumbersResponse
	if err := c.do(ctx, http.MethodGet, "/IncomingPhoneNumbers.json", url.Values{"PhoneNumber": {phoneNumber}}, nil, &list); err != nil {
		return &domain.CarrierError{Op: "lookup number", Err: err}
	}
	if len(list.IncomingPhoneNumbers) == 0 {
		return &domain.CarrierError{Op: "lookup number", Err: fmt.Errorf("%s is not owned by the account", logger.MaskPhone(phoneNumber))}
	}

	form := url.Values{}
	c.webhookParams(form)
	path := fmt.Sprintf("/IncomingPhoneNumbers/%s.json", url.PathEscape(list.IncomingPhoneNumbers[0].SID))
	if err := c.do(ctx, http.MethodPost, path, nil, form, nil); err != nil {
		return &domain.CarrierError{Op: "configure webhooks", Err: err}
	}
	c.logger.DebugContext(ctx, "Webhooks configured", "phone_number", logger.MaskPhone(phoneNumber))
	return nil
}

// SendMessage sends an SMS from one of the account numbers.
func (c *TwilioCarrier) SendMessage(ctx context.Context, from, to, body string) error {
	form := url.Values{"From": {from}, "To": {to}, "Body": {body}}
	var msg messageResponse
	if err := c.do(ctx, http.MethodPost, "/Messages.json", nil, form, &msg); err != nil {
		return &domain.CarrierError{Op: "send message", Err: err}
	}
	c.logger.InfoContext(ctx, "Message sent", "to", logger.MaskPhone(to), "sid", msg.SID, "status", msg.Status)
	return nil
}

func (c *TwilioCarrier) webhookParams(form url.Values) {
	if c.cfg.PublicBaseURL == "" {
		return
	}
	form.Set("VoiceUrl", c.VoiceURL())
	form.Set("VoiceMethod", http.MethodPost)
	form.Set("SmsUrl", c.SMSURL())
	form.Set("SmsMethod", http.MethodPost)
}

func (c *TwilioCarrier) do(ctx context.Context, method, path string, query, form url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/%s/Accounts/%s%s", c.cfg.APIBaseURL, apiVersion, url.PathEscape(c.cfg.AccountSID), path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Twilio request failed", "error", err, "method", method, "path", path)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr twilioError
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio %d (code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("twilio status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ domain.Carrier = (*TwilioCarrier)(nil)

// ErrNotConfigured is returned by NoopCarrier.
var ErrNotConfigured = errors.New("carrier not configured")

// NoopCarrier is used when no carrier credentials are configured. Webhooks
// are accepted, purchases and messages fail.
type NoopCarrier struct {
	Logger *slog.Logger
}

func (n NoopCarrier) PurchaseNumber(ctx context.Context, countryISO string, numberType domain.NumberType) (string, error) {
	return "", &domain.CarrierError{Op: "purchase number", Err: ErrNotConfigured}
}

func (n NoopCarrier) ConfigureWebhooks(ctx context.Context, phoneNumber string) error { return nil }

func (n NoopCarrier) SendMessage(ctx context.Context, from, to, body string) error {
	if n.Logger != nil {
		n.Logger.WarnContext(ctx, "Dropping outbound message, no carrier configured", "to", logger.MaskPhone(to))
	}
	return &domain.CarrierError{Op: "send message", Err: ErrNotConfigured}
}
