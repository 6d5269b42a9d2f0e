package domain

import "context"

// Carrier is the telephony provider used to buy numbers and send SMS.
type Carrier interface {
	PurchaseNumber(ctx context.Context, countryISO string, numberType NumberType) (string, error)
	ConfigureWebhooks(ctx context.Context, phoneNumber string) error
	SendMessage(ctx context.Context, from, to, body string) error
}

// Notification is an outbound best-effort message to a client.
type Notification struct {
	ClientID    int64
	Name        string
	Mail        string
	ProxyNumber string
	Subject     string
	Body        string
}

// NotificationSink delivers post-verification notifications.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification) error
}
