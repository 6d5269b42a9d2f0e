package http

import (
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/app"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// ContactDTO carries client contact details. Format checks beyond presence
// happen in the domain layer.
type ContactDTO struct {
	Name  string `json:"name" validate:"required,max=120"`
	Mail  string `json:"mail" validate:"required,email,max=254"`
	Phone string `json:"phone" validate:"required,max=32"`
}

func (c ContactDTO) toDomain() domain.Contact {
	return domain.Contact{Name: c.Name, Mail: c.Mail, Phone: c.Phone}
}

// IntakeRequestDTO registers a pending confirmation.
type IntakeRequestDTO struct {
	PendingID  string     `json:"pending_id" validate:"required,max=128"`
	Contact    ContactDTO `json:"contact" validate:"required"`
	CountryISO string     `json:"country_iso,omitempty" validate:"omitempty,len=2,alpha"`
	NumberType string     `json:"number_type,omitempty" validate:"omitempty,oneof=mobile local national"`
}

// StartConfirmationRequestDTO reserves a proxy and sends the OTP. Contact is
// optional and replaces the stored contact fields when present.
type StartConfirmationRequestDTO struct {
	CountryISO string      `json:"country_iso" validate:"required,len=2,alpha"`
	NumberType string      `json:"number_type,omitempty" validate:"omitempty,oneof=mobile local national"`
	Contact    *ContactDTO `json:"contact,omitempty" validate:"omitempty"`
}

// VerifyRequestDTO submits an OTP received out of band.
type VerifyRequestDTO struct {
	ProxyNumber  string `json:"proxy_number" validate:"required"`
	OriginNumber string `json:"origin_number" validate:"required"`
	Code         string `json:"code" validate:"required,max=64"`
}

// ExpireRequestDTO expires pending confirmations older than Hours.
type ExpireRequestDTO struct {
	Hours *int `json:"hours" validate:"required,min=0"`
}

// ProvisionRequestDTO buys numbers for the pool.
type ProvisionRequestDTO struct {
	CountryISO string `json:"country_iso" validate:"required,len=2,alpha"`
	NumberType string `json:"number_type" validate:"required,oneof=mobile local national"`
	Quantity   int    `json:"quantity" validate:"required,min=1,max=50"`
	Fallback   bool   `json:"fallback"`
}

// ReleaseRequestDTO releases every row reserved under Token.
type ReleaseRequestDTO struct {
	Token string `json:"token" validate:"required"`
}

// RewireRequestDTO re-applies carrier webhooks.
type RewireRequestDTO struct {
	CountryISO string `json:"country_iso,omitempty" validate:"omitempty,len=2,alpha"`
	Status     string `json:"status,omitempty" validate:"omitempty,oneof=available reserved assigned"`
	DryRun     bool   `json:"dry_run"`
}

// CreateClientRequestDTO provisions a client directly.
type CreateClientRequestDTO struct {
	Contact    ContactDTO `json:"contact" validate:"required"`
	CountryISO string     `json:"country_iso" validate:"required,len=2,alpha"`
	NumberType string     `json:"number_type,omitempty" validate:"omitempty,oneof=mobile local national"`
}

// UpdateClientRequestDTO changes contact details. Empty fields are kept.
type UpdateClientRequestDTO struct {
	Name  string `json:"name,omitempty" validate:"omitempty,max=120"`
	Mail  string `json:"mail,omitempty" validate:"omitempty,email,max=254"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// AvailableResponse lists available pool numbers.
type AvailableResponse struct {
	Country   string              `json:"country"`
	Numbers   []domain.PoolEntry  `json:"numbers"`
	Available domain.Availability `json:"available"`
}

// ProvisionResponse reports a provisioning run.
type ProvisionResponse struct {
	Results []app.ReplenishResult `json:"results"`
	Added   int                   `json:"added"`
}

// UpdateClientResponse is the client after an update.
type UpdateClientResponse struct {
	Client        *domain.Client `json:"client"`
	UpdatedFields []string       `json:"updated_fields"`
}

func parseNumberType(raw string) (domain.NumberType, error) {
	if raw == "" {
		return "", nil
	}
	return domain.ParseNumberType(raw)
}
