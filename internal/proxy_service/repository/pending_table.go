package repository

import (
	"context"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// Pending confirmation table columns.
const (
	PendingID              = "pending_id"
	PendingClientName      = "client_name"
	PendingClientMail      = "client_mail"
	PendingClientRealPhone = "client_real_phone"
	PendingCountryISO      = "country_iso"
	PendingNumberType      = "number_type"
	PendingProxyNumber     = "proxy_number"
	PendingOTP             = "otp"
	PendingStatus          = "status"
	PendingCreatedAt       = "created_at"
	PendingVerifiedAt      = "verified_at"
	PendingUpdatedFields   = "updated_fields"
)

var pendingColumns = []string{
	PendingID, PendingClientName, PendingClientMail, PendingClientRealPhone, PendingCountryISO,
	PendingNumberType, PendingProxyNumber, PendingOTP, PendingStatus, PendingCreatedAt,
	PendingVerifiedAt, PendingUpdatedFields,
}

// PendingTable stores in-flight phone verifications.
type PendingTable struct {
	*Table
}

// NewPendingTable wraps store as the pending confirmation table.
func NewPendingTable(store domain.RowStore) *PendingTable {
	return &PendingTable{Table: NewTable("pending_confirmations", store, pendingColumns)}
}

// All returns every pending confirmation in storage order.
func (p *PendingTable) All(ctx context.Context) ([]domain.PendingConfirmation, error) {
	records, err := p.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PendingConfirmation, 0, len(records))
	for _, r := range records {
		out = append(out, domain.PendingConfirmation{
			Row:             r.Row,
			PendingID:       r.Get(PendingID),
			ClientName:      r.Get(PendingClientName),
			ClientMail:      r.Get(PendingClientMail),
			ClientRealPhone: r.Get(PendingClientRealPhone),
			CountryISO:      r.Get(PendingCountryISO),
			NumberType:      r.Get(PendingNumberType),
			ProxyNumber:     r.Get(PendingProxyNumber),
			OTP:             r.Get(PendingOTP),
			Status:          domain.PendingStatus(r.Get(PendingStatus)),
			CreatedAt:       r.Get(PendingCreatedAt),
			VerifiedAt:      r.Get(PendingVerifiedAt),
			UpdatedFields:   r.Get(PendingUpdatedFields),
		})
	}
	return out, nil
}

// FindByID returns the row for pendingID or domain.ErrNotFound.
func (p *PendingTable) FindByID(ctx context.Context, pendingID string) (*domain.PendingConfirmation, error) {
	all, err := p.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].PendingID == pendingID {
			return &all[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// AppendPending adds an intake row.
func (p *PendingTable) AppendPending(ctx context.Context, pc domain.PendingConfirmation) error {
	return p.Append(ctx,
		Set(PendingID, pc.PendingID),
		Set(PendingClientName, pc.ClientName),
		Set(PendingClientMail, pc.ClientMail),
		Set(PendingClientRealPhone, pc.ClientRealPhone),
		Set(PendingCountryISO, pc.CountryISO),
		Set(PendingNumberType, pc.NumberType),
		Set(PendingProxyNumber, pc.ProxyNumber),
		Set(PendingOTP, pc.OTP),
		Set(PendingStatus, string(pc.Status)),
		Set(PendingCreatedAt, pc.CreatedAt),
		Set(PendingVerifiedAt, pc.VerifiedAt),
		Set(PendingUpdatedFields, pc.UpdatedFields),
	)
}
