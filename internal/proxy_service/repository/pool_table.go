package repository

import (
	"context"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// Pool table columns.
const (
	PoolCountryISO       = "country_iso"
	PoolPhoneNumber      = "phone_number"
	PoolStatus           = "status"
	PoolFriendlyName     = "friendly_name"
	PoolPurchasedAt      = "purchased_at"
	PoolAssignedAt       = "assigned_at"
	PoolAttributionName  = "attribution_name"
	PoolNumberType       = "number_type"
	PoolReservationToken = "reservation_token"
	PoolReservedAt       = "reserved_at"
	PoolReservedBy       = "reserved_by"
)

var poolColumns = []string{
	PoolCountryISO, PoolPhoneNumber, PoolStatus, PoolFriendlyName, PoolPurchasedAt, PoolAssignedAt,
	PoolAttributionName, PoolNumberType, PoolReservationToken, PoolReservedAt, PoolReservedBy,
}

// PoolTable stores the phone-number inventory.
type PoolTable struct {
	*Table
}

// NewPoolTable wraps store as the pool table.
func NewPoolTable(store domain.RowStore) *PoolTable {
	return &PoolTable{Table: NewTable("pool", store, poolColumns)}
}

// Entries returns every pool entry in storage order.
func (p *PoolTable) Entries(ctx context.Context) ([]domain.PoolEntry, error) {
	records, err := p.Records(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.PoolEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, poolEntryFromRecord(r))
	}
	return entries, nil
}

// AppendEntry adds a new entry.
func (p *PoolTable) AppendEntry(ctx context.Context, e domain.PoolEntry) error {
	return p.Append(ctx,
		Set(PoolCountryISO, e.CountryISO),
		Set(PoolPhoneNumber, e.PhoneNumber),
		Set(PoolStatus, string(e.Status)),
		Set(PoolFriendlyName, e.FriendlyName),
		Set(PoolPurchasedAt, e.PurchasedAt),
		Set(PoolAssignedAt, e.AssignedAt),
		Set(PoolAttributionName, e.AttributionName),
		Set(PoolNumberType, string(e.NumberType)),
		Set(PoolReservationToken, e.ReservationToken),
		Set(PoolReservedAt, e.ReservedAt),
		Set(PoolReservedBy, e.ReservedBy),
	)
}

func poolEntryFromRecord(r Record) domain.PoolEntry {
	numberType := domain.NumberType(r.Get(PoolNumberType))
	if nt, err := domain.ParseNumberType(string(numberType)); err == nil {
		numberType = nt
	}
	return domain.PoolEntry{
		Row:              r.Row,
		CountryISO:       r.Get(PoolCountryISO),
		PhoneNumber:      domain.ToE164(r.Get(PoolPhoneNumber)),
		NumberType:       numberType,
		Status:           domain.PoolStatus(r.Get(PoolStatus)),
		FriendlyName:     r.Get(PoolFriendlyName),
		PurchasedAt:      r.Get(PoolPurchasedAt),
		AssignedAt:       r.Get(PoolAssignedAt),
		AttributionName:  r.Get(PoolAttributionName),
		ReservationToken: r.Get(PoolReservationToken),
		ReservedAt:       r.Get(PoolReservedAt),
		ReservedBy:       r.Get(PoolReservedBy),
	}
}
