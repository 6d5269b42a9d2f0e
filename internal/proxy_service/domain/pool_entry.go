package domain

import (
	"strings"
	"time"
)

// NumberType is the carrier category of a pool number.
type NumberType string

const (
	NumberTypeMobile NumberType = "mobile"
	NumberTypeLocal  NumberType = "local"
)

// ParseNumberType accepts "mobile", "local" and the "national" alias of local.
func ParseNumberType(raw string) (NumberType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mobile":
		return NumberTypeMobile, nil
	case "local", "national":
		return NumberTypeLocal, nil
	default:
		return "", NewValidationError("number_type", "expected mobile, local or national", raw)
	}
}

// Other returns the fallback type (mobile <-> local).
func (t NumberType) Other() NumberType {
	if t == NumberTypeMobile {
		return NumberTypeLocal
	}
	return NumberTypeMobile
}

// FallbackOrder is the ordered list of number types a reservation may use.
type FallbackOrder []NumberType

// WithFallback returns [t, t.Other()].
func WithFallback(t NumberType) FallbackOrder {
	return FallbackOrder{t, t.Other()}
}

// Only returns an order restricted to t.
func Only(t NumberType) FallbackOrder {
	return FallbackOrder{t}
}

// PoolStatus is the allocation state of a pool entry.
type PoolStatus string

const (
	PoolStatusAvailable PoolStatus = "available"
	PoolStatusReserved  PoolStatus = "reserved"
	PoolStatusAssigned  PoolStatus = "assigned"
	// PoolStatusPurged marks a manually removed number; scans ignore it.
	PoolStatusPurged PoolStatus = "purged"
)

// PoolEntry is one phone number owned by the business.
type PoolEntry struct {
	Row              int        `json:"row"`
	CountryISO       string     `json:"country_iso"`
	PhoneNumber      string     `json:"phone_number"`
	NumberType       NumberType `json:"number_type"`
	Status           PoolStatus `json:"status"`
	FriendlyName     string     `json:"friendly_name"`
	PurchasedAt      string     `json:"purchased_at"`
	AssignedAt       string     `json:"assigned_at"`
	AttributionName  string     `json:"attribution_name"`
	ReservationToken string     `json:"reservation_token,omitempty"`
	ReservedAt       string     `json:"reserved_at,omitempty"`
	ReservedBy       string     `json:"reserved_by,omitempty"`
}

// IsStale reports whether a reserved entry can be reclaimed. An empty or
// unparsable reserved_at counts as stale.
func (e PoolEntry) IsStale(now time.Time, after time.Duration) bool {
	if e.Status != PoolStatusReserved {
		return false
	}
	at, ok := ParseTimestamp(e.ReservedAt)
	if !ok {
		return true
	}
	return now.Sub(at) >= after
}

// Reservable reports whether Reserve may claim this entry.
func (e PoolEntry) Reservable(now time.Time, staleAfter time.Duration) bool {
	switch e.Status {
	case PoolStatusAvailable:
		return true
	case PoolStatusReserved:
		return e.IsStale(now, staleAfter)
	default:
		return false
	}
}

// Matches reports whether the entry belongs to country and type.
func (e PoolEntry) Matches(country string, t NumberType) bool {
	return strings.EqualFold(e.CountryISO, country) && e.NumberType == t
}
