package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	testCases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "+33601020304", want: "+33601020304"},
		{raw: " 0033601020304 ", want: "+33601020304"},
		{raw: "33601020304", want: "+33601020304"},
		{raw: "+33 6 01 02 03 04", wantErr: true},
		{raw: "06-01-02-03-04", wantErr: true},
		{raw: "+0601020304", wantErr: true},
		{raw: "+336", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := NormalizePhone("phone", tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, "phone", ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeContact(t *testing.T) {
	c, err := NormalizeContact(Contact{Name: " Jane ", Mail: "Jane@Example.COM", Phone: "+33600000001"})
	require.NoError(t, err)
	assert.Equal(t, Contact{Name: "Jane", Mail: "jane@example.com", Phone: "+33600000001"}, c)

	_, err = NormalizeContact(Contact{Name: "Jane", Mail: "jane@", Phone: "+33600000001"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "client_mail", ve.Field)

	_, err = NormalizeContact(Contact{Name: "Ja\x07ne", Mail: "jane@example.com", Phone: "+33600000001"})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestNormalizeCountryISO(t *testing.T) {
	got, err := NormalizeCountryISO("country", " fr ")
	require.NoError(t, err)
	assert.Equal(t, "FR", got)

	for _, raw := range []string{"", "FRA", "F1", "é1"} {
		_, err := NormalizeCountryISO("country", raw)
		assert.True(t, errors.Is(err, ErrValidation), raw)
	}
}

func TestSamePhoneAndToE164(t *testing.T) {
	assert.True(t, SamePhone("+33600000001", "33600000001"))
	assert.False(t, SamePhone("", ""))
	assert.False(t, SamePhone("+33600000001", "+33600000002"))

	assert.Equal(t, "+33600000001", ToE164("33600000001"))
	assert.Equal(t, "+33600000001", ToE164("0033600000001"))
	assert.Equal(t, "+33600000001", ToE164("+33 600 000 001"))
	assert.Equal(t, "", ToE164("  "))
}

func TestParseNumberType(t *testing.T) {
	nt, err := ParseNumberType("National")
	require.NoError(t, err)
	assert.Equal(t, NumberTypeLocal, nt)

	nt, err = ParseNumberType("mobile")
	require.NoError(t, err)
	assert.Equal(t, NumberTypeMobile, nt)
	assert.Equal(t, NumberTypeLocal, nt.Other())
	assert.Equal(t, FallbackOrder{NumberTypeMobile, NumberTypeLocal}, WithFallback(NumberTypeMobile))

	_, err = ParseNumberType("tollfree")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestPoolEntry_Reservable(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	stale := 10 * time.Minute

	testCases := []struct {
		name  string
		entry PoolEntry
		want  bool
	}{
		{name: "available", entry: PoolEntry{Status: PoolStatusAvailable}, want: true},
		{name: "fresh reservation", entry: PoolEntry{Status: PoolStatusReserved, ReservedAt: FormatTimestamp(now.Add(-9 * time.Minute))}},
		{name: "stale reservation", entry: PoolEntry{Status: PoolStatusReserved, ReservedAt: FormatTimestamp(now.Add(-10 * time.Minute))}, want: true},
		{name: "reservation without timestamp", entry: PoolEntry{Status: PoolStatusReserved}, want: true},
		{name: "assigned", entry: PoolEntry{Status: PoolStatusAssigned}},
		{name: "purged", entry: PoolEntry{Status: PoolStatusPurged}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.entry.Reservable(now, stale))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	for _, raw := range []string{
		"2026-03-02T12:30:00Z",
		"2026-03-02T13:30:00+01:00",
		"2026-03-02T12:30:00",
		"2026-03-02 12:30:00",
		"2026-03-02T12:30:00.000000",
	} {
		got, ok := ParseTimestamp(raw)
		require.True(t, ok, raw)
		assert.True(t, want.Equal(got), raw)
	}
	_, ok := ParseTimestamp("yesterday")
	assert.False(t, ok)
}

func TestPoolExhaustedError(t *testing.T) {
	err := error(&PoolExhaustedError{
		Country:   "FR",
		Types:     WithFallback(NumberTypeMobile),
		Attempts:  10,
		Available: Availability{NumberTypeLocal: 2},
	})
	assert.True(t, errors.Is(err, ErrPoolExhausted))
	assert.Contains(t, err.Error(), "country=FR types=mobile,local after 10 attempts")
	assert.Contains(t, err.Error(), "local=2")
}

func TestStorageAndCarrierErrors(t *testing.T) {
	cause := errors.New("timeout")
	err := error(&StorageError{Op: "pool read", Err: cause})
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
	assert.True(t, errors.Is(err, cause))

	err = &CarrierError{Op: "send", Err: cause}
	assert.True(t, errors.Is(err, ErrCarrierFailure))
	assert.False(t, errors.Is(err, ErrStorageUnavailable))
}
