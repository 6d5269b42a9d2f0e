package repository

import (
	"context"
	"strconv"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// Client table columns.
const (
	ClientID           = "client_id"
	ClientName         = "client_name"
	ClientMail         = "client_mail"
	ClientRealPhone    = "client_real_phone"
	ClientProxyNumber  = "client_proxy_number"
	ClientISOResidency = "client_iso_residency"
	ClientCountryCode  = "client_country_code"
	ClientLastCaller   = "client_last_caller"
)

var clientColumns = []string{
	ClientID, ClientName, ClientMail, ClientRealPhone, ClientProxyNumber,
	ClientISOResidency, ClientCountryCode, ClientLastCaller,
}

// ClientTable stores provisioned clients.
type ClientTable struct {
	*Table
}

// NewClientTable wraps store as the client table.
func NewClientTable(store domain.RowStore) *ClientTable {
	return &ClientTable{Table: NewTable("clients", store, clientColumns)}
}

// All returns every client in storage order. Rows with a non-numeric id are
// kept with ID 0 so they never collide with allocated ids.
func (c *ClientTable) All(ctx context.Context) ([]domain.Client, error) {
	records, err := c.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Client, 0, len(records))
	for _, r := range records {
		id, _ := strconv.ParseInt(r.Get(ClientID), 10, 64)
		out = append(out, domain.Client{
			Row:          r.Row,
			ID:           id,
			Name:         r.Get(ClientName),
			Mail:         r.Get(ClientMail),
			RealPhone:    domain.ToE164(r.Get(ClientRealPhone)),
			ProxyNumber:  domain.ToE164(r.Get(ClientProxyNumber)),
			ISOResidency: r.Get(ClientISOResidency),
			CountryCode:  normalizeCountryCode(r.Get(ClientCountryCode)),
			LastCaller:   domain.ToE164(r.Get(ClientLastCaller)),
		})
	}
	return out, nil
}

// AppendClient adds a client row.
func (c *ClientTable) AppendClient(ctx context.Context, cl domain.Client) error {
	return c.Append(ctx,
		Set(ClientID, strconv.FormatInt(cl.ID, 10)),
		Set(ClientName, cl.Name),
		Set(ClientMail, cl.Mail),
		Set(ClientRealPhone, cl.RealPhone),
		Set(ClientProxyNumber, cl.ProxyNumber),
		Set(ClientISOResidency, cl.ISOResidency),
		Set(ClientCountryCode, cl.CountryCode),
		Set(ClientLastCaller, cl.LastCaller),
	)
}

func normalizeCountryCode(code string) string {
	if code == "" || code[0] == '+' {
		return code
	}
	return "+" + code
}
