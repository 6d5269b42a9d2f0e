package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Tech-Aware/ProxyCall/internal/platform/logger"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/repository"
)

// ClientDirectory reads and mutates the client table.
type ClientDirectory struct {
	clients   *repository.ClientTable
	pool      *PoolManager
	countries *CountryCodes
	logger    *slog.Logger
}

// NewClientDirectory creates a ClientDirectory. pool is only needed by Create.
func NewClientDirectory(clients *repository.ClientTable, pool *PoolManager, countries *CountryCodes, log *slog.Logger) *ClientDirectory {
	return &ClientDirectory{
		clients:   clients,
		pool:      pool,
		countries: countries,
		logger:    log.With("component", "client_directory"),
	}
}

// GetByID returns the client with id.
func (d *ClientDirectory) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	all, err := d.clients.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("client %d: %w", id, domain.ErrNotFound)
}

// GetByProxy returns the client owning proxy.
func (d *ClientDirectory) GetByProxy(ctx context.Context, proxy string) (*domain.Client, error) {
	all, err := d.clients.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if domain.SamePhone(all[i].ProxyNumber, proxy) {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("client for proxy %s: %w", logger.MaskPhone(proxy), domain.ErrNotFound)
}

// Match finds a client by e-mail first, then by phone. It returns nil when
// neither matches, along with the next free id.
func (d *ClientDirectory) Match(ctx context.Context, mail, phone string) (*domain.Client, int64, error) {
	all, err := d.clients.All(ctx)
	if err != nil {
		return nil, 0, err
	}
	next := nextClientID(all)
	if mail != "" {
		for i := range all {
			if strings.EqualFold(all[i].Mail, mail) {
				return &all[i], next, nil
			}
		}
	}
	if phone != "" {
		for i := range all {
			if domain.SamePhone(all[i].RealPhone, phone) {
				return &all[i], next, nil
			}
		}
	}
	return nil, next, nil
}

// Insert appends a new client, deriving country code and residency from its
// real phone when they are not set. The returned client carries the id it
// was finally stored under, which differs from c.ID when a concurrent insert
// took that id first.
func (d *ClientDirectory) Insert(ctx context.Context, c domain.Client) (*domain.Client, error) {
	d.fillCountry(&c)
	if err := d.clients.AppendClient(ctx, c); err != nil {
		return nil, fmt.Errorf("insert client %d: %w", c.ID, err)
	}
	if err := d.settleID(ctx, &c); err != nil {
		return nil, err
	}
	d.logger.InfoContext(ctx, "Client created", "client_id", c.ID, "proxy_number", logger.MaskPhone(c.ProxyNumber))
	return &c, nil
}

// maxIDAttempts bounds how often an inserted client is renumbered.
const maxIDAttempts = 5

// settleID re-reads the table after an append. When an earlier row holds the
// same id, the freshly appended row is renumbered to max+1 and checked again.
func (d *ClientDirectory) settleID(ctx context.Context, c *domain.Client) error {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		all, err := d.clients.All(ctx)
		if err != nil {
			return fmt.Errorf("verify client %d: %w", c.ID, err)
		}
		own, earlier := findInserted(all, *c)
		if own == nil {
			return fmt.Errorf("client %d not found after insert: %w", c.ID, domain.ErrStorageUnavailable)
		}
		c.Row = own.Row
		if !earlier {
			return nil
		}

		next := nextClientID(all)
		d.logger.WarnContext(ctx, "Client id taken by a concurrent insert, renumbering",
			"client_id", c.ID, "new_client_id", next, "attempt", attempt+1)
		if err := d.clients.Write(ctx, own.Row, repository.Set(repository.ClientID, strconv.FormatInt(next, 10))); err != nil {
			return fmt.Errorf("renumber client %d: %w", c.ID, err)
		}
		c.ID = next
	}
	return fmt.Errorf("client %d: id still contested after %d attempts: %w", c.ID, maxIDAttempts, domain.ErrAlreadyExists)
}

// findInserted returns the last row matching c and whether an earlier row
// holds the same id.
func findInserted(all []domain.Client, c domain.Client) (*domain.Client, bool) {
	own := -1
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].ID == c.ID && sameClientRow(all[i], c) {
			own = i
			break
		}
	}
	if own < 0 {
		return nil, false
	}
	for i := 0; i < own; i++ {
		if all[i].ID == c.ID {
			return &all[own], true
		}
	}
	return &all[own], false
}

func sameClientRow(a, b domain.Client) bool {
	return a.Name == b.Name && strings.EqualFold(a.Mail, b.Mail) &&
		samePhoneValue(a.RealPhone, b.RealPhone) && samePhoneValue(a.ProxyNumber, b.ProxyNumber)
}

func samePhoneValue(a, b string) bool {
	return a == b || domain.SamePhone(a, b)
}

// ApplyContact overwrites name, mail and phone of an existing client and
// attaches proxy when the client has none. It returns the changed fields.
// A client already bound to another proxy is rejected with ErrProxyImmutable.
func (d *ClientDirectory) ApplyContact(ctx context.Context, existing domain.Client, contact domain.Contact, proxy string) ([]string, error) {
	if proxy != "" && existing.ProxyNumber != "" && !domain.SamePhone(existing.ProxyNumber, proxy) {
		return nil, fmt.Errorf("client %d already bound to %s: %w",
			existing.ID, logger.MaskPhone(existing.ProxyNumber), domain.ErrProxyImmutable)
	}

	var changed []string
	var fields []repository.Field
	if contact.Name != "" && contact.Name != existing.Name {
		changed = append(changed, "name")
		fields = append(fields, repository.Set(repository.ClientName, contact.Name))
	}
	if contact.Mail != "" && !strings.EqualFold(contact.Mail, existing.Mail) {
		changed = append(changed, "mail")
		fields = append(fields, repository.Set(repository.ClientMail, contact.Mail))
	}
	if contact.Phone != "" && !domain.SamePhone(contact.Phone, existing.RealPhone) {
		changed = append(changed, "phone")
		updated := existing
		updated.RealPhone = contact.Phone
		updated.CountryCode, updated.ISOResidency = "", ""
		d.fillCountry(&updated)
		fields = append(fields,
			repository.Set(repository.ClientRealPhone, contact.Phone),
			repository.Set(repository.ClientCountryCode, updated.CountryCode),
			repository.Set(repository.ClientISOResidency, updated.ISOResidency),
		)
	}
	if proxy != "" && existing.ProxyNumber == "" {
		fields = append(fields, repository.Set(repository.ClientProxyNumber, proxy))
	}
	if len(fields) == 0 {
		return changed, nil
	}
	if err := d.clients.Write(ctx, existing.Row, fields...); err != nil {
		return nil, fmt.Errorf("update client %d: %w", existing.ID, err)
	}
	d.logger.InfoContext(ctx, "Client updated", "client_id", existing.ID, "changed", changed)
	return changed, nil
}

// UpdateContact validates and applies contact changes to client id. The proxy
// number is never changed here.
func (d *ClientDirectory) UpdateContact(ctx context.Context, id int64, contact domain.Contact) (*domain.Client, []string, error) {
	var err error
	if contact.Name != "" {
		if contact.Name, err = domain.NormalizeName("client_name", contact.Name); err != nil {
			return nil, nil, err
		}
	}
	if contact.Mail != "" {
		if contact.Mail, err = domain.NormalizeEmail("client_mail", contact.Mail); err != nil {
			return nil, nil, err
		}
	}
	if contact.Phone != "" {
		if contact.Phone, err = domain.NormalizePhone("client_real_phone", contact.Phone); err != nil {
			return nil, nil, err
		}
	}
	existing, err := d.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	changed, err := d.ApplyContact(ctx, *existing, contact, "")
	if err != nil {
		return nil, nil, err
	}
	updated, err := d.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return updated, changed, nil
}

// SetLastCaller records caller as the last third party who contacted client.
func (d *ClientDirectory) SetLastCaller(ctx context.Context, c domain.Client, caller string) error {
	if err := d.clients.Write(ctx, c.Row, repository.Set(repository.ClientLastCaller, caller)); err != nil {
		return fmt.Errorf("set last caller of client %d: %w", c.ID, err)
	}
	return nil
}

// CreateClientRequest is the administrative client creation input.
type CreateClientRequest struct {
	Contact    domain.Contact
	CountryISO string
	NumberType domain.NumberType
}

// Create provisions a client directly: it reserves a proxy with fallback,
// finalizes it for the new id and appends the client row.
func (d *ClientDirectory) Create(ctx context.Context, req CreateClientRequest) (*domain.Client, error) {
	contact, err := domain.NormalizeContact(req.Contact)
	if err != nil {
		return nil, err
	}
	country, err := domain.NormalizeCountryISO("country_iso", req.CountryISO)
	if err != nil {
		return nil, err
	}
	numberType := req.NumberType
	if numberType == "" {
		numberType = domain.NumberTypeMobile
	}

	existing, nextID, err := d.Match(ctx, contact.Mail, contact.Phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("client %d matches this contact: %w", existing.ID, domain.ErrAlreadyExists)
	}

	requester := "client:" + strconv.FormatInt(nextID, 10)
	entry, err := d.pool.Reserve(ctx, country, domain.WithFallback(numberType), requester)
	if err != nil {
		return nil, err
	}
	if err := d.pool.Finalize(ctx, entry.Row, entry.ReservationToken, strconv.FormatInt(nextID, 10), contact.Name); err != nil {
		if errors.Is(err, domain.ErrTokenMismatch) {
			d.logger.WarnContext(ctx, "Proxy reservation lost before client creation", "client_id", nextID)
		} else if _, relErr := d.pool.Release(ctx, entry.ReservationToken); relErr != nil {
			d.logger.ErrorContext(ctx, "Failed to release reservation after finalize error", "error", relErr)
		}
		return nil, err
	}

	client, err := d.Insert(ctx, domain.Client{
		ID:          nextID,
		Name:        contact.Name,
		Mail:        contact.Mail,
		RealPhone:   contact.Phone,
		ProxyNumber: entry.PhoneNumber,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "Proxy assigned but client row not saved",
			"error", err, "client_id", nextID, "proxy_number", entry.PhoneNumber)
		return nil, err
	}
	return client, nil
}

// fillCountry derives the calling code from the real phone, using a raw
// prefix when the table has no match so the country gate always applies.
func (d *ClientDirectory) fillCountry(c *domain.Client) {
	if c.CountryCode == "" {
		c.CountryCode = d.countries.Derive(c.RealPhone)
	}
	if _, iso, ok := d.countries.Lookup(c.RealPhone); ok && c.ISOResidency == "" {
		c.ISOResidency = iso
	}
}

func nextClientID(all []domain.Client) int64 {
	var highest int64
	for _, c := range all {
		if c.ID > highest {
			highest = c.ID
		}
	}
	return highest + 1
}
