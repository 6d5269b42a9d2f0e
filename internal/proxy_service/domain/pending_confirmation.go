package domain

// PendingStatus is the lifecycle state of a phone verification request.
type PendingStatus string

const (
	PendingStatusNew      PendingStatus = ""
	PendingStatusPending  PendingStatus = "PENDING"
	PendingStatusVerified PendingStatus = "VERIFIED"
	PendingStatusPromoted PendingStatus = "PROMOTED"
	PendingStatusUpdated  PendingStatus = "UPDATED"
	PendingStatusExpired  PendingStatus = "EXPIRED"
)

// PendingConfirmation is an in-flight phone verification request keyed by PendingID.
type PendingConfirmation struct {
	Row             int           `json:"row"`
	PendingID       string        `json:"pending_id"`
	ClientName      string        `json:"client_name"`
	ClientMail      string        `json:"client_mail"`
	ClientRealPhone string        `json:"client_real_phone"`
	CountryISO      string        `json:"country_iso"`
	NumberType      string        `json:"number_type"`
	ProxyNumber     string        `json:"proxy_number"`
	OTP             string        `json:"-"`
	Status          PendingStatus `json:"status"`
	CreatedAt       string        `json:"created_at"`
	VerifiedAt      string        `json:"verified_at"`
	UpdatedFields   string        `json:"updated_fields,omitempty"`
}

// Contact holds the contact details submitted with a confirmation request.
type Contact struct {
	Name  string `json:"name"`
	Mail  string `json:"mail"`
	Phone string `json:"phone"`
}

// IsZero reports whether no field is set.
func (c Contact) IsZero() bool {
	return c.Name == "" && c.Mail == "" && c.Phone == ""
}

// VerifyOutcome is the result of an OTP submission.
type VerifyOutcome string

const (
	OutcomePromoted    VerifyOutcome = "promoted"
	OutcomeUpdated     VerifyOutcome = "updated"
	OutcomeInvalidCode VerifyOutcome = "invalid_code"
	OutcomeNoPending   VerifyOutcome = "no_pending"
)
