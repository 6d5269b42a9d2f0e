package domain

// Client is a provisioned end customer bound to one proxy number.
type Client struct {
	Row          int    `json:"-"`
	ID           int64  `json:"client_id"`
	Name         string `json:"client_name"`
	Mail         string `json:"client_mail"`
	RealPhone    string `json:"client_real_phone"`
	ProxyNumber  string `json:"client_proxy_number"`
	ISOResidency string `json:"client_iso_residency"`
	CountryCode  string `json:"client_country_code"`
	LastCaller   string `json:"client_last_caller"`
}
