package app

import (
	"fmt"
	"strings"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// dialingCodes maps every assigned ITU-T E.164 geographic calling code
// (without "+") to an ISO country hint. Shared codes (+1, +7, +44...) point
// at the most common country; NANP and +7 sub-ranges are not split.
var dialingCodes = map[string]string{
	// Zone 1
	"1": "US",
	// Zone 2
	"20": "EG", "211": "SS", "212": "MA", "213": "DZ", "216": "TN", "218": "LY", "220": "GM",
	"221": "SN", "222": "MR", "223": "ML", "224": "GN", "225": "CI", "226": "BF", "227": "NE",
	"228": "TG", "229": "BJ", "230": "MU", "231": "LR", "232": "SL", "233": "GH", "234": "NG",
	"235": "TD", "236": "CF", "237": "CM", "238": "CV", "239": "ST", "240": "GQ", "241": "GA",
	"242": "CG", "243": "CD", "244": "AO", "245": "GW", "246": "IO", "247": "AC", "248": "SC",
	"249": "SD", "250": "RW", "251": "ET", "252": "SO", "253": "DJ", "254": "KE", "255": "TZ",
	"256": "UG", "257": "BI", "258": "MZ", "260": "ZM", "261": "MG", "262": "RE", "263": "ZW",
	"264": "NA", "265": "MW", "266": "LS", "267": "BW", "268": "SZ", "269": "KM", "27": "ZA",
	"290": "SH", "291": "ER", "297": "AW", "298": "FO", "299": "GL",
	// Zones 3 and 4
	"30": "GR", "31": "NL", "32": "BE", "33": "FR", "34": "ES", "350": "GI", "351": "PT",
	"352": "LU", "353": "IE", "354": "IS", "355": "AL", "356": "MT", "357": "CY", "358": "FI",
	"359": "BG", "36": "HU", "370": "LT", "371": "LV", "372": "EE", "373": "MD", "374": "AM",
	"375": "BY", "376": "AD", "377": "MC", "378": "SM", "379": "VA", "380": "UA", "381": "RS",
	"382": "ME", "383": "XK", "385": "HR", "386": "SI", "387": "BA", "389": "MK", "39": "IT",
	"40": "RO", "41": "CH", "420": "CZ", "421": "SK", "423": "LI", "43": "AT", "44": "GB",
	"45": "DK", "46": "SE", "47": "NO", "48": "PL", "49": "DE",
	// Zone 5
	"500": "FK", "501": "BZ", "502": "GT", "503": "SV", "504": "HN", "505": "NI", "506": "CR",
	"507": "PA", "508": "PM", "509": "HT", "51": "PE", "52": "MX", "53": "CU", "54": "AR",
	"55": "BR", "56": "CL", "57": "CO", "58": "VE", "590": "GP", "591": "BO", "592": "GY",
	"593": "EC", "594": "GF", "595": "PY", "596": "MQ", "597": "SR", "598": "UY", "599": "CW",
	// Zone 6
	"60": "MY", "61": "AU", "62": "ID", "63": "PH", "64": "NZ", "65": "SG", "66": "TH",
	"670": "TL", "672": "NF", "673": "BN", "674": "NR", "675": "PG", "676": "TO", "677": "SB",
	"678": "VU", "679": "FJ", "680": "PW", "681": "WF", "682": "CK", "683": "NU", "685": "WS",
	"686": "KI", "687": "NC", "688": "TV", "689": "PF", "690": "TK", "691": "FM", "692": "MH",
	// Zone 7
	"7": "RU",
	// Zone 8
	"81": "JP", "82": "KR", "84": "VN", "850": "KP", "852": "HK", "853": "MO", "855": "KH",
	"856": "LA", "86": "CN", "880": "BD", "886": "TW",
	// Zone 9
	"90": "TR", "91": "IN", "92": "PK", "93": "AF", "94": "LK", "95": "MM", "960": "MV",
	"961": "LB", "962": "JO", "963": "SY", "964": "IQ", "965": "KW", "966": "SA", "967": "YE",
	"968": "OM", "970": "PS", "971": "AE", "972": "IL", "973": "BH", "974": "QA", "975": "BT",
	"976": "MN", "977": "NP", "98": "IR", "992": "TJ", "993": "TM", "994": "AZ", "995": "GE",
	"996": "KG", "998": "UZ",
}

// rawPrefixDigits is how many leading digits stand in for a calling code
// missing from the table.
const rawPrefixDigits = 3

// CountryCodes resolves the calling code of a phone number by longest prefix.
type CountryCodes struct {
	codes     map[string]string
	maxDigits int
}

// NewCountryCodes returns the built-in dialing code table.
func NewCountryCodes() *CountryCodes {
	c, _ := LoadCountryCodes(nil, false)
	return c
}

// LoadCountryCodes builds a table from "code:ISO" entries such as "+375:BY".
// Entries extend the built-in table, or replace it when replace is set.
func LoadCountryCodes(entries []string, replace bool) (*CountryCodes, error) {
	codes := make(map[string]string, len(dialingCodes)+len(entries))
	if !replace {
		for code, iso := range dialingCodes {
			codes[code] = iso
		}
	}
	for _, entry := range entries {
		rawCode, iso, found := strings.Cut(strings.TrimSpace(entry), ":")
		code := strings.TrimPrefix(strings.TrimSpace(rawCode), "+")
		iso = strings.ToUpper(strings.TrimSpace(iso))
		if !found || code == "" || domain.Digits(code) != code || len(iso) != 2 {
			return nil, domain.NewValidationError("dialing_codes", `expected "code:ISO", e.g. "+375:BY"`, entry)
		}
		codes[code] = iso
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("dialing code table is empty: %w", domain.ErrValidation)
	}

	c := &CountryCodes{codes: codes}
	for code := range codes {
		if len(code) > c.maxDigits {
			c.maxDigits = len(code)
		}
	}
	return c, nil
}

// Lookup returns the "+NN" calling code and ISO hint of phone. ok is false
// when no prefix matches.
func (c *CountryCodes) Lookup(phone string) (code string, iso string, ok bool) {
	digits := domain.Digits(phone)
	for n := c.maxDigits; n >= 1; n-- {
		if len(digits) < n {
			continue
		}
		if iso, found := c.codes[digits[:n]]; found {
			return "+" + digits[:n], iso, true
		}
	}
	return "", "", false
}

// CodeOf returns the calling code of phone or "".
func (c *CountryCodes) CodeOf(phone string) string {
	code, _, _ := c.Lookup(phone)
	return code
}

// Derive returns the calling code of phone, falling back to its first
// digits when the table has no match. It is "" only for a phone without
// digits.
func (c *CountryCodes) Derive(phone string) string {
	if code, _, ok := c.Lookup(phone); ok {
		return code
	}
	digits := domain.Digits(phone)
	if len(digits) > rawPrefixDigits {
		digits = digits[:rawPrefixDigits]
	}
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// normalizeCode renders a stored code as "+NN".
func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || strings.HasPrefix(code, "+") {
		return code
	}
	return "+" + code
}
