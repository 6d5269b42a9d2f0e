package domain

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	e164Pattern  = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const (
	maxEmailLength  = 254
	maxNameLength   = 120
	phoneSeparators = " -()./\\"
)

// NormalizePhone validates a strict E.164 number. A "00" international prefix
// is rewritten to "+" and a digits-only number gets a leading "+".
func NormalizePhone(field, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", NewValidationError(field, "missing value", raw)
	}
	if strings.ContainsAny(value, phoneSeparators) {
		return "", NewValidationError(field, "strict E.164 required (e.g. +33601020304), no separators", raw)
	}
	if strings.HasPrefix(value, "00") {
		candidate := "+" + value[2:]
		if !e164Pattern.MatchString(candidate) {
			return "", NewValidationError(field, "must start with '+' (strict E.164)", raw)
		}
		value = candidate
	}
	if !strings.HasPrefix(value, "+") && isDigits(value) {
		value = "+" + value
	}
	if !e164Pattern.MatchString(value) {
		return "", NewValidationError(field, "strict E.164 required (e.g. +33601020304)", raw)
	}
	return value, nil
}

// NormalizeEmail validates and lower-cases an e-mail address.
func NormalizeEmail(field, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", NewValidationError(field, "missing value", raw)
	}
	if len(value) > maxEmailLength {
		return "", NewValidationError(field, "too long", raw)
	}
	if !emailPattern.MatchString(value) {
		return "", NewValidationError(field, "invalid e-mail", raw)
	}
	return strings.ToLower(value), nil
}

// NormalizeName trims and validates a display name.
func NormalizeName(field, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", NewValidationError(field, "missing value", raw)
	}
	if len([]rune(value)) > maxNameLength {
		return "", NewValidationError(field, "too long (max 120)", raw)
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return "", NewValidationError(field, "contains control characters", raw)
		}
	}
	return value, nil
}

// NormalizeCountryISO validates a two-letter country code and upper-cases it.
func NormalizeCountryISO(field, raw string) (string, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return "", NewValidationError(field, "missing value", raw)
	}
	if len(value) != 2 || !isLetters(value) {
		return "", NewValidationError(field, "invalid ISO country (e.g. FR, US)", raw)
	}
	return value, nil
}

// NormalizeContact validates every contact field.
func NormalizeContact(c Contact) (Contact, error) {
	var err error
	out := Contact{}
	if out.Name, err = NormalizeName("client_name", c.Name); err != nil {
		return Contact{}, err
	}
	if out.Mail, err = NormalizeEmail("client_mail", c.Mail); err != nil {
		return Contact{}, err
	}
	if out.Phone, err = NormalizePhone("client_real_phone", c.Phone); err != nil {
		return Contact{}, err
	}
	return out, nil
}

// Digits strips everything but ASCII digits.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SamePhone compares two numbers digit-normalized, so "+" is optional.
func SamePhone(a, b string) bool {
	da, db := Digits(a), Digits(b)
	return da != "" && da == db
}

// ToE164 prefixes a digits-only carrier number with "+". Other values are
// returned trimmed.
func ToE164(raw string) string {
	value := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if value == "" || strings.HasPrefix(value, "+") {
		return value
	}
	if strings.HasPrefix(value, "00") {
		return "+" + value[2:]
	}
	return "+" + value
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
