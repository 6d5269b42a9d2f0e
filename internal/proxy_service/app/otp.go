package app

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

var otpPattern = regexp.MustCompile(`\d{4,8}`)

// GenerateOTP returns a numeric code of length digits whose first digit is
// never zero.
func GenerateOTP(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("otp length must be positive, got %d", length)
	}
	buf := make([]byte, length)
	for i := range buf {
		lo, span := int64(0), int64(10)
		if i == 0 {
			lo, span = 1, 9
		}
		n, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		buf[i] = byte('0' + lo + n.Int64())
	}
	return string(buf), nil
}

// ExtractOTP returns the first run of 4 to 8 digits in text, or every digit
// of text when there is no such run.
func ExtractOTP(text string) string {
	if m := otpPattern.FindString(text); m != "" {
		return m
	}
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		if text[i] >= '0' && text[i] <= '9' {
			out = append(out, text[i])
		}
	}
	return string(out)
}
