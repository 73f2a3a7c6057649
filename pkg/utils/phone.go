package utils

import (
	"errors"
	"strings"
)

// ErrInvalidPhone indicates a phone number with no digits or stray characters
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone strips formatting from a phone number so the same subscriber
// always maps to the same string. Spaces, dashes, dots and parentheses are
// removed; a single leading '+' is kept. Anything else is rejected.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)

	var b strings.Builder
	b.Grow(len(phone))
	digits := 0
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", ErrInvalidPhone
		}
	}

	if digits == 0 || digits > 15 {
		return "", ErrInvalidPhone
	}
	return b.String(), nil
}
