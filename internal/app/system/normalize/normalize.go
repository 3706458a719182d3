// Package normalize canonicalizes user-entered values before they are
// stored or compared.
package normalize

import (
	"strings"
	"unicode"

	"github.com/dalemusser/fleetdesk/internal/domain/models"
)

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name and collapses inner runs of whitespace.
// Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Phone keeps a leading '+' and the digits of a phone number.
func Phone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if unicode.IsDigit(r) || (i == 0 && r == '+') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UserStatus maps any casing of a known status to its stored form
// ("suspended" -> "Suspended"). Unknown values come back unchanged so
// validation can reject them.
func UserStatus(s string) string {
	t := strings.TrimSpace(s)
	for _, v := range models.UserStatuses {
		if strings.EqualFold(v, t) {
			return v
		}
	}
	return t
}

// Token lowercases and trims enum-like values such as roles, vehicle types
// and priorities.
func Token(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
