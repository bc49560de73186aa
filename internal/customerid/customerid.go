// Package customerid normalizes and masks external ad-platform account ids.
package customerid

import "strings"

// MaskToken replaces the interior digits of a masked id.
const MaskToken = "****"

// Sanitize keeps only the ASCII digits of id, so "123-456.7890" and
// "1234567890" name the same account.
func Sanitize(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for i := 0; i < len(id); i++ {
		if c := id[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Mask keeps the first and last three characters of id and replaces the
// rest with MaskToken. Ids shorter than six characters are fully masked.
func Mask(id string) string {
	if len(id) < 6 {
		return MaskToken
	}
	return id[:3] + MaskToken + id[len(id)-3:]
}

// Valid reports whether a sanitized id has the ten digits of a Google Ads
// customer id.
func Valid(id string) bool {
	return len(id) == 10 && Sanitize(id) == id
}
