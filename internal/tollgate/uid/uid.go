// Package uid extracts card identifiers from raw reader output.
//
// Readers print banners and diagnostics ("Scan your RFID card",
// "Card detected!") on the same line-oriented stream as the card UID, so
// the only meaningful content is a standalone 8-digit hex token.
package uid

import (
	"regexp"
	"strings"
)

// Length is the number of hex characters in a card identifier.
const Length = 8

var (
	tokenRe = regexp.MustCompile(`(?i)\b[0-9A-F]{8}\b`)
	exactRe = regexp.MustCompile(`^[0-9A-Fa-f]{8}$`)
)

// Extract returns the first standalone 8-hex-character token in line,
// uppercased. Tokens embedded in a longer alphanumeric run do not match.
func Extract(line string) (string, bool) {
	m := tokenRe.FindString(strings.TrimSpace(line))
	if m == "" {
		return "", false
	}
	return strings.ToUpper(m), true
}

// Canonical validates operator-entered input that must be exactly one
// identifier and nothing else.
func Canonical(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !exactRe.MatchString(s) {
		return "", false
	}
	return strings.ToUpper(s), true
}
