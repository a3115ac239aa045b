// Package pii reduces personally identifying substrings in user content to
// fixed placeholder tokens before the text leaves the process towards a
// third-party model endpoint. The replacement is pseudonymization: consistent
// placeholders, not reversed anywhere in this codebase.
package pii

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	// Spanish phone numbers, with optional +34 / 0034 prefix.
	phonePattern = regexp.MustCompile(`(?:\+34|0034)?[\s\-]?[6789]\d{2}[\s\-]?\d{3}[\s\-]?\d{3}\b`)
	// DNI (8 digits + letter) and NIE (X/Y/Z + 7 digits + letter).
	dniPattern = regexp.MustCompile(`\b(?:\d{8}|[XYZxyz]\d{7})[\s\-]?[A-Za-z]\b`)
	// IBAN, Spanish format.
	ibanPattern = regexp.MustCompile(`\b[Ee][Ss]\d{2}[\s]?(?:\d{4}[\s]?){5}\b`)
)

const (
	emailPlaceholder = "[correo]"
	phonePlaceholder = "[teléfono]"
	dniPlaceholder   = "[dni]"
	ibanPlaceholder  = "[iban]"
)

// Pseudonymize replaces emails, phone numbers, DNI/NIE identifiers and IBANs
// with placeholder tokens. Input without matching patterns is returned
// unchanged.
func Pseudonymize(content string) string {
	out := emailPattern.ReplaceAllString(content, emailPlaceholder)
	out = ibanPattern.ReplaceAllString(out, ibanPlaceholder)
	out = dniPattern.ReplaceAllString(out, dniPlaceholder)
	out = phonePattern.ReplaceAllString(out, phonePlaceholder)
	return out
}

// PseudonymizeMessages applies Pseudonymize to every message content in place
// on a copied slice, leaving the caller's history untouched.
func PseudonymizeMessages(contents []string) []string {
	out := make([]string, len(contents))
	for i, c := range contents {
		out[i] = Pseudonymize(c)
	}
	return out
}
