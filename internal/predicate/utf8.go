package predicate

import "unicode/utf8"

// SanitizeUTF8 decodes raw header/path bytes as UTF-8, returning "" if the
// bytes are not valid UTF-8. Valid input is returned unchanged as a string.
func SanitizeUTF8(raw []byte) string {
	if !utf8.Valid(raw) {
		return ""
	}
	return string(raw)
}
