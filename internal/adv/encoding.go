package adv

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Decode converts raw file bytes to UTF-8 text, returning the text and the
// name of the encoding used. Files that are not valid UTF-8 fall back to
// Windows-1252, a superset of Latin-1 that also maps the 0x80-0x9F range
// to real characters (smart quotes, dashes) instead of C1 controls. The
// charmap decoder substitutes U+FFFD for the few undefined bytes, so every
// input decodes; the FOIA dumps mix UTF-8 and legacy single-byte encodings
// month to month.
func Decode(data []byte) (string, string, error) {
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", err
	}
	return string(out), "windows-1252", nil
}
