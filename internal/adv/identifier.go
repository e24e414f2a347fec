package adv

import "strings"

// IDKind tags a raw CRD/SEC identifier value at the ingestion boundary.
type IDKind int

const (
	// IDMissing means the source column was empty.
	IDMissing IDKind = iota
	// IDNumeric means a usable identifier value is present.
	IDNumeric
	// IDPlaceholder means the source used a literal "none" marker.
	IDPlaceholder
)

// Identifier is a tagged CRD or SEC identifier. Key derivation switches on
// Kind instead of re-inspecting raw strings downstream.
type Identifier struct {
	Kind IDKind
	Raw  string
}

// ParseIdentifier classifies a raw identifier field.
func ParseIdentifier(s string) Identifier {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identifier{Kind: IDMissing}
	}
	switch strings.ToUpper(s) {
	case "N", "NONE":
		return Identifier{Kind: IDPlaceholder, Raw: s}
	}
	return Identifier{Kind: IDNumeric, Raw: s}
}

// Valid reports whether the identifier carries a usable value.
func (id Identifier) Valid() bool {
	return id.Kind == IDNumeric
}

// String returns the raw value for valid identifiers, empty otherwise.
func (id Identifier) String() string {
	if id.Kind == IDNumeric {
		return id.Raw
	}
	return ""
}
