// Package adv provides shared parsing primitives for SEC Form ADV FOIA CSV
// files: normalized column lookup, value coercion, and identifier tagging.
package adv

import (
	"strconv"
	"strings"
)

// ParseIntOr parses a string as an integer, returning def if parsing fails
// or the string is empty or one of the single-letter range flags the FOIA
// files use in numeric columns.
func ParseIntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" || s == "N" || s == "S" || s == "D" || s == "G" || s == "H" || s == "J" || s == "K" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// ParseInt64Or parses a string as an int64, returning def if parsing fails.
func ParseInt64Or(s string, def int64) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "N" || s == "S" || s == "D" || s == "G" || s == "H" || s == "J" || s == "K" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}

// ParseFloat64Or parses a string as a float64, returning def if parsing fails.
func ParseFloat64Or(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// ParseAUM parses an assets-under-management value. Handles thousands
// separators, decimal fractions, and scientific notation (e.g. "1.30565E+12").
// Unparseable values coerce to 0.
func ParseAUM(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if strings.ContainsAny(s, "eE") {
		return int64(ParseFloat64Or(s, 0))
	}
	if idx := strings.Index(s, "."); idx >= 0 {
		s = s[:idx]
	}
	return ParseInt64Or(s, 0)
}

// TrimQuotes removes surrounding double quotes from a CSV field.
func TrimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// ParseBoolYN returns true if the string is "Y" (case-insensitive), false otherwise.
func ParseBoolYN(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "Y")
}

// SanitizeUTF8 replaces invalid UTF-8 byte sequences (e.g., stray Latin-1
// bytes) with empty strings so Postgres doesn't reject the row.
func SanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}

// NormalizeCol strips parentheses and lowercases for cross-format column matching.
// "5F(2)(F)" → "5f2f", "1F1-City" → "1f1-city"
func NormalizeCol(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "(", "")
	s = strings.ReplaceAll(s, ")", "")
	return s
}

// MapColumns builds a normalized column name → index map.
func MapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[NormalizeCol(col)] = i
	}
	return m
}
