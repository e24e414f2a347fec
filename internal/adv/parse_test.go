package adv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntOr(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"42", 0, 42},
		{" 42 ", 0, 42},
		{"", 0, 0},
		{"abc", 0, 0},
		{"12,000", 0, 0},
		{"N", 7, 7},
		{"S", 7, 7},
		{"K", 7, 7},
		{"-3", 0, -3},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseIntOr(tt.input, tt.def))
		})
	}
}

func TestParseAUM(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"2500000000", 2_500_000_000},
		{"12,000", 12000},
		{"750000.00", 750000},
		{"1.30565E+12", 1_305_650_000_000},
		{"", 0},
		{"abc", 0},
		{"N", 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAUM(tt.input))
		})
	}
}

func TestParseBoolYN(t *testing.T) {
	assert.True(t, ParseBoolYN("Y"))
	assert.True(t, ParseBoolYN(" y "))
	assert.False(t, ParseBoolYN("N"))
	assert.False(t, ParseBoolYN(""))
	assert.False(t, ParseBoolYN("Yes"))
}

func TestNormalizeCol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"5F(2)(F)", "5f2f"},
		{"5G1", "5g1"},
		{"1F1-City", "1f1-city"},
		{" Legal Name ", "legal name"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeCol(tt.input))
	}
}

func TestTrimQuotes(t *testing.T) {
	assert.Equal(t, "Acme Advisors", TrimQuotes(`"Acme Advisors"`))
	assert.Equal(t, "Acme", TrimQuotes(" Acme "))
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "Acme", SanitizeUTF8("Acme"))
	assert.Equal(t, "Acm", SanitizeUTF8("Acm\xff"))
}
