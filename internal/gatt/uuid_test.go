package gatt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		// 16-bit UUID formats
		{
			name:     "16-bit UUID lowercase",
			input:    "2acd",
			expected: "2acd",
		},
		{
			name:     "16-bit UUID uppercase",
			input:    "2ACD",
			expected: "2acd",
		},
		{
			name:     "16-bit UUID with 0x prefix",
			input:    "0x2ad9",
			expected: "2ad9",
		},
		{
			name:     "16-bit UUID with 0X prefix",
			input:    "0X2AD9",
			expected: "2ad9",
		},
		{
			name:     "16-bit UUID with surrounding whitespace",
			input:    "  1826 ",
			expected: "1826",
		},

		// Bluetooth SIG base UUID format (should extract 16-bit form)
		{
			name:     "Full Bluetooth SIG UUID with dashes",
			input:    "00001826-0000-1000-8000-00805f9b34fb",
			expected: "1826",
		},
		{
			name:     "Full Bluetooth SIG UUID without dashes",
			input:    "00001826000010008000_00805f9b34fb",
			expected: "00001826000010008000_00805f9b34fb",
		},
		{
			name:     "Full Bluetooth SIG UUID without dashes, valid hex",
			input:    "0000182600001000800000805f9b34fb",
			expected: "1826",
		},
		{
			name:     "Full Bluetooth SIG UUID uppercase",
			input:    "00002ACD-0000-1000-8000-00805F9B34FB",
			expected: "2acd",
		},

		// Custom 128-bit UUIDs (should NOT be shortened)
		{
			name:     "Custom UUID - wrong prefix",
			input:    "AA001826-0000-1000-8000-00805f9b34fb",
			expected: "aa00182600001000800000805f9b34fb",
		},
		{
			name:     "Custom UUID - wrong suffix",
			input:    "00001826-1234-5678-9abc-def012345678",
			expected: "00001826123456789abcdef012345678",
		},
		{
			name:     "Custom UUID - completely different",
			input:    "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
			expected: "6e400001b5a3f393e0a9e50e24dcca9e",
		},

		// Edge cases
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "Partial UUID",
			input:    "00002acd",
			expected: "00002acd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeUUID(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// Test that every accepted spelling of a short UUID lands on the same form
func TestNormalizeUUID_Consistency(t *testing.T) {
	uuidVariants := []string{
		"2acd",
		"2ACD",
		"0x2acd",
		"0X2ACD",
		"00002acd-0000-1000-8000-00805f9b34fb",
		"00002ACD-0000-1000-8000-00805F9B34FB",
	}

	expected := "2acd"

	for _, uuid := range uuidVariants {
		t.Run(uuid, func(t *testing.T) {
			result := NormalizeUUID(uuid)
			assert.Equal(t, expected, result, "UUID %s should normalize to %s", uuid, expected)
		})
	}
}

// Test edge cases that should NOT be shortened
func TestNormalizeUUID_NoShortening(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{
			name:   "Wrong prefix - AA00 instead of 0000",
			input:  "AA002acd-0000-1000-8000-00805f9b34fb",
			reason: "prefix is not 0000",
		},
		{
			name:   "Wrong suffix - custom UUID",
			input:  "00002acd-1234-5678-9abc-def012345678",
			reason: "suffix doesn't match Bluetooth SIG base",
		},
		{
			name:   "Too short",
			input:  "00002acd",
			reason: "only 8 chars, not 32",
		},
		{
			name:   "Too long",
			input:  "00002acd00001000800000805f9b34fb00",
			reason: "34 chars, not 32",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeUUID(tt.input)
			assert.NotEqual(t, "2acd", result, "Should NOT shorten: %s", tt.reason)
			assert.NotContains(t, result, "-", "Should have dashes removed")
			expectedNormalized := strings.ToLower(strings.ReplaceAll(tt.input, "-", ""))
			assert.Equal(t, expectedNormalized, result)
		})
	}
}

func TestShortenUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "short UUID unchanged",
			input:    "2acd",
			expected: "2acd",
		},
		{
			name:     "eight chars unchanged",
			input:    "00002acd",
			expected: "00002acd",
		},
		{
			name:     "long UUID truncated to eight chars",
			input:    "6e400001b5a3f393e0a9e50e24dcca9e",
			expected: "6e400001",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShortenUUID(tt.input))
		})
	}
}
