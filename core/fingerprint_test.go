package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintText_Deterministic(t *testing.T) {
	text := "Pump P-101 bearing failure, vibration spike"

	fp1 := FingerprintText(text)
	fp2 := FingerprintText(text)

	assert.Equal(t, fp1, fp2)
	assert.NotEqual(t, EmptyFingerprint, fp1)
	assert.Len(t, string(fp1), 64) // hex-encoded 32-byte digest
}

func TestFingerprintText_NormalizationEquivalence(t *testing.T) {
	base := FingerprintText("Pump P-101 bearing failure")

	equivalent := []string{
		"pump p-101 bearing failure",
		"PUMP P-101 BEARING FAILURE",
		"  Pump   P-101\tbearing\nfailure  ",
		"Pump P-101 bearing failure\r\n",
	}
	for _, text := range equivalent {
		assert.Equal(t, base, FingerprintText(text), "text %q should normalize to the same fingerprint", text)
	}
}

func TestFingerprintText_DistinctContent(t *testing.T) {
	fp1 := FingerprintText("Pump P-101 bearing failure")
	fp2 := FingerprintText("Compressor C-204 seal leak")

	assert.NotEqual(t, fp1, fp2)
}

func TestFingerprintText_EmptySentinel(t *testing.T) {
	assert.Equal(t, EmptyFingerprint, FingerprintText(""))
	assert.Equal(t, EmptyFingerprint, FingerprintText("   \t\n  "))
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "BEARING Failure", "bearing failure"},
		{"collapse whitespace", "a  b\t\tc\n\nd", "a b c d"},
		{"trim ends", "  trimmed  ", "trimmed"},
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeText(tt.input))
		})
	}
}
