package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument_Valid(t *testing.T) {
	doc := NewDocument("wo-1", "Pump P-101 bearing failure, vibration spike")
	assert.NoError(t, ValidateDocument(doc, 1<<20))
}

func TestValidateDocument_Nil(t *testing.T) {
	err := ValidateDocument(nil, 1<<20)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestValidateDocument_Empty(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		doc := NewDocument("wo-1", text)
		err := ValidateDocument(doc, 1<<20)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyDocument)
	}
}

func TestValidateDocument_Oversized(t *testing.T) {
	doc := NewDocument("wo-1", strings.Repeat("x", 100))
	err := ValidateDocument(doc, 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
}

func TestValidateDocument_NoSizeLimit(t *testing.T) {
	doc := NewDocument("wo-1", strings.Repeat("x", 100))
	assert.NoError(t, ValidateDocument(doc, 0))
}

func TestValidateFailure_Valid(t *testing.T) {
	failure := &Failure{
		EquipmentID: "P-101",
		FailureMode: "bearing",
		Severity:    3,
		Summary:     "bearing failure with vibration spike",
	}
	assert.NoError(t, ValidateFailure(failure))
}

func TestValidateFailure_Nil(t *testing.T) {
	err := ValidateFailure(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFailure)
}

func TestValidateFailure_EmptyMode(t *testing.T) {
	err := ValidateFailure(&Failure{Severity: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyFailureMode)
}

func TestValidateFailure_SeverityRange(t *testing.T) {
	for _, severity := range []int{0, -1, 6, 100} {
		err := ValidateFailure(&Failure{FailureMode: "bearing", Severity: severity})
		require.Error(t, err, "severity %d should be rejected", severity)
		assert.ErrorIs(t, err, ErrInvalidSeverity)
	}
}

func TestExtractionRecord_Expired(t *testing.T) {
	now := time.Now().UTC()
	record := &ExtractionRecord{
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-1 * time.Hour),
	}
	assert.True(t, record.Expired(now))

	record.ExpiresAt = now.Add(time.Hour)
	assert.False(t, record.Expired(now))

	// Expiry boundary: a record is dead exactly at ExpiresAt.
	assert.True(t, record.Expired(record.ExpiresAt))

	// Zero ExpiresAt means no expiry.
	record.ExpiresAt = time.Time{}
	assert.False(t, record.Expired(now))
}
