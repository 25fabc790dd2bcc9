package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedIDPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
	}{
		{"execution", NewExecutionID().String(), "exec_"},
		{"job", NewJobID().String(), "job_"},
		{"entry", NewEntryID().String(), "entry_"},
		{"request", NewRequestID().String(), "req_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.id, tt.prefix))
			raw := strings.TrimPrefix(tt.id, tt.prefix)
			assert.True(t, IsValid(raw), "suffix should be a valid ULID")
		})
	}
}

func TestGeneratorUniqueness(t *testing.T) {
	gen := NewGenerator()
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		s := gen.GenerateString()
		require.False(t, seen[s], "duplicate ULID generated")
		seen[s] = true
	}
}

func TestTimestampExtraction(t *testing.T) {
	before := time.Now().Add(-time.Second)
	raw := NewGenerator().GenerateString()
	after := time.Now().Add(time.Second)

	ts, err := Timestamp(raw)
	require.NoError(t, err)
	assert.True(t, ts.After(before) && ts.Before(after))
}

func TestIsValidRejectsGarbage(t *testing.T) {
	assert.False(t, IsValid("not-a-ulid"))
	assert.False(t, IsValid(""))
}
