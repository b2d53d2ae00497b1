package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "namex/pkg/domain-errors"
)

func TestParseRequestID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseRequestID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects zero and negatives", func(t *testing.T) {
		for _, in := range []string{"0", "-4"} {
			_, err := ParseRequestID(in)
			require.Error(t, err, in)
		}
	})

	t.Run("accepts positive integer", func(t *testing.T) {
		id, err := ParseRequestID("42")
		require.NoError(t, err)
		assert.Equal(t, RequestID(42), id)
		assert.Equal(t, "42", id.String())
	})
}

func TestParseNRNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    NRNumber
		wantErr bool
	}{
		{"canonical", "NR 1234567", "NR 1234567", false},
		{"eight digits", "NR 12345678", "NR 12345678", false},
		{"compact form", "NR1234567", "NR 1234567", false},
		{"lowercase", "nr 1234567", "NR 1234567", false},
		{"L prefix", "NR L123456", "", true},
		{"L prefix seven digits", "NR L1234567", "NR L1234567", false},
		{"too short", "NR 123", "", true},
		{"letters", "NR ABCDEFG", "", true},
		{"SQL injection attempt", "NR 1234567'; DROP TABLE requests;--", "", true},
		{"Oversized input", strings.Repeat("9", 1000), "", true},
		{"Empty string", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNRNumber(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEventID(t *testing.T) {
	id := NewEventID()
	parsed, err := ParseEventID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseEventID("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, err = ParseEventID("not-a-uuid")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestEventIDText(t *testing.T) {
	id := NewEventID()
	raw, err := id.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, id.String(), string(raw))

	var back EventID
	require.NoError(t, back.UnmarshalText(raw))
	assert.Equal(t, id, back)
}
