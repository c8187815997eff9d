package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Parse helpers guard every trust boundary; these tests pin the rule that
// an identifier is either valid or an error, never a silently-empty value.

func TestParseTripID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseTripID("")
		require.Error(t, err)
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseTripID("not-a-uuid")
		require.Error(t, err)
	})

	t.Run("round trips", func(t *testing.T) {
		tripID := NewTripID()
		parsed, err := ParseTripID(tripID.String())
		require.NoError(t, err)
		assert.Equal(t, tripID, parsed)
		assert.False(t, parsed.IsNil())
	})

	t.Run("zero value is nil", func(t *testing.T) {
		assert.True(t, TripID{}.IsNil())
	})
}

func TestTripIDJSON(t *testing.T) {
	tripID := NewTripID()

	raw, err := json.Marshal(tripID)
	require.NoError(t, err)
	assert.Equal(t, `"`+tripID.String()+`"`, string(raw))

	var decoded TripID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, tripID, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"garbage"`), &decoded))
}

func TestParseStringIDs(t *testing.T) {
	t.Run("empty and blank are rejected", func(t *testing.T) {
		for _, input := range []string{"", "   ", "\t\n"} {
			_, err := ParsePassengerKey(input)
			assert.Error(t, err, "passenger key %q", input)
			_, err = ParseDeviceID(input)
			assert.Error(t, err, "device ID %q", input)
			_, err = ParseRouteID(input)
			assert.Error(t, err, "route ID %q", input)
			_, err = ParseVehicleID(input)
			assert.Error(t, err, "vehicle ID %q", input)
		}
	})

	t.Run("surrounding whitespace is trimmed", func(t *testing.T) {
		key, err := ParsePassengerKey("  p-1  ")
		require.NoError(t, err)
		assert.Equal(t, PassengerKey("p-1"), key)
	})

	t.Run("valid values are preserved", func(t *testing.T) {
		deviceID, err := ParseDeviceID("cam-front-07")
		require.NoError(t, err)
		assert.Equal(t, "cam-front-07", deviceID.String())
		assert.False(t, deviceID.IsNil())
	})
}

func TestParsePassengerKeyLongInput(t *testing.T) {
	// Enrollment keys are opaque; nothing here should truncate or reject a
	// long one.
	long := strings.Repeat("k", 512)
	key, err := ParsePassengerKey(long)
	require.NoError(t, err)
	assert.Len(t, key.String(), 512)
}
