//go:build go1.18

package domain

import (
	"strings"
	"testing"
)

// FuzzParseTripID checks that parsing never panics on arbitrary input and
// always returns either a valid ID or an error, never both.
func FuzzParseTripID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		tripID, err := ParseTripID(input)
		if err != nil {
			if !tripID.IsNil() {
				t.Errorf("error with non-nil ID for input %q", input)
			}
			return
		}
		if _, err := ParseTripID(tripID.String()); err != nil {
			t.Errorf("canonical form %q does not re-parse", tripID.String())
		}
	})
}

// FuzzParsePassengerKey checks the trim-and-validate contract on arbitrary
// input.
func FuzzParsePassengerKey(f *testing.F) {
	f.Add("")
	f.Add("p-1")
	f.Add("  padded  ")
	f.Add("'; DROP TABLE passengers;--")
	f.Add(string([]byte{0x00}))

	f.Fuzz(func(t *testing.T, input string) {
		key, err := ParsePassengerKey(input)
		if err != nil {
			if strings.TrimSpace(input) != "" {
				t.Errorf("non-blank input %q rejected", input)
			}
			return
		}
		if key.IsNil() {
			t.Errorf("parse succeeded with empty key for input %q", input)
		}
		if key.String() != strings.TrimSpace(input) {
			t.Errorf("key %q is not the trimmed input %q", key, input)
		}
	})
}
