package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseNRNumber checks that parsing never panics and that accepted
// numbers are canonical.
func FuzzParseNRNumber(f *testing.F) {
	f.Add("")
	f.Add("NR 1234567")
	f.Add("NR1234567")
	f.Add("NR L1234567")
	f.Add("'; DROP TABLE requests;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		nr, err := ParseNRNumber(input)
		if err != nil {
			return
		}
		again, err := ParseNRNumber(nr.String())
		if err != nil {
			t.Errorf("canonical number failed round-trip: %v", err)
		}
		if again != nr {
			t.Error("round-trip changed NR number")
		}
		if !utf8.ValidString(input) {
			t.Error("non-UTF8 input was accepted")
		}
	})
}
