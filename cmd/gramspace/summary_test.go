package main

import (
	"math/big"
	"strings"
	"testing"
)

func TestFormatCount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"42", "42"},
		{"999999999999999", "999999999999999"},
		{"1000000000000000", "1e+15"},
		{"1234567890123456", "1.234e+15"},
		{"2000000000000000000000000000000", "2e+30"},
	}
	for _, tc := range cases {
		n, ok := new(big.Int).SetString(tc.in, 10)
		if !ok {
			t.Fatalf("bad test input %q", tc.in)
		}
		if got := formatCount(n); got != tc.want {
			t.Errorf("formatCount(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if got := formatCount(nil); got != "0" {
		t.Errorf("formatCount(nil) = %q, want 0", got)
	}
}

func TestFormatCountRoundTripLength(t *testing.T) {
	// The exponent always matches the digit count of the original value.
	n, _ := new(big.Int).SetString(strings.Repeat("9", 40), 10)
	got := formatCount(n)
	if !strings.HasSuffix(got, "e+39") {
		t.Errorf("formatCount = %q, want e+39 suffix", got)
	}
}
