package chain

import (
	"math/big"
	"testing"
)

func TestParseEther(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"0.05", "50000000000000000"},
		{"0.02", "20000000000000000"},
		{".5", "500000000000000000"},
		{"2.000000000000000001", "2000000000000000001"},
		{" 0.1 ", "100000000000000000"},
	}
	for _, tc := range cases {
		got, err := ParseEther(tc.in)
		if err != nil {
			t.Fatalf("ParseEther(%q) error: %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseEther(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseEtherRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "0", "0.0", "-1", "abc", "1.2.3", "0.0000000000000000001"} {
		if _, err := ParseEther(in); err == nil {
			t.Fatalf("ParseEther(%q) should have failed", in)
		}
	}
}

func TestFormatEtherRoundTrip(t *testing.T) {
	for _, s := range []string{"1", "0.05", "0.000000000000000001", "12.5"} {
		wei, err := ParseEther(s)
		if err != nil {
			t.Fatalf("ParseEther(%q) error: %v", s, err)
		}
		back, err := ParseEther(FormatEther(wei))
		if err != nil {
			t.Fatalf("reparse of %q error: %v", FormatEther(wei), err)
		}
		if back.Cmp(wei) != 0 {
			t.Fatalf("round trip of %q: %s != %s", s, back, wei)
		}
	}
}

func TestFormatEtherWhole(t *testing.T) {
	if got := FormatEther(new(big.Int).Mul(big.NewInt(3), weiPerEther)); got != "3" {
		t.Fatalf("FormatEther = %q, want 3", got)
	}
}
