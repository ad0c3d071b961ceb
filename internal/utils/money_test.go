package utils

import (
	"strings"
	"testing"
)

func TestFormatAmount_KnownCurrency(t *testing.T) {
	got := FormatAmount(1999, "usd")
	if !strings.Contains(got, "19.99") {
		t.Fatalf("FormatAmount(1999, usd) = %q, want the major amount rendered", got)
	}
	if got == "19.99" {
		t.Fatalf("FormatAmount(1999, usd) = %q, want a currency marker", got)
	}
}

func TestFormatAmount_ZeroAndWhole(t *testing.T) {
	if got := FormatAmount(0, "usd"); !strings.Contains(got, "0") {
		t.Fatalf("FormatAmount(0, usd) = %q", got)
	}
	if got := FormatAmount(500000, "eur"); !strings.Contains(got, "5,000") && !strings.Contains(got, "5000") {
		t.Fatalf("FormatAmount(500000, eur) = %q", got)
	}
}

func TestFormatAmount_UnknownCodeFallsBack(t *testing.T) {
	got := FormatAmount(1234, "zzz")
	if got != "12.34 ZZZ" {
		t.Fatalf("FormatAmount(1234, zzz) = %q, want %q", got, "12.34 ZZZ")
	}
}
