package billing

import (
	"testing"
)

func TestDefaultCurrency(t *testing.T) {
	t.Setenv("BILLING_CURRENCY", "")
	if got := DefaultCurrency(); got != "usd" {
		t.Fatalf("expected usd fallback, got %q", got)
	}

	t.Setenv("BILLING_CURRENCY", "EUR")
	if got := DefaultCurrency(); got != "eur" {
		t.Fatalf("expected lowercased eur, got %q", got)
	}
}

func TestFormatCents(t *testing.T) {
	cases := []struct {
		cents    int64
		currency string
		want     string
	}{
		{125000, "usd", "$1250.00"},
		{7, "usd", "$0.07"},
		{0, "usd", "$0.00"},
		{-450, "usd", "-$4.50"},
		{99900, "eur", "999.00 EUR"},
	}
	for _, tc := range cases {
		if got := FormatCents(tc.cents, tc.currency); got != tc.want {
			t.Fatalf("FormatCents(%d, %s) = %q want %q", tc.cents, tc.currency, got, tc.want)
		}
	}
}
