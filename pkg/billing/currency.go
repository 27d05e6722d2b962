package billing

import (
	"fmt"
	"strings"

	"github.com/rentzentro/platform/pkg/config"
)

const (
	defaultCurrencyEnv      = "BILLING_CURRENCY"
	defaultCurrencyFallback = "usd"
)

// DefaultCurrency returns the ledger currency used when a request does not
// specify one. Stripe expects lowercase ISO codes.
func DefaultCurrency() string {
	return strings.ToLower(config.GetEnv(defaultCurrencyEnv, defaultCurrencyFallback))
}

// FormatCents renders an integer cent amount for human-facing output,
// e.g. 125000 usd -> "$1250.00". Amounts are stored as cents everywhere;
// this is the only place they become display strings.
func FormatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	if strings.EqualFold(currency, "usd") {
		return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}
