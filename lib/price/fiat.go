package price

import (
	"strings"

	"github.com/tarancss/addrprof/lib/util"
)

// SupportedFiat are the currencies prices can be converted to.
var SupportedFiat = []string{
	"USD", "EUR", "GBP", "JPY", "CNY", "KRW", "INR", "CAD", "AUD", "CHF",
	"ARS", "BRL", "CLP", "COP", "MXN", "PEN", "UYU", "VES",
}

// IsSupported reports whether currency is in SupportedFiat.
func IsSupported(currency string) bool {
	return util.In(SupportedFiat, strings.ToUpper(currency))
}
