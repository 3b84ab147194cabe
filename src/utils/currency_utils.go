// backend/src/utils/currency_utils.go
package utils

import "strings"

// currencyAliases maps the currency spellings seen in broker statements,
// Russian names and legacy codes included, onto ISO 4217 codes. Keys are
// uppercased.
var currencyAliases = map[string]string{
	"RUB":        "RUB",
	"RUR":        "RUB",
	"РУБ":        "RUB",
	"РУБ.":       "RUB",
	"РУБЛЬ":      "RUB",
	"РОССИЙСКИЙ РУБЛЬ": "RUB",
	"USD":        "USD",
	"ДОЛЛАР США": "USD",
	"EUR":        "EUR",
	"ЕВРО":       "EUR",
	"GBP":        "GBP",
	"CHF":        "CHF",
	"CNY":        "CNY",
	"ЮАНЬ":       "CNY",
	"HKD":        "HKD",
	"KZT":        "KZT",
	"ТЕНГЕ":      "KZT",
	"BYN":        "BYN",
	"TRY":        "TRY",
}

// CanonicalCurrency normalizes a raw currency string to an ISO 4217 code
// when a known alias matches; unrecognized values pass through uppercased
// so no information is lost.
func CanonicalCurrency(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if iso, ok := currencyAliases[s]; ok {
		return iso
	}
	if iso, ok := currencyAliases[strings.TrimRight(s, ".")]; ok {
		return iso
	}
	return s
}
