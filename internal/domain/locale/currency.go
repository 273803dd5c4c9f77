package locale

import (
	"strings"
	"unicode"

	money "github.com/Rhymond/go-money"
)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"R$", "BRL"},
	{"COL$", "COP"},
	{"$", "USD"},
}

// DetectCurrency scans free text for a currency symbol or an ISO-4217 code
// token. Codes are validated against the go-money currency table so random
// three-letter words are not mistaken for currencies.
func DetectCurrency(text string) (string, bool) {
	for _, c := range currencySymbols {
		if strings.Contains(text, c.symbol) {
			return c.code, true
		}
	}

	tokens := strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, token := range tokens {
		if len(token) != 3 {
			continue
		}
		if money.GetCurrency(token) != nil {
			return token, true
		}
	}
	return "", false
}
