package extract

import (
	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/bank-import/internal/domain/layout"
)

// Keyword vocabularies used for zero-amount type resolution and, by the
// account inferencer, for account-type heuristics. Matching is Aho-Corasick
// over the lowercased description.
var (
	transferMatcher = ahocorasick.NewStringMatcher([]string{
		"transfer", "transferencia", "traslado", "envio", "giro",
		"pse", "ach", "wire", "nequi a", "entre cuentas",
	})

	creditCardMatcher = ahocorasick.NewStringMatcher([]string{
		"tarjeta de credito", "credit card", "cupo", "avance", "cuota manejo",
		"intereses corrientes", "pago minimo", "mastercard", "visa",
	})

	savingsMatcher = ahocorasick.NewStringMatcher([]string{
		"interes", "interest", "rendimiento", "ahorro", "savings", "cdt",
	})
)

// MatchesTransfer reports whether the description carries transfer vocabulary.
func MatchesTransfer(description string) bool {
	return matches(transferMatcher, description)
}

// MatchesCreditCard reports whether the description carries credit-card vocabulary.
func MatchesCreditCard(description string) bool {
	return matches(creditCardMatcher, description)
}

// MatchesSavings reports whether the description carries savings vocabulary.
func MatchesSavings(description string) bool {
	return matches(savingsMatcher, description)
}

func matches(m *ahocorasick.Matcher, text string) bool {
	// layout.Normalize lowercases and deaccents, so "Interés" matches "interes".
	return len(m.Match([]byte(layout.Normalize(text)))) > 0
}
