// Package account derives candidate account identity from an extracted
// transaction set and file metadata. The stage is pure given its inputs.
package account

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bank-import/internal/domain/extract"
)

// Type is the fixed account-type enum.
type Type string

const (
	TypeChecking   Type = "CHECKING"
	TypeSavings    Type = "SAVINGS"
	TypeCreditCard Type = "CREDIT_CARD"
)

// Detected is one inferred candidate account aggregating a coherent
// transaction set. Only the last four digits of an account number are ever
// kept; raw numbers are never persisted.
type Detected struct {
	Name             string
	Institution      string
	MaskedNumber     string
	Type             Type
	OpeningBalance   decimal.Decimal
	BalanceEstimated bool // true when no running balance existed to reconstruct from
	TransactionCount int
	Color            string
	Icon             string
	Confidence       float64
}

// Input bundles everything the inferencer may draw from.
type Input struct {
	Transactions []extract.Transaction
	Institution  string
	FileName     string
	MetaRows     [][]string
	Confidence   float64 // classifier confidence, carried through
}

// accountNumber matches raw account numbers (10-20 digits) in metadata.
var accountNumber = regexp.MustCompile(`\d{10,20}`)

// Infer produces one Detected account for the given transaction set.
func Infer(in Input) Detected {
	d := Detected{
		Institution:      in.Institution,
		Type:             inferType(in.Transactions),
		TransactionCount: len(in.Transactions),
		Confidence:       in.Confidence,
	}

	d.MaskedNumber = maskedNumber(in.MetaRows, in.FileName)
	d.OpeningBalance, d.BalanceEstimated = openingBalance(in.Transactions)
	d.Name = accountName(d.Institution, d.Type, d.MaskedNumber)
	d.Color, d.Icon = appearance(d.Institution, d.Type)
	return d
}

// inferType applies description keyword heuristics: credit-card vocabulary
// wins, then savings vocabulary or a >2:1 income-to-expense ratio, else
// checking.
func inferType(txs []extract.Transaction) Type {
	savingsHits := 0
	income := decimal.Zero
	expense := decimal.Zero

	for _, tx := range txs {
		if extract.MatchesCreditCard(tx.Description) {
			return TypeCreditCard
		}
		if extract.MatchesSavings(tx.Description) {
			savingsHits++
		}
		switch tx.Type {
		case extract.TypeIncome:
			income = income.Add(tx.Amount)
		case extract.TypeExpense:
			expense = expense.Add(tx.Amount)
		}
	}

	if savingsHits > 0 {
		return TypeSavings
	}
	if expense.IsPositive() && income.GreaterThan(expense.Mul(decimal.NewFromInt(2))) {
		return TypeSavings
	}
	return TypeChecking
}

// openingBalance reconstructs the balance before the first transaction by
// walking newest-to-oldest from the last printed running balance, reversing
// each delta. Without any running balance it defaults to zero, flagged for
// human correction.
func openingBalance(txs []extract.Transaction) (decimal.Decimal, bool) {
	lastIdx := -1
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Balance != nil {
			lastIdx = i
			break
		}
	}
	if lastIdx < 0 {
		return decimal.Zero, true
	}

	balance := *txs[lastIdx].Balance
	for i := lastIdx; i >= 0; i-- {
		balance = balance.Sub(delta(txs[i]))
	}
	return balance, false
}

// delta is the signed effect of a transaction on the account balance.
func delta(tx extract.Transaction) decimal.Decimal {
	switch tx.Type {
	case extract.TypeExpense:
		return tx.Amount.Neg()
	case extract.TypeIncome:
		return tx.Amount
	default:
		// Transfers observed in a single-account statement read as outflows.
		return tx.Amount.Neg()
	}
}

// maskedNumber scans metadata rows and the file name for a 10-20 digit
// account number and keeps only the last four digits.
func maskedNumber(metaRows [][]string, fileName string) string {
	for _, row := range metaRows {
		for _, cell := range row {
			if m := accountNumber.FindString(cell); m != "" {
				return mask(m)
			}
		}
	}
	if m := accountNumber.FindString(fileName); m != "" {
		return mask(m)
	}
	return ""
}

func mask(number string) string {
	return number[len(number)-4:]
}

func accountName(institution string, t Type, masked string) string {
	base := institution
	if base == "" {
		base = "Imported account"
	}
	label := map[Type]string{
		TypeChecking:   "Checking",
		TypeSavings:    "Savings",
		TypeCreditCard: "Credit card",
	}[t]
	if masked != "" {
		return fmt.Sprintf("%s %s ****%s", base, label, masked)
	}
	return strings.TrimSpace(base + " " + label)
}

// appearance resolves the suggested color/icon pair from the static
// per-institution table, falling back to per-type defaults.
func appearance(institution string, t Type) (string, string) {
	if a, ok := institutionAppearance[institution]; ok {
		return a.color, a.icon
	}
	a := typeAppearance[t]
	return a.color, a.icon
}

type look struct {
	color string
	icon  string
}

var institutionAppearance = map[string]look{
	"Bancolombia":     {color: "#FDDA24", icon: "bank"},
	"Davivienda":      {color: "#E30613", icon: "bank"},
	"BBVA":            {color: "#004481", icon: "bank"},
	"Nequi":           {color: "#200E3B", icon: "wallet"},
	"Banco de Bogotá": {color: "#00338D", icon: "bank"},
}

var typeAppearance = map[Type]look{
	TypeChecking:   {color: "#4A90D9", icon: "bank"},
	TypeSavings:    {color: "#2FA84F", icon: "piggy-bank"},
	TypeCreditCard: {color: "#B84A9C", icon: "credit-card"},
}
