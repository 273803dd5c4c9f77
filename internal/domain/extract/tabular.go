package extract

import (
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bank-import/internal/domain/layout"
	"github.com/FACorreiaa/bank-import/internal/domain/locale"
)

// TxType classifies the direction of a transaction. Amounts are stored as
// non-negative magnitudes; sign lives here.
type TxType string

const (
	TypeIncome   TxType = "INCOME"
	TypeExpense  TxType = "EXPENSE"
	TypeTransfer TxType = "TRANSFER"
)

// PlaceholderDescription replaces blank description cells so every candidate
// transaction stays reviewable.
const PlaceholderDescription = "Sin descripción"

// Transaction is one normalized candidate transaction.
type Transaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // magnitude, always >= 0
	Type        TxType
	Merchant    string
	Balance     *decimal.Decimal // running balance when the source prints one
	Raw         []string         // original row, kept for audit
}

// Result carries the extracted transactions plus per-row failure counts.
// Row-level failures never abort extraction; they are skipped and counted.
type Result struct {
	Transactions []Transaction
	SkippedRows  int
}

// Extractor walks classified tables and document text producing candidate
// transactions.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// merchant prefixes stripped from descriptions (localized)
var merchantPrefixes = []string{
	"payment to ", "purchase at ", "pos purchase ",
	"pago a ", "pago en ", "compra en ", "compra ",
	"transferencia a ", "pse pago ", "abono de ",
}

// ExtractTable walks data rows using the classified layout's column hints.
// Debit/credit columns are detected by header search independently of the
// chosen layout, and take precedence over the single amount column.
func (e *Extractor) ExtractTable(table *Table, cls layout.Result) *Result {
	res := &Result{}

	dateCol := cls.Pattern.DateCol
	descCol := cls.Pattern.DescCol
	amountCol := cls.Pattern.AmountCol
	balanceCol := cls.Pattern.BalanceCol
	if balanceCol < 0 {
		balanceCol = table.findColumn("saldo", "balance")
	}

	debitCol := table.findColumn("debito", "débito", "debit", "cargo")
	creditCol := table.findColumn("credito", "crédito", "credit", "abono")
	doubleEntry := debitCol >= 0 && creditCol >= 0

	for i, row := range table.Rows {
		tx, ok := e.extractRow(row, i, dateCol, descCol, amountCol, balanceCol, debitCol, creditCol, doubleEntry)
		if !ok {
			res.SkippedRows++
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res
}

func (e *Extractor) extractRow(row []string, idx, dateCol, descCol, amountCol, balanceCol, debitCol, creditCol int, doubleEntry bool) (Transaction, bool) {
	date, ok := locale.ParseDate(cell(row, dateCol))
	if !ok {
		e.logger.Debug("skipping row with unparseable date", "row", idx, "value", cell(row, dateCol))
		return Transaction{}, false
	}

	description := strings.TrimSpace(cell(row, descCol))
	if description == "" {
		description = PlaceholderDescription
	}

	var signed decimal.Decimal
	var txType TxType
	if doubleEntry {
		debit, hasDebit := locale.ParseAmount(cell(row, debitCol))
		credit, hasCredit := locale.ParseAmount(cell(row, creditCol))
		if !hasDebit && !hasCredit {
			e.logger.Debug("skipping row with no amount", "row", idx)
			return Transaction{}, false
		}
		signed = credit.Sub(debit.Abs())
		switch {
		case hasDebit && !debit.IsZero():
			txType = TypeExpense
		case hasCredit && !credit.IsZero():
			txType = TypeIncome
		default:
			txType = classifyBySign(signed, description)
		}
	} else {
		amount, ok := locale.ParseAmount(cell(row, amountCol))
		if !ok {
			e.logger.Debug("skipping row with unparseable amount", "row", idx, "value", cell(row, amountCol))
			return Transaction{}, false
		}
		signed = amount
		txType = classifyBySign(signed, description)
	}

	tx := Transaction{
		Date:        date,
		Description: description,
		Amount:      signed.Abs(),
		Type:        txType,
		Merchant:    ExtractMerchant(description),
		Raw:         row,
	}

	if balanceCol >= 0 {
		if balance, ok := locale.ParseAmount(cell(row, balanceCol)); ok {
			tx.Balance = &balance
		}
	}
	return tx, true
}

// classifyBySign resolves the type from the signed amount; a zero amount
// falls through to transfer vocabulary, defaulting to EXPENSE.
func classifyBySign(signed decimal.Decimal, description string) TxType {
	switch {
	case signed.IsZero():
		if MatchesTransfer(description) {
			return TypeTransfer
		}
		return TypeExpense
	case signed.IsNegative():
		return TypeExpense
	default:
		return TypeIncome
	}
}

// ExtractMerchant opportunistically derives a merchant name by stripping
// known description prefixes. Empty when no prefix applies.
func ExtractMerchant(description string) string {
	lower := strings.ToLower(description)
	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(lower, prefix) {
			merchant := strings.TrimSpace(description[len(prefix):])
			if merchant != "" {
				return merchant
			}
		}
	}
	return ""
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
