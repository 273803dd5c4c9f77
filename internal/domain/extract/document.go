package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bank-import/internal/domain/locale"
)

// transactionLine matches statement lines that open with a day/month prefix,
// e.g. "03/01 PAGO A SUPERMERCADO 45.000,00 1.250.000,00".
var transactionLine = regexp.MustCompile(`^\s*(\d{1,2})[/\-.](\d{1,2})(?:[/\-.](\d{2,4}))?\s+(.*\S)\s*$`)

// statementYear matches date-range header metadata such as
// "Extracto del 01/01/2024 al 31/01/2024" or "Periodo: 2024-01".
var statementYear = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// numericToken matches candidate amount tokens inside a line remainder.
var numericToken = regexp.MustCompile(`\(?-?\$?\s?\d[\d.,]*\)?`)

// ExtractDocument walks paginated-document text line by line. Lines with a
// day/month prefix become transactions; the statement year is recovered from
// header metadata and falls back to the current year. The last two numeric
// tokens of a line are read as (amount, running balance) when both parse.
func (e *Extractor) ExtractDocument(text string) *Result {
	lines := strings.Split(text, "\n")
	year := resolveStatementYear(lines)
	res := &Result{}

	for i, line := range lines {
		m := transactionLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		lineYear := year
		if m[3] != "" {
			lineYear = expandYear(m[3])
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			res.SkippedRows++
			continue
		}
		date := time.Date(lineYear, time.Month(month), day, 0, 0, 0, 0, time.UTC)

		remainder := m[4]
		amount, balance, description, ok := splitDocumentLine(remainder)
		if !ok {
			e.logger.Debug("skipping document line with no amount", "line", i)
			res.SkippedRows++
			continue
		}

		if description == "" {
			description = PlaceholderDescription
		}

		tx := Transaction{
			Date:        date,
			Description: description,
			Amount:      amount.Abs(),
			Type:        classifyBySign(amount, description),
			Merchant:    ExtractMerchant(description),
			Balance:     balance,
			Raw:         []string{line},
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res
}

// splitDocumentLine separates the trailing numeric tokens of a line from its
// description. Two trailing numerics are (amount, balance); one is just the
// amount.
func splitDocumentLine(remainder string) (decimal.Decimal, *decimal.Decimal, string, bool) {
	locs := numericToken.FindAllStringIndex(remainder, -1)
	// Keep only tokens that actually parse as amounts and sit at the tail.
	type token struct {
		start, end int
		value      decimal.Decimal
	}
	var tokens []token
	for _, loc := range locs {
		v, ok := locale.ParseAmount(remainder[loc[0]:loc[1]])
		if ok {
			tokens = append(tokens, token{start: loc[0], end: loc[1], value: v})
		}
	}
	if len(tokens) == 0 {
		return decimal.Zero, nil, "", false
	}

	last := tokens[len(tokens)-1]
	if len(tokens) >= 2 {
		prev := tokens[len(tokens)-2]
		// Both must be trailing tokens, not digits embedded in the description.
		if strings.TrimSpace(remainder[last.end:]) == "" && strings.TrimSpace(remainder[prev.end:last.start]) == "" {
			balance := last.value
			return prev.value, &balance, strings.TrimSpace(remainder[:prev.start]), true
		}
	}
	if strings.TrimSpace(remainder[last.end:]) != "" {
		return decimal.Zero, nil, "", false
	}
	return last.value, nil, strings.TrimSpace(remainder[:last.start]), true
}

// resolveStatementYear scans the top of the document for a 4-digit year in
// header metadata. Current year when none is found.
func resolveStatementYear(lines []string) int {
	limit := len(lines)
	if limit > 15 {
		limit = 15
	}
	for _, line := range lines[:limit] {
		if transactionLine.MatchString(line) {
			continue
		}
		if m := statementYear.FindString(line); m != "" {
			if y, err := strconv.Atoi(m); err == nil {
				return y
			}
		}
	}
	return time.Now().UTC().Year()
}

func expandYear(s string) int {
	y, err := strconv.Atoi(s)
	if err != nil {
		return time.Now().UTC().Year()
	}
	if y >= 100 {
		return y
	}
	if y < 70 {
		return 2000 + y
	}
	return 1900 + y
}
