package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrNoHeadersFound = errors.New("could not find data headers")
)

// statement header keywords used to locate the header row among metadata
// lines (multi-language: Spanish, Portuguese, English)
var headerKeywords = []string{
	"fecha", "descripcion", "descripción", "valor", "saldo", "debito", "débito",
	"credito", "crédito", "concepto", "importe", "monto", "movimiento",
	"date", "description", "amount", "debit", "credit", "balance",
	"data", "descricao", "descrição",
}

// DecodeDelimited parses delimited text (CSV/TSV/semicolon) into a Table.
// It auto-detects the delimiter, skips leading metadata lines, and keeps them
// as MetaRows for account inference.
func DecodeDelimited(text string) (*Table, error) {
	lines := strings.Split(text, "\n")
	if len(strings.TrimSpace(text)) == 0 {
		return nil, ErrEmptyFile
	}

	delimiter, headerIdx, err := findHeaderRow(lines)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n")))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	table := &Table{Headers: headers}
	for i := 0; i < headerIdx; i++ {
		if line := strings.TrimSpace(strings.TrimRight(lines[i], "\r")); line != "" {
			table.MetaRows = append(table.MetaRows, strings.Split(line, string(delimiter)))
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if isBlankRow(record) {
			continue
		}
		if len(record) != len(headers) {
			table.Inconsistent = append(table.Inconsistent, len(table.Rows))
		}
		table.Rows = append(table.Rows, record)
	}

	return table, nil
}

// DecodeWorkbook parses the first sheet of an XLSX workbook into a Table
// using the same header-row heuristics as delimited text.
func DecodeWorkbook(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	headerIdx := -1
	for i, row := range rows {
		if i > 20 {
			break
		}
		if countKeywords(strings.ToLower(strings.Join(row, " "))) >= 2 {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrNoHeadersFound
	}

	table := &Table{Headers: rows[headerIdx], MetaRows: rows[:headerIdx]}
	for _, row := range rows[headerIdx+1:] {
		if isBlankRow(row) {
			continue
		}
		if len(row) != len(table.Headers) {
			table.Inconsistent = append(table.Inconsistent, len(table.Rows))
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// findHeaderRow scans the first lines for the row that looks most like a
// statement header: it carries header keywords and the most columns.
func findHeaderRow(lines []string) (rune, int, error) {
	bestIdx, bestCount := -1, 0
	var bestDelimiter rune

	fallbackIdx, fallbackCount := -1, 0
	var fallbackDelimiter rune

	for i, line := range lines {
		if i > 20 {
			break
		}
		line = cleanLine(line, i == 0)
		if line == "" {
			continue
		}

		delimiter, count := detectDelimiter(line)
		if count < 1 {
			continue
		}

		if countKeywords(strings.ToLower(line)) >= 2 {
			if count > bestCount {
				bestIdx, bestCount, bestDelimiter = i, count, delimiter
			}
		} else if count > fallbackCount {
			fallbackIdx, fallbackCount, fallbackDelimiter = i, count, delimiter
		}
	}

	if bestIdx >= 0 {
		return bestDelimiter, bestIdx, nil
	}
	if fallbackCount >= 2 {
		return fallbackDelimiter, fallbackIdx, nil
	}
	return 0, 0, ErrNoHeadersFound
}

func countKeywords(lineLower string) int {
	n := 0
	for _, kw := range headerKeywords {
		if strings.Contains(lineLower, kw) {
			n++
		}
	}
	return n
}

func detectDelimiter(line string) (rune, int) {
	best := rune(0)
	bestCount := 0
	for _, d := range []rune{';', '\t', ',', '|'} {
		if count := strings.Count(line, string(d)); count > bestCount {
			best, bestCount = d, count
		}
	}
	return best, bestCount
}

func cleanLine(line string, first bool) string {
	line = strings.TrimRight(line, "\r")
	if first {
		line = strings.TrimPrefix(line, "\ufeff")
	}
	return strings.TrimSpace(line)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
