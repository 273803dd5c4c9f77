// Package extract turns decoded statement input into normalized candidate
// transactions, using a classified layout for tabular files and line
// heuristics for paginated documents.
package extract

import "strings"

// Table is an ordered sequence of rows decoded from tabular input. Rows whose
// cell count disagrees with the header are not dropped; their indices are
// flagged so downstream stages can report input quality.
type Table struct {
	Headers      []string
	Rows         [][]string
	MetaRows     [][]string // lines above the header (account numbers, periods)
	Encoding     string
	Inconsistent []int // indices into Rows with mismatched column counts
}

// ColumnCount returns the width of the table as defined by its header row,
// falling back to the widest data row for headerless input.
func (t *Table) ColumnCount() int {
	if len(t.Headers) > 0 {
		return len(t.Headers)
	}
	max := 0
	for _, row := range t.Rows {
		if len(row) > max {
			max = len(row)
		}
	}
	return max
}

// findColumn returns the index of the first header matching any of the given
// lowercase needles, or -1.
func (t *Table) findColumn(needles ...string) int {
	for i, h := range t.Headers {
		cell := strings.ToLower(strings.TrimSpace(h))
		for _, n := range needles {
			if strings.Contains(cell, n) {
				return i
			}
		}
	}
	return -1
}
