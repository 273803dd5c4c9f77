// Package layout classifies decoded statement tables against a registry of
// known institution column layouts.
package layout

import "regexp"

// HeaderPattern matches one expected column header. Regex matching runs over
// normalized (lowercased, deaccented) header cells; Keyword feeds the fuzzy
// near-miss fallback for slightly mangled exports.
type HeaderPattern struct {
	Regex   *regexp.Regexp
	Keyword string
}

// Pattern describes one known institution export format. Registry entries are
// constructed once at init and shared read-only across all workers.
type Pattern struct {
	Institution string
	Headers     []HeaderPattern
	MinColumns  int
	MaxColumns  int

	// Column index hints into data rows.
	DateCol    int
	DescCol    int
	AmountCol  int
	BalanceCol int // -1 when the format prints no running balance

	Priority string
}

func hp(expr, keyword string) HeaderPattern {
	return HeaderPattern{Regex: regexp.MustCompile(expr), Keyword: keyword}
}

// Generic is the fallback layout used when no registered pattern clears the
// confidence threshold: date, description, amount in the first three columns.
var Generic = Pattern{
	Institution: "",
	Headers: []HeaderPattern{
		hp(`fecha|date|data`, "fecha"),
		hp(`descripcion|description|detalle|concepto`, "descripcion"),
		hp(`valor|amount|importe|monto`, "valor"),
	},
	MinColumns: 3,
	MaxColumns: 12,
	DateCol:    0,
	DescCol:    1,
	AmountCol:  2,
	BalanceCol: -1,
	Priority:   "fallback",
}

// DefaultRegistry returns the built-in institution layouts. The slice is
// freshly allocated so callers can never mutate shared state.
func DefaultRegistry() []Pattern {
	return []Pattern{
		{
			Institution: "Bancolombia",
			Headers: []HeaderPattern{
				hp(`^fecha$|fecha de`, "fecha"),
				hp(`descripcion|referencia`, "descripcion"),
				hp(`^valor$|valor total`, "valor"),
				hp(`saldo`, "saldo"),
			},
			MinColumns: 4,
			MaxColumns: 7,
			DateCol:    0,
			DescCol:    1,
			AmountCol:  2,
			BalanceCol: 3,
			Priority:   "high",
		},
		{
			Institution: "Davivienda",
			Headers: []HeaderPattern{
				hp(`fecha`, "fecha"),
				hp(`transaccion|concepto`, "transaccion"),
				hp(`debito`, "debito"),
				hp(`credito`, "credito"),
				hp(`saldo`, "saldo"),
			},
			MinColumns: 5,
			MaxColumns: 8,
			DateCol:    0,
			DescCol:    1,
			AmountCol:  -1,
			BalanceCol: 4,
			Priority:   "high",
		},
		{
			Institution: "BBVA",
			Headers: []HeaderPattern{
				hp(`fecha`, "fecha"),
				hp(`concepto|descripcion`, "concepto"),
				hp(`importe|valor`, "importe"),
				hp(`saldo|disponible`, "saldo"),
			},
			MinColumns: 4,
			MaxColumns: 8,
			DateCol:    0,
			DescCol:    1,
			AmountCol:  2,
			BalanceCol: 3,
			Priority:   "medium",
		},
		{
			Institution: "Nequi",
			Headers: []HeaderPattern{
				hp(`fecha`, "fecha"),
				hp(`movimiento|descripcion`, "movimiento"),
				hp(`^valor$|monto`, "valor"),
			},
			MinColumns: 3,
			MaxColumns: 5,
			DateCol:    0,
			DescCol:    1,
			AmountCol:  2,
			BalanceCol: -1,
			Priority:   "medium",
		},
		{
			Institution: "Banco de Bogotá",
			Headers: []HeaderPattern{
				hp(`fecha`, "fecha"),
				hp(`oficina|canal`, "oficina"),
				hp(`descripcion|detalle`, "descripcion"),
				hp(`valor|monto`, "valor"),
				hp(`saldo`, "saldo"),
			},
			MinColumns: 5,
			MaxColumns: 9,
			DateCol:    0,
			DescCol:    2,
			AmountCol:  3,
			BalanceCol: 4,
			Priority:   "medium",
		},
	}
}
