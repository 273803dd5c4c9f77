package extract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_ExtractDocument(t *testing.T) {
	t.Run("statement with year in header", func(t *testing.T) {
		text := "BANCO EJEMPLO S.A.\n" +
			"Extracto del 01/03/2024 al 31/03/2024\n" +
			"Cuenta de ahorros No. 12345678901234\n" +
			"\n" +
			"01/03 PAGO A SUPERMERCADO EXITO 45.000,00 1.255.000,00\n" +
			"15/03 ABONO NOMINA 2.000.000,00 3.255.000,00\n" +
			"20/03 RETIRO CAJERO 200.000,00\n"

		res := testExtractor().ExtractDocument(text)
		require.Len(t, res.Transactions, 3)

		first := res.Transactions[0]
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), first.Date)
		assert.True(t, first.Amount.Equal(decimal.RequireFromString("45000.00")))
		require.NotNil(t, first.Balance)
		assert.True(t, first.Balance.Equal(decimal.RequireFromString("1255000.00")))
		assert.Equal(t, "PAGO A SUPERMERCADO EXITO", first.Description)
		assert.Equal(t, "SUPERMERCADO EXITO", first.Merchant)

		// Single trailing numeric: amount only, no balance.
		last := res.Transactions[2]
		assert.Nil(t, last.Balance)
		assert.True(t, last.Amount.Equal(decimal.RequireFromString("200000.00")))
	})

	t.Run("falls back to current year", func(t *testing.T) {
		res := testExtractor().ExtractDocument("01/03 COMPRA CAFE 15.000,00\n")
		require.Len(t, res.Transactions, 1)
		assert.Equal(t, time.Now().UTC().Year(), res.Transactions[0].Date.Year())
	})

	t.Run("non transaction lines are ignored", func(t *testing.T) {
		text := "Resumen de cuenta\nTotal abonos: 2.000.000,00\n01/03 COMPRA 15.000,00\n"
		res := testExtractor().ExtractDocument(text)
		assert.Len(t, res.Transactions, 1)
	})

	t.Run("invalid month is skipped and counted", func(t *testing.T) {
		res := testExtractor().ExtractDocument("01/13 COMPRA 15.000,00\n")
		assert.Empty(t, res.Transactions)
		assert.Equal(t, 1, res.SkippedRows)
	})

	t.Run("lines without amounts are counted as skipped", func(t *testing.T) {
		res := testExtractor().ExtractDocument("Periodo 2024\n01/03 NOTA SIN VALOR\n")
		assert.Empty(t, res.Transactions)
		assert.Equal(t, 1, res.SkippedRows)
	})
}
