package account

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/bank-import/internal/domain/extract"
)

func tx(day int, desc string, amount string, txType extract.TxType, balance string) extract.Transaction {
	t := extract.Transaction{
		Date:        time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Type:        txType,
	}
	if balance != "" {
		b := decimal.RequireFromString(balance)
		t.Balance = &b
	}
	return t
}

func TestInfer_Type(t *testing.T) {
	t.Run("credit card vocabulary wins", func(t *testing.T) {
		d := Infer(Input{Transactions: []extract.Transaction{
			tx(1, "Cuota manejo tarjeta de crédito", "30000", extract.TypeExpense, ""),
			tx(2, "Compra supermercado", "45000", extract.TypeExpense, ""),
		}})
		assert.Equal(t, TypeCreditCard, d.Type)
	})

	t.Run("savings vocabulary", func(t *testing.T) {
		d := Infer(Input{Transactions: []extract.Transaction{
			tx(1, "Abono intereses ahorro", "1200", extract.TypeIncome, ""),
		}})
		assert.Equal(t, TypeSavings, d.Type)
	})

	t.Run("income heavy account reads as savings", func(t *testing.T) {
		d := Infer(Input{Transactions: []extract.Transaction{
			tx(1, "Deposito", "3000000", extract.TypeIncome, ""),
			tx(2, "Retiro", "100000", extract.TypeExpense, ""),
		}})
		assert.Equal(t, TypeSavings, d.Type)
	})

	t.Run("default checking", func(t *testing.T) {
		d := Infer(Input{Transactions: []extract.Transaction{
			tx(1, "Compra", "50000", extract.TypeExpense, ""),
			tx(2, "Nomina", "90000", extract.TypeIncome, ""),
		}})
		assert.Equal(t, TypeChecking, d.Type)
	})
}

func TestInfer_OpeningBalance(t *testing.T) {
	t.Run("reconstructs from running balance", func(t *testing.T) {
		// Opening 1.300.000 → -45.000 → 1.255.000 → +2.000.000 → 3.255.000
		txs := []extract.Transaction{
			tx(1, "Compra", "45000", extract.TypeExpense, "1255000"),
			tx(2, "Nomina", "2000000", extract.TypeIncome, "3255000"),
		}
		d := Infer(Input{Transactions: txs})
		assert.False(t, d.BalanceEstimated)
		assert.True(t, d.OpeningBalance.Equal(decimal.NewFromInt(1300000)), d.OpeningBalance.String())
	})

	t.Run("partial balances use the last known one", func(t *testing.T) {
		txs := []extract.Transaction{
			tx(1, "Compra", "45000", extract.TypeExpense, ""),
			tx(2, "Nomina", "2000000", extract.TypeIncome, "3255000"),
		}
		d := Infer(Input{Transactions: txs})
		assert.False(t, d.BalanceEstimated)
		assert.True(t, d.OpeningBalance.Equal(decimal.NewFromInt(1300000)), d.OpeningBalance.String())
	})

	t.Run("zero default when no balance column", func(t *testing.T) {
		txs := []extract.Transaction{
			tx(1, "Compra", "45000", extract.TypeExpense, ""),
		}
		d := Infer(Input{Transactions: txs})
		assert.True(t, d.BalanceEstimated)
		assert.True(t, d.OpeningBalance.IsZero())
	})

	t.Run("round trips against extracted deltas", func(t *testing.T) {
		// Rebuild the final balance from the inferred opening balance and
		// the deltas; it must land on the last printed running balance.
		txs := []extract.Transaction{
			tx(1, "Compra", "45000.50", extract.TypeExpense, "954999.50"),
			tx(2, "Nomina", "2000000", extract.TypeIncome, "2954999.50"),
			tx(3, "Retiro", "300000", extract.TypeExpense, "2654999.50"),
		}
		d := Infer(Input{Transactions: txs})
		require.False(t, d.BalanceEstimated)

		rebuilt := d.OpeningBalance
		for _, t := range txs {
			if t.Type == extract.TypeIncome {
				rebuilt = rebuilt.Add(t.Amount)
			} else {
				rebuilt = rebuilt.Sub(t.Amount)
			}
		}
		assert.True(t, rebuilt.Equal(decimal.RequireFromString("2654999.50")), rebuilt.String())
	})
}

func TestInfer_MaskedNumber(t *testing.T) {
	t.Run("from metadata rows", func(t *testing.T) {
		d := Infer(Input{
			MetaRows: [][]string{{"Cuenta de ahorros", "No. 12345678901234"}},
		})
		assert.Equal(t, "1234", d.MaskedNumber)
	})

	t.Run("from file name", func(t *testing.T) {
		d := Infer(Input{FileName: "extracto_98765432109876_marzo.csv"})
		assert.Equal(t, "9876", d.MaskedNumber)
	})

	t.Run("short digit runs are not account numbers", func(t *testing.T) {
		d := Infer(Input{FileName: "extracto_2024.csv"})
		assert.Empty(t, d.MaskedNumber)
	})
}

func TestInfer_NameAndAppearance(t *testing.T) {
	d := Infer(Input{
		Institution: "Bancolombia",
		MetaRows:    [][]string{{"Cuenta No. 12345678901234"}},
		Confidence:  0.95,
	})
	assert.Equal(t, "Bancolombia Checking ****1234", d.Name)
	assert.Equal(t, "#FDDA24", d.Color)
	assert.Equal(t, "bank", d.Icon)
	assert.InDelta(t, 0.95, d.Confidence, 1e-9)

	generic := Infer(Input{})
	assert.Equal(t, "Imported account Checking", generic.Name)
	assert.Equal(t, "#4A90D9", generic.Color)
}

func TestInfer_Deterministic(t *testing.T) {
	in := Input{
		Transactions: []extract.Transaction{
			tx(1, "Compra", "45000", extract.TypeExpense, "955000"),
			tx(2, "Nomina", "2000000", extract.TypeIncome, "2955000"),
		},
		Institution: "Davivienda",
		FileName:    "extracto_12345678901234.csv",
	}
	assert.Equal(t, Infer(in), Infer(in))
}
