package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCheckMoney(t *testing.T) {
	ok := []string{"1", "0.01", "450.5", "450.50", "12.340", "999999999999999.99", "1e3", "1500e-2"}
	for _, raw := range ok {
		require.NoError(t, CheckMoney("amount", decimal.RequireFromString(raw)), raw)
	}
	bad := []string{"0", "-1", "0.004", "0.0001e1", "1000000000000000", "1e15", "1e50000000", "1e-50000000"}
	for _, raw := range bad {
		require.ErrorIs(t, CheckMoney("amount", decimal.RequireFromString(raw)), ErrInvalidInput, raw)
	}
}
