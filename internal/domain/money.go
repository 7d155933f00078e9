package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MaxMoneyDigits bounds the integer part of budgets and amounts.
	MaxMoneyDigits = 15
	// MoneyPlaces is the number of decimal places money is kept and shown with.
	MoneyPlaces = 2
)

// CheckMoney reports whether d is a positive value with at most
// MaxMoneyDigits integer digits and MoneyPlaces decimal places. It works on
// the coefficient and exponent only, so values like 1e50000000 are refused
// without being expanded.
func CheckMoney(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidInput, field)
	}
	coef := d.Coefficient().String()
	exp := int64(d.Exponent())
	trimmed := strings.TrimRight(coef, "0")
	exp += int64(len(coef) - len(trimmed))
	if exp < -MoneyPlaces {
		return fmt.Errorf("%w: %s allows at most %d decimal places", ErrInvalidInput, field, MoneyPlaces)
	}
	if int64(len(trimmed))+exp > MaxMoneyDigits {
		return fmt.Errorf("%w: %s allows at most %d integer digits", ErrInvalidInput, field, MaxMoneyDigits)
	}
	return nil
}
