package domain

import "github.com/shopspring/decimal"

// DefaultCurrency is the symbol prefixed to every amount.
const DefaultCurrency = "S/"

// FormatMoney renders amount with exactly two decimals behind the currency symbol.
func FormatMoney(currency string, amount decimal.Decimal) string {
	return currency + amount.StringFixed(2)
}

// Money is the decimal type every price and total uses.
type Money = decimal.Decimal

// ParseMoney reads a price such as "12.50".
func ParseMoney(s string) (Money, error) {
	return decimal.NewFromString(s)
}
