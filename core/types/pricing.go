// Package types - Pricing types
package types

import "github.com/shopspring/decimal"

// DefaultCreditPrice is the on-demand price of one credit in USD.
var DefaultCreditPrice = decimal.NewFromInt(3)

// Pricing converts credits to money. Amounts stay exact until presentation.
type Pricing struct {
	CreditPrice decimal.Decimal `json:"credit_price"`
	Currency    string          `json:"currency"`
}

// DefaultPricing returns USD pricing at the default credit price
func DefaultPricing() Pricing {
	return Pricing{CreditPrice: DefaultCreditPrice, Currency: "USD"}
}

// Cost prices a credit amount
func (p Pricing) Cost(credits float64) decimal.Decimal {
	return p.CreditPrice.Mul(decimal.NewFromFloat(credits))
}

// Format renders an amount rounded to cents with the currency code
func (p Pricing) Format(amount decimal.Decimal) string {
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	return amount.StringFixed(2) + " " + currency
}
