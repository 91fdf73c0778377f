package utils

import (
	"errors"

	"github.com/shopspring/decimal"
)

// PricingRule is the per-module order in which discount and tax removal are applied.
type PricingRule string

const (
	// purchases: strip tax from the entered price, then apply the discount
	PricingDiscountAfterTaxRemoval PricingRule = "DISCOUNT_AFTER_TAX_REMOVAL"
	// sales: apply the discount to the tax-inclusive price, then split out the tax
	PricingDiscountBeforeTaxRemoval PricingRule = "DISCOUNT_BEFORE_TAX_REMOVAL"
	// returns: discount is ignored
	PricingNoDiscount PricingRule = "NO_DISCOUNT"
)

const (
	intermediatePrecision int32 = 12
	moneyPrecision        int32 = 2
	unitPricePrecision    int32 = 4
)

var (
	decimalZero    = decimal.Zero
	decimalOne     = decimal.NewFromInt(1)
	decimalHundred = decimal.NewFromInt(100)

	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrInvalidDiscount = errors.New("discount percent must be between 0 and 100")
	ErrInvalidTaxRate  = errors.New("tax rate must be in [0, 1)")
	ErrNegativePrice   = errors.New("unit price cannot be negative")
)

type LineAmountInput struct {
	UnitPrice        decimal.Decimal
	Quantity         decimal.Decimal
	DiscountPercent  decimal.Decimal
	TaxRate          decimal.Decimal
	PriceIncludesTax bool
	Exempt           bool
}

type LineAmounts struct {
	NetUnitPrice decimal.Decimal
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
}

// CalculateLineAmounts decomposes a line price into tax base and tax.
// Money fields are rounded half away from zero to 2 places, the net unit price to 4.
// Total is always Subtotal + Tax of the rounded values. Purchases tax the
// de-taxed discounted base; sales and returns take tax as gross minus subtotal.
func CalculateLineAmounts(in LineAmountInput, rule PricingRule) (LineAmounts, error) {
	if !in.Quantity.GreaterThan(decimalZero) {
		return LineAmounts{}, ErrInvalidQuantity
	}
	if in.UnitPrice.IsNegative() {
		return LineAmounts{}, ErrNegativePrice
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(decimalHundred) {
		return LineAmounts{}, ErrInvalidDiscount
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThanOrEqual(decimalOne) {
		return LineAmounts{}, ErrInvalidTaxRate
	}

	rate := in.TaxRate
	if in.Exempt {
		rate = decimalZero
	}
	keep := decimalOne
	if rule != PricingNoDiscount {
		keep = decimalOne.Sub(in.DiscountPercent.DivRound(decimalHundred, intermediatePrecision))
	}
	onePlusRate := decimalOne.Add(rate)

	var netUnit, subtotalUnit decimal.Decimal
	switch rule {
	case PricingDiscountAfterTaxRemoval:
		base := in.UnitPrice
		if in.PriceIncludesTax {
			base = base.DivRound(onePlusRate, intermediatePrecision)
		}
		subtotalUnit = base.Mul(keep)
		netUnit = subtotalUnit
	case PricingDiscountBeforeTaxRemoval, PricingNoDiscount:
		netUnit = in.UnitPrice.Mul(keep)
		subtotalUnit = netUnit
		if in.PriceIncludesTax {
			subtotalUnit = netUnit.DivRound(onePlusRate, intermediatePrecision)
		}
	default:
		return LineAmounts{}, errors.New("unknown pricing rule " + string(rule))
	}

	subtotal := subtotalUnit.Mul(in.Quantity).Round(moneyPrecision)
	tax := decimalZero
	if rate.IsPositive() {
		if in.PriceIncludesTax && rule != PricingDiscountAfterTaxRemoval {
			// sales keep the entered tax-inclusive amount exactly
			gross := in.UnitPrice.Mul(keep).Mul(in.Quantity).Round(moneyPrecision)
			tax = gross.Sub(subtotal)
		} else {
			tax = subtotalUnit.Mul(in.Quantity).Mul(rate).Round(moneyPrecision)
		}
	}

	return LineAmounts{
		NetUnitPrice: netUnit.Round(unitPricePrecision),
		Subtotal:     subtotal,
		Tax:          tax,
		Total:        subtotal.Add(tax),
	}, nil
}

type LineTotals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// SumLineAmounts adds up already-priced lines.
func SumLineAmounts(lines []LineAmounts) LineTotals {
	totals := LineTotals{Subtotal: decimalZero, Tax: decimalZero, Total: decimalZero}
	for _, l := range lines {
		totals.Subtotal = totals.Subtotal.Add(l.Subtotal)
		totals.Tax = totals.Tax.Add(l.Tax)
		totals.Total = totals.Total.Add(l.Total)
	}
	return totals
}
