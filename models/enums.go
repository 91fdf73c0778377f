package models

import (
	"errors"
	"strings"

	"bitbucket.org/lestage/erp_backend/utils"
)

type PaymentForm string

const (
	PaymentFormCash   PaymentForm = "CASH"
	PaymentFormCredit PaymentForm = "CREDIT"
)

func (p PaymentForm) IsValid() bool {
	return p == PaymentFormCash || p == PaymentFormCredit
}

// ParsePaymentForm also accepts the legacy CONTADO / CREDITO spellings.
func ParsePaymentForm(s string) (PaymentForm, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CASH", "CONTADO":
		return PaymentFormCash, nil
	case "CREDIT", "CREDITO", "CRÉDITO":
		return PaymentFormCredit, nil
	}
	return "", errors.New("invalid payment form")
}

type Direction string

const (
	DirectionPurchase Direction = "PURCHASE"
	DirectionSale     Direction = "SALE"
)

type Flow string

const (
	FlowNormal Flow = "NORMAL"
	FlowReturn Flow = "RETURN"
)

// ExemptionClass decides, once per header, whether lines carry tax.
type ExemptionClass string

const (
	ExemptionNone               ExemptionClass = "NONE"
	ExemptionForcedZero         ExemptionClass = "FORCED_ZERO"
	ExemptionFollowsPartyStatus ExemptionClass = "FOLLOWS_PARTY_STATUS"
)

func (c ExemptionClass) IsValid() bool {
	switch c {
	case ExemptionNone, ExemptionForcedZero, ExemptionFollowsPartyStatus:
		return true
	}
	return false
}

// Exempt resolves the class against the counter-party's small-taxpayer flag.
func (c ExemptionClass) Exempt(partyIsSmallTaxpayer bool) bool {
	switch c {
	case ExemptionForcedZero:
		return true
	case ExemptionFollowsPartyStatus:
		return partyIsSmallTaxpayer
	}
	return false
}

type MoneyAccountType string

const (
	MoneyAccountTypeBank   MoneyAccountType = "BANK"
	MoneyAccountTypeEMoney MoneyAccountType = "EMONEY"
	MoneyAccountTypeCash   MoneyAccountType = "CASH"
)

func (t MoneyAccountType) IsValid() bool {
	switch t {
	case MoneyAccountTypeBank, MoneyAccountTypeEMoney, MoneyAccountTypeCash:
		return true
	}
	return false
}

type ModuleName string

const (
	ModulePurchases       ModuleName = "purchases"
	ModulePurchaseReturns ModuleName = "purchase_returns"
	ModuleSales           ModuleName = "sales"
	ModuleSalesReturns    ModuleName = "sales_returns"
)

type EntryMode string

const (
	EntryModeConventional EntryMode = "CONVENTIONAL"
	// header-only purchase with totals typed in by the user
	EntryModeSimplified EntryMode = "SIMPLIFIED"
)

type PartyKind string

const (
	PartyKindSupplier PartyKind = "SUPPLIER"
	PartyKindCustomer PartyKind = "CUSTOMER"
)

// pricingRuleFor maps the module to the decomposer rule it prices with.
func pricingRuleFor(direction Direction, flow Flow) utils.PricingRule {
	if flow == FlowReturn {
		return utils.PricingNoDiscount
	}
	if direction == DirectionPurchase {
		return utils.PricingDiscountAfterTaxRemoval
	}
	return utils.PricingDiscountBeforeTaxRemoval
}
