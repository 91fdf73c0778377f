package models

import (
	"errors"
	"slices"

	"bitbucket.org/lestage/erp_backend/utils"
)

// ModuleProfile parametrizes the single document engine for one of the four
// transactional modules.
type ModuleProfile struct {
	Name               ModuleName
	Direction          Direction
	Flow               Flow
	AllowedTypes       []string
	DefaultType        string
	PartyKind          PartyKind
	ForcedTaxInclusive bool
	// small-taxpayer counter-parties force tax-inclusive headers
	TracksPartyStatus bool
	AllowsSimplified  bool
}

var moduleProfiles = map[ModuleName]ModuleProfile{
	ModulePurchases: {
		Name:              ModulePurchases,
		Direction:         DirectionPurchase,
		Flow:              FlowNormal,
		AllowedTypes:      []string{"facprov", "factimp", "movprov"},
		DefaultType:       "facprov",
		PartyKind:         PartyKindSupplier,
		TracksPartyStatus: true,
		AllowsSimplified:  true,
	},
	ModulePurchaseReturns: {
		Name:              ModulePurchaseReturns,
		Direction:         DirectionPurchase,
		Flow:              FlowReturn,
		AllowedTypes:      []string{"ncprov", "ncimpo", "devmovprov"},
		DefaultType:       "ncprov",
		PartyKind:         PartyKindSupplier,
		TracksPartyStatus: true,
	},
	ModuleSales: {
		Name:               ModuleSales,
		Direction:          DirectionSale,
		Flow:               FlowNormal,
		AllowedTypes:       []string{"movcli", "efactura", "factexpo"},
		DefaultType:        "movcli",
		PartyKind:          PartyKindCustomer,
		ForcedTaxInclusive: true,
	},
	ModuleSalesReturns: {
		Name:               ModuleSalesReturns,
		Direction:          DirectionSale,
		Flow:               FlowReturn,
		AllowedTypes:       []string{"devmovcli", "tncredit", "ncreexpo"},
		DefaultType:        "devmovcli",
		PartyKind:          PartyKindCustomer,
		ForcedTaxInclusive: true,
	},
}

var ErrUnknownModule = errors.New("unknown module")

func GetModuleProfile(name ModuleName) (ModuleProfile, error) {
	profile, ok := moduleProfiles[name]
	if !ok {
		return ModuleProfile{}, ErrUnknownModule
	}
	return profile, nil
}

func AllModuleProfiles() []ModuleProfile {
	names := []ModuleName{ModulePurchases, ModulePurchaseReturns, ModuleSales, ModuleSalesReturns}
	results := make([]ModuleProfile, 0, len(names))
	for _, name := range names {
		results = append(results, moduleProfiles[name])
	}
	return results
}

func (p ModuleProfile) Permits(code string) bool {
	return slices.Contains(p.AllowedTypes, code)
}

// ResolveTypeCode applies the module default to an empty code.
func (p ModuleProfile) ResolveTypeCode(code string) (string, error) {
	if utils.IsBlank(code) {
		return p.DefaultType, nil
	}
	if !p.Permits(code) {
		return "", ErrDocumentTypeNotPermitted
	}
	return code, nil
}

func (p ModuleProfile) PricingRule() utils.PricingRule {
	return pricingRuleFor(p.Direction, p.Flow)
}

// ResolvePriceIncludesTax applies the header-level overrides to the user's flag.
func (p ModuleProfile) ResolvePriceIncludesTax(requested bool, partyIsSmallTaxpayer bool) bool {
	if p.ForcedTaxInclusive {
		return true
	}
	if p.TracksPartyStatus && partyIsSmallTaxpayer {
		return true
	}
	return requested
}
