package models_test

import (
	"errors"
	"testing"

	"bitbucket.org/lestage/erp_backend/models"
	"bitbucket.org/lestage/erp_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleProfile_ResolveTypeCode(t *testing.T) {
	purchases, err := models.GetModuleProfile(models.ModulePurchases)
	require.NoError(t, err)

	code, err := purchases.ResolveTypeCode("")
	require.NoError(t, err)
	assert.Equal(t, "facprov", code)

	code, err = purchases.ResolveTypeCode("factimp")
	require.NoError(t, err)
	assert.Equal(t, "factimp", code)

	_, err = purchases.ResolveTypeCode("efactura")
	assert.True(t, errors.Is(err, models.ErrDocumentTypeNotPermitted))

	_, err = models.GetModuleProfile("inventory")
	assert.True(t, errors.Is(err, models.ErrUnknownModule))
}

func TestModuleProfile_PricingRule(t *testing.T) {
	want := map[models.ModuleName]utils.PricingRule{
		models.ModulePurchases:       utils.PricingDiscountAfterTaxRemoval,
		models.ModuleSales:           utils.PricingDiscountBeforeTaxRemoval,
		models.ModulePurchaseReturns: utils.PricingNoDiscount,
		models.ModuleSalesReturns:    utils.PricingNoDiscount,
	}
	for name, rule := range want {
		profile, err := models.GetModuleProfile(name)
		require.NoError(t, err)
		assert.Equal(t, rule, profile.PricingRule(), name)
	}
}

func TestModuleProfile_ResolvePriceIncludesTax(t *testing.T) {
	purchases, _ := models.GetModuleProfile(models.ModulePurchases)
	sales, _ := models.GetModuleProfile(models.ModuleSales)

	assert.False(t, purchases.ResolvePriceIncludesTax(false, false))
	assert.True(t, purchases.ResolvePriceIncludesTax(true, false))
	// small taxpayer suppliers always quote tax-inclusive
	assert.True(t, purchases.ResolvePriceIncludesTax(false, true))
	assert.True(t, sales.ResolvePriceIncludesTax(false, false))
}
