package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/lestage/erp_backend/models"
	"bitbucket.org/lestage/erp_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentLine_Price(t *testing.T) {
	rate := &models.TaxRate{Code: "IVA22", Rate: d("0.22")}

	line := &models.DocumentLine{Quantity: d("1"), UnitPrice: d("122"), DiscountPercent: d("10")}
	require.NoError(t, line.Price(models.LinePricing{Rule: utils.PricingNoDiscount, PriceIncludesTax: true}, rate))
	assert.True(t, line.DiscountPercent.IsZero(), "returns never carry a discount")
	requireDecimal(t, "100", line.Subtotal)
	requireDecimal(t, "22", line.Tax)
	requireDecimal(t, "122", line.Total)

	line = &models.DocumentLine{Quantity: d("10"), UnitPrice: d("110")}
	require.NoError(t, line.Price(models.LinePricing{Rule: utils.PricingDiscountAfterTaxRemoval, Exempt: true}, &models.TaxRate{Rate: d("0.10")}))
	requireDecimal(t, "1100", line.Subtotal)
	requireDecimal(t, "0", line.Tax)
	requireDecimal(t, "1100", line.Total)
}

func TestNextLineNo(t *testing.T) {
	assert.Equal(t, 1, models.NextLineNo(nil))
	assert.Equal(t, 4, models.NextLineNo([]*models.DocumentLine{{LineNo: 1}, {LineNo: 3}}))
}

func TestRecomputeDocumentTotals(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	header := &models.DocumentHeader{
		TransactionId:    "2511000001",
		Module:           models.ModulePurchases,
		DocumentTypeCode: "facprov",
		CounterPartyId:   1,
		PaymentForm:      models.PaymentFormCredit,
		DocumentDate:     time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
		EntryMode:        models.EntryModeConventional,
	}
	require.NoError(t, db.Create(header).Error)
	lines := []*models.DocumentLine{
		{TransactionId: header.TransactionId, LineNo: 1, ProductId: 1, Quantity: d("1"), Subtotal: d("100"), Tax: d("22"), Total: d("122")},
		{TransactionId: header.TransactionId, LineNo: 2, ProductId: 2, Quantity: d("2"), Subtotal: d("24.59"), Tax: d("5.41"), Total: d("30")},
	}
	require.NoError(t, db.Create(&lines).Error)

	for i := 0; i < 2; i++ {
		totals, err := models.RecomputeDocumentTotals(ctx, db, header.TransactionId)
		require.NoError(t, err)
		requireDecimal(t, "124.59", totals.Subtotal)
		requireDecimal(t, "27.41", totals.Tax)
		requireDecimal(t, "152", totals.Total)
	}

	stored, err := models.GetDocument(ctx, db, models.ModulePurchases, header.TransactionId)
	require.NoError(t, err)
	requireDecimal(t, "152", stored.Total)
	require.Len(t, stored.Lines, 2)
	assert.Equal(t, 1, stored.Lines[0].LineNo)

	_, err = models.RecomputeDocumentTotals(ctx, db, "2511999999")
	assert.True(t, errors.Is(err, models.ErrDocumentNotFound))

	// other modules cannot see the header
	_, err = models.GetDocument(ctx, db, models.ModuleSales, header.TransactionId)
	assert.True(t, errors.Is(err, models.ErrDocumentNotFound))
}

func TestListDocuments_Filters(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for i, party := range []int{1, 2, 1} {
		require.NoError(t, db.Create(&models.DocumentHeader{
			TransactionId:    "251100000" + string(rune('1'+i)),
			Module:           models.ModulePurchases,
			DocumentTypeCode: "facprov",
			CounterPartyId:   party,
			PaymentForm:      models.PaymentFormCredit,
			DocumentDate:     time.Date(2025, 11, 1+i, 0, 0, 0, 0, time.UTC),
			EntryMode:        models.EntryModeConventional,
			Subtotal:         decimal.Zero,
		}).Error)
	}

	results, err := models.ListDocuments(ctx, db, models.ModulePurchases, models.DocumentFilter{CounterPartyId: 1})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "2511000003", results[0].TransactionId)

	from := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)
	results, err = models.ListDocuments(ctx, db, models.ModulePurchases, models.DocumentFilter{FromDate: &from})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = models.ListDocuments(ctx, db, models.ModuleSales, models.DocumentFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
