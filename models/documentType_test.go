package models_test

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/lestage/erp_backend/models"
	"bitbucket.org/lestage/erp_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDocumentType_FallsBackToBuiltInCatalog(t *testing.T) {
	db := newTestDB(t)

	dt, err := models.GetDocumentType(context.Background(), db, "ncprov")
	require.NoError(t, err)
	assert.Equal(t, models.ExemptionFollowsPartyStatus, dt.ExemptionClass)
	assert.Equal(t, models.FlowReturn, dt.Flow)
	assert.Equal(t, "facprov", dt.SourceCode)
	assert.True(t, dt.Active())
}

func TestGetDocumentType_ConfiguredRowWins(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, err := models.UpsertDocumentType(ctx, db, &models.NewDocumentType{
		Code:           "facprov",
		Name:           "Factura proveedor",
		ExemptionClass: models.ExemptionNone,
		Direction:      models.DirectionPurchase,
		Flow:           models.FlowNormal,
		IsActive:       utils.NewFalse(),
	})
	require.NoError(t, err)

	dt, err := models.GetDocumentType(ctx, db, "facprov")
	require.NoError(t, err)
	assert.Equal(t, models.ExemptionNone, dt.ExemptionClass)
	assert.False(t, dt.Active())
}

func TestGetDocumentType_UnknownCodeIsMisconfigured(t *testing.T) {
	db := newTestDB(t)
	_, err := models.GetDocumentType(context.Background(), db, "nosuch")
	assert.True(t, errors.Is(err, models.ErrMisconfiguredReference))
}

func TestUpsertDocumentType_ReturnNeedsSource(t *testing.T) {
	db := newTestDB(t)
	_, err := models.UpsertDocumentType(context.Background(), db, &models.NewDocumentType{
		Code:           "ncx",
		Name:           "Nota",
		ExemptionClass: models.ExemptionNone,
		Direction:      models.DirectionSale,
		Flow:           models.FlowReturn,
	})
	assert.True(t, utils.IsValidationError(err))
}

func TestDefaultDocumentTypes_MatchModules(t *testing.T) {
	db := newTestDB(t)
	for _, profile := range models.AllModuleProfiles() {
		for _, code := range profile.AllowedTypes {
			dt, err := models.GetDocumentType(context.Background(), db, code)
			require.NoError(t, err, code)
			assert.Equal(t, profile.Direction, dt.Direction, code)
			assert.Equal(t, profile.Flow, dt.Flow, code)
		}
		assert.True(t, profile.Permits(profile.DefaultType))
	}
}

func TestExemptionClass_Exempt(t *testing.T) {
	assert.False(t, models.ExemptionNone.Exempt(true))
	assert.False(t, models.ExemptionNone.Exempt(false))
	assert.True(t, models.ExemptionForcedZero.Exempt(false))
	assert.True(t, models.ExemptionForcedZero.Exempt(true))
	assert.True(t, models.ExemptionFollowsPartyStatus.Exempt(true))
	assert.False(t, models.ExemptionFollowsPartyStatus.Exempt(false))
}

func TestParsePaymentForm(t *testing.T) {
	for in, want := range map[string]models.PaymentForm{
		"CASH": models.PaymentFormCash, "contado": models.PaymentFormCash,
		"CREDIT": models.PaymentFormCredit, " Credito ": models.PaymentFormCredit,
	} {
		got, err := models.ParsePaymentForm(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := models.ParsePaymentForm("cheque")
	assert.Error(t, err)
}
