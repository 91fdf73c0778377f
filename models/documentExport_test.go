package models_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"bitbucket.org/lestage/erp_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportDocumentsExcel(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.DocumentHeader{
		TransactionId:    "2511000001",
		Module:           models.ModuleSales,
		DocumentTypeCode: "efactura",
		CounterPartyId:   3,
		Series:           "A",
		Number:           "77",
		PaymentForm:      models.PaymentFormCash,
		DocumentDate:     time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
		EntryMode:        models.EntryModeConventional,
		Subtotal:         d("100"),
		Tax:              d("22"),
		Total:            d("122"),
	}).Error)

	var buf bytes.Buffer
	require.NoError(t, models.ExportDocumentsExcel(ctx, db, models.ModuleSales, models.DocumentFilter{}, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "TransactionId", rows[0][0])
	assert.Equal(t, []string{"2511000001", "efactura", "3", "A", "77", "2025-11-03", "CASH", "", "", "100", "22", "122"}, rows[1])
}
