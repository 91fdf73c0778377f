package workflow_test

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/lestage/erp_backend/models"
	"bitbucket.org/lestage/erp_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommit_SmallTaxpayerPurchaseIsExempt(t *testing.T) {
	f := newFixture(t)

	header, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, f.purchase(f.smallSupplier, line(f.p10, "10", "110")))
	require.NoError(t, err)

	assert.Equal(t, "2511000001", header.TransactionId)
	assert.Equal(t, "facprov", header.DocumentTypeCode)
	assert.True(t, header.PriceIncludesTax)
	assert.True(t, header.IsSmallTaxpayer)
	assert.Equal(t, 7, header.UserId)
	requireAmounts(t, header, "1100", "0", "1100")

	stored := f.stored(t, models.ModulePurchases, header.TransactionId)
	requireAmounts(t, stored, "1100", "0", "1100")
	require.Len(t, stored.Lines, 1)
	assert.True(t, stored.Lines[0].Tax.IsZero())

	var index models.Transaction
	require.NoError(t, f.db.Where("transaction_id = ?", header.TransactionId).First(&index).Error)
	assert.Equal(t, models.ModulePurchases, index.Module)
	assert.Equal(t, "facprov", index.DocumentTypeCode)
}

func TestCommit_TaxInclusivePurchase(t *testing.T) {
	f := newFixture(t)
	input := f.purchase(f.supplier, line(f.p22, "1", "122"))
	input.PriceIncludesTax = true

	header, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, input)
	require.NoError(t, err)
	requireAmounts(t, header, "100", "22", "122")
	require.Len(t, header.Lines, 1)
	assert.True(t, d("100").Equal(header.Lines[0].NetUnitPrice))
}

func TestCommit_ForcedZeroTypeIgnoresRate(t *testing.T) {
	f := newFixture(t)
	input := f.purchase(f.supplier, line(f.p22, "2", "50"))
	input.DocumentTypeCode = "factimp"

	header, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, input)
	require.NoError(t, err)
	requireAmounts(t, header, "100", "0", "100")
}

func TestCommit_SalesAreAlwaysTaxInclusive(t *testing.T) {
	f := newFixture(t)
	input := f.purchase(f.customer, line(f.p22, "10", "3"))
	input.DocumentTypeCode = "efactura"
	input.PriceIncludesTax = false

	header, err := f.ctrl.Commit(f.ctx, models.ModuleSales, input)
	require.NoError(t, err)
	assert.True(t, header.PriceIncludesTax)
	requireAmounts(t, header, "24.59", "5.41", "30")
}

func TestCommit_SalesDiscountAppliesBeforeTaxRemoval(t *testing.T) {
	f := newFixture(t)
	l := line(f.p22, "1", "122")
	l.DiscountPercent = d("10")
	input := f.purchase(f.customer, l)
	input.DocumentTypeCode = "efactura"

	header, err := f.ctrl.Commit(f.ctx, models.ModuleSales, input)
	require.NoError(t, err)
	require.Len(t, header.Lines, 1)
	assert.True(t, d("109.8").Equal(header.Lines[0].NetUnitPrice))
	requireAmounts(t, header, "90", "19.8", "109.8")
}

func TestCommit_CashRequiresAvailability(t *testing.T) {
	f := newFixture(t)

	input := f.purchase(f.supplier, line(f.p22, "1", "100"))
	input.PaymentForm = models.PaymentFormCash
	_, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, input)
	assert.True(t, errors.Is(err, models.ErrMissingAvailability))

	missing := 999
	input.MoneyAccountId = &missing
	_, err = f.ctrl.Commit(f.ctx, models.ModulePurchases, input)
	assert.True(t, errors.Is(err, models.ErrMissingAvailability))

	input.MoneyAccountId = &f.closedBank
	_, err = f.ctrl.Commit(f.ctx, models.ModulePurchases, input)
	assert.True(t, errors.Is(err, models.ErrMissingAvailability))

	assert.Zero(t, f.count(t, &models.DocumentHeader{}))
	assert.Zero(t, f.count(t, &models.Transaction{}))

	input.MoneyAccountId = &f.bank
	header, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, input)
	require.NoError(t, err)
	// failed attempts never consumed a number
	assert.Equal(t, "2511000001", header.TransactionId)
	require.NotNil(t, header.MoneyAccountId)
	assert.Equal(t, f.bank, *header.MoneyAccountId)
	assert.Nil(t, header.DueDate)
}

func TestCommit_CreditClearsAvailabilityAndSetsDueDate(t *testing.T) {
	f := newFixture(t)
	input := f.purchase(f.supplier, line(f.p22, "1", "100"))
	input.MoneyAccountId = &f.bank

	header, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, input)
	require.NoError(t, err)
	assert.Nil(t, header.MoneyAccountId)
	// supplier default term
	assert.Equal(t, "30D", header.PaymentTermCode)
	require.NotNil(t, header.DueDate)
	assert.True(t, time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC).Equal(*header.DueDate))
}

func TestCommit_NoValidLines(t *testing.T) {
	f := newFixture(t)

	deleted := line(f.p22, "1", "100")
	deleted.IsDeletedItem = utils.NewTrue()
	_, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, f.purchase(f.supplier,
		line(0, "1", "100"),
		line(f.p22, "0", "100"),
		deleted,
	))
	assert.True(t, errors.Is(err, models.ErrNoValidLines))

	_, err = f.ctrl.Commit(f.ctx, models.ModulePurchases, f.purchase(f.supplier))
	assert.True(t, errors.Is(err, models.ErrNoValidLines))
	assert.Zero(t, f.count(t, &models.DocumentHeader{}))
}

func TestCommit_EmptyLinesAreDroppedAndNumberingIsContiguous(t *testing.T) {
	f := newFixture(t)

	header, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, f.purchase(f.supplier,
		line(f.p22, "1", "100"),
		line(0, "0", "0"),
		line(f.p10, "2", "10"),
	))
	require.NoError(t, err)
	require.Len(t, header.Lines, 2)
	assert.Equal(t, 1, header.Lines[0].LineNo)
	assert.Equal(t, 2, header.Lines[1].LineNo)
	assert.Equal(t, f.p10, header.Lines[1].ProductId)
	requireAmounts(t, header, "120", "24", "144")
}

func TestCommit_CounterPartyNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, f.purchase(999, line(f.p22, "1", "100")))
	assert.True(t, errors.Is(err, models.ErrCounterPartyNotFound))

	_, err = f.ctrl.Commit(f.ctx, models.ModulePurchases, f.purchase(f.inactiveSupplier, line(f.p22, "1", "100")))
	assert.True(t, errors.Is(err, models.ErrCounterPartyNotFound))
}

func TestCommit_DocumentTypeNotPermitted(t *testing.T) {
	f := newFixture(t)

	input := f.purchase(f.supplier, line(f.p22, "1", "100"))
	input.DocumentTypeCode = "efactura"
	_, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, input)
	assert.True(t, errors.Is(err, models.ErrDocumentTypeNotPermitted))

	_, err = models.UpsertDocumentType(f.ctx, f.db, &models.NewDocumentType{
		Code:           "movprov",
		Name:           "Movimiento proveedor",
		ExemptionClass: models.ExemptionForcedZero,
		Direction:      models.DirectionPurchase,
		Flow:           models.FlowNormal,
		IsActive:       utils.NewFalse(),
	})
	require.NoError(t, err)
	input.DocumentTypeCode = "movprov"
	_, err = f.ctrl.Commit(f.ctx, models.ModulePurchases, input)
	assert.True(t, errors.Is(err, models.ErrDocumentTypeNotPermitted))
}

func TestCommit_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	input := f.purchase(0, line(f.p22, "1", "100"))
	input.PaymentForm = "CHEQUE"
	_, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, input)
	require.True(t, utils.IsValidationError(err))
	var validationErr *utils.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Fields, "NewDocument.CounterPartyId")
	assert.Contains(t, validationErr.Fields, "NewDocument.PaymentForm")

	_, err = f.ctrl.Commit(f.ctx, "inventory", f.purchase(f.supplier, line(f.p22, "1", "100")))
	assert.True(t, errors.Is(err, models.ErrUnknownModule))
}

func TestCommit_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, f.purchase(f.supplier, line(999, "1", "100")))
	assert.True(t, errors.Is(err, models.ErrProductNotFound))
	assert.Zero(t, f.count(t, &models.DocumentHeader{}))
}

func TestCommit_SequentialIdsPerMonth(t *testing.T) {
	f := newFixture(t)

	first, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, f.purchase(f.supplier, line(f.p22, "1", "100")))
	require.NoError(t, err)
	second, err := f.ctrl.Commit(f.ctx, models.ModuleSales, f.purchase(f.customer, line(f.p22, "1", "100")))
	require.NoError(t, err)
	assert.Equal(t, "2511000001", first.TransactionId)
	assert.Equal(t, "2511000002", second.TransactionId)

	f.ctrl.Now = func() time.Time { return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) }
	third, err := f.ctrl.Commit(f.ctx, models.ModulePurchases, f.purchase(f.supplier, line(f.p22, "1", "100")))
	require.NoError(t, err)
	assert.Equal(t, "2512000001", third.TransactionId)
}

func TestCommit_IdempotencyKeyReplaysDocument(t *testing.T) {
	f := newFixture(t)
	ctx := utils.SetIdempotencyKeyInContext(f.ctx, "req-1")

	first, err := f.ctrl.Commit(ctx, models.ModulePurchases, f.purchase(f.supplier, line(f.p22, "1", "100")))
	require.NoError(t, err)
	again, err := f.ctrl.Commit(ctx, models.ModulePurchases, f.purchase(f.supplier, line(f.p22, "5", "100")))
	require.NoError(t, err)
	assert.Equal(t, first.TransactionId, again.TransactionId)
	requireAmounts(t, again, "100", "22", "122")
	assert.EqualValues(t, 1, f.count(t, &models.DocumentHeader{}))

	other, err := f.ctrl.Commit(utils.SetIdempotencyKeyInContext(f.ctx, "req-2"), models.ModulePurchases, f.purchase(f.supplier, line(f.p22, "1", "100")))
	require.NoError(t, err)
	assert.NotEqual(t, first.TransactionId, other.TransactionId)
}
