package workflow_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"bitbucket.org/lestage/erp_backend/models"
	"bitbucket.org/lestage/erp_backend/utils"
	"bitbucket.org/lestage/erp_backend/workflow"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	db   *gorm.DB
	ctrl *workflow.DocumentController
	ctx  context.Context

	supplier         int
	smallSupplier    int
	inactiveSupplier int
	customer         int
	bank             int
	closedBank       int
	p22              int
	p10              int
}

var testNow = time.Date(2025, 11, 15, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.MigrateTable(db))

	ctx := utils.SetUserIdInContext(context.Background(), 7)
	require.NoError(t, models.SeedDefaultDocumentTypes(ctx, db))

	_, err = models.UpsertTaxRate(ctx, db, &models.NewTaxRate{Code: "IVA22", Name: "Básica", Rate: d("0.22")})
	require.NoError(t, err)
	_, err = models.UpsertTaxRate(ctx, db, &models.NewTaxRate{Code: "IVA10", Name: "Mínima", Rate: d("0.10")})
	require.NoError(t, err)
	_, err = models.UpsertPaymentTerm(ctx, db, &models.NewPaymentTerm{Code: "30D", Description: "30 días", Days: 30})
	require.NoError(t, err)

	f := &fixture{db: db, ctx: ctx}

	supplier, err := models.CreateSupplier(ctx, db, &models.NewSupplier{Code: "S1", Name: "Proveedor", PaymentTermCode: "30D"})
	require.NoError(t, err)
	f.supplier = supplier.ID
	small, err := models.CreateSupplier(ctx, db, &models.NewSupplier{Code: "S2", Name: "Pequeña empresa", IsSmallTaxpayer: true})
	require.NoError(t, err)
	f.smallSupplier = small.ID
	inactive, err := models.CreateSupplier(ctx, db, &models.NewSupplier{Code: "S3", Name: "Dado de baja"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Supplier{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)
	f.inactiveSupplier = inactive.ID

	customer, err := models.CreateCustomer(ctx, db, &models.NewCustomer{Code: "C1", Name: "Cliente"})
	require.NoError(t, err)
	f.customer = customer.ID

	bank, err := models.CreateMoneyAccount(ctx, db, &models.NewMoneyAccount{AccountType: models.MoneyAccountTypeBank, AccountName: "Banco", AccountCode: "B1", CurrencyCode: "UYU"})
	require.NoError(t, err)
	f.bank = bank.ID
	closed, err := models.CreateMoneyAccount(ctx, db, &models.NewMoneyAccount{AccountType: models.MoneyAccountTypeCash, AccountName: "Caja vieja", AccountCode: "K9"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.MoneyAccount{}).Where("id = ?", closed.ID).Update("is_active", false).Error)
	f.closedBank = closed.ID

	p22, err := models.CreateProduct(ctx, db, &models.NewProduct{Code: "A22", Name: "Artículo básico", TaxRateCode: "IVA22"})
	require.NoError(t, err)
	f.p22 = p22.ID
	p10, err := models.CreateProduct(ctx, db, &models.NewProduct{Code: "A10", Name: "Artículo mínimo", TaxRateCode: "IVA10"})
	require.NoError(t, err)
	f.p10 = p10.ID

	log := logrus.New()
	log.SetOutput(io.Discard)
	f.ctrl = workflow.NewDocumentController(db, models.DBSequenceAllocator{}, log)
	f.ctrl.Now = func() time.Time { return testNow }
	return f
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireAmounts(t *testing.T, header *models.DocumentHeader, subtotal, tax, total string) {
	t.Helper()
	require.Truef(t, d(subtotal).Equal(header.Subtotal), "subtotal: want %s, got %s", subtotal, header.Subtotal)
	require.Truef(t, d(tax).Equal(header.Tax), "tax: want %s, got %s", tax, header.Tax)
	require.Truef(t, d(total).Equal(header.Total), "total: want %s, got %s", total, header.Total)
}

func (f *fixture) purchase(party int, lines ...models.NewDocumentLine) *models.NewDocument {
	return &models.NewDocument{
		CounterPartyId: party,
		Series:         "A",
		Number:         "1001",
		PaymentForm:    models.PaymentFormCredit,
		DocumentDate:   testNow,
		CurrencyCode:   "UYU",
		Lines:          lines,
	}
}

func line(product int, qty, price string) models.NewDocumentLine {
	return models.NewDocumentLine{ProductId: product, Quantity: d(qty), UnitPrice: d(price)}
}

// stored reads the header back the way an API client would see it.
func (f *fixture) stored(t *testing.T, module models.ModuleName, id string) *models.DocumentHeader {
	t.Helper()
	header, err := f.ctrl.Get(f.ctx, module, id)
	require.NoError(t, err)
	return header
}

func (f *fixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}
