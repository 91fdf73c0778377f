package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/lestage/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentHeader struct {
	TransactionId    string          `gorm:"primaryKey;size:10" json:"transaction_id"`
	Module           ModuleName      `gorm:"size:20;not null;index" json:"module"`
	DocumentTypeCode string          `gorm:"size:20;not null;index" json:"document_type_code"`
	CounterPartyId   int             `gorm:"not null;index" json:"counter_party_id"`
	Series           string          `gorm:"size:10" json:"series"`
	Number           string          `gorm:"size:20" json:"number"`
	PaymentForm      PaymentForm     `gorm:"size:10;not null" json:"payment_form"`
	PaymentTermCode  string          `gorm:"size:50" json:"payment_term_code"`
	DocumentDate     time.Time       `gorm:"not null" json:"document_date"`
	DueDate          *time.Time      `json:"due_date"`
	CurrencyCode     string          `gorm:"size:3" json:"currency_code"`
	MoneyAccountId   *int            `json:"money_account_id"`
	PriceIncludesTax bool            `gorm:"not null;default:false" json:"price_includes_tax"`
	IsSmallTaxpayer  bool            `gorm:"not null;default:false" json:"is_small_taxpayer"`
	EntryMode        EntryMode       `gorm:"size:15;not null;default:'CONVENTIONAL'" json:"entry_mode"`
	Notes            string          `gorm:"type:text" json:"notes"`
	UserId           int             `gorm:"default:0" json:"user_id"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"subtotal"`
	Tax              decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"tax"`
	Total            decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total"`
	Lines            []*DocumentLine `gorm:"foreignKey:TransactionId;references:TransactionId;constraint:OnDelete:CASCADE" json:"lines"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type DocumentLine struct {
	ID              int             `gorm:"primary_key" json:"id"`
	TransactionId   string          `gorm:"size:10;not null;uniqueIndex:idx_document_line_no" json:"transaction_id"`
	LineNo          int             `gorm:"not null;uniqueIndex:idx_document_line_no" json:"line_no"`
	ProductId       int             `gorm:"not null;index" json:"product_id"`
	Quantity        decimal.Decimal `gorm:"type:decimal(15,4);not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0" json:"unit_price"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_percent"`
	NetUnitPrice    decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0" json:"net_unit_price"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"subtotal"`
	Tax             decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"tax"`
	Total           decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total"`
	// returns only
	SourceTransactionId *string   `gorm:"size:10" json:"source_transaction_id"`
	SourceLineNo        *int      `json:"source_line_no"`
	AffectedSeries      string    `gorm:"size:10" json:"affected_series"`
	AffectedNumber      string    `gorm:"size:20" json:"affected_number"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDocument struct {
	DocumentTypeCode string           `json:"document_type_code" validate:"max=20"`
	CounterPartyId   int              `json:"counter_party_id" validate:"required,gt=0"`
	Series           string           `json:"series" validate:"max=10"`
	Number           string           `json:"number" validate:"max=20"`
	PaymentForm      PaymentForm      `json:"payment_form" validate:"required,oneof=CASH CREDIT"`
	PaymentTermCode  string           `json:"payment_term_code" validate:"max=50"`
	DocumentDate     time.Time        `json:"document_date" validate:"required"`
	DueDate          *time.Time       `json:"due_date"`
	CurrencyCode     string           `json:"currency_code" validate:"omitempty,len=3"`
	MoneyAccountId   *int             `json:"money_account_id"`
	PriceIncludesTax bool             `json:"price_includes_tax"`
	EntryMode        EntryMode        `json:"entry_mode" validate:"omitempty,oneof=CONVENTIONAL SIMPLIFIED"`
	Notes            string           `json:"notes"`
	Subtotal         *decimal.Decimal `json:"subtotal" validate:"omitempty,gte=0"`
	Tax              *decimal.Decimal `json:"tax" validate:"omitempty,gte=0"`
	Lines            []NewDocumentLine `json:"lines" validate:"dive"`
}

type NewDocumentLine struct {
	// 0 appends a new line
	LineNo              int             `json:"line_no" validate:"gte=0"`
	ProductId           int             `json:"product_id"`
	Quantity            decimal.Decimal `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price" validate:"gte=0"`
	DiscountPercent     decimal.Decimal `json:"discount_percent" validate:"gte=0,lte=100"`
	SourceTransactionId string          `json:"source_transaction_id" validate:"omitempty,len=10"`
	SourceLineNo        int             `json:"source_line_no" validate:"gte=0"`
	IsDeletedItem       *bool           `json:"is_deleted_item"`
}

// IsEmpty reports lines that pricing hygiene silently drops.
func (l NewDocumentLine) IsEmpty() bool {
	return l.ProductId <= 0 || !l.Quantity.IsPositive()
}

func (l NewDocumentLine) IsDeleted() bool {
	return l.IsDeletedItem != nil && *l.IsDeletedItem
}

// LinePricing is what the header resolved once for all of its lines.
type LinePricing struct {
	Rule             utils.PricingRule
	PriceIncludesTax bool
	Exempt           bool
}

// Price recomputes every derived field of the line.
func (line *DocumentLine) Price(pricing LinePricing, rate *TaxRate) error {
	amounts, err := utils.CalculateLineAmounts(utils.LineAmountInput{
		UnitPrice:        line.UnitPrice,
		Quantity:         line.Quantity,
		DiscountPercent:  line.DiscountPercent,
		TaxRate:          rate.Rate,
		PriceIncludesTax: pricing.PriceIncludesTax,
		Exempt:           pricing.Exempt,
	}, pricing.Rule)
	if err != nil {
		return err
	}
	if pricing.Rule == utils.PricingNoDiscount {
		line.DiscountPercent = decimal.Zero
	}
	line.NetUnitPrice = amounts.NetUnitPrice
	line.Subtotal = amounts.Subtotal
	line.Tax = amounts.Tax
	line.Total = amounts.Total
	return nil
}

func (line *DocumentLine) amounts() utils.LineAmounts {
	return utils.LineAmounts{
		NetUnitPrice: line.NetUnitPrice,
		Subtotal:     line.Subtotal,
		Tax:          line.Tax,
		Total:        line.Total,
	}
}

// PriceLines resolves product tax rates and prices each line in place.
func PriceLines(ctx context.Context, db *gorm.DB, pricing LinePricing, lines []*DocumentLine) error {
	if len(lines) == 0 {
		return nil
	}
	productIds := make([]int, 0, len(lines))
	for _, l := range lines {
		productIds = append(productIds, l.ProductId)
	}
	rates, err := productTaxRates(ctx, db, productIds)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if err := l.Price(pricing, rates[l.ProductId]); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeDocumentTotals sums the persisted lines into the header's three total
// columns. It never reprices lines and can be called any number of times.
func RecomputeDocumentTotals(ctx context.Context, tx *gorm.DB, transactionId string) (utils.LineTotals, error) {
	var lines []*DocumentLine
	if err := tx.WithContext(ctx).Where("transaction_id = ?", transactionId).Find(&lines).Error; err != nil {
		return utils.LineTotals{}, err
	}
	amounts := make([]utils.LineAmounts, 0, len(lines))
	for _, l := range lines {
		amounts = append(amounts, l.amounts())
	}
	totals := utils.SumLineAmounts(amounts)

	result := tx.WithContext(ctx).Model(&DocumentHeader{}).
		Where("transaction_id = ?", transactionId).
		UpdateColumns(map[string]interface{}{
			"subtotal": totals.Subtotal,
			"tax":      totals.Tax,
			"total":    totals.Total,
		})
	if result.Error != nil {
		return utils.LineTotals{}, result.Error
	}
	if result.RowsAffected == 0 {
		// mysql reports 0 affected rows when values are unchanged
		var count int64
		if err := tx.WithContext(ctx).Model(&DocumentHeader{}).Where("transaction_id = ?", transactionId).Count(&count).Error; err != nil {
			return utils.LineTotals{}, err
		}
		if count == 0 {
			return utils.LineTotals{}, ErrDocumentNotFound
		}
	}
	return totals, nil
}

// GetDocument loads a header of the module with its lines ordered by line number.
func GetDocument(ctx context.Context, db *gorm.DB, module ModuleName, transactionId string) (*DocumentHeader, error) {
	var header DocumentHeader
	err := db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no") }).
		Where("transaction_id = ? AND module = ?", transactionId, module).
		First(&header).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &header, nil
}

// LockDocument reads the header FOR UPDATE inside tx, lines included.
func LockDocument(ctx context.Context, tx *gorm.DB, module ModuleName, transactionId string) (*DocumentHeader, error) {
	var header DocumentHeader
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_id = ? AND module = ?", transactionId, module).
		First(&header).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("transaction_id = ?", transactionId).Order("line_no").Find(&header.Lines).Error; err != nil {
		return nil, err
	}
	return &header, nil
}

type DocumentFilter struct {
	CounterPartyId   int
	DocumentTypeCode string
	FromDate         *time.Time
	ToDate           *time.Time
	Limit            int
	Offset           int
}

// ListDocuments returns headers without lines, newest transaction first.
func ListDocuments(ctx context.Context, db *gorm.DB, module ModuleName, filter DocumentFilter) ([]*DocumentHeader, error) {
	dbCtx := db.WithContext(ctx).Where("module = ?", module)
	if filter.CounterPartyId > 0 {
		dbCtx = dbCtx.Where("counter_party_id = ?", filter.CounterPartyId)
	}
	if filter.DocumentTypeCode != "" {
		dbCtx = dbCtx.Where("document_type_code = ?", filter.DocumentTypeCode)
	}
	if filter.FromDate != nil {
		dbCtx = dbCtx.Where("document_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		dbCtx = dbCtx.Where("document_date <= ?", *filter.ToDate)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var results []*DocumentHeader
	err := dbCtx.Order("transaction_id DESC").Limit(limit).Offset(filter.Offset).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindSourceLine loads a line of an earlier document for a return line.
func FindSourceLine(ctx context.Context, db *gorm.DB, transactionId string, lineNo int) (*DocumentHeader, *DocumentLine, error) {
	var header DocumentHeader
	if err := db.WithContext(ctx).Where("transaction_id = ?", transactionId).First(&header).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSourceLineMismatch
		}
		return nil, nil, err
	}
	var line DocumentLine
	if err := db.WithContext(ctx).Where("transaction_id = ? AND line_no = ?", transactionId, lineNo).First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSourceLineMismatch
		}
		return nil, nil, err
	}
	return &header, &line, nil
}

// NextLineNo is one past the highest line number of the header.
func NextLineNo(lines []*DocumentLine) int {
	highest := 0
	for _, l := range lines {
		if l.LineNo > highest {
			highest = l.LineNo
		}
	}
	return highest + 1
}
