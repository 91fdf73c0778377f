package workflow

import (
	"context"
	"errors"
	"io"
	"time"

	"bitbucket.org/lestage/erp_backend/config"
	"bitbucket.org/lestage/erp_backend/models"
	"bitbucket.org/lestage/erp_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("erp_backend/workflow")

// DocumentController drives the commit/edit/delete lifecycle shared by
// purchases, purchase returns, sales and sales returns.
type DocumentController struct {
	DB        *gorm.DB
	Allocator models.SequenceAllocator
	Logger    *logrus.Logger
	Now       func() time.Time
}

func NewDocumentController(db *gorm.DB, allocator models.SequenceAllocator, logger *logrus.Logger) *DocumentController {
	return &DocumentController{
		DB:        db,
		Allocator: allocator,
		Logger:    logger,
		Now:       time.Now,
	}
}

func (c *DocumentController) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// resolvedDocument is everything decided once per header before lines are priced.
type resolvedDocument struct {
	profile         models.ModuleProfile
	docType         *models.DocumentType
	party           *models.CounterParty
	pricing         models.LinePricing
	moneyAccountId  *int
	paymentTermCode string
	dueDate         *time.Time
	entryMode       models.EntryMode
}

func (c *DocumentController) resolve(ctx context.Context, tx *gorm.DB, module models.ModuleName, input *models.NewDocument) (*resolvedDocument, error) {
	profile, err := models.GetModuleProfile(module)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	docType, err := resolveDocumentType(ctx, tx, profile, input.DocumentTypeCode)
	if err != nil {
		return nil, err
	}

	party, err := models.GetCounterParty(ctx, tx, profile.PartyKind, input.CounterPartyId)
	if err != nil {
		return nil, err
	}

	// cash needs somewhere to settle; credit never keeps one
	var moneyAccountId *int
	if input.PaymentForm == models.PaymentFormCash {
		if input.MoneyAccountId == nil || *input.MoneyAccountId <= 0 {
			return nil, models.ErrMissingAvailability
		}
		account, err := models.GetUsableMoneyAccount(ctx, tx, *input.MoneyAccountId)
		if err != nil {
			return nil, err
		}
		moneyAccountId = &account.ID
	}

	entryMode := input.EntryMode
	if entryMode == "" {
		entryMode = models.EntryModeConventional
	}
	if entryMode == models.EntryModeSimplified {
		if !profile.AllowsSimplified {
			return nil, models.ErrSimplifiedNotAllowed
		}
		if len(input.Lines) > 0 {
			return nil, models.ErrSimplifiedHasNoLines
		}
	}

	termCode, dueDate, err := models.ResolveDueDate(ctx, tx, input.PaymentForm, input.PaymentTermCode, party.PaymentTermCode, input.DocumentDate, input.DueDate)
	if err != nil {
		return nil, err
	}

	return &resolvedDocument{
		profile: profile,
		docType: docType,
		party:   party,
		pricing: models.LinePricing{
			Rule:             profile.PricingRule(),
			PriceIncludesTax: profile.ResolvePriceIncludesTax(input.PriceIncludesTax, party.IsSmallTaxpayer),
			Exempt:           docType.ExemptionClass.Exempt(party.IsSmallTaxpayer),
		},
		moneyAccountId:  moneyAccountId,
		paymentTermCode: termCode,
		dueDate:         dueDate,
		entryMode:       entryMode,
	}, nil
}

// resolveStored rebuilds the pricing of an existing header from what was saved with it.
func (c *DocumentController) resolveStored(ctx context.Context, tx *gorm.DB, header *models.DocumentHeader) (*resolvedDocument, error) {
	profile, err := models.GetModuleProfile(header.Module)
	if err != nil {
		return nil, err
	}
	docType, err := models.GetDocumentType(ctx, tx, header.DocumentTypeCode)
	if err != nil {
		return nil, err
	}
	party := &models.CounterParty{
		Kind:            profile.PartyKind,
		ID:              header.CounterPartyId,
		IsSmallTaxpayer: header.IsSmallTaxpayer,
	}
	return &resolvedDocument{
		profile: profile,
		docType: docType,
		party:   party,
		pricing: models.LinePricing{
			Rule:             profile.PricingRule(),
			PriceIncludesTax: header.PriceIncludesTax,
			Exempt:           docType.ExemptionClass.Exempt(header.IsSmallTaxpayer),
		},
		moneyAccountId:  header.MoneyAccountId,
		paymentTermCode: header.PaymentTermCode,
		dueDate:         header.DueDate,
		entryMode:       header.EntryMode,
	}, nil
}

func resolveDocumentType(ctx context.Context, tx *gorm.DB, profile models.ModuleProfile, code string) (*models.DocumentType, error) {
	code, err := profile.ResolveTypeCode(code)
	if err != nil {
		return nil, err
	}
	docType, err := models.GetDocumentType(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if !docType.Active() {
		return nil, models.ErrDocumentTypeNotPermitted
	}
	if docType.Direction != profile.Direction || docType.Flow != profile.Flow {
		return nil, models.ErrMisconfiguredReference
	}
	return docType, nil
}

// newLine turns an input into an unpriced line, or nil when pricing hygiene drops it.
func (c *DocumentController) newLine(ctx context.Context, tx *gorm.DB, r *resolvedDocument, input models.NewDocumentLine) (*models.DocumentLine, error) {
	if input.IsDeleted() {
		return nil, nil
	}
	line := &models.DocumentLine{
		ProductId:       input.ProductId,
		Quantity:        input.Quantity,
		UnitPrice:       input.UnitPrice,
		DiscountPercent: input.DiscountPercent,
	}
	if input.SourceTransactionId != "" {
		if err := c.applySourceLine(ctx, tx, r, line, input); err != nil {
			return nil, err
		}
	}
	if line.ProductId <= 0 || !line.Quantity.IsPositive() {
		return nil, nil
	}
	return line, nil
}

// applySourceLine links a return line to the document line it reverses.
func (c *DocumentController) applySourceLine(ctx context.Context, tx *gorm.DB, r *resolvedDocument, line *models.DocumentLine, input models.NewDocumentLine) error {
	if r.profile.Flow != models.FlowReturn || input.SourceLineNo <= 0 {
		return models.ErrSourceLineMismatch
	}
	srcHeader, srcLine, err := models.FindSourceLine(ctx, tx, input.SourceTransactionId, input.SourceLineNo)
	if err != nil {
		return err
	}
	if srcHeader.DocumentTypeCode != r.docType.SourceCode || srcHeader.CounterPartyId != r.party.ID {
		return models.ErrSourceLineMismatch
	}
	if line.ProductId <= 0 {
		line.ProductId = srcLine.ProductId
	}
	if line.ProductId != srcLine.ProductId {
		return models.ErrSourceLineMismatch
	}
	if line.UnitPrice.IsZero() {
		line.UnitPrice = srcLine.NetUnitPrice
	}
	line.SourceTransactionId = &srcHeader.TransactionId
	line.SourceLineNo = &srcLine.LineNo
	line.AffectedSeries = srcHeader.Series
	line.AffectedNumber = srcHeader.Number
	return nil
}

func (r *resolvedDocument) applyTo(header *models.DocumentHeader, input *models.NewDocument) {
	header.DocumentTypeCode = r.docType.Code
	header.CounterPartyId = r.party.ID
	header.Series = input.Series
	header.Number = input.Number
	header.PaymentForm = input.PaymentForm
	header.PaymentTermCode = r.paymentTermCode
	header.DocumentDate = input.DocumentDate
	header.DueDate = r.dueDate
	header.CurrencyCode = input.CurrencyCode
	header.MoneyAccountId = r.moneyAccountId
	header.PriceIncludesTax = r.pricing.PriceIncludesTax
	header.IsSmallTaxpayer = r.party.IsSmallTaxpayer
	header.EntryMode = r.entryMode
	header.Notes = input.Notes
}

// applyManualTotals sets the typed-in totals of a simplified header.
func applyManualTotals(header *models.DocumentHeader, input *models.NewDocument) {
	subtotal := utils.Deref(input.Subtotal).Round(2)
	tax := utils.Deref(input.Tax).Round(2)
	header.Subtotal = subtotal
	header.Tax = tax
	header.Total = subtotal.Add(tax)
}

// Commit persists a new document atomically: id, header, priced lines, totals and index row.
func (c *DocumentController) Commit(ctx context.Context, module models.ModuleName, input *models.NewDocument) (*models.DocumentHeader, error) {
	ctx, span := tracer.Start(ctx, "DocumentController.Commit")
	defer span.End()
	span.SetAttributes(attribute.String("module", string(module)))

	if input == nil {
		return nil, errors.New("document input is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	key := idempotencyKey(ctx)
	if key != "" {
		if header, err := c.replayCommit(ctx, module, userId, key); err != nil || header != nil {
			return header, err
		}
	}

	tx := c.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		_ = tx.Rollback().Error
	}()

	r, err := c.resolve(ctx, tx, module, input)
	if err != nil {
		return nil, err
	}

	var lines []*models.DocumentLine
	if r.entryMode == models.EntryModeConventional {
		for _, in := range input.Lines {
			line, err := c.newLine(ctx, tx, r, in)
			if err != nil {
				return nil, err
			}
			if line == nil {
				continue
			}
			line.LineNo = len(lines) + 1
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			return nil, models.ErrNoValidLines
		}
		if err := models.PriceLines(ctx, tx, r.pricing, lines); err != nil {
			return nil, err
		}
	}

	transactionId, err := c.Allocator.Next(ctx, tx, models.TransactionPrefix(c.now()))
	if err != nil {
		config.LogError(c.Logger, "documentWorkflow.go", "Commit", "Allocator.Next", module, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("transaction_id", transactionId))

	header := &models.DocumentHeader{
		TransactionId: transactionId,
		Module:        module,
		UserId:        userId,
		Subtotal:      decimal.Zero,
		Tax:           decimal.Zero,
		Total:         decimal.Zero,
	}
	r.applyTo(header, input)
	if r.entryMode == models.EntryModeSimplified {
		applyManualTotals(header, input)
	}
	if err := tx.Omit("Lines").Create(header).Error; err != nil {
		config.LogError(c.Logger, "documentWorkflow.go", "Commit", "Create header", header, err)
		return nil, err
	}

	if len(lines) > 0 {
		for _, line := range lines {
			line.TransactionId = transactionId
		}
		if err := tx.Create(&lines).Error; err != nil {
			config.LogError(c.Logger, "documentWorkflow.go", "Commit", "Create lines", transactionId, err)
			return nil, err
		}
		totals, err := models.RecomputeDocumentTotals(ctx, tx, transactionId)
		if err != nil {
			return nil, err
		}
		header.Subtotal, header.Tax, header.Total = totals.Subtotal, totals.Tax, totals.Total
	}

	if key != "" {
		if err := models.RecordIdempotencyKey(ctx, tx, userId, module, key, transactionId); err != nil {
			if isReplay(err) {
				// a concurrent request with the same key won the race
				_ = tx.Rollback().Error
				return c.replayCommit(ctx, module, userId, key)
			}
			return nil, err
		}
	}

	if err := tx.Create(&models.Transaction{
		TransactionId:    transactionId,
		DocumentTypeCode: header.DocumentTypeCode,
		Module:           module,
		UserId:           userId,
	}).Error; err != nil {
		config.LogError(c.Logger, "documentWorkflow.go", "Commit", "Create transaction index", transactionId, err)
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	header.Lines = lines

	c.Logger.WithFields(logrus.Fields{
		"module":         module,
		"transaction_id": transactionId,
		"document_type":  header.DocumentTypeCode,
		"lines":          len(lines),
		"total":          header.Total.String(),
	}).Info("document committed")
	return header, nil
}

// Update edits a committed document in place. Input lines with a line number
// replace that line, flagged ones are removed, the rest are appended. Every
// remaining line is repriced because header-level inputs may have changed.
func (c *DocumentController) Update(ctx context.Context, module models.ModuleName, transactionId string, input *models.NewDocument) (*models.DocumentHeader, error) {
	ctx, span := tracer.Start(ctx, "DocumentController.Update")
	defer span.End()
	span.SetAttributes(attribute.String("module", string(module)), attribute.String("transaction_id", transactionId))

	if input == nil {
		return nil, errors.New("document input is required")
	}

	tx := c.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		_ = tx.Rollback().Error
	}()

	header, err := models.LockDocument(ctx, tx, module, transactionId)
	if err != nil {
		return nil, err
	}

	// an edit without a type keeps the stored one; the module default is for new documents
	if utils.IsBlank(input.DocumentTypeCode) {
		withType := *input
		withType.DocumentTypeCode = header.DocumentTypeCode
		input = &withType
	}

	// simplified documents may not carry lines; the edit is judged on the input alone
	r, err := c.resolve(ctx, tx, module, input)
	if err != nil {
		return nil, err
	}

	existing := make(map[int]*models.DocumentLine, len(header.Lines))
	for _, l := range header.Lines {
		existing[l.LineNo] = l
	}
	var toDelete []int
	var kept []*models.DocumentLine
	var appended []*models.DocumentLine

	if r.entryMode == models.EntryModeSimplified {
		for no := range existing {
			toDelete = append(toDelete, no)
		}
	} else {
		touched := make(map[int]bool)
		for _, in := range input.Lines {
			if in.LineNo > 0 {
				current, ok := existing[in.LineNo]
				if !ok {
					return nil, models.ErrLineNotFound
				}
				touched[in.LineNo] = true
				line, err := c.newLine(ctx, tx, r, in)
				if err != nil {
					return nil, err
				}
				if line == nil {
					toDelete = append(toDelete, in.LineNo)
					continue
				}
				line.ID = current.ID
				line.LineNo = current.LineNo
				line.TransactionId = transactionId
				line.CreatedAt = current.CreatedAt
				kept = append(kept, line)
				continue
			}
			line, err := c.newLine(ctx, tx, r, in)
			if err != nil {
				return nil, err
			}
			if line != nil {
				appended = append(appended, line)
			}
		}
		for _, l := range header.Lines {
			if !touched[l.LineNo] {
				kept = append(kept, l)
			}
		}
		if len(kept)+len(appended) == 0 {
			return nil, models.ErrNoValidLines
		}
	}

	if len(toDelete) > 0 {
		if err := tx.Where("transaction_id = ? AND line_no IN ?", transactionId, toDelete).Delete(&models.DocumentLine{}).Error; err != nil {
			return nil, err
		}
	}

	next := models.NextLineNo(header.Lines)
	for _, line := range appended {
		line.TransactionId = transactionId
		line.LineNo = next
		next++
	}
	all := append(kept, appended...)
	if err := models.PriceLines(ctx, tx, r.pricing, all); err != nil {
		return nil, err
	}
	for _, line := range all {
		if err := tx.Save(line).Error; err != nil {
			config.LogError(c.Logger, "documentWorkflow.go", "Update", "Save line", line, err)
			return nil, err
		}
	}

	r.applyTo(header, input)
	if r.entryMode == models.EntryModeSimplified {
		applyManualTotals(header, input)
	}
	header.Lines = nil
	if err := tx.Omit("Lines").Save(header).Error; err != nil {
		config.LogError(c.Logger, "documentWorkflow.go", "Update", "Save header", header, err)
		return nil, err
	}
	if r.entryMode == models.EntryModeConventional {
		if _, err := models.RecomputeDocumentTotals(ctx, tx, transactionId); err != nil {
			return nil, err
		}
	}
	if err := tx.Model(&models.Transaction{}).Where("transaction_id = ?", transactionId).
		Update("document_type_code", header.DocumentTypeCode).Error; err != nil {
		return nil, err
	}

	result, err := models.GetDocument(ctx, tx, module, transactionId)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

// SaveLine adds (LineNo 0) or replaces one line and re-aggregates the header.
func (c *DocumentController) SaveLine(ctx context.Context, module models.ModuleName, transactionId string, input models.NewDocumentLine) (*models.DocumentHeader, error) {
	ctx, span := tracer.Start(ctx, "DocumentController.SaveLine")
	defer span.End()

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	tx := c.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		_ = tx.Rollback().Error
	}()

	header, err := models.LockDocument(ctx, tx, module, transactionId)
	if err != nil {
		return nil, err
	}
	if header.EntryMode == models.EntryModeSimplified {
		return nil, models.ErrSimplifiedHasNoLines
	}
	r, err := c.resolveStored(ctx, tx, header)
	if err != nil {
		return nil, err
	}

	line, err := c.newLine(ctx, tx, r, input)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, models.ErrNoValidLines
	}
	line.TransactionId = transactionId
	if input.LineNo > 0 {
		var current *models.DocumentLine
		for _, l := range header.Lines {
			if l.LineNo == input.LineNo {
				current = l
			}
		}
		if current == nil {
			return nil, models.ErrLineNotFound
		}
		line.ID = current.ID
		line.LineNo = current.LineNo
		line.CreatedAt = current.CreatedAt
	} else {
		line.LineNo = models.NextLineNo(header.Lines)
	}

	if err := models.PriceLines(ctx, tx, r.pricing, []*models.DocumentLine{line}); err != nil {
		return nil, err
	}
	if err := tx.Save(line).Error; err != nil {
		return nil, err
	}
	if _, err := models.RecomputeDocumentTotals(ctx, tx, transactionId); err != nil {
		return nil, err
	}

	result, err := models.GetDocument(ctx, tx, module, transactionId)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteLine removes one line and re-aggregates the header.
func (c *DocumentController) DeleteLine(ctx context.Context, module models.ModuleName, transactionId string, lineNo int) (*models.DocumentHeader, error) {
	ctx, span := tracer.Start(ctx, "DocumentController.DeleteLine")
	defer span.End()

	tx := c.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		_ = tx.Rollback().Error
	}()

	if _, err := models.LockDocument(ctx, tx, module, transactionId); err != nil {
		return nil, err
	}
	result := tx.Where("transaction_id = ? AND line_no = ?", transactionId, lineNo).Delete(&models.DocumentLine{})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, models.ErrLineNotFound
	}
	if _, err := models.RecomputeDocumentTotals(ctx, tx, transactionId); err != nil {
		return nil, err
	}

	header, err := models.GetDocument(ctx, tx, module, transactionId)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return header, nil
}

// Delete removes the header, its lines and its index row. The month counter is
// left alone so the id is never handed out again.
func (c *DocumentController) Delete(ctx context.Context, module models.ModuleName, transactionId string) error {
	ctx, span := tracer.Start(ctx, "DocumentController.Delete")
	defer span.End()

	tx := c.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		_ = tx.Rollback().Error
	}()

	if _, err := models.LockDocument(ctx, tx, module, transactionId); err != nil {
		return err
	}
	if err := tx.Where("transaction_id = ?", transactionId).Delete(&models.DocumentLine{}).Error; err != nil {
		return err
	}
	if err := tx.Where("transaction_id = ?", transactionId).Delete(&models.DocumentHeader{}).Error; err != nil {
		return err
	}
	if err := tx.Where("transaction_id = ?", transactionId).Delete(&models.Transaction{}).Error; err != nil {
		return err
	}
	if err := models.ForgetIdempotencyKeys(ctx, tx, transactionId); err != nil {
		return err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(c.Logger, "documentWorkflow.go", "Delete", "Commit", transactionId, err)
		return err
	}

	c.Logger.WithFields(logrus.Fields{
		"module":         module,
		"transaction_id": transactionId,
	}).Info("document deleted")
	return nil
}

// RecomputeTotals re-runs aggregation for a header. Simplified headers keep their typed totals.
func (c *DocumentController) RecomputeTotals(ctx context.Context, module models.ModuleName, transactionId string) (*models.DocumentHeader, error) {
	ctx, span := tracer.Start(ctx, "DocumentController.RecomputeTotals")
	defer span.End()

	tx := c.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		_ = tx.Rollback().Error
	}()

	header, err := models.LockDocument(ctx, tx, module, transactionId)
	if err != nil {
		return nil, err
	}
	if header.EntryMode != models.EntryModeSimplified {
		if _, err := models.RecomputeDocumentTotals(ctx, tx, transactionId); err != nil {
			return nil, err
		}
	}
	result, err := models.GetDocument(ctx, tx, module, transactionId)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (c *DocumentController) Get(ctx context.Context, module models.ModuleName, transactionId string) (*models.DocumentHeader, error) {
	if _, err := models.GetModuleProfile(module); err != nil {
		return nil, err
	}
	return models.GetDocument(ctx, c.DB, module, transactionId)
}

func (c *DocumentController) List(ctx context.Context, module models.ModuleName, filter models.DocumentFilter) ([]*models.DocumentHeader, error) {
	if _, err := models.GetModuleProfile(module); err != nil {
		return nil, err
	}
	return models.ListDocuments(ctx, c.DB, module, filter)
}

// Export streams the filtered headers of a module as an .xlsx workbook.
func (c *DocumentController) Export(ctx context.Context, module models.ModuleName, filter models.DocumentFilter, w io.Writer) error {
	if _, err := models.GetModuleProfile(module); err != nil {
		return err
	}
	return models.ExportDocumentsExcel(ctx, c.DB, module, filter, w)
}
