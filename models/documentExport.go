package models

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const exportSheet = "Sheet1"

var exportHeadings = []string{
	"TransactionId", "DocumentType", "CounterPartyId", "Series", "Number", "DocumentDate",
	"PaymentForm", "DueDate", "Currency", "Subtotal", "Tax", "Total",
}

func (h *DocumentHeader) cellValues() []interface{} {
	dueDate := ""
	if h.DueDate != nil {
		dueDate = h.DueDate.Format("2006-01-02")
	}
	return []interface{}{
		h.TransactionId,
		h.DocumentTypeCode,
		h.CounterPartyId,
		h.Series,
		h.Number,
		h.DocumentDate.Format("2006-01-02"),
		string(h.PaymentForm),
		dueDate,
		h.CurrencyCode,
		h.Subtotal.InexactFloat64(),
		h.Tax.InexactFloat64(),
		h.Total.InexactFloat64(),
	}
}

// ExportDocumentsExcel writes the filtered headers of a module as an .xlsx workbook.
func ExportDocumentsExcel(ctx context.Context, db *gorm.DB, module ModuleName, filter DocumentFilter, w io.Writer) error {
	headers, err := ListDocuments(ctx, db, module, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeadings); err != nil {
		return err
	}
	for i, h := range headers {
		values := h.cellValues()
		if err := f.SetSheetRow(exportSheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return err
		}
	}
	return f.Write(w)
}
