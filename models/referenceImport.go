package models

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	SheetTaxRates      = "config_iva"
	SheetCurrencies    = "config_moneda"
	SheetDocumentTypes = "config_documentos_maestro"
	SheetPaymentTerms  = "config_plazo_pago"
)

type ReferenceImportSummary struct {
	TaxRates      int `json:"tax_rates"`
	Currencies    int `json:"currencies"`
	DocumentTypes int `json:"document_types"`
	PaymentTerms  int `json:"payment_terms"`
}

// ImportReferenceWorkbook upserts the configuration sheets of an .xlsx workbook
// in one transaction. Missing sheets are skipped; rows without a code are ignored.
func ImportReferenceWorkbook(ctx context.Context, db *gorm.DB, r io.Reader) (*ReferenceImportSummary, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	summary := &ReferenceImportSummary{}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := sheetRecords(f, SheetTaxRates)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row["codigo"] == "" {
				continue
			}
			rate, err := parseRateCell(row["valor"])
			if err != nil {
				return fmt.Errorf("%s %s: %w", SheetTaxRates, row["codigo"], err)
			}
			if _, err := UpsertTaxRate(ctx, tx, &NewTaxRate{
				Code:     row["codigo"],
				Name:     row["nombre"],
				Rate:     rate,
				IsActive: parseActiveCell(row["activo"]),
			}); err != nil {
				return fmt.Errorf("%s %s: %w", SheetTaxRates, row["codigo"], err)
			}
			summary.TaxRates++
		}

		rows, err = sheetRecords(f, SheetCurrencies)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row["codigo"] == "" {
				continue
			}
			if _, err := UpsertCurrency(ctx, tx, &NewCurrency{
				Code:     row["codigo"],
				Name:     row["nombre"],
				Symbol:   row["simbolo"],
				IsActive: parseActiveCell(row["activo"]),
			}); err != nil {
				return fmt.Errorf("%s %s: %w", SheetCurrencies, row["codigo"], err)
			}
			summary.Currencies++
		}

		rows, err = sheetRecords(f, SheetDocumentTypes)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row["codigo"] == "" {
				continue
			}
			input := documentTypeFromRow(row)
			if _, err := UpsertDocumentType(ctx, tx, &input); err != nil {
				return fmt.Errorf("%s %s: %w", SheetDocumentTypes, row["codigo"], err)
			}
			summary.DocumentTypes++
		}

		rows, err = sheetRecords(f, SheetPaymentTerms)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row["codigo"] == "" {
				continue
			}
			days := 0
			if v := row["plazo_en_dias"]; v != "" {
				n, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("%s %s: invalid plazo_en_dias %q", SheetPaymentTerms, row["codigo"], v)
				}
				days = int(n)
			}
			if _, err := UpsertPaymentTerm(ctx, tx, &NewPaymentTerm{
				Code:         row["codigo"],
				Description:  row["descripcion"],
				Days:         days,
				FromMonthEnd: parseBoolCell(row["fin_de_mes"]),
			}); err != nil {
				return fmt.Errorf("%s %s: %w", SheetPaymentTerms, row["codigo"], err)
			}
			summary.PaymentTerms++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// SeedDefaultDocumentTypes upserts the built-in catalog.
func SeedDefaultDocumentTypes(ctx context.Context, db *gorm.DB) error {
	for i := range DefaultDocumentTypes {
		input := DefaultDocumentTypes[i]
		if _, err := UpsertDocumentType(ctx, db, &input); err != nil {
			return err
		}
	}
	return nil
}

// sheetRecords maps each data row by its lower-cased header cell.
func sheetRecords(f *excelize.File, sheet string) ([]map[string]string, error) {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}
	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				record[h] = strings.TrimSpace(row[i])
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// documentTypeFromRow keeps the built-in classification for known codes unless
// the sheet overrides it.
func documentTypeFromRow(row map[string]string) NewDocumentType {
	input := NewDocumentType{Code: row["codigo"]}
	if dt, ok := defaultDocumentType(row["codigo"]); ok {
		input.ExemptionClass = dt.ExemptionClass
		input.Direction = dt.Direction
		input.Flow = dt.Flow
		input.SourceCode = dt.SourceCode
	}
	input.Name = row["nombre"]
	input.Description = row["descripcion"]
	if v := strings.ToUpper(row["exemption_class"]); v != "" {
		input.ExemptionClass = ExemptionClass(v)
	}
	if v := strings.ToUpper(row["direction"]); v != "" {
		input.Direction = Direction(v)
	}
	if v := strings.ToUpper(row["flow"]); v != "" {
		input.Flow = Flow(v)
	}
	if v := row["source_code"]; v != "" {
		input.SourceCode = v
	}
	input.IsActive = parseActiveCell(row["activo"])
	return input
}

// parseRateCell accepts proportions (0.22) and percentages (22).
func parseRateCell(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	v = strings.TrimSuffix(v, "%")
	rate, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, err
	}
	if rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		rate = rate.Div(decimal.NewFromInt(100))
	}
	return rate, nil
}

// empty means active, as in the legacy sheets
func parseActiveCell(v string) *bool {
	if v == "" {
		return nil
	}
	active := parseBoolCell(v)
	return &active
}

func parseBoolCell(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "SI", "SÍ", "S", "TRUE", "1", "YES", "Y", "VERDADERO":
		return true
	}
	return false
}
