package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/lestage/erp_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentType struct {
	Code           string         `gorm:"primaryKey;size:20" json:"code"`
	Name           string         `gorm:"size:100;not null" json:"name"`
	Description    string         `gorm:"size:255" json:"description"`
	ExemptionClass ExemptionClass `gorm:"size:30;not null" json:"exemption_class"`
	Direction      Direction      `gorm:"size:10;not null" json:"direction"`
	Flow           Flow           `gorm:"size:10;not null" json:"flow"`
	// for returns: the normal document type this one reverses
	SourceCode string    `gorm:"size:20" json:"source_code"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDocumentType struct {
	Code           string         `json:"code" validate:"required,max=20"`
	Name           string         `json:"name" validate:"required,max=100"`
	Description    string         `json:"description" validate:"max=255"`
	ExemptionClass ExemptionClass `json:"exemption_class" validate:"required,oneof=NONE FORCED_ZERO FOLLOWS_PARTY_STATUS"`
	Direction      Direction      `json:"direction" validate:"required,oneof=PURCHASE SALE"`
	Flow           Flow           `json:"flow" validate:"required,oneof=NORMAL RETURN"`
	SourceCode     string         `json:"source_code" validate:"required_if=Flow RETURN,max=20"`
	IsActive       *bool          `json:"is_active"`
}

func (t DocumentType) Active() bool {
	return t.IsActive == nil || *t.IsActive
}

// DefaultDocumentTypes is the built-in catalog, used by the seeder and as the
// fallback when a code is missing from the database.
var DefaultDocumentTypes = []NewDocumentType{
	{Code: "facprov", Name: "Factura proveedor", ExemptionClass: ExemptionFollowsPartyStatus, Direction: DirectionPurchase, Flow: FlowNormal},
	{Code: "factimp", Name: "Factura importación", ExemptionClass: ExemptionForcedZero, Direction: DirectionPurchase, Flow: FlowNormal},
	{Code: "movprov", Name: "Movimiento proveedor", ExemptionClass: ExemptionForcedZero, Direction: DirectionPurchase, Flow: FlowNormal},
	{Code: "ncprov", Name: "Nota de crédito proveedor", ExemptionClass: ExemptionFollowsPartyStatus, Direction: DirectionPurchase, Flow: FlowReturn, SourceCode: "facprov"},
	{Code: "ncimpo", Name: "Nota de crédito importación", ExemptionClass: ExemptionFollowsPartyStatus, Direction: DirectionPurchase, Flow: FlowReturn, SourceCode: "factimp"},
	{Code: "devmovprov", Name: "Devolución movimiento proveedor", ExemptionClass: ExemptionForcedZero, Direction: DirectionPurchase, Flow: FlowReturn, SourceCode: "movprov"},
	{Code: "efactura", Name: "e-Factura", ExemptionClass: ExemptionNone, Direction: DirectionSale, Flow: FlowNormal},
	{Code: "factexpo", Name: "Factura exportación", ExemptionClass: ExemptionForcedZero, Direction: DirectionSale, Flow: FlowNormal},
	{Code: "movcli", Name: "Movimiento cliente", ExemptionClass: ExemptionForcedZero, Direction: DirectionSale, Flow: FlowNormal},
	{Code: "tncredit", Name: "e-Nota de crédito", ExemptionClass: ExemptionNone, Direction: DirectionSale, Flow: FlowReturn, SourceCode: "efactura"},
	{Code: "ncreexpo", Name: "Nota de crédito exportación", ExemptionClass: ExemptionForcedZero, Direction: DirectionSale, Flow: FlowReturn, SourceCode: "factexpo"},
	{Code: "devmovcli", Name: "Devolución movimiento cliente", ExemptionClass: ExemptionForcedZero, Direction: DirectionSale, Flow: FlowReturn, SourceCode: "movcli"},
}

func defaultDocumentType(code string) (*DocumentType, bool) {
	for _, input := range DefaultDocumentTypes {
		if input.Code == code {
			dt := input.toModel()
			return &dt, true
		}
	}
	return nil, false
}

func (input NewDocumentType) toModel() DocumentType {
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	return DocumentType{
		Code:           input.Code,
		Name:           input.Name,
		Description:    input.Description,
		ExemptionClass: input.ExemptionClass,
		Direction:      input.Direction,
		Flow:           input.Flow,
		SourceCode:     input.SourceCode,
		IsActive:       isActive,
	}
}

func UpsertDocumentType(ctx context.Context, db *gorm.DB, input *NewDocumentType) (*DocumentType, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	docType := input.toModel()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "exemption_class", "direction", "flow", "source_code", "is_active", "updated_at",
		}),
	}).Create(&docType).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[DocumentType](docType.Code); err != nil {
		return nil, err
	}
	return &docType, nil
}

// GetDocumentType looks the code up in the configured catalog, falling back
// to the built-in catalog. Unknown codes are a configuration error.
func GetDocumentType(ctx context.Context, db *gorm.DB, code string) (*DocumentType, error) {
	result, err := GetResource[DocumentType](ctx, db, code)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	if dt, ok := defaultDocumentType(code); ok {
		return dt, nil
	}
	return nil, fmt.Errorf("%w: document type %s not found", ErrMisconfiguredReference, code)
}
