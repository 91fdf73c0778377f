package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/lestage/erp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaxRate is an IVA rate, stored as a proportion (0.22 for 22%).
type TaxRate struct {
	Code      string          `gorm:"primaryKey;size:20" json:"code"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	Rate      decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0" json:"rate"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTaxRate struct {
	Code     string          `json:"code" validate:"required,max=20"`
	Name     string          `json:"name" validate:"required,max=100"`
	Rate     decimal.Decimal `json:"rate" validate:"gte=0,lt=1"`
	IsActive *bool           `json:"is_active"`
}

func (t TaxRate) Active() bool {
	return t.IsActive == nil || *t.IsActive
}

// UpsertTaxRate creates or replaces a rate by code.
func UpsertTaxRate(ctx context.Context, db *gorm.DB, input *NewTaxRate) (*TaxRate, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	rate := TaxRate{
		Code:     input.Code,
		Name:     input.Name,
		Rate:     input.Rate,
		IsActive: isActive,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "rate", "is_active", "updated_at"}),
	}).Create(&rate).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[TaxRate](rate.Code); err != nil {
		return nil, err
	}
	return &rate, nil
}

// GetTaxRate reads redis first, then the db. Inactive rates are returned as-is:
// existing articles keep pricing with them.
func GetTaxRate(ctx context.Context, db *gorm.DB, code string) (*TaxRate, error) {
	result, err := GetResource[TaxRate](ctx, db, code)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, fmt.Errorf("%w: tax rate %s not found", ErrMisconfiguredReference, code)
		}
		return nil, err
	}
	return result, nil
}

func ListTaxRates(ctx context.Context, db *gorm.DB) ([]*TaxRate, error) {
	var results []*TaxRate
	if err := db.WithContext(ctx).Order("code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
