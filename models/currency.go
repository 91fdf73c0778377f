package models

import (
	"context"
	"time"

	"bitbucket.org/lestage/erp_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Currency struct {
	Code      string    `gorm:"primaryKey;size:3" json:"code"`
	Name      string    `gorm:"size:50;not null" json:"name"`
	Symbol    string    `gorm:"size:5" json:"symbol"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCurrency struct {
	Code     string `json:"code" validate:"required,len=3"`
	Name     string `json:"name" validate:"required,max=50"`
	Symbol   string `json:"symbol" validate:"max=5"`
	IsActive *bool  `json:"is_active"`
}

func UpsertCurrency(ctx context.Context, db *gorm.DB, input *NewCurrency) (*Currency, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	currency := Currency{
		Code:     input.Code,
		Name:     input.Name,
		Symbol:   input.Symbol,
		IsActive: isActive,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "symbol", "is_active", "updated_at"}),
	}).Create(&currency).Error
	if err != nil {
		return nil, err
	}
	return &currency, nil
}
