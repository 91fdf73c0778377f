package models

import (
	"context"
	"time"

	"bitbucket.org/lestage/erp_backend/utils"
	"gorm.io/gorm"
)

type Customer struct {
	ID              int       `gorm:"primary_key" json:"id"`
	Code            string    `gorm:"size:20;uniqueIndex" json:"code"`
	Name            string    `gorm:"size:100;not null" json:"name"`
	TaxNumber       string    `gorm:"size:20" json:"tax_number"`
	IsSmallTaxpayer bool      `gorm:"not null;default:false" json:"is_small_taxpayer"`
	PaymentTermCode string    `gorm:"size:50" json:"payment_term_code"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Code            string `json:"code" validate:"required,max=20"`
	Name            string `json:"name" validate:"required,max=100"`
	TaxNumber       string `json:"tax_number" validate:"max=20"`
	IsSmallTaxpayer bool   `json:"is_small_taxpayer"`
	PaymentTermCode string `json:"payment_term_code" validate:"max=50"`
}

func CreateCustomer(ctx context.Context, db *gorm.DB, input *NewCustomer) (*Customer, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Customer](ctx, db, "code", input.Code); err != nil {
		return nil, err
	}
	customer := Customer{
		Code:            input.Code,
		Name:            input.Name,
		TaxNumber:       input.TaxNumber,
		IsSmallTaxpayer: input.IsSmallTaxpayer,
		PaymentTermCode: input.PaymentTermCode,
		IsActive:        utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}
