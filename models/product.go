package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/lestage/erp_backend/utils"
	"gorm.io/gorm"
)

// Product is an article that can be bought or sold.
type Product struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Code        string    `gorm:"size:30;uniqueIndex" json:"code"`
	Name        string    `gorm:"size:150;not null" json:"name"`
	TaxRateCode string    `gorm:"size:20;not null" json:"tax_rate_code"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Code        string `json:"code" validate:"required,max=30"`
	Name        string `json:"name" validate:"required,max=150"`
	TaxRateCode string `json:"tax_rate_code" validate:"required,max=20"`
}

// CreateProduct rejects inactive tax rates; products created before a rate was
// deactivated keep using it.
func CreateProduct(ctx context.Context, db *gorm.DB, input *NewProduct) (*Product, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	rate, err := GetTaxRate(ctx, db, input.TaxRateCode)
	if err != nil {
		return nil, err
	}
	if !rate.Active() {
		return nil, ErrInactiveTaxRate
	}
	if err := utils.ValidateUnique[Product](ctx, db, "code", input.Code); err != nil {
		return nil, err
	}
	product := Product{
		Code:        input.Code,
		Name:        input.Name,
		TaxRateCode: input.TaxRateCode,
		IsActive:    utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// productTaxRates loads each product once and resolves its rate.
func productTaxRates(ctx context.Context, db *gorm.DB, productIds []int) (map[int]*TaxRate, error) {
	ids := utils.UniqueSlice(productIds)
	var products []Product
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	if len(products) != len(ids) {
		return nil, ErrProductNotFound
	}
	rates := make(map[int]*TaxRate, len(products))
	for _, p := range products {
		rate, err := GetTaxRate(ctx, db, p.TaxRateCode)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.Code, err)
		}
		rates[p.ID] = rate
	}
	return rates, nil
}
