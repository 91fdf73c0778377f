package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/lestage/erp_backend/utils"
	"gorm.io/gorm"
)

type Supplier struct {
	ID              int    `gorm:"primary_key" json:"id"`
	Code            string `gorm:"size:20;uniqueIndex" json:"code"`
	Name            string `gorm:"size:100;not null" json:"name"`
	TaxNumber       string `gorm:"size:20" json:"tax_number"`
	IsSmallTaxpayer bool   `gorm:"not null;default:false" json:"is_small_taxpayer"`
	// default term for credit purchases
	PaymentTermCode string    `gorm:"size:50" json:"payment_term_code"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Code            string `json:"code" validate:"required,max=20"`
	Name            string `json:"name" validate:"required,max=100"`
	TaxNumber       string `json:"tax_number" validate:"max=20"`
	IsSmallTaxpayer bool   `json:"is_small_taxpayer"`
	PaymentTermCode string `json:"payment_term_code" validate:"max=50"`
}

func CreateSupplier(ctx context.Context, db *gorm.DB, input *NewSupplier) (*Supplier, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Supplier](ctx, db, "code", input.Code); err != nil {
		return nil, err
	}
	supplier := Supplier{
		Code:            input.Code,
		Name:            input.Name,
		TaxNumber:       input.TaxNumber,
		IsSmallTaxpayer: input.IsSmallTaxpayer,
		PaymentTermCode: input.PaymentTermCode,
		IsActive:        utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

// CounterParty is the slice of supplier/customer data the document engine needs.
type CounterParty struct {
	Kind            PartyKind `json:"kind"`
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	IsSmallTaxpayer bool      `json:"is_small_taxpayer"`
	PaymentTermCode string    `json:"payment_term_code"`
}

// GetCounterParty returns ErrCounterPartyNotFound for missing or inactive parties.
func GetCounterParty(ctx context.Context, db *gorm.DB, kind PartyKind, id int) (*CounterParty, error) {
	switch kind {
	case PartyKindSupplier:
		supplier, err := utils.FetchModel[Supplier](ctx, db, id)
		if err != nil {
			return nil, counterPartyErr(err)
		}
		if supplier.IsActive != nil && !*supplier.IsActive {
			return nil, ErrCounterPartyNotFound
		}
		return &CounterParty{
			Kind:            kind,
			ID:              supplier.ID,
			Name:            supplier.Name,
			IsSmallTaxpayer: supplier.IsSmallTaxpayer,
			PaymentTermCode: supplier.PaymentTermCode,
		}, nil
	case PartyKindCustomer:
		customer, err := utils.FetchModel[Customer](ctx, db, id)
		if err != nil {
			return nil, counterPartyErr(err)
		}
		if customer.IsActive != nil && !*customer.IsActive {
			return nil, ErrCounterPartyNotFound
		}
		return &CounterParty{
			Kind:            kind,
			ID:              customer.ID,
			Name:            customer.Name,
			IsSmallTaxpayer: customer.IsSmallTaxpayer,
			PaymentTermCode: customer.PaymentTermCode,
		}, nil
	}
	return nil, errors.New("unknown party kind " + string(kind))
}

func counterPartyErr(err error) error {
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return ErrCounterPartyNotFound
	}
	return err
}
