package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/lestage/erp_backend/utils"
	"gorm.io/gorm"
)

// MoneyAccount is where a cash-paid document settles: a bank account, an
// e-money wallet or a cash box.
type MoneyAccount struct {
	ID           int              `gorm:"primary_key" json:"id"`
	AccountType  MoneyAccountType `gorm:"size:10;not null" json:"account_type"`
	AccountName  string           `gorm:"size:100;not null" json:"account_name"`
	AccountCode  string           `gorm:"size:20;uniqueIndex" json:"account_code"`
	CurrencyCode string           `gorm:"size:3" json:"currency_code"`
	IsActive     *bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMoneyAccount struct {
	AccountType  MoneyAccountType `json:"account_type" validate:"required,oneof=BANK EMONEY CASH"`
	AccountName  string           `json:"account_name" validate:"required,max=100"`
	AccountCode  string           `json:"account_code" validate:"required,max=20"`
	CurrencyCode string           `json:"currency_code" validate:"omitempty,len=3"`
}

func CreateMoneyAccount(ctx context.Context, db *gorm.DB, input *NewMoneyAccount) (*MoneyAccount, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[MoneyAccount](ctx, db, "account_code", input.AccountCode); err != nil {
		return nil, err
	}
	account := MoneyAccount{
		AccountType:  input.AccountType,
		AccountName:  input.AccountName,
		AccountCode:  input.AccountCode,
		CurrencyCode: input.CurrencyCode,
		IsActive:     utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetUsableMoneyAccount treats missing and inactive accounts alike.
func GetUsableMoneyAccount(ctx context.Context, db *gorm.DB, id int) (*MoneyAccount, error) {
	account, err := utils.FetchModel[MoneyAccount](ctx, db, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrMissingAvailability
		}
		return nil, err
	}
	if account.IsActive != nil && !*account.IsActive {
		return nil, ErrMissingAvailability
	}
	if !account.AccountType.IsValid() {
		return nil, ErrMissingAvailability
	}
	return account, nil
}
