package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/lestage/erp_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentTerm struct {
	Code         string    `gorm:"primaryKey;size:50" json:"code"`
	Description  string    `gorm:"size:200" json:"description"`
	Days         int       `gorm:"not null;default:0" json:"days"`
	FromMonthEnd bool      `gorm:"not null;default:false" json:"from_month_end"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPaymentTerm struct {
	Code         string `json:"code" validate:"required,max=50"`
	Description  string `json:"description" validate:"max=200"`
	Days         int    `json:"days" validate:"gte=0"`
	FromMonthEnd bool   `json:"from_month_end"`
}

func UpsertPaymentTerm(ctx context.Context, db *gorm.DB, input *NewPaymentTerm) (*PaymentTerm, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	term := PaymentTerm{
		Code:         input.Code,
		Description:  input.Description,
		Days:         input.Days,
		FromMonthEnd: input.FromMonthEnd,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "days", "from_month_end", "updated_at"}),
	}).Create(&term).Error
	if err != nil {
		return nil, err
	}
	return &term, nil
}

// findPaymentTerm returns nil, nil for an empty or unknown code. The two special
// codes resolve even when they are not configured.
func findPaymentTerm(ctx context.Context, db *gorm.DB, code string) (*PaymentTerm, error) {
	if utils.IsBlank(code) {
		return nil, nil
	}
	term, err := utils.FetchModel[PaymentTerm](ctx, db, code)
	if err == nil {
		return term, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	if code == PaymentTermAgreed || code == PaymentTermChoose {
		return &PaymentTerm{Code: code}, nil
	}
	return nil, nil
}

// ResolveDueDate applies the term (input or counter-party default) to a credit document.
func ResolveDueDate(ctx context.Context, db *gorm.DB, form PaymentForm, termCode string, partyTermCode string, date time.Time, entered *time.Time) (string, *time.Time, error) {
	if form != PaymentFormCredit {
		return "", nil, nil
	}
	code := termCode
	if utils.IsBlank(code) {
		code = partyTermCode
	}
	term, err := findPaymentTerm(ctx, db, code)
	if err != nil {
		return "", nil, err
	}
	return code, calculateDueDate(date, term, entered), nil
}
