package utils

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. decimal.Decimal fields are validated
// as float64 so the stock gt/gte/lte tags apply to them.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if v, ok := field.Interface().(decimal.Decimal); ok {
				return v.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
	})
	return validate
}

// ValidateStruct runs the shared validator and converts failures into *ValidationError.
func ValidateStruct(input any) error {
	if err := Validator().Struct(input); err != nil {
		return &ValidationError{Fields: ProcessValidationErrors(err)}
	}
	return nil
}

func ValidateUnique[T any](ctx context.Context, db *gorm.DB, column string, value interface{}) error {
	count, err := ResourceCountWhere[T](ctx, db, column+" = ?", value)
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

func ResourceCountWhere[T any](ctx context.Context, db *gorm.DB, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	if err := db.WithContext(ctx).Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
