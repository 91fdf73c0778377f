package models

import (
	"context"

	"bitbucket.org/lestage/erp_backend/utils"
	"gorm.io/gorm"
)

// GetResource finds in redis, then in db by primary key, and caches the result.
// Only used for reference data that is read-mostly (tax rates, document types).
// (may return RecordNotFound error)
func GetResource[T any](ctx context.Context, db *gorm.DB, id any, associations ...string) (*T, error) {
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}

	result, err = utils.FetchModel[T](ctx, db, id, associations...)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[T](result, id); err != nil {
		return nil, err
	}
	return result, nil
}
