package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrIdempotencyReplay = errors.New("idempotency key already used")

// IdempotencyKey remembers which transaction a client request key produced.
// Unique constraint: (user_id, module, request_key).
type IdempotencyKey struct {
	ID            int        `gorm:"primary_key" json:"id"`
	UserId        int        `gorm:"not null;index:uniq_idem,unique" json:"user_id"`
	Module        ModuleName `gorm:"size:20;not null;index:uniq_idem,unique" json:"module"`
	RequestKey    string     `gorm:"size:100;not null;index:uniq_idem,unique" json:"request_key"`
	TransactionId string     `gorm:"size:10;not null;index" json:"transaction_id"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// RecordIdempotencyKey binds key to transactionId inside the committing tx.
// A concurrent or earlier commit with the same key yields ErrIdempotencyReplay.
func RecordIdempotencyKey(ctx context.Context, tx *gorm.DB, userId int, module ModuleName, key, transactionId string) error {
	err := tx.WithContext(ctx).Create(&IdempotencyKey{
		UserId:        userId,
		Module:        module,
		RequestKey:    key,
		TransactionId: transactionId,
	}).Error
	if err != nil && isDuplicateKeyErr(err) {
		return ErrIdempotencyReplay
	}
	return err
}

// FindIdempotentTransaction returns the transaction id recorded for key, or "".
func FindIdempotentTransaction(ctx context.Context, db *gorm.DB, userId int, module ModuleName, key string) (string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&IdempotencyKey{}).
		Where("user_id = ? AND module = ? AND request_key = ?", userId, module, key).
		Limit(1).
		Pluck("transaction_id", &ids).Error
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}

func ForgetIdempotencyKeys(ctx context.Context, tx *gorm.DB, transactionId string) error {
	return tx.WithContext(ctx).Where("transaction_id = ?", transactionId).Delete(&IdempotencyKey{}).Error
}
