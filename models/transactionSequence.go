package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/lestage/erp_backend/config"
	"github.com/bsm/redislock"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	transactionPrefixLen = 4
	transactionSuffixLen = 6
	maxSequenceValue     = 999999
)

var ErrSequenceExhausted = errors.New("transaction sequence exhausted for prefix")

// TransactionCounter holds the last allocated suffix per YYMM prefix.
type TransactionCounter struct {
	Prefix    string    `gorm:"primaryKey;size:4" json:"prefix"`
	LastValue int64     `gorm:"not null;default:0" json:"last_value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SequenceAllocator hands out TransactionIds. tx is the caller's open transaction.
type SequenceAllocator interface {
	Next(ctx context.Context, tx *gorm.DB, prefix string) (string, error)
}

// TransactionPrefix is YYMM of t.
func TransactionPrefix(t time.Time) string {
	return t.Format("0601")
}

func FormatTransactionId(prefix string, value int64) (string, error) {
	if value < 1 || value > maxSequenceValue {
		return "", fmt.Errorf("%w %s", ErrSequenceExhausted, prefix)
	}
	return fmt.Sprintf("%s%0*d", prefix, transactionSuffixLen, value), nil
}

// ParseSequenceSuffix reads the numeric part of id. ok is false for ids that
// are not prefix + digits.
func ParseSequenceSuffix(id string, prefix string) (int64, bool) {
	if !strings.HasPrefix(id, prefix) || len(id) <= len(prefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(id[len(prefix):], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func validatePrefix(prefix string) error {
	if len(prefix) != transactionPrefixLen {
		return errors.New("transaction prefix must be YYMM")
	}
	if _, err := strconv.Atoi(prefix); err != nil {
		return errors.New("transaction prefix must be YYMM")
	}
	return nil
}

// lastSequenceValue finds the id with the prefix that sorts last and returns its suffix.
// A corrupt suffix restarts the month at zero (next is 000001).
func lastSequenceValue(ctx context.Context, tx *gorm.DB, prefix string) (int64, error) {
	var last string
	for _, model := range []any{&Transaction{}, &DocumentHeader{}} {
		var ids []string
		err := tx.WithContext(ctx).Model(model).
			Where("transaction_id LIKE ?", prefix+"%").
			Order("transaction_id DESC").
			Limit(1).
			Pluck("transaction_id", &ids).Error
		if err != nil {
			return 0, err
		}
		if len(ids) > 0 && ids[0] > last {
			last = ids[0]
		}
	}
	if last == "" {
		return 0, nil
	}
	n, ok := ParseSequenceSuffix(last, prefix)
	if !ok {
		config.GetLogger().WithFields(logrus.Fields{
			"module":   "transactionSequence",
			"funcName": "lastSequenceValue",
			"prefix":   prefix,
			"lastId":   last,
		}).Warn("corrupt transaction id suffix, restarting sequence")
		return 0, nil
	}
	return n, nil
}

func transactionIdTaken(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	for _, model := range []any{&Transaction{}, &DocumentHeader{}} {
		var count int64
		if err := tx.WithContext(ctx).Model(model).Where("transaction_id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// DBSequenceAllocator serializes allocation on a counter row locked FOR UPDATE
// inside the document transaction. Concurrent writers for the same prefix wait
// for the first one to commit or roll back.
type DBSequenceAllocator struct{}

func (DBSequenceAllocator) Next(ctx context.Context, tx *gorm.DB, prefix string) (string, error) {
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	counter, err := lockCounter(ctx, tx, prefix)
	if err != nil {
		return "", err
	}

	value := counter.LastValue
	var id string
	for {
		value++
		id, err = FormatTransactionId(prefix, value)
		if err != nil {
			return "", err
		}
		taken, err := transactionIdTaken(ctx, tx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			break
		}
	}

	err = tx.WithContext(ctx).Model(&TransactionCounter{}).
		Where("prefix = ?", prefix).
		UpdateColumns(map[string]interface{}{"last_value": value, "updated_at": time.Now()}).Error
	if err != nil {
		return "", err
	}
	return id, nil
}

func lockCounter(ctx context.Context, tx *gorm.DB, prefix string) (*TransactionCounter, error) {
	var counter TransactionCounter
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix = ?", prefix).
		First(&counter).Error
	if err == nil {
		return &counter, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// first document of the month: seed from existing ids
	last, err := lastSequenceValue(ctx, tx, prefix)
	if err != nil {
		return nil, err
	}
	counter = TransactionCounter{Prefix: prefix, LastValue: last}
	if err := tx.WithContext(ctx).Create(&counter).Error; err != nil {
		if !isDuplicateKeyErr(err) {
			return nil, err
		}
		// lost the race to create the row; wait on the winner's lock
		if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("prefix = ?", prefix).
			First(&counter).Error; err != nil {
			return nil, err
		}
	}
	return &counter, nil
}

// RedisSequenceAllocator uses INCR on txseq:<prefix>. The per-prefix lock only
// guards seeding the key from the database.
type RedisSequenceAllocator struct {
	Client  *redis.Client
	Locker  *redislock.Client
	LockTTL time.Duration
}

func NewRedisSequenceAllocator(client *redis.Client, locker *redislock.Client) *RedisSequenceAllocator {
	return &RedisSequenceAllocator{Client: client, Locker: locker, LockTTL: 5 * time.Second}
}

func (a *RedisSequenceAllocator) Next(ctx context.Context, tx *gorm.DB, prefix string) (string, error) {
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	if a.Client == nil || a.Locker == nil {
		return "", errors.New("redis sequence allocator is not connected")
	}

	lock, err := a.Locker.Obtain(ctx, "txseq-lock:"+prefix, a.LockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 100),
	})
	if err != nil {
		return "", fmt.Errorf("obtain sequence lock: %w", err)
	}
	defer lock.Release(ctx)

	key := "txseq:" + prefix
	exists, err := a.Client.Exists(ctx, key).Result()
	if err != nil {
		return "", err
	}
	if exists == 0 {
		last, err := lastSequenceValue(ctx, tx, prefix)
		if err != nil {
			return "", err
		}
		if err := a.Client.SetNX(ctx, key, last, 0).Err(); err != nil {
			return "", err
		}
	}

	for {
		value, err := a.Client.Incr(ctx, key).Result()
		if err != nil {
			return "", err
		}
		id, err := FormatTransactionId(prefix, value)
		if err != nil {
			return "", err
		}
		taken, err := transactionIdTaken(ctx, tx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
}

// NewSequenceAllocator picks the implementation from SEQUENCE_ALLOCATOR.
func NewSequenceAllocator() SequenceAllocator {
	if config.SequenceAllocatorKind() == config.SequenceAllocatorRedis && config.GetRedisDB() != nil {
		return NewRedisSequenceAllocator(config.GetRedisDB(), config.GetRedisLock())
	}
	return DBSequenceAllocator{}
}
