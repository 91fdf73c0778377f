package workflow

import (
	"context"
	"errors"

	"bitbucket.org/lestage/erp_backend/models"
	"bitbucket.org/lestage/erp_backend/utils"
	"github.com/sirupsen/logrus"
)

// replayCommit returns the document an earlier request with the same
// idempotency key produced, or nil when the key is new.
func (c *DocumentController) replayCommit(ctx context.Context, module models.ModuleName, userId int, key string) (*models.DocumentHeader, error) {
	transactionId, err := models.FindIdempotentTransaction(ctx, c.DB, userId, module, key)
	if err != nil || transactionId == "" {
		return nil, err
	}
	header, err := models.GetDocument(ctx, c.DB, module, transactionId)
	if err != nil {
		return nil, err
	}
	c.Logger.WithFields(logrus.Fields{
		"module":          module,
		"transaction_id":  transactionId,
		"idempotency_key": key,
	}).Info("document commit replayed")
	return header, nil
}

func idempotencyKey(ctx context.Context) string {
	key, _ := utils.GetIdempotencyKeyFromContext(ctx)
	return key
}

func isReplay(err error) bool {
	return errors.Is(err, models.ErrIdempotencyReplay)
}
