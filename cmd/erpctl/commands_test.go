package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"bitbucket.org/lestage/erp_backend/models"
	"bitbucket.org/lestage/erp_backend/utils"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestPreviewNextId_DoesNotConsume(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:erpctl_preview?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.MigrateTable(db))

	ctx := context.Background()
	require.NoError(t, db.Create(&models.Transaction{TransactionId: "2511000004", DocumentTypeCode: "facprov", Module: models.ModulePurchases}).Error)

	for i := 0; i < 2; i++ {
		id, err := previewNextId(ctx, db, "2511")
		require.NoError(t, err)
		assert.Equal(t, "2511000005", id)
	}
	var counters int64
	require.NoError(t, db.Model(&models.TransactionCounter{}).Count(&counters).Error)
	assert.Zero(t, counters)
}

func TestTokenCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--user-id", "9", "--username", "ops"})
	require.NoError(t, rootCmd.Execute())

	token, err := utils.JwtValidate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	claim, ok := token.Claims.(*utils.JwtCustomClaim)
	require.True(t, ok)
	assert.Equal(t, 9, claim.ID)
	assert.Equal(t, "ops", claim.Username)
}
