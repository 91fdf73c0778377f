package models_test

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/lestage/erp_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDueDate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, err := models.UpsertPaymentTerm(ctx, db, &models.NewPaymentTerm{Code: "30D", Description: "30 days", Days: 30})
	require.NoError(t, err)
	_, err = models.UpsertPaymentTerm(ctx, db, &models.NewPaymentTerm{Code: "FM30", Description: "30 days from month end", Days: 30, FromMonthEnd: true})
	require.NoError(t, err)

	date := time.Date(2025, 11, 10, 15, 30, 0, 0, time.UTC)
	entered := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		form     models.PaymentForm
		term     string
		party    string
		entered  *time.Time
		wantCode string
		want     *time.Time
	}{
		{"cash has no due date", models.PaymentFormCash, "30D", "", &entered, "", nil},
		{"days from document date", models.PaymentFormCredit, "30D", "", nil, "30D", ptrTime(time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC))},
		{"days from month end", models.PaymentFormCredit, "FM30", "", nil, "FM30", ptrTime(time.Date(2025, 12, 30, 0, 0, 0, 0, time.UTC))},
		{"party default term", models.PaymentFormCredit, "", "30D", nil, "30D", ptrTime(time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC))},
		{"agreed term stores no date", models.PaymentFormCredit, models.PaymentTermAgreed, "", &entered, models.PaymentTermAgreed, nil},
		{"choose keeps entered date", models.PaymentFormCredit, models.PaymentTermChoose, "", &entered, models.PaymentTermChoose, &entered},
		{"unknown term keeps entered date", models.PaymentFormCredit, "NOPE", "", &entered, "NOPE", &entered},
		{"no term at all", models.PaymentFormCredit, "", "", nil, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, due, err := models.ResolveDueDate(ctx, db, tt.form, tt.term, tt.party, date, tt.entered)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, code)
			if tt.want == nil {
				assert.Nil(t, due)
				return
			}
			require.NotNil(t, due)
			assert.True(t, tt.want.Equal(*due), "want %s, got %s", tt.want, due)
		})
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
