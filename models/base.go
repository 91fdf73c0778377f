package models

import (
	"errors"
	"time"

	"bitbucket.org/lestage/erp_backend/utils"
)

var (
	ErrMissingAvailability      = errors.New("missing required availability for cash payment")
	ErrNoValidLines             = errors.New("no valid lines supplied")
	ErrCounterPartyNotFound     = errors.New("counter-party not found")
	ErrDocumentTypeNotPermitted = errors.New("document type not permitted for this module")
	ErrMisconfiguredReference   = errors.New("misconfigured reference data")
	ErrDocumentNotFound         = errors.New("document not found")
	ErrLineNotFound             = errors.New("document line not found")
	ErrSourceLineMismatch       = errors.New("source line does not belong to a matching document of this counter-party")
	ErrSimplifiedHasNoLines     = errors.New("simplified documents do not carry lines")
	ErrSimplifiedNotAllowed     = errors.New("simplified entry is only available for purchases")
	ErrInactiveTaxRate          = errors.New("tax rate is inactive")
	ErrProductNotFound          = errors.New("product not found")
)

const (
	// due date agreed outside the system; stored as null
	PaymentTermAgreed = "VENCIMIENTO_PACTADO"
	// due date typed in by the user
	PaymentTermChoose = "elegir"
)

// calculateDueDate derives the due date of a credit document.
// A nil term keeps whatever the user entered.
func calculateDueDate(date time.Time, term *PaymentTerm, entered *time.Time) *time.Time {
	if term == nil {
		return entered
	}
	switch term.Code {
	case PaymentTermAgreed:
		return nil
	case PaymentTermChoose:
		return entered
	}
	base := utils.TruncateToDay(date)
	if term.FromMonthEnd {
		base = utils.EndOfMonth(base)
	}
	dueDate := base.AddDate(0, 0, term.Days)
	return &dueDate
}
