package utils

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError wraps validator field errors so callers can map them to a 400.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["_"] = err.Error()
		return errorResponse
	}
	for _, fieldErr := range validationErrors {
		switch fieldErr.Tag() {
		case "required":
			errorResponse[fieldErr.Namespace()] = "is required"
		case "oneof":
			errorResponse[fieldErr.Namespace()] = "must be one of " + fieldErr.Param()
		default:
			errorResponse[fieldErr.Namespace()] = "failed on " + fieldErr.Tag() + " " + fieldErr.Param()
		}
	}
	return errorResponse
}
