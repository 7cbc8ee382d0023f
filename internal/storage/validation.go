// Package storage provides the data persistence layer for the tally application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nmoretto/tally/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidMerchant = errors.New("invalid merchant record")
	ErrInvalidDecision = errors.New("invalid decision record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateMerchant validates a merchant record before persistence.
func validateMerchant(record *model.MerchantRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if strings.TrimSpace(record.Name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidMerchant)
	}
	if record.TimesSeen < 0 {
		return fmt.Errorf("%w: times_seen is negative", ErrInvalidMerchant)
	}
	if record.OverrideCount < 0 {
		return fmt.Errorf("%w: override_count is negative", ErrInvalidMerchant)
	}
	return nil
}

// validateDecision validates a decision record before persistence.
func validateDecision(record *model.DecisionRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidDecision)
	}
	if strings.TrimSpace(record.Category) == "" {
		return fmt.Errorf("%w: category is empty", ErrInvalidDecision)
	}
	if record.Confidence < 0 || record.Confidence > 1 {
		return fmt.Errorf("%w: confidence %f out of range", ErrInvalidDecision, record.Confidence)
	}
	if record.RiskScore < 0 || record.RiskScore > 1 {
		return fmt.Errorf("%w: risk score %f out of range", ErrInvalidDecision, record.RiskScore)
	}
	return nil
}
