package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateError(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		operation string
		err       error
		wantMsg   string
	}{
		{
			name:      "missing bundle",
			key:       KeyBundle.name,
			operation: "Get",
			err:       ErrKeyNotFound,
			wantMsg:   "state error: operation=Get, key=bundle, err=key not found",
		},
		{
			name:      "empty ensembles",
			key:       KeyEnsembles.name,
			operation: "Get",
			err:       ErrEmptyValue,
			wantMsg:   "state error: operation=Get, key=ensembles, err=empty value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStateError(tt.key, tt.operation, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error(), "Error message mismatch")
			assert.Equal(t, tt.key, err.Key, "Key mismatch")
			assert.Equal(t, tt.operation, err.Operation, "Operation mismatch")
			assert.True(t, errors.Is(err, tt.err), "Should unwrap to underlying error")
		})
	}
}

func TestRecordError(t *testing.T) {
	t.Run("with model", func(t *testing.T) {
		err := NewRecordError("SC4001", "AMOE", "read", ErrInvalidInput)
		assert.Equal(t, "record error: operation=read, subject=SC4001, model=AMOE, err=invalid input", err.Error())
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("vote spans all models", func(t *testing.T) {
		err := NewRecordError("SC4001", "", "SOFT-V", ErrMissingData)
		assert.Equal(t, "record error: operation=SOFT-V, subject=SC4001, err=missing data", err.Error())
	})

	t.Run("errors.As through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("voters: %w", NewRecordError("s1", "", "MAJ-V", ErrInvalidInput))

		var recErr *RecordError
		assert.True(t, errors.As(wrapped, &recErr))
		assert.Equal(t, "s1", recErr.Subject)
		assert.ErrorIs(t, wrapped, ErrInvalidInput)
	})
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("ReportConfig")
		err.AddError("missing voters")

		assert.Equal(t, "validation error for ReportConfig: missing voters", err.Error())
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("ReportConfig")
		err.AddError("duplicate voter id")
		err.AddError("unknown voter type")

		assert.Contains(t, err.Error(), "validation errors for ReportConfig")
		assert.Len(t, err.Errors, 2, "Should have two errors")
		assert.Equal(t, "duplicate voter id", err.Errors[0], "First error should be preserved")
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("Config")

		assert.False(t, err.HasErrors(), "Should not have errors")
		assert.Empty(t, err.Errors, "Errors slice should be empty")
	})
}

func TestCommonDomainErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrInvalidInput, "invalid input"},
		{ErrMissingData, "missing data"},
		{ErrInvalidState, "invalid state"},
		{ErrKeyNotFound, "key not found"},
		{ErrTypeMismatch, "type mismatch"},
		{ErrEmptyValue, "empty value"},
		{ErrInvalidConfiguration, "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error(), "Error message mismatch")
		})
	}
}
