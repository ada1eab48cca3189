package validation

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"hello\x00world", 20, "helloworld"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	errs := Validate(
		Required("counterpartyId", "BANK-01"),
		Selected("assetType", "Equity"),
		Finite("score", 42),
	)
	if len(errs) != 0 {
		t.Errorf("Expected no errors, got %v", errs)
	}

	errs = Validate(
		Required("counterpartyId", "  "),
		Selected("assetType", "Select Asset Type"),
		Finite("score", math.NaN()),
	)
	if len(errs) != 3 {
		t.Fatalf("Expected 3 errors, got %d", len(errs))
	}
	assert.Equal(t, "counterpartyId", errs[0].Field)
	assert.Equal(t, "must be selected", errs[1].Message)
	assert.Equal(t, "must be a finite number", errs[2].Message)
}

func TestFinite_Infinity(t *testing.T) {
	assert.NotNil(t, Finite("score", math.Inf(1))())
	assert.NotNil(t, Finite("score", math.Inf(-1))())
	assert.Nil(t, Finite("score", -5)())
}

func TestMaxLength(t *testing.T) {
	if err := MaxLength("field", "hello", 10)(); err != nil {
		t.Error("Expected no error for string under limit")
	}
	if err := MaxLength("field", "hello", 5)(); err != nil {
		t.Error("Expected no error for string at limit")
	}
	if err := MaxLength("field", "hello world", 5)(); err == nil {
		t.Error("Expected error for string over limit")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	assert.Equal(t, "validation failed", ValidationErrors{}.Error())
	assert.Equal(t, "a: is required", ValidationErrors{{Field: "a", Message: "is required"}}.Error())
	assert.Equal(t, "a: x; b: y", ValidationErrors{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}.Error())
}

func TestIsValidation(t *testing.T) {
	single := &ValidationError{Field: "score", Message: "must be a finite number"}
	assert.True(t, IsValidation(single))
	assert.True(t, IsValidation(fmt.Errorf("classify: %w", single)))
	assert.True(t, IsValidation(ValidationErrors{{Field: "a", Message: "b"}}))
	assert.False(t, IsValidation(errors.New("boom")))
	assert.False(t, IsValidation(nil))
}

type sampleForm struct {
	TransactionType string  `validate:"required"`
	Value           float64 `validate:"gte=0"`
}

func TestStruct(t *testing.T) {
	assert.Nil(t, Struct(sampleForm{TransactionType: "Asset Servicing", Value: 10}))

	errs := Struct(sampleForm{Value: -1})
	if assert.Len(t, errs, 2) {
		assert.Equal(t, "transactionType", errs[0].Field)
		assert.Equal(t, "is required", errs[0].Message)
		assert.Equal(t, "value", errs[1].Field)
		assert.Equal(t, "must be >= 0", errs[1].Message)
	}
}
