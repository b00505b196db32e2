// Package errors provides error handling utilities.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeInput indicates a malformed request
	TypeInput Type = "INPUT_ERROR"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"

	// TypeInvalidPlan indicates a rate plan that fails table validation
	TypeInvalidPlan Type = "INVALID_PLAN"

	// TypePlanNotFound indicates no active plan covers the request
	TypePlanNotFound Type = "PLAN_NOT_FOUND"

	// TypeAmbiguousPlan indicates overlapping active plans without a carrier to pick one
	TypeAmbiguousPlan Type = "AMBIGUOUS_PLAN"

	// TypeMissingRateBand indicates an applicant attribute outside the table's banded domain
	TypeMissingRateBand Type = "MISSING_RATE_BAND"

	// TypeRateNotFound indicates lookup exhausted every wildcard fallback
	TypeRateNotFound Type = "RATE_NOT_FOUND"

	// TypeUnknownOption indicates a factor, rider or fee selection with no configured row
	TypeUnknownOption Type = "UNKNOWN_OPTION"

	// TypeModeNotSupported indicates a payment mode with no modal factor row
	TypeModeNotSupported Type = "MODE_NOT_SUPPORTED"
)

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasType checks if the error is of a specific type
func (e *Error) HasType(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// As finds the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType checks if an error, or anything it wraps, is of a specific type
func IsType(err error, t Type) bool {
	if e, ok := As(err); ok {
		return e.Type == t
	}
	return false
}

// TypeOf returns the type of err, or TypeInternal for foreign errors
func TypeOf(err error) Type {
	if e, ok := As(err); ok {
		return e.Type
	}
	return TypeInternal
}

// Input creates an input error
func Input(message string) *Error {
	return New(TypeInput, message)
}

// Config creates a configuration error
func Config(message string, cause error) *Error {
	return Wrap(TypeConfig, message, cause)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}

// InvalidPlan creates a plan validation error
func InvalidPlan(format string, args ...interface{}) *Error {
	return Newf(TypeInvalidPlan, format, args...)
}

// PlanNotFound reports that no active plan covers the product/carrier/date
func PlanNotFound(productType, carrierID, asOf string) *Error {
	msg := fmt.Sprintf("no active %s plan covers %s", productType, asOf)
	if carrierID != "" {
		msg = fmt.Sprintf("no active %s plan for carrier %s covers %s", productType, carrierID, asOf)
	}
	return New(TypePlanNotFound, msg).
		WithContext("product_type", productType).
		WithContext("carrier_id", carrierID).
		WithContext("as_of", asOf)
}

// AmbiguousPlan reports overlapping active plans
func AmbiguousPlan(productType, asOf string, planIDs []string) *Error {
	return Newf(TypeAmbiguousPlan, "%d active %s plans cover %s; specify a carrier", len(planIDs), productType, asOf).
		WithContext("product_type", productType).
		WithContext("as_of", asOf).
		WithContext("plan_ids", planIDs)
}

// MissingRateBand reports an attribute outside the table's banded domain
func MissingRateBand(dimension, value string) *Error {
	if value == "" {
		return Newf(TypeMissingRateBand, "no value supplied for rated dimension %s", dimension).
			WithContext("dimension", dimension)
	}
	return Newf(TypeMissingRateBand, "no rate band for %s %s in this plan", dimension, value).
		WithContext("dimension", dimension).
		WithContext("value", value)
}

// RateNotFound reports that no entry matched any fallback candidate
func RateNotFound(key string) *Error {
	return Newf(TypeRateNotFound, "no rate available for %s", key).
		WithContext("key", key)
}

// UnknownOption reports a selection with no configured row
func UnknownOption(kind, code, option string) *Error {
	var e *Error
	switch {
	case option == "" && kind == "factor":
		e = Newf(TypeUnknownOption, "no option selected for factor %s", code)
	case option == "":
		e = Newf(TypeUnknownOption, "unknown %s %s", kind, code)
	default:
		e = Newf(TypeUnknownOption, "%s %s has no option %s", kind, code, option)
	}
	e.WithContext("kind", kind).WithContext("code", code)
	if option != "" {
		e.WithContext("option", option)
	}
	return e
}

// ModeNotSupported reports a payment mode without a modal factor row
func ModeNotSupported(mode string) *Error {
	return Newf(TypeModeNotSupported, "payment mode %s is not offered by this plan", mode).
		WithContext("mode", mode)
}
