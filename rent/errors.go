/*
errors.go - Error types for the rent engine

ERROR CATEGORIES:
  1. Validation errors - Malformed tenancy records, dates, amounts
  2. Lookup errors - Missing owners or tenancies (raised by stores)

The classifier never returns these: it skips invalid tenancies and reports
them as *InvalidTenancyError in Report.Skipped. Stores and the HTTP layer use
the sentinels with errors.Is.
*/
package rent

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidBillingDay is returned when a billing day is outside 1-31.
	ErrInvalidBillingDay = errors.New("billing day must be between 1 and 31")

	// ErrMissingLeaseStart is returned when a tenancy has no lease start date.
	ErrMissingLeaseStart = errors.New("lease start date is required")

	// ErrMissingTenancyID is returned when a tenancy has an empty ID.
	ErrMissingTenancyID = errors.New("tenancy id is required")

	// ErrInvalidDate is returned when a date string cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidAmount is returned when an amount cannot be parsed or is negative.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrTenancyNotFound is returned when a referenced tenancy doesn't exist.
	ErrTenancyNotFound = errors.New("tenancy not found")

	// ErrOwnerNotFound is returned when a referenced owner doesn't exist.
	ErrOwnerNotFound = errors.New("owner not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidTenancyError names the tenancy that failed validation.
type InvalidTenancyError struct {
	TenancyID TenancyID
	Err       error
}

func (e *InvalidTenancyError) Error() string {
	return fmt.Sprintf("invalid tenancy %q: %v", e.TenancyID, e.Err)
}

func (e *InvalidTenancyError) Unwrap() error {
	return e.Err
}

// Validate checks the fields the classifier depends on.
func Validate(t Tenancy) error {
	var err error
	switch {
	case t.ID == "":
		err = ErrMissingTenancyID
	case t.BillingDay < 1 || t.BillingDay > 31:
		err = fmt.Errorf("%w (got %d)", ErrInvalidBillingDay, t.BillingDay)
	case t.LeaseStart.IsZero():
		err = ErrMissingLeaseStart
	case t.MonthlyRent.IsNegative():
		err = fmt.Errorf("%w: negative monthly rent", ErrInvalidAmount)
	}
	if err != nil {
		return &InvalidTenancyError{TenancyID: t.ID, Err: err}
	}
	return nil
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidBillingDay) ||
		errors.Is(err, ErrMissingLeaseStart) ||
		errors.Is(err, ErrMissingTenancyID) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTenancyNotFound) ||
		errors.Is(err, ErrOwnerNotFound)
}
