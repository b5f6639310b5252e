/*
Package rent provides the rent-due classification engine.

PURPOSE:
  Given today's date, an owner's active tenancies and the set of tenancies
  that already paid this month, decide which tenancies need an alert on the
  owner dashboard: rent overdue, or rent due within the next few days.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: Monthly rent as a decimal currency value
  - Tenancy: An active lease with a billing day-of-month and lease start
  - PaymentRecord: A logged payment; only its tenancy and date matter here
  - Alert: Classifier output, never persisted

DESIGN PRINCIPLES:
  1. Pure: no I/O, no clock other than the supplied "now"
  2. Precision: rent uses decimal.Decimal, never float64
  3. Total: malformed tenancies are skipped and reported, not fatal

USAGE:
  alerts := rent.Classify(rent.Today(), tenancies, rent.PaidThisCycle(now, payments))

SEE ALSO:
  - classifier.go: Classification rules and ordering
  - cycle.go: First due date and billing cycle arithmetic
  - errors.go: Validation errors
*/
package rent

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Currency value
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency string
}

const DefaultCurrency = "USD"

func NewAmount(value float64, currency string) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewAmountFromInt(value int64, currency string) Amount {
	return Amount{Value: decimal.NewFromInt(value), Currency: currency}
}

// ParseAmount parses a decimal string such as "1250.50".
func ParseAmount(s, currency string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Amount{Value: d, Currency: currency}, nil
}

// MustParseAmount is ParseAmount for literals; it panics on bad input.
func MustParseAmount(s, currency string) Amount {
	a, err := ParseAmount(s, currency)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Zero() Amount        { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) IsZero() bool        { return a.Value.IsZero() }
func (a Amount) IsNegative() bool    { return a.Value.IsNegative() }
func (a Amount) Equal(b Amount) bool { return a.Value.Equal(b.Value) && a.Currency == b.Currency }
func (a Amount) String() string      { return a.Value.StringFixed(2) + " " + a.Currency }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenancyID string
type OwnerID string

// =============================================================================
// TENANCY - Read-only input
// =============================================================================

// Tenancy binds one tenant to one property with a recurring monthly rent.
// TenantName and PropertyLabel are display values pre-joined by the caller.
type Tenancy struct {
	ID            TenancyID
	OwnerID       OwnerID
	TenantName    string
	PropertyLabel string
	BillingDay    int // 1-31, day-of-month rent is due
	MonthlyRent   Amount
	LeaseStart    Date
	Active        bool
}

// PaymentRecord is a payment logged against a tenancy. The classifier only
// looks at TenancyID and ReferenceDate.
type PaymentRecord struct {
	ID            string
	TenancyID     TenancyID
	Amount        Amount
	ReferenceDate Date
	ReceiptNumber string
	Notes         string
}

// =============================================================================
// PAID SET
// =============================================================================

// PaidSet holds tenancies that already paid for the current cycle.
type PaidSet map[TenancyID]struct{}

func NewPaidSet(ids ...TenancyID) PaidSet {
	s := make(PaidSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s PaidSet) Add(id TenancyID) { s[id] = struct{}{} }

// Has is safe on a nil set.
func (s PaidSet) Has(id TenancyID) bool {
	_, ok := s[id]
	return ok
}

func (s PaidSet) Len() int { return len(s) }

// =============================================================================
// ALERT - Output
// =============================================================================

type AlertKind string

const (
	KindOverdue  AlertKind = "overdue"
	KindUpcoming AlertKind = "upcoming"
)

type Alert struct {
	ID            string          `json:"id"`
	TenancyID     TenancyID       `json:"tenancy_id"`
	TenantName    string          `json:"tenant_name"`
	PropertyLabel string          `json:"property_label"`
	DueDay        int             `json:"due_day"`
	Kind          AlertKind       `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

func alertID(kind AlertKind, id TenancyID) string {
	return string(kind) + "-" + string(id)
}

// =============================================================================
// SOURCE - Data access the surrounding application provides
// =============================================================================

// Source yields an owner's portfolio. Implementations:
//   - store/sqlite: production
//   - rent/store: in-memory for tests
type Source interface {
	// ListActiveTenancies returns the owner's active tenancies in a stable order.
	ListActiveTenancies(ctx context.Context, owner OwnerID) ([]Tenancy, error)

	// PaymentsSince returns payments on the owner's tenancies with a
	// reference date on or after since.
	PaymentsSince(ctx context.Context, owner OwnerID, since Date) ([]PaymentRecord, error)
}
