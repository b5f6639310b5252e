/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the rent engine's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

FORMATS:
  - Dates are "YYYY-MM-DD" strings
  - Money is a decimal string plus an ISO currency code

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - rent/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store/sqlite"
)

// =============================================================================
// OWNERS
// =============================================================================

// OwnerDTO represents an owner in API responses.
type OwnerDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateOwnerRequest is the request body for creating an owner.
type CreateOwnerRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func toOwnerDTO(o sqlite.Owner) OwnerDTO {
	return OwnerDTO{ID: o.ID, Name: o.Name, Email: o.Email, CreatedAt: o.CreatedAt}
}

// =============================================================================
// TENANCIES
// =============================================================================

// TenancyDTO represents a tenancy in API responses.
type TenancyDTO struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	TenantName    string    `json:"tenant_name"`
	PropertyLabel string    `json:"property_label"`
	BillingDay    int       `json:"billing_day"`
	MonthlyRent   string    `json:"monthly_rent"`
	Currency      string    `json:"currency"`
	LeaseStart    rent.Date `json:"lease_start"`
	FirstDueDate  rent.Date `json:"first_due_date"`
	Active        bool      `json:"active"`
}

// TenancyRequest describes a tenancy, both for creation and for the
// stateless classify endpoint.
type TenancyRequest struct {
	ID            string `json:"id,omitempty"`
	TenantName    string `json:"tenant_name"`
	PropertyLabel string `json:"property_label"`
	BillingDay    int    `json:"billing_day"`
	MonthlyRent   string `json:"monthly_rent"`
	Currency      string `json:"currency,omitempty"`
	LeaseStart    string `json:"lease_start"`
	Active        *bool  `json:"active,omitempty"`
}

func toTenancyDTO(t rent.Tenancy) TenancyDTO {
	dto := TenancyDTO{
		ID:            string(t.ID),
		OwnerID:       string(t.OwnerID),
		TenantName:    t.TenantName,
		PropertyLabel: t.PropertyLabel,
		BillingDay:    t.BillingDay,
		MonthlyRent:   t.MonthlyRent.Value.StringFixed(2),
		Currency:      t.MonthlyRent.Currency,
		LeaseStart:    t.LeaseStart,
		Active:        t.Active,
	}
	if rent.Validate(t) == nil {
		dto.FirstDueDate = rent.FirstDueDate(t)
	}
	return dto
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentDTO represents a logged payment in API responses.
type PaymentDTO struct {
	ID            string    `json:"id"`
	TenancyID     string    `json:"tenancy_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	ReferenceDate rent.Date `json:"reference_date"`
	ReceiptNumber string    `json:"receipt_number"`
	Notes         string    `json:"notes,omitempty"`
}

// RecordPaymentRequest is the request body for logging a payment.
// ID and receipt number are generated when absent; the reference date
// defaults to today and the currency to the tenancy's.
type RecordPaymentRequest struct {
	ID            string `json:"id,omitempty"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency,omitempty"`
	ReferenceDate string `json:"reference_date,omitempty"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func toPaymentDTO(p rent.PaymentRecord) PaymentDTO {
	return PaymentDTO{
		ID:            p.ID,
		TenancyID:     string(p.TenancyID),
		Amount:        p.Amount.Value.StringFixed(2),
		Currency:      p.Amount.Currency,
		ReferenceDate: p.ReferenceDate,
		ReceiptNumber: p.ReceiptNumber,
		Notes:         p.Notes,
	}
}

// =============================================================================
// ALERTS
// =============================================================================

// AlertsResponse is the owner's ordered alert list for one day.
type AlertsResponse struct {
	OwnerID    string          `json:"owner_id"`
	Date       rent.Date       `json:"date"`
	WindowDays int             `json:"window_days"`
	Mode       rent.WindowMode `json:"mode"`
	Alerts     []rent.Alert    `json:"alerts"`
}

// ClassifyRequest runs the classifier over a posted portfolio. Paid lists
// tenancy IDs paid this cycle; Payments are folded in with the same rule the
// dashboard uses. WindowDays and Mode default to the server's classifier.
type ClassifyRequest struct {
	Date       string                `json:"date,omitempty"`
	WindowDays *int                  `json:"window_days,omitempty"`
	Mode       string                `json:"mode,omitempty"`
	Tenancies  []TenancyRequest      `json:"tenancies"`
	Paid       []string              `json:"paid,omitempty"`
	Payments   []ClassifyPaymentItem `json:"payments,omitempty"`
}

// ClassifyPaymentItem is a payment reference in a ClassifyRequest.
type ClassifyPaymentItem struct {
	TenancyID     string `json:"tenancy_id"`
	ReferenceDate string `json:"reference_date"`
}

// ClassifyResponse is the result of POST /api/classify.
type ClassifyResponse struct {
	Date    rent.Date    `json:"date"`
	Alerts  []rent.Alert `json:"alerts"`
	Skipped []SkippedDTO `json:"skipped"`
}

// SkippedDTO names a tenancy the classifier could not evaluate.
type SkippedDTO struct {
	TenancyID string `json:"tenancy_id"`
	Reason    string `json:"reason"`
}

// =============================================================================
// ALERT RUNS
// =============================================================================

// AlertRunDTO represents a scheduled sweep record.
type AlertRunDTO struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	RunDate       rent.Date  `json:"run_date"`
	Status        string     `json:"status"`
	OverdueCount  int        `json:"overdue_count"`
	UpcomingCount int        `json:"upcoming_count"`
	SkippedCount  int        `json:"skipped_count"`
	Error         string     `json:"error,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func toAlertRunDTO(r sqlite.AlertRun) AlertRunDTO {
	return AlertRunDTO{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		RunDate:       r.RunDate,
		Status:        r.Status,
		OverdueCount:  r.OverdueCount,
		UpcomingCount: r.UpcomingCount,
		SkippedCount:  r.SkippedCount,
		Error:         r.Error,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
	}
}

// TriggerSweepRequest optionally pins the sweep date.
type TriggerSweepRequest struct {
	Date string `json:"date,omitempty"`
}

// SweepResultDTO summarizes a manual sweep.
type SweepResultDTO struct {
	Date      rent.Date `json:"date"`
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo portfolio.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"owner_id"`
	Date        string `json:"date"`
}

// LoadScenarioRequest is the request body for loading a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// COMMON
// =============================================================================

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache"`
	Mode   string `json:"mode"`
	Window int    `json:"window_days"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
