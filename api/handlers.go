/*
handlers.go - HTTP API handlers for the rent dashboard

PURPOSE:
  Exposes owners, tenancies, payments and the rent-due alert list via REST.
  Handles HTTP request/response, JSON serialization, and delegates to the
  store and the dashboard service.

ENDPOINTS:
  Owners:
    GET    /api/owners                     List owners
    POST   /api/owners                     Create owner
    GET    /api/owners/{id}                Get owner
    GET    /api/owners/{id}/tenancies      List owner's tenancies
    POST   /api/owners/{id}/tenancies      Create tenancy
    GET    /api/owners/{id}/alerts         Overdue/upcoming alerts (?date=)
    GET    /api/owners/{id}/summary        Dashboard cards (?date=)

  Tenancies:
    GET    /api/tenancies/{id}             Get tenancy
    POST   /api/tenancies/{id}/deactivate  End a tenancy
    DELETE /api/tenancies/{id}             Delete tenancy and its payments
    GET    /api/tenancies/{id}/payments    Payment history
    POST   /api/tenancies/{id}/payments    Log a payment

  Engine:
    POST   /api/classify                   Classify a posted portfolio

  Alert runs:
    GET    /api/alert-runs                 Sweep audit (?status=)
    POST   /api/alert-runs/trigger         Run a sweep now

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call store / dashboard service
  4. Invalidate cached alerts after writes
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Owner or tenancy not found
  - 409: Duplicate receipt or payment
  - 500: Internal errors (including an unreachable store)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo portfolios
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/rent-engine/cache"
	"github.com/warp/rent-engine/dashboard"
	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Dashboard *dashboard.Service
	Scheduler *AlertScheduler
	Log       logrus.FieldLogger

	// Now returns the current day; replaced in tests.
	Now func() rent.Date

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store and dashboard service.
func NewHandler(store *sqlite.Store, svc *dashboard.Service, log logrus.FieldLogger) *Handler {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Handler{
		Store:     store,
		Dashboard: svc,
		Log:       log,
		Now:       rent.Today,
	}
}

// dateParam reads ?date=YYYY-MM-DD, defaulting to today.
func (h *Handler) dateParam(r *http.Request) (rent.Date, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return h.Now(), nil
	}
	return rent.ParseDate(raw)
}

// =============================================================================
// OWNER HANDLERS
// =============================================================================

// ListOwners returns all owners.
func (h *Handler) ListOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.Store.ListOwners(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list owners", err)
		return
	}

	dtos := make([]OwnerDTO, len(owners))
	for i, o := range owners {
		dtos[i] = toOwnerDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOwner creates a new owner.
func (h *Handler) CreateOwner(w http.ResponseWriter, r *http.Request) {
	var req CreateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	owner := sqlite.Owner{ID: req.ID, Name: req.Name, Email: req.Email}
	if err := h.Store.SaveOwner(r.Context(), owner); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create owner", err)
		return
	}

	saved, err := h.Store.GetOwner(r.Context(), req.ID)
	if err != nil {
		writeDomainError(w, "Failed to load owner", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOwnerDTO(*saved))
}

// GetOwner returns a single owner.
func (h *Handler) GetOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := h.Store.GetOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get owner", err)
		return
	}
	writeJSON(w, http.StatusOK, toOwnerDTO(*owner))
}

// =============================================================================
// TENANCY HANDLERS
// =============================================================================

// ListTenancies returns all of an owner's tenancies, active or not.
func (h *Handler) ListTenancies(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "id")
	if _, err := h.Store.GetOwner(r.Context(), ownerID); err != nil {
		writeDomainError(w, "Failed to get owner", err)
		return
	}

	tenancies, err := h.Store.ListTenancies(r.Context(), rent.OwnerID(ownerID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tenancies", err)
		return
	}

	dtos := make([]TenancyDTO, len(tenancies))
	for i, t := range tenancies {
		dtos[i] = toTenancyDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTenancy creates or replaces a tenancy under an owner.
func (h *Handler) CreateTenancy(w http.ResponseWriter, r *http.Request) {
	ownerID := rent.OwnerID(chi.URLParam(r, "id"))

	var req TenancyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	t, err := req.toTenancy(ownerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tenancy", err)
		return
	}
	if err := h.Store.SaveTenancy(r.Context(), t); err != nil {
		writeDomainError(w, "Failed to save tenancy", err)
		return
	}
	h.Dashboard.Invalidate(r.Context(), ownerID)

	writeJSON(w, http.StatusCreated, toTenancyDTO(t))
}

// GetTenancy returns a single tenancy.
func (h *Handler) GetTenancy(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetTenancy(r.Context(), rent.TenancyID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get tenancy", err)
		return
	}
	writeJSON(w, http.StatusOK, toTenancyDTO(*t))
}

// DeactivateTenancy marks a tenancy inactive so it no longer produces alerts.
func (h *Handler) DeactivateTenancy(w http.ResponseWriter, r *http.Request) {
	id := rent.TenancyID(chi.URLParam(r, "id"))
	t, err := h.Store.GetTenancy(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get tenancy", err)
		return
	}
	if err := h.Store.SetTenancyActive(r.Context(), id, false); err != nil {
		writeDomainError(w, "Failed to deactivate tenancy", err)
		return
	}
	h.Dashboard.Invalidate(r.Context(), t.OwnerID)

	t.Active = false
	writeJSON(w, http.StatusOK, toTenancyDTO(*t))
}

// DeleteTenancy removes a tenancy and its payments.
func (h *Handler) DeleteTenancy(w http.ResponseWriter, r *http.Request) {
	id := rent.TenancyID(chi.URLParam(r, "id"))
	t, err := h.Store.GetTenancy(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get tenancy", err)
		return
	}
	if err := h.Store.DeleteTenancy(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete tenancy", err)
		return
	}
	h.Dashboard.Invalidate(r.Context(), t.OwnerID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": string(id)})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns a tenancy's payments, newest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id := rent.TenancyID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetTenancy(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get tenancy", err)
		return
	}

	payments, err := h.Store.ListPayments(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordPayment logs a payment against a tenancy.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetTenancy(r.Context(), rent.TenancyID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get tenancy", err)
		return
	}

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = t.MonthlyRent.Currency
	}
	amount, err := rent.ParseAmount(req.Amount, currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	refDate := h.Now()
	if req.ReferenceDate != "" {
		if refDate, err = rent.ParseDate(req.ReferenceDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid reference_date", err)
			return
		}
	}

	p := rent.PaymentRecord{
		ID:            req.ID,
		TenancyID:     t.ID,
		Amount:        amount,
		ReferenceDate: refDate,
		ReceiptNumber: req.ReceiptNumber,
		Notes:         req.Notes,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ReceiptNumber == "" {
		p.ReceiptNumber = newReceiptNumber(refDate)
	}

	if err := h.Store.SavePayment(r.Context(), p); err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	h.Dashboard.Invalidate(r.Context(), t.OwnerID)

	h.Log.WithFields(logrus.Fields{
		"tenancy_id": t.ID,
		"owner_id":   t.OwnerID,
		"receipt":    p.ReceiptNumber,
	}).Info("payment recorded")

	writeJSON(w, http.StatusCreated, toPaymentDTO(p))
}

// newReceiptNumber builds a human-readable receipt like RCPT-202406-1A2B3C4D.
func newReceiptNumber(d rent.Date) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("RCPT-%04d%02d-%s", d.Year(), int(d.Month()), suffix)
}

// =============================================================================
// ALERT HANDLERS
// =============================================================================

// GetAlerts returns the owner's overdue and upcoming rent alerts.
// GET /api/owners/{id}/alerts?date=YYYY-MM-DD
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "id")
	now, err := h.dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	if _, err := h.Store.GetOwner(r.Context(), ownerID); err != nil {
		writeDomainError(w, "Failed to get owner", err)
		return
	}

	alerts, err := h.Dashboard.Alerts(r.Context(), rent.OwnerID(ownerID), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load alerts", err)
		return
	}

	writeJSON(w, http.StatusOK, AlertsResponse{
		OwnerID:    ownerID,
		Date:       now,
		WindowDays: h.Dashboard.Classifier.Window,
		Mode:       h.Dashboard.Classifier.Mode,
		Alerts:     alerts,
	})
}

// GetSummary returns the dashboard cards for an owner.
// GET /api/owners/{id}/summary?date=YYYY-MM-DD
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "id")
	now, err := h.dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	if _, err := h.Store.GetOwner(r.Context(), ownerID); err != nil {
		writeDomainError(w, "Failed to get owner", err)
		return
	}

	summary, err := h.Dashboard.Summary(r.Context(), rent.OwnerID(ownerID), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Classify runs the classifier over a posted portfolio without touching
// the store. Tenancies that cannot be parsed or validated are reported in
// "skipped" rather than failing the request.
// POST /api/classify
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	now := h.Now()
	if req.Date != "" {
		var err error
		if now, err = rent.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
	}

	window := h.Dashboard.Classifier.Window
	if req.WindowDays != nil {
		if *req.WindowDays < 0 {
			writeError(w, http.StatusBadRequest, "window_days must not be negative", nil)
			return
		}
		window = *req.WindowDays
	}
	mode := h.Dashboard.Classifier.Mode
	if req.Mode != "" {
		m, ok := rent.ParseWindowMode(req.Mode)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid mode", fmt.Errorf("unknown mode %q", req.Mode))
			return
		}
		mode = m
	}

	resp := ClassifyResponse{Date: now, Skipped: []SkippedDTO{}}
	tenancies := make([]rent.Tenancy, 0, len(req.Tenancies))
	for _, tr := range req.Tenancies {
		t, err := tr.toTenancy("")
		if err != nil {
			resp.Skipped = append(resp.Skipped, SkippedDTO{TenancyID: tr.ID, Reason: err.Error()})
			continue
		}
		tenancies = append(tenancies, t)
	}

	paid := rent.NewPaidSet()
	for _, id := range req.Paid {
		paid.Add(rent.TenancyID(id))
	}
	payments := make([]rent.PaymentRecord, 0, len(req.Payments))
	for _, p := range req.Payments {
		d, err := rent.ParseDate(p.ReferenceDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment reference_date", err)
			return
		}
		payments = append(payments, rent.PaymentRecord{TenancyID: rent.TenancyID(p.TenancyID), ReferenceDate: d})
	}
	for id := range rent.PaidThisCycle(now, payments) {
		paid.Add(id)
	}

	classifier := rent.NewClassifier(
		rent.WithWindow(window),
		rent.WithMode(mode),
		rent.WithLogger(h.Log),
	)
	report := classifier.ClassifyReport(now, tenancies, paid)

	resp.Alerts = report.Alerts
	for _, s := range report.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedDTO{TenancyID: string(s.TenancyID), Reason: s.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// toTenancy converts a request into a domain tenancy. Parse failures wrap
// the rent sentinels so they map to 400.
func (req TenancyRequest) toTenancy(owner rent.OwnerID) (rent.Tenancy, error) {
	currency := req.Currency
	if currency == "" {
		currency = rent.DefaultCurrency
	}
	amount, err := rent.ParseAmount(req.MonthlyRent, currency)
	if err != nil {
		return rent.Tenancy{}, err
	}
	leaseStart, err := rent.ParseDate(req.LeaseStart)
	if err != nil {
		return rent.Tenancy{}, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return rent.Tenancy{
		ID:            rent.TenancyID(req.ID),
		OwnerID:       owner,
		TenantName:    req.TenantName,
		PropertyLabel: req.PropertyLabel,
		BillingDay:    req.BillingDay,
		MonthlyRent:   amount,
		LeaseStart:    leaseStart,
		Active:        active,
	}, nil
}

// =============================================================================
// ALERT RUN HANDLERS
// =============================================================================

// ListAlertRuns returns the sweep audit log.
// GET /api/alert-runs?status=completed
func (h *Handler) ListAlertRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.GetAlertRuns(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alert runs", err)
		return
	}

	dtos := make([]AlertRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toAlertRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TriggerSweep runs the alert sweep immediately.
// POST /api/alert-runs/trigger
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Scheduler not configured", nil)
		return
	}

	var req TriggerSweepRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	now := h.Now()
	if req.Date != "" {
		var err error
		if now, err = rent.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
	}

	result, err := h.Scheduler.RunOnce(r.Context(), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResultDTO{
		Date:      now,
		Processed: result.Processed,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
	})
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and the active alert configuration.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	cacheKind := "none"
	if _, ok := h.Dashboard.Cache.(*cache.Redis); ok {
		cacheKind = "redis"
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Cache:  cacheKind,
		Mode:   string(h.Dashboard.Classifier.Mode),
		Window: h.Dashboard.Classifier.Window,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sqlite.ErrDuplicateReceipt), errors.Is(err, sqlite.ErrDuplicatePayment),
		errors.Is(err, sqlite.ErrTenancyOwnerConflict):
		status = http.StatusConflict
	case rent.IsNotFound(err):
		status = http.StatusNotFound
	case rent.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}
