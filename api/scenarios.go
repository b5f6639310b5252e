/*
scenarios.go - Demo portfolios for testing and demonstrations

PURPOSE:
  Provides pre-built portfolios that populate the database with realistic
  owners, tenancies and payments. Each scenario comes with a suggested
  "date" to pass as ?date= so the alert list is reproducible.

AVAILABLE SCENARIOS:
  small-landlord:  Four units: one overdue, one upcoming, one paid, one quiet
  new-leases:      Mid-month move-ins showing partial first-month billing
  month-end:       Billing days 29-31 across a short February

HOW SCENARIOS WORK:
  1. Invalidate cached alerts and reset the database
  2. Create the owner
  3. Create tenancies
  4. Log payments made this cycle

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "small-landlord"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Alerts and summary endpoints
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	owner     sqlite.Owner
	tenancies []rent.Tenancy
	payments  []rent.PaymentRecord
}

const demoOwner = "owner-demo"

func demoTenancy(id, tenant, label string, billingDay int, amount string, leaseStart rent.Date) rent.Tenancy {
	return rent.Tenancy{
		ID:            rent.TenancyID(id),
		OwnerID:       demoOwner,
		TenantName:    tenant,
		PropertyLabel: label,
		BillingDay:    billingDay,
		MonthlyRent:   rent.MustParseAmount(amount, rent.DefaultCurrency),
		LeaseStart:    leaseStart,
		Active:        true,
	}
}

func demoPayment(id, tenancy, amount string, day rent.Date) rent.PaymentRecord {
	return rent.PaymentRecord{
		ID:            id,
		TenancyID:     rent.TenancyID(tenancy),
		Amount:        rent.MustParseAmount(amount, rent.DefaultCurrency),
		ReferenceDate: day,
		ReceiptNumber: "RCPT-" + id,
	}
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "small-landlord",
			Name:        "Small Landlord",
			Description: "Four long-running leases: one overdue, one upcoming, one paid, one not yet due",
			OwnerID:     demoOwner,
			Date:        "2024-06-15",
		},
		owner: sqlite.Owner{ID: demoOwner, Name: "Morgan Reyes", Email: "morgan@example.com"},
		tenancies: []rent.Tenancy{
			demoTenancy("elm-1a", "Ana Silva", "12 Elm St, Apt 1A", 10, "1450.00", rent.NewDate(2023, time.March, 1)),
			demoTenancy("elm-2b", "Ben Okafor", "12 Elm St, Apt 2B", 18, "1375.50", rent.NewDate(2023, time.May, 18)),
			demoTenancy("oak-3", "Chloe Martin", "3 Oak Ave", 5, "2100.00", rent.NewDate(2022, time.September, 5)),
			demoTenancy("pine-7", "Dev Patel", "7 Pine Ct", 28, "980.00", rent.NewDate(2023, time.January, 28)),
		},
		payments: []rent.PaymentRecord{
			demoPayment("demo-oak-may", "oak-3", "2100.00", rent.NewDate(2024, time.May, 5)),
			demoPayment("demo-oak-jun", "oak-3", "2100.00", rent.NewDate(2024, time.June, 4)),
			demoPayment("demo-elm-may", "elm-1a", "1450.00", rent.NewDate(2024, time.May, 10)),
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "new-leases",
			Name:        "New Leases",
			Description: "Tenants who moved in mid-month: no alert until the first full billing cycle",
			OwnerID:     demoOwner,
			Date:        "2024-03-14",
		},
		owner: sqlite.Owner{ID: demoOwner, Name: "Morgan Reyes", Email: "morgan@example.com"},
		tenancies: []rent.Tenancy{
			// Moved in after the billing day: first due April 10.
			demoTenancy("harbor-4", "Eli Novak", "40 Harbor Rd, Unit 4", 10, "1600.00", rent.NewDate(2024, time.March, 15)),
			// Moved in before the billing day: first due March 14.
			demoTenancy("harbor-5", "Fatima Zahra", "40 Harbor Rd, Unit 5", 14, "1600.00", rent.NewDate(2024, time.March, 2)),
			// Moved in on the billing day: due the same day.
			demoTenancy("harbor-6", "Gus Lindqvist", "40 Harbor Rd, Unit 6", 1, "1550.00", rent.NewDate(2024, time.March, 1)),
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "month-end",
			Name:        "Month End",
			Description: "Billing days 29-31 in a leap-year February",
			OwnerID:     demoOwner,
			Date:        "2024-02-27",
		},
		owner: sqlite.Owner{ID: demoOwner, Name: "Morgan Reyes", Email: "morgan@example.com"},
		tenancies: []rent.Tenancy{
			demoTenancy("bay-29", "Hana Ito", "9 Bay View, Unit 29", 29, "1200.00", rent.NewDate(2023, time.June, 1)),
			demoTenancy("bay-30", "Ivan Petrov", "9 Bay View, Unit 30", 30, "1250.00", rent.NewDate(2023, time.June, 1)),
			demoTenancy("bay-31", "Jade Moreau", "9 Bay View, Unit 31", 31, "1300.00", rent.NewDate(2023, time.June, 1)),
		},
	},
}

func findScenario(id string) (*scenario, bool) {
	for i := range scenarios {
		if scenarios[i].ID == id {
			return &scenarios[i], true
		}
	}
	return nil, false
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario resets the database and loads a predefined portfolio.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := h.loadScenario(ctx, s); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.Log.WithField("scenario", s.ID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": s.ID, "date": s.Date})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// reset drops cached alerts for every known owner, then clears the store.
func (h *Handler) reset(ctx context.Context) error {
	owners, err := h.Store.ListOwners(ctx)
	if err != nil {
		return err
	}
	for _, o := range owners {
		h.Dashboard.Invalidate(ctx, rent.OwnerID(o.ID))
	}
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

func (h *Handler) loadScenario(ctx context.Context, s *scenario) error {
	if err := h.Store.SaveOwner(ctx, s.owner); err != nil {
		return fmt.Errorf("failed to create owner: %w", err)
	}
	for _, t := range s.tenancies {
		if err := h.Store.SaveTenancy(ctx, t); err != nil {
			return fmt.Errorf("failed to create tenancy %s: %w", t.ID, err)
		}
	}
	for _, p := range s.payments {
		if err := h.Store.SavePayment(ctx, p); err != nil {
			return fmt.Errorf("failed to record payment %s: %w", p.ID, err)
		}
	}
	h.Dashboard.Invalidate(ctx, rent.OwnerID(s.owner.ID))
	return nil
}
