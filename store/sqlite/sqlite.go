/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists owners, tenancies, payments and alert sweep runs, and implements
  rent.Source so the dashboard service can read an owner's portfolio.

INTERFACES IMPLEMENTED:
  rent.Source: ListActiveTenancies, PaymentsSince

KEY TABLES:
  owners:      Property owners (dashboard accounts)
  tenancies:   Leases with billing day, monthly rent, lease start
  payments:    Logged rent payments (one receipt number each)
  alert_runs:  Audit of scheduled alert sweeps

STORAGE FORMATS:
  - Dates are stored as YYYY-MM-DD text
  - Amounts are stored as decimal strings (never REAL)
  - Timestamps are RFC3339 UTC

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode so
  readers don't block each other.

USAGE:
  store, err := sqlite.New("./data/rent.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - rent/types.go: Source interface
  - rent/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/rent-engine/rent"
)

var (
	// ErrDuplicateReceipt is returned when a payment reuses a receipt number.
	ErrDuplicateReceipt = errors.New("duplicate receipt number")

	// ErrDuplicatePayment is returned when a payment ID already exists.
	ErrDuplicatePayment = errors.New("duplicate payment")

	// ErrTenancyOwnerConflict is returned when a tenancy ID is saved under an
	// owner other than the one it was created for.
	ErrTenancyOwnerConflict = errors.New("tenancy belongs to another owner")
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ rent.Source = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS owners (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tenancies (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES owners(id) ON DELETE CASCADE,
		tenant_name TEXT NOT NULL,
		property_label TEXT NOT NULL,
		billing_day INTEGER NOT NULL CHECK (billing_day BETWEEN 1 AND 31),
		monthly_rent TEXT NOT NULL,
		currency TEXT NOT NULL,
		lease_start TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		seq INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Dashboard hot path: active tenancies for one owner, in creation order
	CREATE INDEX IF NOT EXISTS idx_tenancies_owner_active
		ON tenancies(owner_id, active, seq);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		tenancy_id TEXT NOT NULL REFERENCES tenancies(id) ON DELETE CASCADE,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		reference_date TEXT NOT NULL,
		receipt_number TEXT NOT NULL UNIQUE,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	-- Paid-this-cycle lookups
	CREATE INDEX IF NOT EXISTS idx_payments_tenancy_date
		ON payments(tenancy_id, reference_date);

	CREATE TABLE IF NOT EXISTS alert_runs (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		run_date TEXT NOT NULL,
		status TEXT NOT NULL,
		overdue_count INTEGER NOT NULL DEFAULT 0,
		upcoming_count INTEGER NOT NULL DEFAULT 0,
		skipped_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(owner_id, run_date)
	);

	CREATE INDEX IF NOT EXISTS idx_alert_runs_status
		ON alert_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"payments", "tenancies", "owners", "alert_runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// OWNER STORE
// =============================================================================

// Owner is a property owner account.
type Owner struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// SaveOwner inserts or updates an owner.
func (s *Store) SaveOwner(ctx context.Context, o Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO owners (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email
	`

	_, err := s.db.ExecContext(ctx, query,
		o.ID, o.Name, nullString(o.Email),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetOwner retrieves an owner by ID. Returns rent.ErrOwnerNotFound if missing.
func (s *Store) GetOwner(ctx context.Context, id string) (*Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var o Owner
	var email sql.NullString
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM owners WHERE id = ?", id,
	).Scan(&o.ID, &o.Name, &email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", rent.ErrOwnerNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	o.Email = email.String
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &o, nil
}

// ListOwners returns all owners ordered by name.
func (s *Store) ListOwners(ctx context.Context) ([]Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, email, created_at FROM owners ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []Owner
	for rows.Next() {
		var o Owner
		var email sql.NullString
		var createdAt string
		if err := rows.Scan(&o.ID, &o.Name, &email, &createdAt); err != nil {
			return nil, err
		}
		o.Email = email.String
		o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

// DeleteOwner removes an owner and, by cascade, their tenancies and payments.
func (s *Store) DeleteOwner(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM owners WHERE id = ?", id)
	return err
}

// =============================================================================
// TENANCY STORE
// =============================================================================

const tenancyColumns = `id, owner_id, tenant_name, property_label, billing_day,
	monthly_rent, currency, lease_start, active`

// SaveTenancy inserts or updates a tenancy. The record is validated first.
// Updating a tenancy that belongs to a different owner fails with
// ErrTenancyOwnerConflict and leaves the stored row untouched.
func (s *Store) SaveTenancy(ctx context.Context, t rent.Tenancy) error {
	if err := rent.Validate(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO tenancies (` + tenancyColumns + `, seq, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM tenancies), ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_name = excluded.tenant_name,
			property_label = excluded.property_label,
			billing_day = excluded.billing_day,
			monthly_rent = excluded.monthly_rent,
			currency = excluded.currency,
			lease_start = excluded.lease_start,
			active = excluded.active,
			updated_at = excluded.updated_at
		WHERE tenancies.owner_id = excluded.owner_id
	`

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, query,
		string(t.ID), string(t.OwnerID), t.TenantName, t.PropertyLabel, t.BillingDay,
		t.MonthlyRent.Value.String(), currencyOrDefault(t.MonthlyRent.Currency),
		t.LeaseStart.String(), boolToInt(t.Active),
		now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("%w: %s", rent.ErrOwnerNotFound, t.OwnerID)
		}
		return err
	}

	// The update is skipped when the existing row has a different owner.
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTenancyOwnerConflict, t.ID)
	}
	return nil
}

// GetTenancy retrieves a tenancy by ID. Returns rent.ErrTenancyNotFound if missing.
func (s *Store) GetTenancy(ctx context.Context, id rent.TenancyID) (*rent.Tenancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+tenancyColumns+" FROM tenancies WHERE id = ?", string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", rent.ErrTenancyNotFound, id)
	}
	t, err := scanTenancy(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTenancies returns all of an owner's tenancies, active or not.
func (s *Store) ListTenancies(ctx context.Context, owner rent.OwnerID) ([]rent.Tenancy, error) {
	return s.queryTenancies(ctx,
		"SELECT "+tenancyColumns+" FROM tenancies WHERE owner_id = ? ORDER BY seq",
		string(owner))
}

// ListActiveTenancies implements rent.Source.
func (s *Store) ListActiveTenancies(ctx context.Context, owner rent.OwnerID) ([]rent.Tenancy, error) {
	return s.queryTenancies(ctx,
		"SELECT "+tenancyColumns+" FROM tenancies WHERE owner_id = ? AND active = 1 ORDER BY seq",
		string(owner))
}

// SetTenancyActive marks a tenancy active or ended.
func (s *Store) SetTenancyActive(ctx context.Context, id rent.TenancyID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE tenancies SET active = ?, updated_at = ? WHERE id = ?",
		boolToInt(active), time.Now().UTC().Format(time.RFC3339), string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", rent.ErrTenancyNotFound, id)
	}
	return nil
}

// DeleteTenancy removes a tenancy and its payments.
func (s *Store) DeleteTenancy(ctx context.Context, id rent.TenancyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM tenancies WHERE id = ?", string(id))
	return err
}

func (s *Store) queryTenancies(ctx context.Context, query string, args ...any) ([]rent.Tenancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rent.Tenancy
	for rows.Next() {
		t, err := scanTenancy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTenancy(rows *sql.Rows) (rent.Tenancy, error) {
	var t rent.Tenancy
	var id, owner, amount, currency, leaseStart string
	var active int

	if err := rows.Scan(&id, &owner, &t.TenantName, &t.PropertyLabel, &t.BillingDay,
		&amount, &currency, &leaseStart, &active); err != nil {
		return rent.Tenancy{}, err
	}

	t.ID = rent.TenancyID(id)
	t.OwnerID = rent.OwnerID(owner)
	t.Active = active == 1

	var err error
	if t.MonthlyRent, err = rent.ParseAmount(amount, currency); err != nil {
		return rent.Tenancy{}, fmt.Errorf("tenancy %s: %w", id, err)
	}
	if t.LeaseStart, err = rent.ParseDate(leaseStart); err != nil {
		return rent.Tenancy{}, fmt.Errorf("tenancy %s: %w", id, err)
	}
	return t, nil
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

const paymentColumns = `p.id, p.tenancy_id, p.amount, p.currency, p.reference_date,
	p.receipt_number, p.notes`

// SavePayment records a payment. Payments are immutable once written.
func (s *Store) SavePayment(ctx context.Context, p rent.PaymentRecord) error {
	if p.ReferenceDate.IsZero() {
		return fmt.Errorf("%w: payment reference date is required", rent.ErrInvalidDate)
	}
	if p.Amount.IsNegative() {
		return fmt.Errorf("%w: negative payment", rent.ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payments (id, tenancy_id, amount, currency, reference_date,
			receipt_number, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, string(p.TenancyID), p.Amount.Value.String(), currencyOrDefault(p.Amount.Currency),
		p.ReferenceDate.String(), p.ReceiptNumber, nullString(p.Notes),
		time.Now().UTC().Format(time.RFC3339),
	)
	switch {
	case err == nil:
		return nil
	case isUniqueConstraintError(err) && strings.Contains(err.Error(), "receipt_number"):
		return fmt.Errorf("%w: %s", ErrDuplicateReceipt, p.ReceiptNumber)
	case isUniqueConstraintError(err):
		return fmt.Errorf("%w: payment id %s", ErrDuplicatePayment, p.ID)
	case strings.Contains(err.Error(), "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %s", rent.ErrTenancyNotFound, p.TenancyID)
	}
	return err
}

// ListPayments returns a tenancy's payments, newest reference date first.
func (s *Store) ListPayments(ctx context.Context, tenancy rent.TenancyID) ([]rent.PaymentRecord, error) {
	return s.queryPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments p
		WHERE p.tenancy_id = ?
		ORDER BY p.reference_date DESC, p.created_at DESC
	`, string(tenancy))
}

// PaymentsSince implements rent.Source.
func (s *Store) PaymentsSince(ctx context.Context, owner rent.OwnerID, since rent.Date) ([]rent.PaymentRecord, error) {
	return s.queryPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments p
		JOIN tenancies t ON t.id = p.tenancy_id
		WHERE t.owner_id = ? AND p.reference_date >= ?
		ORDER BY p.reference_date
	`, string(owner), since.String())
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]rent.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rent.PaymentRecord
	for rows.Next() {
		var p rent.PaymentRecord
		var tenancyID, amount, currency, refDate string
		var notes sql.NullString
		if err := rows.Scan(&p.ID, &tenancyID, &amount, &currency, &refDate,
			&p.ReceiptNumber, &notes); err != nil {
			return nil, err
		}
		p.TenancyID = rent.TenancyID(tenancyID)
		p.Notes = notes.String
		if p.Amount, err = rent.ParseAmount(amount, currency); err != nil {
			return nil, fmt.Errorf("payment %s: %w", p.ID, err)
		}
		if p.ReferenceDate, err = rent.ParseDate(refDate); err != nil {
			return nil, fmt.Errorf("payment %s: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// ALERT RUN STORE
// =============================================================================

// AlertRun records one scheduled alert sweep for one owner and day.
type AlertRun struct {
	ID            string
	OwnerID       string
	RunDate       rent.Date
	Status        string // running, completed, failed
	OverdueCount  int
	UpcomingCount int
	SkippedCount  int
	Error         string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

// SaveAlertRun inserts or updates the run for (owner, run date).
func (s *Store) SaveAlertRun(ctx context.Context, r AlertRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO alert_runs (id, owner_id, run_date, status, overdue_count,
			upcoming_count, skipped_count, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, run_date) DO UPDATE SET
			status = excluded.status,
			overdue_count = excluded.overdue_count,
			upcoming_count = excluded.upcoming_count,
			skipped_count = excluded.skipped_count,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.OwnerID, r.RunDate.String(), r.Status,
		r.OverdueCount, r.UpcomingCount, r.SkippedCount, nullString(r.Error),
		formatTimePtr(r.StartedAt), formatTimePtr(r.CompletedAt),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetAlertRuns returns alert runs, newest first. An empty status returns all.
func (s *Store) GetAlertRuns(ctx context.Context, status string) ([]AlertRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, owner_id, run_date, status, overdue_count, upcoming_count,
			skipped_count, error, started_at, completed_at, created_at
		FROM alert_runs
	`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []AlertRun
	for rows.Next() {
		var r AlertRun
		var runDate, createdAt string
		var runErr, startedAt, completedAt sql.NullString
		if err := rows.Scan(
			&r.ID, &r.OwnerID, &runDate, &r.Status, &r.OverdueCount, &r.UpcomingCount,
			&r.SkippedCount, &runErr, &startedAt, &completedAt, &createdAt,
		); err != nil {
			return nil, err
		}

		r.RunDate, _ = rent.ParseDate(runDate)
		r.Error = runErr.String
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		r.StartedAt = parseTimePtr(startedAt)
		r.CompletedAt = parseTimePtr(completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// IsAlertRunComplete checks if an owner was already swept on the given day.
func (s *Store) IsAlertRunComplete(ctx context.Context, ownerID string, day rent.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM alert_runs
		WHERE owner_id = ? AND run_date = ? AND status = 'completed'
	`, ownerID, day.String()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func currencyOrDefault(c string) string {
	if c == "" {
		return rent.DefaultCurrency
	}
	return c
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
