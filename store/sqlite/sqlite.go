/*
Package sqlite provides the SQLite-backed visit-record store.

PURPOSE:
  Implements entitlement.VisitStore, EmployeeDirectory and PolicyProvider
  on SQLite. The same patterns apply to PostgreSQL - only minor dialect
  differences.

THE INVARIANT LIVES HERE:
  idx_unique_cycle_consumption on (emp_no, month_label, cycle_number) is
  the authoritative one-visit-per-cycle guarantee. The eligibility gate's
  read is only an optimistic fast path; when two commits race, this index
  decides the winner and the loser's insert maps to ErrCycleConsumed.

VISITS ARE APPEND-ONLY:
  No UPDATE or DELETE statements touch the visits table. Serial numbers
  come from SQLite's AUTOINCREMENT rowid, which is monotonic and never
  reused, matching the commit contract.

AMOUNTS:
  Stored as decimal strings and summed with shopspring/decimal in Go.
  SpentTotal is a single scan over one indexed query - no business logic
  replay, so every balance reader computes the same number.

WAL MODE:
  Opened with WAL for better read concurrency and crash recovery.

USAGE:
  store, err := sqlite.New("./data/clinic.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - entitlement/store.go: Interface contracts
  - entitlement/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/clinix/benefit-engine/entitlement"
)

// Store implements the engine's storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: a ":memory:" database exists per connection, and the
	// store serializes access through its own mutex anyway.
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

func (s *Store) migrate() error {
	schema := `
	-- Committed treatment visits (append-only)
	CREATE TABLE IF NOT EXISTS visits (
		serial_number INTEGER PRIMARY KEY AUTOINCREMENT,
		emp_no TEXT NOT NULL,
		category TEXT NOT NULL,
		visited_at TEXT NOT NULL,
		items_json TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		cycle_number INTEGER NOT NULL,
		month_label TEXT NOT NULL,
		verification_code TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one committed visit per half-month window.
	-- Two concurrent commits for the same tuple resolve here: the loser's
	-- insert fails and surfaces as "cycle already consumed".
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_cycle_consumption
		ON visits(emp_no, month_label, cycle_number);

	-- Balance aggregation and recent-visit reads (hot paths)
	CREATE INDEX IF NOT EXISTS idx_visits_emp
		ON visits(emp_no);
	CREATE INDEX IF NOT EXISTS idx_visits_emp_visited
		ON visits(emp_no, visited_at DESC);

	-- Employees (registration surface writes, engine reads)
	CREATE TABLE IF NOT EXISTS employees (
		emp_no TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		book_number TEXT,
		patient_type TEXT,
		national_id TEXT,
		created_at TEXT NOT NULL
	);

	-- Entitlement policies (card-issuance surface writes)
	CREATE TABLE IF NOT EXISTS policies (
		emp_no TEXT PRIMARY KEY,
		annual_limit TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// VISIT STORE (entitlement.VisitStore interface)
// =============================================================================

// InsertVisit persists a committed visit and returns its serial number.
// A violation of idx_unique_cycle_consumption maps to ErrCycleConsumed.
func (s *Store) InsertVisit(ctx context.Context, v entitlement.Visit) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	itemsJSON, err := json.Marshal(itemRecords(v.Items))
	if err != nil {
		return 0, fmt.Errorf("failed to encode line items: %w", err)
	}

	query := `
		INSERT INTO visits
		(emp_no, category, visited_at, items_json, total_amount,
		 cycle_number, month_label, verification_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		v.EmpNo,
		string(v.Category),
		v.VisitedAt.UTC().Format(time.RFC3339),
		string(itemsJSON),
		v.TotalAmount.String(),
		v.CycleNumber,
		v.MonthLabel,
		v.VerificationCode,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isCycleUniquenessError(err) {
			return 0, fmt.Errorf("%s %s/%d: %w",
				v.EmpNo, v.MonthLabel, v.CycleNumber, entitlement.ErrCycleConsumed)
		}
		return 0, fmt.Errorf("failed to insert visit: %w", err)
	}

	serial, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read assigned serial: %w", err)
	}
	return serial, nil
}

// FindByCycle returns the visit occupying the tuple, or nil.
func (s *Store) FindByCycle(ctx context.Context, empNo, monthLabel string, cycleNumber int) (*entitlement.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := visitColumns + `
		FROM visits
		WHERE emp_no = ? AND month_label = ? AND cycle_number = ?
	`

	visits, err := s.queryVisits(ctx, query, empNo, monthLabel, cycleNumber)
	if err != nil {
		return nil, err
	}
	if len(visits) == 0 {
		return nil, nil
	}
	return &visits[0], nil
}

// SpentTotal sums committed visit totals for an employee. One indexed query;
// the decimal sum happens in Go so no precision is lost to REAL casts.
func (s *Store) SpentTotal(ctx context.Context, empNo string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT total_amount FROM visits WHERE emp_no = ?", empNo)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query spent total: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt amount %q for %s: %w", raw, empNo, err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

// RecentVisits returns up to limit visits, newest visit timestamp first.
func (s *Store) RecentVisits(ctx context.Context, empNo string, limit int) ([]entitlement.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := visitColumns + `
		FROM visits
		WHERE emp_no = ?
		ORDER BY visited_at DESC, serial_number DESC
		LIMIT ?
	`

	return s.queryVisits(ctx, query, empNo, limit)
}

// FindByVerificationCode resolves a scanned code to its visit.
func (s *Store) FindByVerificationCode(ctx context.Context, code string) (*entitlement.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := visitColumns + `
		FROM visits
		WHERE verification_code = ?
	`

	visits, err := s.queryVisits(ctx, query, code)
	if err != nil {
		return nil, err
	}
	if len(visits) == 0 {
		return nil, entitlement.ErrVisitNotFound
	}
	return &visits[0], nil
}

const visitColumns = `
	SELECT serial_number, emp_no, category, visited_at, items_json,
	       total_amount, cycle_number, month_label, verification_code, created_at
`

func (s *Store) queryVisits(ctx context.Context, query string, args ...any) ([]entitlement.Visit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []entitlement.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func scanVisit(rows *sql.Rows) (entitlement.Visit, error) {
	var (
		v           entitlement.Visit
		category    string
		visitedAt   string
		itemsJSON   string
		totalAmount string
		createdAt   string
	)

	err := rows.Scan(
		&v.SerialNumber, &v.EmpNo, &category, &visitedAt, &itemsJSON,
		&totalAmount, &v.CycleNumber, &v.MonthLabel, &v.VerificationCode, &createdAt,
	)
	if err != nil {
		return v, fmt.Errorf("failed to scan visit: %w", err)
	}

	v.Category = entitlement.Category(category)
	v.VisitedAt, _ = time.Parse(time.RFC3339, visitedAt)
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	v.TotalAmount, err = decimal.NewFromString(totalAmount)
	if err != nil {
		return v, fmt.Errorf("corrupt total amount %q on visit %d: %w", totalAmount, v.SerialNumber, err)
	}

	var records []itemRecord
	if err := json.Unmarshal([]byte(itemsJSON), &records); err != nil {
		return v, fmt.Errorf("corrupt line items on visit %d: %w", v.SerialNumber, err)
	}
	v.Items = make([]entitlement.LineItem, len(records))
	for i, r := range records {
		v.Items[i] = entitlement.LineItem{Name: r.Name, Amount: entitlement.AmountOrZero(r.Amount)}
	}
	return v, nil
}

// itemRecord is the JSON shape line items are stored as.
type itemRecord struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

func itemRecords(items []entitlement.LineItem) []itemRecord {
	records := make([]itemRecord, len(items))
	for i, it := range items {
		records[i] = itemRecord{Name: it.Name, Amount: it.Amount.String()}
	}
	return records
}

// =============================================================================
// EMPLOYEE DIRECTORY (entitlement.EmployeeDirectory interface)
// =============================================================================

// SaveEmployee upserts an employee record. Registration-surface glue.
func (s *Store) SaveEmployee(ctx context.Context, emp entitlement.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (emp_no, name, book_number, patient_type, national_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(emp_no) DO UPDATE SET
			name = excluded.name,
			book_number = excluded.book_number,
			patient_type = excluded.patient_type,
			national_id = excluded.national_id
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.EmpNo, emp.Name, emp.BookNumber, emp.PatientType, emp.NationalID,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetEmployee retrieves an employee, nil when unknown.
func (s *Store) GetEmployee(ctx context.Context, empNo string) (*entitlement.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		emp       entitlement.Employee
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT emp_no, name, book_number, patient_type, national_id, created_at FROM employees WHERE emp_no = ?",
		empNo,
	).Scan(&emp.EmpNo, &emp.Name, &emp.BookNumber, &emp.PatientType, &emp.NationalID, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

// ListEmployees returns all employees, ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]entitlement.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT emp_no, name, book_number, patient_type, national_id, created_at FROM employees ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []entitlement.Employee
	for rows.Next() {
		var (
			emp       entitlement.Employee
			createdAt string
		)
		if err := rows.Scan(&emp.EmpNo, &emp.Name, &emp.BookNumber, &emp.PatientType, &emp.NationalID, &createdAt); err != nil {
			return nil, err
		}
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// POLICY PROVIDER (entitlement.PolicyProvider interface)
// =============================================================================

// SetPolicy upserts the annual limit for an employee. Card-issuance glue.
func (s *Store) SetPolicy(ctx context.Context, p entitlement.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO policies (emp_no, annual_limit, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(emp_no) DO UPDATE SET
			annual_limit = excluded.annual_limit,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		p.EmpNo, p.AnnualLimit.String(), time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetPolicy retrieves the configured policy, nil when unset (the ledger
// falls back to the system default).
func (s *Store) GetPolicy(ctx context.Context, empNo string) (*entitlement.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p         entitlement.Policy
		limit     string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT emp_no, annual_limit, updated_at FROM policies WHERE emp_no = ?",
		empNo,
	).Scan(&p.EmpNo, &limit, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.AnnualLimit, err = decimal.NewFromString(limit)
	if err != nil {
		return nil, fmt.Errorf("corrupt annual limit %q for %s: %w", limit, empNo, err)
	}
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isCycleUniquenessError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "idx_unique_cycle_consumption") ||
		(strings.Contains(msg, "UNIQUE constraint failed") &&
			strings.Contains(msg, "visits.emp_no"))
}
