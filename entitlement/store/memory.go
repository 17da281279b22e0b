// Package store provides an in-memory VisitStore for tests and dev.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinix/benefit-engine/entitlement"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements entitlement.VisitStore, EmployeeDirectory and
// PolicyProvider. It enforces the same (emp_no, month_label, cycle_number)
// uniqueness the SQLite store enforces with its unique index, so engine
// tests exercise identical semantics.
type Memory struct {
	mu         sync.Mutex
	nextSerial int64
	visits     []entitlement.Visit
	cycles     map[cycleKey]int64 // occupied tuple -> serial
	byCode     map[string]int     // verification code -> index into visits
	employees  map[string]entitlement.Employee
	policies   map[string]entitlement.Policy
}

type cycleKey struct {
	EmpNo       string
	MonthLabel  string
	CycleNumber int
}

func NewMemory() *Memory {
	return &Memory{
		nextSerial: 1,
		cycles:     make(map[cycleKey]int64),
		byCode:     make(map[string]int),
		employees:  make(map[string]entitlement.Employee),
		policies:   make(map[string]entitlement.Policy),
	}
}

// InsertVisit assigns the next serial number and stores the visit.
// The cycle tuple check and the insert happen under one lock, mirroring
// the database constraint's atomicity.
func (m *Memory) InsertVisit(_ context.Context, v entitlement.Visit) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := cycleKey{EmpNo: v.EmpNo, MonthLabel: v.MonthLabel, CycleNumber: v.CycleNumber}
	if serial, taken := m.cycles[k]; taken {
		return 0, fmt.Errorf("visit %d occupies %s/%d for %s: %w",
			serial, v.MonthLabel, v.CycleNumber, v.EmpNo, entitlement.ErrCycleConsumed)
	}

	v.SerialNumber = m.nextSerial
	m.nextSerial++
	v.CreatedAt = time.Now().UTC()

	m.visits = append(m.visits, v)
	m.cycles[k] = v.SerialNumber
	m.byCode[v.VerificationCode] = len(m.visits) - 1
	return v.SerialNumber, nil
}

func (m *Memory) FindByCycle(_ context.Context, empNo, monthLabel string, cycleNumber int) (*entitlement.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	serial, taken := m.cycles[cycleKey{EmpNo: empNo, MonthLabel: monthLabel, CycleNumber: cycleNumber}]
	if !taken {
		return nil, nil
	}
	for i := range m.visits {
		if m.visits[i].SerialNumber == serial {
			v := m.visits[i]
			return &v, nil
		}
	}
	return nil, nil
}

func (m *Memory) SpentTotal(_ context.Context, empNo string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	for i := range m.visits {
		if m.visits[i].EmpNo == empNo {
			total = total.Add(m.visits[i].TotalAmount)
		}
	}
	return total, nil
}

func (m *Memory) RecentVisits(_ context.Context, empNo string, limit int) ([]entitlement.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []entitlement.Visit
	for i := range m.visits {
		if m.visits[i].EmpNo == empNo {
			result = append(result, m.visits[i])
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].VisitedAt.Equal(result[j].VisitedAt) {
			return result[i].VisitedAt.After(result[j].VisitedAt)
		}
		return result[i].SerialNumber > result[j].SerialNumber
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *Memory) FindByVerificationCode(_ context.Context, code string) (*entitlement.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byCode[code]
	if !ok {
		return nil, entitlement.ErrVisitNotFound
	}
	v := m.visits[i]
	return &v, nil
}

// =============================================================================
// COLLABORATOR LOOKUPS (employees, policies)
// =============================================================================

func (m *Memory) PutEmployee(emp entitlement.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.EmpNo] = emp
}

func (m *Memory) GetEmployee(_ context.Context, empNo string) (*entitlement.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	emp, ok := m.employees[empNo]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (m *Memory) PutPolicy(p entitlement.Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.EmpNo] = p
}

func (m *Memory) GetPolicy(_ context.Context, empNo string) (*entitlement.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.policies[empNo]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
