/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the HTTP surface. These decouple the engine's types
  from the wire contract; amounts cross the wire as decimal strings so
  clients never see binary floating point.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/clinix/benefit-engine/entitlement"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EligibilityDTO is the outcome of an eligibility check.
type EligibilityDTO struct {
	EmpNo          string `json:"emp_no"`
	Date           string `json:"date"`
	Allowed        bool   `json:"allowed"`
	CycleNumber    int    `json:"cycle_number"`
	MonthLabel     string `json:"month_label"`
	Reason         string `json:"reason,omitempty"`
	ExistingSerial int64  `json:"existing_serial,omitempty"`
}

// LineItemDTO is one (name, amount) pair. Amount is a decimal string;
// empty or non-numeric values contribute zero.
type LineItemDTO struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// CommitVisitRequest is the body of POST /employees/{empNo}/visits.
type CommitVisitRequest struct {
	Category string        `json:"category"`
	Date     string        `json:"date"` // YYYY-MM-DD
	Items    []LineItemDTO `json:"items"`
}

// ReceiptDTO is returned on a successful commit. The PDF/QR renderer
// downstream turns the verification code into a printable slip.
type ReceiptDTO struct {
	SerialNumber     int64  `json:"serial_number"`
	VerificationCode string `json:"verification_code"`
	CycleNumber      int    `json:"cycle_number"`
	MonthLabel       string `json:"month_label"`
	TotalAmount      string `json:"total_amount"`
}

// BalanceDTO is the card/staff balance projection.
type BalanceDTO struct {
	EmpNo        string     `json:"emp_no"`
	EmployeeName string     `json:"employee_name,omitempty"`
	BookNumber   string     `json:"book_number,omitempty"`
	Limit        string     `json:"limit"`
	Spent        string     `json:"spent"`
	Remaining    string     `json:"remaining"`
	RecentVisits []VisitDTO `json:"recent_visits"`
}

// VisitDTO is a committed visit in API responses.
type VisitDTO struct {
	SerialNumber     int64         `json:"serial_number"`
	EmpNo            string        `json:"emp_no"`
	Category         string        `json:"category"`
	VisitedAt        string        `json:"visited_at"`
	Items            []LineItemDTO `json:"items"`
	TotalAmount      string        `json:"total_amount"`
	CycleNumber      int           `json:"cycle_number"`
	MonthLabel       string        `json:"month_label"`
	VerificationCode string        `json:"verification_code,omitempty"`
}

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	EmpNo       string `json:"emp_no"`
	Name        string `json:"name"`
	BookNumber  string `json:"book_number,omitempty"`
	PatientType string `json:"patient_type,omitempty"`
	NationalID  string `json:"national_id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the registration-surface request body.
type CreateEmployeeRequest struct {
	EmpNo       string `json:"emp_no"`
	Name        string `json:"name"`
	BookNumber  string `json:"book_number"`
	PatientType string `json:"patient_type"`
	NationalID  string `json:"national_id"`
}

// SetPolicyRequest sets an employee's annual limit (card issuance).
type SetPolicyRequest struct {
	AnnualLimit string `json:"annual_limit"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toVisitDTO(v entitlement.Visit) VisitDTO {
	items := make([]LineItemDTO, len(v.Items))
	for i, it := range v.Items {
		items[i] = LineItemDTO{Name: it.Name, Amount: it.Amount.String()}
	}
	return VisitDTO{
		SerialNumber:     v.SerialNumber,
		EmpNo:            v.EmpNo,
		Category:         string(v.Category),
		VisitedAt:        v.VisitedAt.Format(time.RFC3339),
		Items:            items,
		TotalAmount:      v.TotalAmount.String(),
		CycleNumber:      v.CycleNumber,
		MonthLabel:       v.MonthLabel,
		VerificationCode: v.VerificationCode,
	}
}

func toVisitDTOs(visits []entitlement.Visit) []VisitDTO {
	dtos := make([]VisitDTO, len(visits))
	for i, v := range visits {
		dtos[i] = toVisitDTO(v)
	}
	return dtos
}

func toEmployeeDTO(emp entitlement.Employee) EmployeeDTO {
	return EmployeeDTO{
		EmpNo:       emp.EmpNo,
		Name:        emp.Name,
		BookNumber:  emp.BookNumber,
		PatientType: emp.PatientType,
		NationalID:  emp.NationalID,
		CreatedAt:   emp.CreatedAt.Format(time.RFC3339),
	}
}
