/*
handlers.go - HTTP handlers for the entitlement engine

PURPOSE:
  Translates HTTP requests into engine calls and typed engine errors into
  HTTP statuses. No entitlement decision lives here: handlers parse,
  delegate, and render.

ERROR MAPPING:
  ValidationError              -> 400 with the violated field
  CycleExhaustedError          -> 409 "cycle already consumed"
  ConflictError                -> 409, same body as cycle exhausted
                                  (the caller cannot tell which path
                                  rejected it, by design)
  ErrEmployeeNotFound/Visit    -> 404
  anything else                -> 500

SEE ALSO:
  - server.go: Route wiring
  - dto.go: Wire types
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinix/benefit-engine/entitlement"
	"github.com/clinix/benefit-engine/store/sqlite"
)

// Handler holds the engine components and their shared store.
type Handler struct {
	store       *sqlite.Store
	gate        *entitlement.Gate
	ledger      *entitlement.Ledger
	coordinator *entitlement.Coordinator
	projector   *entitlement.Projector
	log         zerolog.Logger
}

// NewHandler wires the engine on top of a SQLite store.
func NewHandler(store *sqlite.Store, log zerolog.Logger) *Handler {
	gate := entitlement.NewGate(store)
	ledger := entitlement.NewLedger(store, store)
	return &Handler{
		store:       store,
		gate:        gate,
		ledger:      ledger,
		coordinator: entitlement.NewCoordinator(store, gate, log),
		projector:   entitlement.NewProjector(ledger, store, store),
		log:         log,
	}
}

// =============================================================================
// ENGINE ENDPOINTS
// =============================================================================

// CheckEligibility handles GET /api/employees/{empNo}/eligibility?date=YYYY-MM-DD.
// Pure read; checking never reserves the cycle.
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	empNo := chi.URLParam(r, "empNo")
	date, ok := parseDateParam(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	decision, err := h.gate.Check(r.Context(), empNo, date)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, EligibilityDTO{
		EmpNo:          empNo,
		Date:           date.Format("2006-01-02"),
		Allowed:        decision.Allowed,
		CycleNumber:    decision.Cycle.Number,
		MonthLabel:     decision.Cycle.MonthLabel,
		Reason:         decision.Reason,
		ExistingSerial: decision.ExistingSerial,
	})
}

// CommitVisit handles POST /api/employees/{empNo}/visits.
func (h *Handler) CommitVisit(w http.ResponseWriter, r *http.Request) {
	empNo := chi.URLParam(r, "empNo")

	var req CommitVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Code: "validation"})
		return
	}
	date, ok := parseDateParam(w, req.Date)
	if !ok {
		return
	}

	items := make([]entitlement.LineItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = entitlement.LineItemInput{Name: it.Name, Amount: it.Amount}
	}

	receipt, err := h.coordinator.Commit(r.Context(), entitlement.CommitRequest{
		EmpNo:    empNo,
		Category: req.Category,
		Items:    items,
		Date:     date,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	visitCommits.Inc()
	writeJSON(w, http.StatusCreated, ReceiptDTO{
		SerialNumber:     receipt.SerialNumber,
		VerificationCode: receipt.VerificationCode,
		CycleNumber:      receipt.Cycle.Number,
		MonthLabel:       receipt.Cycle.MonthLabel,
		TotalAmount:      receipt.TotalAmount,
	})
}

// GetBalance handles GET /api/employees/{empNo}/balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	empNo := chi.URLParam(r, "empNo")

	proj, err := h.projector.Project(r.Context(), empNo, entitlement.MaxRecentVisits)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dto := BalanceDTO{
		EmpNo:        proj.EmpNo,
		Limit:        proj.Balance.Limit.String(),
		Spent:        proj.Balance.Spent.String(),
		Remaining:    proj.Balance.Remaining.String(),
		RecentVisits: toVisitDTOs(proj.RecentVisits),
	}
	if proj.Employee != nil {
		dto.EmployeeName = proj.Employee.Name
		dto.BookNumber = proj.Employee.BookNumber
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetRecentVisits handles GET /api/employees/{empNo}/visits?limit=N.
func (h *Handler) GetRecentVisits(w http.ResponseWriter, r *http.Request) {
	empNo := chi.URLParam(r, "empNo")

	limit := entitlement.MaxRecentVisits
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Code: "validation", Field: "limit"})
			return
		}
		if n < limit {
			limit = n
		}
	}

	visits, err := h.store.RecentVisits(r.Context(), empNo, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitDTOs(visits))
}

// VerifyCode handles GET /api/visits/verify/{code} for the card-scanning
// surface: a scanned code resolves to its committed visit.
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	visit, err := h.store.FindByVerificationCode(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVisitDTO(*visit))
}

// =============================================================================
// COLLABORATOR GLUE (registration, card issuance)
// =============================================================================

// CreateEmployee handles POST /api/employees.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Code: "validation"})
		return
	}
	if req.EmpNo == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "emp_no and name are required", Code: "validation"})
		return
	}

	emp := entitlement.Employee{
		EmpNo:       req.EmpNo,
		Name:        req.Name,
		BookNumber:  req.BookNumber,
		PatientType: req.PatientType,
		NationalID:  req.NationalID,
	}
	if err := h.store.SaveEmployee(r.Context(), emp); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// ListEmployees handles GET /api/employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.store.ListEmployees(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, emp := range employees {
		dtos[i] = toEmployeeDTO(emp)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee handles GET /api/employees/{empNo}.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	empNo := chi.URLParam(r, "empNo")

	emp, err := h.store.GetEmployee(r.Context(), empNo)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if emp == nil {
		h.writeError(w, entitlement.ErrEmployeeNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// SetPolicy handles PUT /api/employees/{empNo}/policy.
func (h *Handler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	empNo := chi.URLParam(r, "empNo")

	var req SetPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Code: "validation"})
		return
	}
	limit, err := decimal.NewFromString(req.AnnualLimit)
	if err != nil || limit.IsNegative() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "annual_limit must be a non-negative decimal", Code: "validation", Field: "annual_limit"})
		return
	}

	if err := h.store.SetPolicy(r.Context(), entitlement.Policy{EmpNo: empNo, AnnualLimit: limit}); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"emp_no": empNo, "annual_limit": limit.String()})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDateParam(w http.ResponseWriter, raw string) (time.Time, bool) {
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "date is required (YYYY-MM-DD)", Code: "validation", Field: "date"})
		return time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "date must be YYYY-MM-DD", Code: "validation", Field: "date"})
		return time.Time{}, false
	}
	return date, true
}

// writeError maps typed engine errors to HTTP statuses. Cycle exhaustion and
// concurrent conflict share one caller-visible body; only logs and metrics
// distinguish them.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validation *entitlement.ValidationError
	if errors.As(err, &validation) {
		validationRejections.Inc()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: validation.Message,
			Code:  "validation",
			Field: validation.Field,
		})
		return
	}

	if errors.Is(err, entitlement.ErrCycleConsumed) {
		var conflict *entitlement.ConflictError
		if errors.As(err, &conflict) {
			commitConflicts.Inc()
		} else {
			cycleRejections.Inc()
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "cycle already consumed",
			Code:  "cycle_exhausted",
		})
		return
	}

	if entitlement.IsNotFound(err) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
		return
	}

	h.log.Error().Err(err).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
