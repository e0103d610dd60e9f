package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mybank/loan-engine/internal/domain"
	"github.com/mybank/loan-engine/internal/service"
	customError "github.com/mybank/loan-engine/pkg/errors"
	"github.com/mybank/loan-engine/pkg/response"
)

type LoanHandler struct {
	service   *service.LoanService
	validator *validator.Validate
}

func NewLoanHandler(service *service.LoanService) *LoanHandler {
	return &LoanHandler{
		service:   service,
		validator: validator.New(),
	}
}

// CreateLoan handles POST /api/v1/loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	result, err := h.service.CreateLoan(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, result)
}

// GetLoan handles GET /api/v1/loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	loan, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, loan)
}

// ListLoans handles GET /api/v1/loans
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, loans)
}

// EditLoan handles PATCH /api/v1/loans/{loanId}
func (h *LoanHandler) EditLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	var req domain.EditLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	version, err := h.service.EditLoan(r.Context(), loanID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, version)
}

// GetSchedule handles GET /api/v1/loans/{loanId}/schedule
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	schedule, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, schedule)
}

// GetCurrentVersion handles GET /api/v1/loans/{loanId}/versions/current
func (h *LoanHandler) GetCurrentVersion(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	version, err := h.service.GetCurrent(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, version)
}

// GetVersion handles GET /api/v1/loans/{loanId}/versions/{versionNumber}
func (h *LoanHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	versionNumber, err := strconv.Atoi(vars["versionNumber"])
	if err != nil || versionNumber < 1 {
		response.BadRequest(w, "Invalid version number", err)
		return
	}
	version, err := h.service.GetVersion(r.Context(), loanID, versionNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, version)
}

// ListVersions handles GET /api/v1/loans/{loanId}/versions
func (h *LoanHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	versions, err := h.service.ListVersions(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, versions)
}

// AddCharge handles POST /api/v1/loans/{loanId}/charges
func (h *LoanHandler) AddCharge(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	var req domain.ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}
	version, err := h.service.AddCharge(r.Context(), loanID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, version)
}

// AddDisbursementPhase handles POST /api/v1/loans/{loanId}/phases
func (h *LoanHandler) AddDisbursementPhase(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	var req domain.DisbursementPhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}
	version, err := h.service.AddDisbursementPhase(r.Context(), loanID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, version)
}

// UpdateDisbursementPhase handles PUT /api/v1/loans/{loanId}/phases/{sequence}
func (h *LoanHandler) UpdateDisbursementPhase(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	sequence, err := strconv.Atoi(vars["sequence"])
	if err != nil || sequence < 1 {
		response.BadRequest(w, "Invalid phase sequence", err)
		return
	}
	var req domain.DisbursementPhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	req.Sequence = sequence
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}
	version, err := h.service.UpdateDisbursementPhase(r.Context(), loanID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, version)
}

// AddMoratorium handles POST /api/v1/loans/{loanId}/moratoriums
func (h *LoanHandler) AddMoratorium(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	var req domain.MoratoriumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}
	version, err := h.service.AddMoratorium(r.Context(), loanID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, version)
}

// RecordPrepayment handles POST /api/v1/loans/{loanId}/prepayments
func (h *LoanHandler) RecordPrepayment(w http.ResponseWriter, r *http.Request) {
	loanID, ok := h.loanID(w, r)
	if !ok {
		return
	}
	var req domain.PrepaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}
	version, err := h.service.RecordPrepayment(r.Context(), loanID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, version)
}

func (h *LoanHandler) loanID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	vars := mux.Vars(r)
	loanID, err := uuid.Parse(vars["loanId"])
	if err != nil {
		response.BadRequest(w, "Invalid loan ID", err)
		return uuid.Nil, false
	}
	return loanID, true
}

// writeError maps business error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := customError.Code(err)
	switch code {
	case customError.ErrCodeValidation:
		response.ErrorWithCode(w, http.StatusBadRequest, code, err.Error(), nil)
	case customError.ErrCodeNotFound:
		response.ErrorWithCode(w, http.StatusNotFound, code, err.Error(), nil)
	case customError.ErrCodeConflict:
		response.ErrorWithCode(w, http.StatusConflict, code, err.Error(), nil)
	case customError.ErrCodeComputationInvariant:
		response.ErrorWithCode(w, http.StatusInternalServerError, code, err.Error(), nil)
	default:
		response.InternalServerError(w, "Internal server error", err)
	}
}
