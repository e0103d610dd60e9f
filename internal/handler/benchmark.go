package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/mybank/loan-engine/internal/domain"
	"github.com/mybank/loan-engine/internal/service"
	"github.com/mybank/loan-engine/pkg/response"
)

type BenchmarkHandler struct {
	service   *service.BenchmarkService
	validator *validator.Validate
}

func NewBenchmarkHandler(service *service.BenchmarkService) *BenchmarkHandler {
	return &BenchmarkHandler{
		service:   service,
		validator: validator.New(),
	}
}

// AddRate handles POST /api/v1/benchmarks/{name}/rates. The response carries
// the per-loan fan-out outcomes alongside the updated history.
func (h *BenchmarkHandler) AddRate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req domain.AddBenchmarkRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	result, err := h.service.AddRate(r.Context(), name, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, result)
}

// CurrentRate handles GET /api/v1/benchmarks/{name}/rates/current with an
// optional as_of=YYYY-MM-DD query parameter, defaulting to today.
func (h *BenchmarkHandler) CurrentRate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.BadRequest(w, "Invalid as_of date, expected YYYY-MM-DD", err)
			return
		}
		asOf = parsed
	}

	rate, err := h.service.CurrentRate(r.Context(), name, asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, rate)
}

// History handles GET /api/v1/benchmarks/{name}/rates
func (h *BenchmarkHandler) History(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	benchmark, err := h.service.History(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, benchmark)
}

// ListNames handles GET /api/v1/benchmarks
func (h *BenchmarkHandler) ListNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.Names(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, names)
}
