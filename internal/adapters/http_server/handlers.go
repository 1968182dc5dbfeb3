package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"oryem_comparables/internal/adapters/observability"
	"oryem_comparables/internal/app"
	"oryem_comparables/internal/domain"
)

type Handlers struct {
	Search    *app.SearchService
	Selection *app.SelectionService
	QuickAdd  *app.QuickAddService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1/projects/{projectID}/comparables", func(r chi.Router) {
		r.Get("/search", h.search)
		r.Get("/selected", h.listSelected)
		r.Post("/select", h.selectComparable)
		r.Delete("/select/{comparableID}", h.deselect)
		r.Put("/select/{comparableID}/adjustment", h.setAdjustment)
		r.Patch("/select/{comparableID}/fields", h.editFields)
		r.Post("/validate", h.validate)
		r.Post("/quick-add", h.quickAdd)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidFilter):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	case errors.Is(err, domain.ErrLimitExceeded):
		observability.ObserveSelection("limit_exceeded")
		writeProblem(w, http.StatusConflict, "Selection Limit Exceeded", err.Error())
	case errors.Is(err, domain.ErrGeocodeFailed):
		writeProblem(w, http.StatusUnprocessableEntity, "Geocoding Failed", err.Error())
	case errors.Is(err, domain.ErrEmptySelection):
		writeProblem(w, http.StatusBadRequest, "Empty Selection", err.Error())
	default:
		log.Error().Err(err).Msg("internal error")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func floatQ(r *http.Request, name string) (*float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func intQ(r *http.Request, name string) (*int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectID")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "projectID must be a positive number")
		return
	}

	f := app.DefaultFilters()
	var err error
	if f.SurfaceMin, err = floatQ(r, "surface_min"); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Filter", "surface_min must be a number")
		return
	}
	if f.SurfaceMax, err = floatQ(r, "surface_max"); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Filter", "surface_max must be a number")
		return
	}
	if f.YearMin, err = intQ(r, "year_min"); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Filter", "year_min must be an integer")
		return
	}
	if f.YearMax, err = intQ(r, "year_max"); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Filter", "year_max must be an integer")
		return
	}
	if radius, err := floatQ(r, "radius_km"); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Filter", "radius_km must be a number")
		return
	} else if radius != nil {
		f.RadiusKm = *radius
	}
	if v := r.URL.Query().Get("source"); v != "" {
		f.Provenance = v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		f.Status = v
	}

	res, err := h.Search.Search(r.Context(), projectID, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *Handlers) listSelected(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectID")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "projectID must be a positive number")
		return
	}
	rows, err := h.Selection.ListSelected(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.SelectedComparable{}
	}
	writeJSON(w, r, http.StatusOK, rows)
}

type selectRequest struct {
	PoolEntryID int64   `json:"pool_entry_id"`
	Adjustment  float64 `json:"adjustment"`
	Notes       *string `json:"notes"`
}

func (h *Handlers) selectComparable(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectID")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "projectID must be a positive number")
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PoolEntryID <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "pool_entry_id is required")
		return
	}
	sc, err := h.Selection.Select(r.Context(), projectID, req.PoolEntryID, req.Adjustment, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	observability.ObserveSelection("select")
	writeJSON(w, r, http.StatusCreated, sc)
}

func (h *Handlers) deselect(w http.ResponseWriter, r *http.Request) {
	projectID, ok1 := pathID(r, "projectID")
	comparableID, ok2 := pathID(r, "comparableID")
	if !ok1 || !ok2 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "ids must be positive numbers")
		return
	}
	if err := h.Selection.Deselect(r.Context(), projectID, comparableID); err != nil {
		writeError(w, err)
		return
	}
	observability.ObserveSelection("deselect")
	w.WriteHeader(http.StatusNoContent)
}

type adjustmentRequest struct {
	Adjustment float64 `json:"adjustment"`
}

func (h *Handlers) setAdjustment(w http.ResponseWriter, r *http.Request) {
	projectID, ok1 := pathID(r, "projectID")
	comparableID, ok2 := pathID(r, "comparableID")
	if !ok1 || !ok2 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "ids must be positive numbers")
		return
	}
	var req adjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "adjustment must be a number")
		return
	}
	sc, err := h.Selection.SetAdjustment(r.Context(), projectID, comparableID, req.Adjustment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sc)
}

type fieldsRequest struct {
	Surface          *float64 `json:"surface"`
	Price            *float64 `json:"price"`
	PricePerM2       *float64 `json:"price_per_m2"`
	ConstructionYear *int     `json:"construction_year"`
}

func (h *Handlers) editFields(w http.ResponseWriter, r *http.Request) {
	projectID, ok1 := pathID(r, "projectID")
	comparableID, ok2 := pathID(r, "comparableID")
	if !ok1 || !ok2 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "ids must be positive numbers")
		return
	}
	var req fieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed field patch")
		return
	}
	sc, err := h.Selection.EditFields(r.Context(), projectID, comparableID, app.FieldPatch{
		Surface:          req.Surface,
		Price:            req.Price,
		PricePerM2:       req.PricePerM2,
		ConstructionYear: req.ConstructionYear,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sc)
}

type validateResponse struct {
	Validated int `json:"validated_count"`
}

func (h *Handlers) validate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectID")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "projectID must be a positive number")
		return
	}
	n, err := h.Selection.Validate(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, validateResponse{Validated: n})
}

type quickAddRequest struct {
	Address          string  `json:"address"`
	Surface          float64 `json:"surface"`
	Price            float64 `json:"price"`
	ConstructionYear *int    `json:"construction_year"`
}

func (h *Handlers) quickAdd(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectID")
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "projectID must be a positive number")
		return
	}
	var req quickAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed quick-add payload")
		return
	}
	entry, err := h.QuickAdd.QuickAdd(r.Context(), projectID, app.QuickAddInput{
		Address:          req.Address,
		Surface:          req.Surface,
		Price:            req.Price,
		ConstructionYear: req.ConstructionYear,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, entry)
}
