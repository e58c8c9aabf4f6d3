/*
dto.go - Request/response shapes for the HTTP API

PURPOSE:
  JSON transfer types and the shared response helpers. Project rows
  cross the wire as objects keyed by the sheet's column names; the
  list endpoint trims each row down to the dashboard columns.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/siteops/sheetsync/engine"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ProjectSummaryDTO is one row in the project list.
type ProjectSummaryDTO struct {
	Code        string `json:"code"`
	Company     string `json:"company"`
	Owner       string `json:"owner"`
	Client      string `json:"client"`
	Address     string `json:"address"`
	WorkStart   string `json:"work_start"`
	WorkEnd     string `json:"work_end"`
	Amount      string `json:"amount"`
	Outstanding string `json:"outstanding"`
}

func toProjectSummary(row engine.Row) ProjectSummaryDTO {
	return ProjectSummaryDTO{
		Code:        row.Code(),
		Company:     row.Get(engine.ColCompany),
		Owner:       row.Get(engine.ColOwner),
		Client:      row.Get(engine.ColClient),
		Address:     row.Get(engine.ColAddress),
		WorkStart:   row.Get(engine.ColWorkStart),
		WorkEnd:     row.Get(engine.ColWorkEnd),
		Amount:      row.Get(engine.ColAmount2),
		Outstanding: row.Get(engine.ColOutstanding),
	}
}

// ProjectListDTO wraps the list with snapshot provenance.
type ProjectListDTO struct {
	Projects   []ProjectSummaryDTO `json:"projects"`
	Total      int                 `json:"total"`
	CapturedAt time.Time           `json:"captured_at"`
}

// AutoCreateRequest is the body of POST /api/projects/auto.
type AutoCreateRequest struct {
	Company string            `json:"company"`
	Owner   string            `json:"owner"`
	Fields  map[string]string `json:"fields"`
}

// ProjectCreatedDTO is returned by both create endpoints.
type ProjectCreatedDTO struct {
	Code    string     `json:"code"`
	Project engine.Row `json:"project"`
}

// PreviewDTO is returned by GET /api/preview-code.
type PreviewDTO struct {
	Code    string `json:"code"`
	Company string `json:"company"`
	Owner   string `json:"owner"`
}

// OptionsDTO lists the known mapping keys for form dropdowns.
type OptionsDTO struct {
	Companies []string          `json:"companies"`
	Owners    []string          `json:"owners"`
	Prefixes  map[string]string `json:"prefixes"`
	Suffixes  map[string]string `json:"suffixes"`
}

// RefreshDTO is returned by POST /api/refresh.
type RefreshDTO struct {
	Changed     bool `json:"changed"`
	RecordCount int  `json:"record_count"`
	Subscribers int  `json:"subscribers"`
}

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

// writeEngineError maps the engine error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, engine.ErrMappingUnresolved):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case errors.Is(err, engine.ErrAllocationExhausted):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, engine.ErrFetch), errors.Is(err, engine.ErrWrite):
		writeError(w, http.StatusBadGateway, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
