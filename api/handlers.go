/*
handlers.go - HTTP API handlers for the sheet dashboard

PURPOSE:
  Exposes the sync engine via REST: analysis endpoints computed from the
  current snapshot, project CRUD against the data source, structured
  code allocation, and a manual refresh trigger.

READ PATH:
  Analysis and list endpoints never touch the data source; they serve
  whatever snapshot the poller last published. An empty store (before
  the first successful poll) serves empty results rather than an error.

WRITE PATH:
  Creates and updates go straight to the data source, then poke the
  poller so subscribers see the change without waiting for the next
  tick.

SEE ALSO:
  - server.go: Route wiring and auth middleware
  - dto.go: Transfer types and error mapping
  - engine/allocator.go: The allocation path behind /projects/auto
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/siteops/sheetsync/analyzer"
	"github.com/siteops/sheetsync/auth"
	"github.com/siteops/sheetsync/cfg"
	"github.com/siteops/sheetsync/engine"
)

// Handler carries the dependencies shared by all endpoints.
type Handler struct {
	Config    *cfg.Config
	Store     *engine.SnapshotStore
	Poller    *engine.Poller
	Allocator *engine.Allocator
	Source    engine.DataSource
	Bus       *engine.Bus
	Auth      *auth.Provider
	Logger    zerolog.Logger

	// Reports backs the manual report trigger; optional.
	Reports *ReportScheduler

	now func() time.Time
}

// NewHandler builds a handler.
func NewHandler(config *cfg.Config, store *engine.SnapshotStore, poller *engine.Poller,
	allocator *engine.Allocator, source engine.DataSource, bus *engine.Bus,
	provider *auth.Provider, logger zerolog.Logger) *Handler {
	return &Handler{
		Config:    config,
		Store:     store,
		Poller:    poller,
		Allocator: allocator,
		Source:    source,
		Bus:       bus,
		Auth:      provider,
		Logger:    logger.With().Str("component", "api").Logger(),
		now:       time.Now,
	}
}

func (h *Handler) analyzerNow() *analyzer.Analyzer {
	return analyzer.New(h.Store.Current(), h.now())
}

// =============================================================================
// ANALYSIS ENDPOINTS
// =============================================================================

// GetSummary returns the headline statistics.
// GET /api/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzerNow().Summary())
}

// GetMonthlySales returns the per-month sales lines for a year.
// GET /api/monthly-sales?year=2026
func (h *Handler) GetMonthlySales(w http.ResponseWriter, r *http.Request) {
	year := 0
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = parsed
	}
	months := h.analyzerNow().MonthlySales(year)
	if months == nil {
		months = []analyzer.MonthlySales{}
	}
	writeJSON(w, http.StatusOK, months)
}

// GetOutstanding returns the aging breakdown of unpaid balances.
// GET /api/outstanding
func (h *Handler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzerNow().Outstanding())
}

// GetMissingData returns the missing-data check over the critical fields.
// GET /api/missing-data
func (h *Handler) GetMissingData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzerNow().MissingData(nil))
}

// =============================================================================
// PROJECT ENDPOINTS
// =============================================================================

// ListProjects returns the current snapshot's rows, optionally filtered.
// GET /api/projects?owner=...&company=...
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	snap := h.Store.Current()
	out := ProjectListDTO{Projects: []ProjectSummaryDTO{}}
	if snap == nil {
		writeJSON(w, http.StatusOK, out)
		return
	}

	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	company := strings.TrimSpace(r.URL.Query().Get("company"))
	for _, row := range snap.Rows {
		if owner != "" && row.Get(engine.ColOwner) != owner {
			continue
		}
		if company != "" && row.Get(engine.ColCompany) != company {
			continue
		}
		out.Projects = append(out.Projects, toProjectSummary(row))
	}
	out.Total = len(out.Projects)
	out.CapturedAt = snap.CapturedAt
	writeJSON(w, http.StatusOK, out)
}

// GetProject returns one full row by project code.
// GET /api/projects/{code}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	snap := h.Store.Current()
	if snap != nil {
		for _, row := range snap.Rows {
			if row.Code() == code {
				writeJSON(w, http.StatusOK, row)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "Project not found", nil)
}

// CreateProject appends a row whose code the caller supplies.
// POST /api/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var row engine.Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	code := row.Code()
	if !validCode(code) {
		writeError(w, http.StatusBadRequest,
			"Invalid project code (expected <letter><4 digits>-<suffix>)", nil)
		return
	}
	if missing := h.missingRequiredFields(row); len(missing) > 0 {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")), nil)
		return
	}
	if snap := h.Store.Current(); snap != nil && snap.HasCode(code) {
		writeError(w, http.StatusConflict, "Project code already exists", nil)
		return
	}

	if err := h.Source.AppendRow(r.Context(), row); err != nil {
		writeEngineError(w, "Failed to create project", err)
		return
	}
	h.pokePoller()
	writeJSON(w, http.StatusCreated, ProjectCreatedDTO{Code: code, Project: row})
}

// UpdateProject replaces the row identified by its code.
// PUT /api/projects/{code}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var row engine.Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if row.Code() == "" {
		row[engine.ColProjectCode] = code
	}

	snap := h.Store.Current()
	if snap == nil || !snap.HasCode(code) {
		writeError(w, http.StatusNotFound, "Project not found", nil)
		return
	}

	if err := h.Source.UpdateRow(r.Context(), code, row); err != nil {
		writeEngineError(w, "Failed to update project", err)
		return
	}
	h.pokePoller()
	writeJSON(w, http.StatusOK, ProjectCreatedDTO{Code: row.Code(), Project: row})
}

// AutoCreateProject allocates a structured code and appends the row.
// POST /api/projects/auto
func (h *Handler) AutoCreateProject(w http.ResponseWriter, r *http.Request) {
	var req AutoCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Company = strings.TrimSpace(req.Company)
	req.Owner = strings.TrimSpace(req.Owner)
	if req.Company == "" || req.Owner == "" {
		writeError(w, http.StatusBadRequest, "company and owner are required", nil)
		return
	}

	row := engine.Row{}
	for k, v := range req.Fields {
		row[k] = v
	}
	row[engine.ColCompany] = req.Company
	row[engine.ColOwner] = req.Owner

	code, committed, err := h.Allocator.Allocate(req.Company, req.Owner, row)
	if err != nil {
		writeEngineError(w, "Failed to allocate project code", err)
		return
	}
	h.pokePoller()
	writeJSON(w, http.StatusCreated, ProjectCreatedDTO{Code: code, Project: committed})
}

// PreviewCode computes the code the next allocation would produce.
// GET /api/preview-code?company=...&owner=...
func (h *Handler) PreviewCode(w http.ResponseWriter, r *http.Request) {
	company := strings.TrimSpace(r.URL.Query().Get("company"))
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if company == "" || owner == "" {
		writeError(w, http.StatusBadRequest, "company and owner are required", nil)
		return
	}

	code, err := h.Allocator.Preview(h.Store.Current(), company, owner)
	if err != nil {
		writeEngineError(w, "Failed to preview project code", err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewDTO{Code: code, Company: company, Owner: owner})
}

// =============================================================================
// META AND CONTROL ENDPOINTS
// =============================================================================

// GetOptions lists the resolvable companies and owners with their
// current prefix/suffix mappings.
// GET /api/meta/options
func (h *Handler) GetOptions(w http.ResponseWriter, r *http.Request) {
	snap := h.Store.Current()
	prefixes := engine.BuildCompanyPrefixMap(snap, h.Config.Mapping.CompanyPrefixes)
	suffixes := engine.BuildOwnerSuffixMap(snap, h.Config.Mapping.OwnerSuffixes)

	out := OptionsDTO{
		Companies: sortedMapKeys(prefixes),
		Owners:    sortedMapKeys(suffixes),
		Prefixes:  prefixes,
		Suffixes:  suffixes,
	}
	writeJSON(w, http.StatusOK, out)
}

// Refresh forces one poll cycle and reports the outcome.
// POST /api/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	changed, err := h.Poller.PollOnce()
	if err != nil {
		writeEngineError(w, "Refresh failed", err)
		return
	}
	out := RefreshDTO{Changed: changed, Subscribers: h.Bus.Count()}
	if snap := h.Store.Current(); snap != nil {
		out.RecordCount = len(snap.Rows)
	}
	writeJSON(w, http.StatusOK, out)
}

// RunReports triggers the missing-data and daily-summary reports out of
// schedule. Admins only.
// POST /api/reports/run
func (h *Handler) RunReports(w http.ResponseWriter, r *http.Request) {
	if !IsAdmin(r.Context()) {
		writeError(w, http.StatusForbidden, "Admin access required", nil)
		return
	}
	if h.Reports == nil {
		writeError(w, http.StatusServiceUnavailable, "Reporting is not configured", nil)
		return
	}
	h.Reports.RunNow()
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// =============================================================================
// HELPERS
// =============================================================================

func validCode(code string) bool {
	if engine.CodePrefix(code) == "" || engine.CodeSuffix(code) == "" {
		return false
	}
	_, ok := engine.CodeSequence(code)
	return ok
}

func (h *Handler) missingRequiredFields(row engine.Row) []string {
	var missing []string
	for _, field := range h.Config.Mapping.RequiredFields {
		if row.Get(field) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// pokePoller runs one out-of-band poll so a write becomes visible to
// subscribers immediately. Failures are the next tick's problem.
func (h *Handler) pokePoller() {
	if _, err := h.Poller.PollOnce(); err != nil {
		h.Logger.Warn().Err(err).Msg("post-write refresh failed")
	}
}

func sortedMapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
