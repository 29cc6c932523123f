// Package handlers provides HTTP handlers for the catalog API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dentara/go-catalog/internal/dental/tooth"
	"github.com/dentara/go-catalog/internal/domain/catalog"
	"github.com/dentara/go-catalog/internal/importer"
	"github.com/dentara/go-catalog/internal/inference"
	"github.com/dentara/go-catalog/internal/infrastructure/postgres"
	"github.com/dentara/go-catalog/internal/observability/metrics"
)

// CatalogRepository is the persistence surface the handler needs.
type CatalogRepository interface {
	LoadSnapshot(ctx context.Context) (catalog.Snapshot, error)
	ApplyBatch(ctx context.Context, batch importer.BatchImport) (importer.ImportResult, error)
}

// OverrideRepository persists per-clinic treatment overrides.
type OverrideRepository interface {
	Upsert(ctx context.Context, o catalog.Override) error
	Get(ctx context.Context, clinicID, treatmentCode string) (catalog.Override, error)
	ListForClinic(ctx context.Context, clinicID string) ([]catalog.Override, error)
	Delete(ctx context.Context, clinicID, treatmentCode string) error
}

// CatalogHandler handles catalog, suggestion and override endpoints.
type CatalogHandler struct {
	repo      CatalogRepository
	overrides OverrideRepository
	matcher   *inference.Matcher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewCatalogHandler creates a handler. A nil metrics set disables counters.
func NewCatalogHandler(repo CatalogRepository, overrides OverrideRepository, m *metrics.Metrics, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{
		repo:      repo,
		overrides: overrides,
		matcher:   inference.NewMatcher(inference.DefaultRules()),
		metrics:   m,
		logger:    logger,
	}
}

// Routes returns the handler routes.
func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/imports", h.Import)
	r.Get("/treatments", h.ListTreatments)
	r.Get("/treatments/{code}", h.GetTreatment)
	r.Get("/suggestions", h.Suggestions)
	r.Post("/findings/match", h.MatchFinding)
	r.Get("/teeth/{number}/group", h.ToothGroup)
	r.Route("/clinics/{clinicID}", func(r chi.Router) {
		r.Get("/overrides", h.ListOverrides)
		r.Put("/overrides/{code}", h.PutOverride)
		r.Get("/overrides/{code}", h.GetOverride)
		r.Delete("/overrides/{code}", h.DeleteOverride)
		r.Get("/treatments/{code}/effective", h.EffectiveTreatment)
	})
	return r
}

// Import handles POST /imports. The response is the structured report; a
// batch with schema errors still gets 200 with the errors inside, matching
// the errors-as-data contract of the import pipeline. Only an undecodable
// body or a storage failure is an HTTP error.
func (h *CatalogHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("catalog-handler")
	ctx, span := tracer.Start(ctx, "import_batch")
	defer span.End()

	var batch importer.BatchImport
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("batch", batch.Batch))

	start := time.Now()
	result, err := h.repo.ApplyBatch(ctx, batch)
	if err != nil {
		h.logger.Error("batch apply failed", zap.Int("batch", batch.Batch), zap.Error(err))
		if h.metrics != nil {
			h.metrics.BatchesRejected.Inc()
		}
		h.jsonError(w, "failed to apply batch", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.BatchesApplied.Inc()
		h.metrics.ImportDuration.Observe(time.Since(start).Seconds())
		for _, e := range result.Errors {
			h.metrics.ImportErrors.WithLabelValues(e.Kind, e.Entity).Inc()
		}
		h.metrics.OrphanedMappings.Set(float64(len(result.OrphanedMappings)))
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ListTreatments handles GET /treatments.
func (h *CatalogHandler) ListTreatments(w http.ResponseWriter, r *http.Request) {
	snap, err := h.repo.LoadSnapshot(r.Context())
	if err != nil {
		h.logger.Error("load snapshot failed", zap.Error(err))
		h.jsonError(w, "failed to load catalog", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"treatments": snap.Treatments,
		"count":      len(snap.Treatments),
	})
}

// GetTreatment handles GET /treatments/{code}.
func (h *CatalogHandler) GetTreatment(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	snap, err := h.repo.LoadSnapshot(r.Context())
	if err != nil {
		h.logger.Error("load snapshot failed", zap.Error(err))
		h.jsonError(w, "failed to load catalog", http.StatusInternalServerError)
		return
	}
	t, ok := snap.TreatmentByCode(code)
	if !ok {
		h.jsonError(w, "treatment not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

// SuggestionsResponse is the response for GET /suggestions.
type SuggestionsResponse struct {
	Condition  string   `json:"condition"`
	Tooth      int      `json:"tooth,omitempty"`
	Treatments []string `json:"treatments"`
}

// Suggestions handles GET /suggestions?condition=&tooth=. Without a tooth
// the full priority-ordered list comes back; with one, tooth applicability
// filtering and per-tooth overrides apply.
func (h *CatalogHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	condition := r.URL.Query().Get("condition")
	if condition == "" {
		h.jsonError(w, "condition query parameter is required", http.StatusBadRequest)
		return
	}

	snap, err := h.repo.LoadSnapshot(r.Context())
	if err != nil {
		h.logger.Error("load snapshot failed", zap.Error(err))
		h.jsonError(w, "failed to load catalog", http.StatusInternalServerError)
		return
	}
	engine := inference.NewEngine(snap)

	resp := SuggestionsResponse{Condition: condition}
	if toothParam := r.URL.Query().Get("tooth"); toothParam != "" {
		fdi, err := strconv.Atoi(toothParam)
		if err != nil || !tooth.ValidFDI(fdi) {
			h.jsonError(w, "tooth must be a valid FDI tooth number", http.StatusBadRequest)
			return
		}
		resp.Tooth = fdi
		resp.Treatments = engine.ResolveForTooth(condition, fdi)
	} else {
		resp.Treatments = engine.Resolve(condition)
	}
	if resp.Treatments == nil {
		resp.Treatments = []string{}
	}

	if h.metrics != nil {
		h.metrics.SuggestionsResolved.Inc()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// MatchRequest is the request body for POST /findings/match.
type MatchRequest struct {
	Tooth     int      `json:"tooth"`
	Condition string   `json:"condition"`
	Severity  string   `json:"severity,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// MatchResponse is the response for POST /findings/match.
type MatchResponse struct {
	Matched   bool   `json:"matched"`
	Treatment string `json:"treatment,omitempty"`
	Source    string `json:"source,omitempty"`
}

// MatchFinding handles POST /findings/match. The tiered rule matcher runs
// first; when no rule fires, the condition mapping's primary treatment for
// the tooth is the fallback.
func (h *CatalogHandler) MatchFinding(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Condition == "" {
		h.jsonError(w, "condition is required", http.StatusBadRequest)
		return
	}
	if !tooth.ValidFDI(req.Tooth) {
		h.jsonError(w, "tooth must be a valid FDI tooth number", http.StatusBadRequest)
		return
	}

	finding := inference.Finding{
		Tooth:     req.Tooth,
		Condition: req.Condition,
		Severity:  req.Severity,
		Modifiers: req.Modifiers,
	}

	resp := MatchResponse{}
	if treatment, ok := h.matcher.Match(finding); ok {
		resp = MatchResponse{Matched: true, Treatment: treatment, Source: "rule"}
	} else {
		snap, err := h.repo.LoadSnapshot(r.Context())
		if err != nil {
			h.logger.Error("load snapshot failed", zap.Error(err))
			h.jsonError(w, "failed to load catalog", http.StatusInternalServerError)
			return
		}
		engine := inference.NewEngine(snap)
		if treatment, ok := engine.PrimaryTreatment(req.Condition, req.Tooth); ok {
			resp = MatchResponse{Matched: true, Treatment: treatment, Source: "mapping"}
		}
	}

	if h.metrics != nil {
		if resp.Matched {
			h.metrics.FindingsMatched.Inc()
		} else {
			h.metrics.FindingsUnmatched.Inc()
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ToothGroupResponse is the response for GET /teeth/{number}/group.
type ToothGroupResponse struct {
	Number     int              `json:"number"`
	System     string           `json:"system"`
	Group      tooth.Group      `json:"group"`
	FDI        int              `json:"fdi,omitempty"`
	Jaw        tooth.Jaw        `json:"jaw,omitempty"`
	CanalCount int              `json:"canalCount,omitempty"`
	Confidence tooth.Confidence `json:"canalConfidence,omitempty"`
}

// ToothGroup handles GET /teeth/{number}/group?system=. The system defaults
// to FDI; universal numbers are converted so the response always carries the
// FDI number, jaw and canal estimate when the tooth is recognized.
func (h *CatalogHandler) ToothGroup(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		h.jsonError(w, "tooth number must be an integer", http.StatusBadRequest)
		return
	}

	system := tooth.SystemFDI
	switch r.URL.Query().Get("system") {
	case "", "fdi", "FDI":
	case "universal", "Universal":
		system = tooth.SystemUniversal
	default:
		h.jsonError(w, "system must be fdi or universal", http.StatusBadRequest)
		return
	}

	resp := ToothGroupResponse{
		Number: number,
		System: string(system),
		Group:  tooth.Classify(number, system),
	}
	if fdi, ok := tooth.ToFDI(number, system); ok {
		resp.FDI = fdi
		resp.Jaw = tooth.JawOf(fdi)
		estimate := tooth.EstimateCanalsForTooth(fdi)
		resp.CanalCount = estimate.Count
		resp.Confidence = estimate.Confidence
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// OverrideRequest is the request body for PUT overrides.
type OverrideRequest struct {
	PriceAUD *float64 `json:"priceAUD,omitempty"`
	Duration *int     `json:"duration,omitempty"`
	ADACode  *string  `json:"adaCode,omitempty"`
}

// PutOverride handles PUT /clinics/{clinicID}/overrides/{code}.
func (h *CatalogHandler) PutOverride(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	code := chi.URLParam(r, "code")

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PriceAUD != nil && *req.PriceAUD < 0 {
		h.jsonError(w, "priceAUD must not be negative", http.StatusBadRequest)
		return
	}
	if req.Duration != nil && *req.Duration <= 0 {
		h.jsonError(w, "duration must be positive", http.StatusBadRequest)
		return
	}

	snap, err := h.repo.LoadSnapshot(r.Context())
	if err != nil {
		h.logger.Error("load snapshot failed", zap.Error(err))
		h.jsonError(w, "failed to load catalog", http.StatusInternalServerError)
		return
	}
	if _, ok := snap.TreatmentByCode(code); !ok {
		h.jsonError(w, "treatment not found", http.StatusNotFound)
		return
	}

	override := catalog.Override{
		ClinicID:      clinicID,
		TreatmentCode: code,
		PriceAUD:      req.PriceAUD,
		Duration:      req.Duration,
		ADACode:       req.ADACode,
	}
	if err := h.overrides.Upsert(r.Context(), override); err != nil {
		h.logger.Error("override upsert failed", zap.Error(err))
		h.jsonError(w, "failed to store override", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, override)
}

// GetOverride handles GET /clinics/{clinicID}/overrides/{code}.
func (h *CatalogHandler) GetOverride(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	code := chi.URLParam(r, "code")

	override, err := h.overrides.Get(r.Context(), clinicID, code)
	if errors.Is(err, postgres.ErrNotFound) {
		h.jsonError(w, "override not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("override get failed", zap.Error(err))
		h.jsonError(w, "failed to load override", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, override)
}

// ListOverrides handles GET /clinics/{clinicID}/overrides.
func (h *CatalogHandler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")

	overrides, err := h.overrides.ListForClinic(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("override list failed", zap.Error(err))
		h.jsonError(w, "failed to load overrides", http.StatusInternalServerError)
		return
	}
	if overrides == nil {
		overrides = []catalog.Override{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"clinicId":  clinicID,
		"overrides": overrides,
	})
}

// DeleteOverride handles DELETE /clinics/{clinicID}/overrides/{code}.
func (h *CatalogHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	code := chi.URLParam(r, "code")

	if err := h.overrides.Delete(r.Context(), clinicID, code); err != nil {
		h.logger.Error("override delete failed", zap.Error(err))
		h.jsonError(w, "failed to delete override", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EffectiveTreatment handles GET /clinics/{clinicID}/treatments/{code}/effective.
// Canonical treatment values apply wherever the clinic has no override.
func (h *CatalogHandler) EffectiveTreatment(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	code := chi.URLParam(r, "code")

	snap, err := h.repo.LoadSnapshot(r.Context())
	if err != nil {
		h.logger.Error("load snapshot failed", zap.Error(err))
		h.jsonError(w, "failed to load catalog", http.StatusInternalServerError)
		return
	}
	t, ok := snap.TreatmentByCode(code)
	if !ok {
		h.jsonError(w, "treatment not found", http.StatusNotFound)
		return
	}

	var overridePtr *catalog.Override
	override, err := h.overrides.Get(r.Context(), clinicID, code)
	switch {
	case err == nil:
		overridePtr = &override
	case errors.Is(err, postgres.ErrNotFound):
		// no override, canonical values apply
	default:
		h.logger.Error("override get failed", zap.Error(err))
		h.jsonError(w, "failed to load override", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, catalog.Effective(t, overridePtr))
}

func (h *CatalogHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *CatalogHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
