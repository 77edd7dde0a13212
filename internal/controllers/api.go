package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smartsoil/smartsoil/internal/i18n"
	"github.com/smartsoil/smartsoil/internal/metrics"
	"github.com/smartsoil/smartsoil/internal/models"
	"github.com/smartsoil/smartsoil/internal/state"
)

// APIController exposes the analysis as JSON for non-browser clients.
// It keeps no session state.
type APIController struct {
	analyzer        Analyzer
	metrics         *metrics.Collector
	requestTimeout  time.Duration
	defaultLanguage i18n.Language
	logger          *zap.Logger
}

func NewAPIController(analyzer Analyzer, collector *metrics.Collector, requestTimeout time.Duration, defaultLanguage i18n.Language, logger *zap.Logger) *APIController {
	return &APIController{
		analyzer:        analyzer,
		metrics:         collector,
		requestTimeout:  requestTimeout,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}
}

// AnalysisRequest is the body of POST /api/analyses.
type AnalysisRequest struct {
	models.FieldInput
	Language string `json:"language,omitempty"`
}

// AnalysisResponse is returned on success.
type AnalysisResponse struct {
	Result  *models.AnalysisResult   `json:"result"`
	Sources []models.GroundingSource `json:"sources"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// PostAnalysis runs one analysis and returns the structured result.
func (c *APIController) PostAnalysis(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	lang := c.defaultLanguage
	if req.Language != "" {
		parsed, err := i18n.Parse(req.Language)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		lang = parsed
	}

	input := req.FieldInput.Normalize()
	if err := input.Check(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), c.requestTimeout)
	defer cancel()

	start := time.Now()
	analysis, err := c.analyzer.Analyze(ctx, input, lang)
	c.metrics.RecordAnalysis(outcomeFor(err), time.Since(start))

	switch kind := state.ClassifyError(err); kind {
	case state.ErrorNone:
		sources := analysis.Sources
		if sources == nil {
			sources = []models.GroundingSource{}
		}
		writeJSON(w, http.StatusOK, AnalysisResponse{Result: analysis.Result, Sources: sources})
	case state.ErrorExtraction:
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "model answer could not be read", Kind: string(kind)})
	default:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "analysis failed", Kind: string(kind)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}
