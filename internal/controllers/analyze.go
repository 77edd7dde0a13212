package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smartsoil/smartsoil/internal/i18n"
	"github.com/smartsoil/smartsoil/internal/metrics"
	"github.com/smartsoil/smartsoil/internal/middleware"
	"github.com/smartsoil/smartsoil/internal/models"
	"github.com/smartsoil/smartsoil/internal/state"
)

// settleTimeout bounds the state write that records an analysis outcome.
const settleTimeout = 5 * time.Second

// Analyzer produces an analysis for one field.
type Analyzer interface {
	Analyze(ctx context.Context, in models.FieldInput, lang i18n.Language) (*models.Analysis, error)
}

// AnalyzeController handles the analysis form.
type AnalyzeController struct {
	store          state.Store
	analyzer       Analyzer
	metrics        *metrics.Collector
	requestTimeout time.Duration
	logger         *zap.Logger
}

func NewAnalyzeController(store state.Store, analyzer Analyzer, collector *metrics.Collector, requestTimeout time.Duration, logger *zap.Logger) *AnalyzeController {
	return &AnalyzeController{
		store:          store,
		analyzer:       analyzer,
		metrics:        collector,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// PostAnalyze handles the analysis form submission. Missing location or crop
// is a silent no-op. Otherwise the session enters the loading state, the model
// is called once and the outcome is settled against the request token.
func (c *AnalyzeController) PostAnalyze(w http.ResponseWriter, r *http.Request) {
	s := middleware.MustCurrentSession(r)

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/#analyze", http.StatusSeeOther)
		return
	}

	input := models.FieldInput{
		Location: r.FormValue("location"),
		Crop:     r.FormValue("crop"),
		Size:     r.FormValue("size"),
		Details:  r.FormValue("details"),
	}.Normalize()
	if err := input.Check(); err != nil {
		http.Redirect(w, r, "/#analyze", http.StatusSeeOther)
		return
	}

	var (
		token string
		lang  i18n.Language
	)
	_, err := c.store.Update(r.Context(), s.ID, func(st *state.AppState) error {
		token = st.Begin(input)
		lang = st.Language
		return nil
	})
	if err != nil {
		c.logger.Error("failed to start analysis", zap.String("session", s.ID), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// The result is settled even if the visitor navigates away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), c.requestTimeout)
	defer cancel()

	start := time.Now()
	analysis, analyzeErr := c.analyzer.Analyze(ctx, input, lang)
	latency := time.Since(start)

	// ctx may already be past its deadline.
	settleCtx, cancelSettle := context.WithTimeout(context.WithoutCancel(r.Context()), settleTimeout)
	defer cancelSettle()

	_, err = c.store.Update(settleCtx, s.ID, func(st *state.AppState) error {
		if analyzeErr != nil {
			return st.Fail(token, state.ClassifyError(analyzeErr))
		}
		return st.Resolve(token, analysis.Result, analysis.Sources)
	})

	switch {
	case errors.Is(err, state.ErrStaleRequest):
		c.logger.Info("discarding superseded analysis", zap.String("session", s.ID))
		c.metrics.RecordAnalysis(metrics.OutcomeStale, latency)
		http.Redirect(w, r, "/#analyze", http.StatusSeeOther)
		return
	case err != nil:
		c.logger.Error("failed to settle analysis", zap.String("session", s.ID), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	c.metrics.RecordAnalysis(outcomeFor(analyzeErr), latency)
	if analyzeErr != nil {
		http.Redirect(w, r, "/#analyze", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/#dashboard", http.StatusSeeOther)
}

func outcomeFor(err error) string {
	switch state.ClassifyError(err) {
	case state.ErrorNone:
		return metrics.OutcomeSuccess
	case state.ErrorExtraction:
		return metrics.OutcomeExtraction
	default:
		return metrics.OutcomeTransport
	}
}
