package controllers

import (
	"net/http"
	"time"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/smartsoil/smartsoil/internal/dashboard"
	"github.com/smartsoil/smartsoil/internal/i18n"
	"github.com/smartsoil/smartsoil/internal/middleware"
	"github.com/smartsoil/smartsoil/internal/models"
	"github.com/smartsoil/smartsoil/internal/state"
	"github.com/smartsoil/smartsoil/internal/views"
)

// StaticController renders the single page: landing sections, the analysis
// form and, once a result exists, the dashboard.
type StaticController struct {
	templates      StaticTemplates
	store          state.Store
	catalog        *i18n.Catalog
	pendingTimeout time.Duration
	isDevelopment  bool
	logger         *zap.Logger
}

// StaticTemplates holds templates for static pages.
type StaticTemplates struct {
	Home *views.Template
}

// NewStaticController creates the home page controller. requestTimeout is the
// model timeout; a request pending well beyond it is abandoned on the next
// page load.
func NewStaticController(templates StaticTemplates, store state.Store, catalog *i18n.Catalog, requestTimeout time.Duration, isDevelopment bool, logger *zap.Logger) *StaticController {
	return &StaticController{
		templates:      templates,
		store:          store,
		catalog:        catalog,
		pendingTimeout: requestTimeout + settleTimeout,
		isDevelopment:  isDevelopment,
		logger:         logger,
	}
}

// HomeData holds data for the home page template.
type HomeData struct {
	Form      models.FieldInput
	Loading   bool
	Solid     bool
	Dashboard *dashboard.View
}

// GetHome renders the home page. A valid ?lang= switches the session language;
// a pending failure is shown once and then cleared; a request that never
// settled is abandoned.
func (c *StaticController) GetHome(w http.ResponseWriter, r *http.Request) {
	s := middleware.MustCurrentSession(r)

	lang := s.Language
	if q := r.URL.Query().Get("lang"); q != "" {
		if parsed, err := i18n.Parse(q); err == nil {
			lang = parsed
		}
	}

	now := time.Now()
	var failure state.ErrorKind
	if lang != s.Language || s.Error != state.ErrorNone || s.Stalled(now, c.pendingTimeout) {
		updated, err := c.store.Update(r.Context(), s.ID, func(st *state.AppState) error {
			if err := st.SetLanguage(lang); err != nil {
				return err
			}
			if st.Abandon(now, c.pendingTimeout) {
				c.logger.Warn("abandoned analysis that never settled", zap.String("session", s.ID))
			}
			failure = st.TakeError()
			return nil
		})
		if err != nil {
			c.logger.Error("failed to update session state", zap.String("session", s.ID), zap.Error(err))
		} else {
			s = updated
		}
	}

	t := c.catalog.Lookup(s.Language)
	data := &views.TemplateData{
		Lang:          s.Language,
		T:             t,
		Languages:     i18n.Languages(),
		CSRFToken:     csrf.Token(r),
		Error:         failureMessage(t, failure),
		IsDevelopment: c.isDevelopment,
		Data: HomeData{
			Form:      s.Form,
			Loading:   s.Loading,
			Solid:     s.Solid || s.ShowDashboard(),
			Dashboard: dashboard.Build(s.Result, s.Sources, t, s.ScheduleState()),
		},
	}

	c.templates.Home.ExecuteHTTP(w, r, data)
}

func failureMessage(t *i18n.Translation, kind state.ErrorKind) string {
	switch kind {
	case state.ErrorTransport:
		return t.ErrorTransport
	case state.ErrorExtraction:
		return t.ErrorExtraction
	default:
		return ""
	}
}

// HealthCheck returns a simple health status for monitoring.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
