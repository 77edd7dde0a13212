package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smartsoil/smartsoil/internal/dashboard"
	"github.com/smartsoil/smartsoil/internal/i18n"
	"github.com/smartsoil/smartsoil/internal/middleware"
	"github.com/smartsoil/smartsoil/internal/state"
)

// SessionController handles the small state changes the page makes without
// calling the model: schedule tab, expanded week and display language.
type SessionController struct {
	store  state.Store
	logger *zap.Logger
}

func NewSessionController(store state.Store, logger *zap.Logger) *SessionController {
	return &SessionController{store: store, logger: logger}
}

// PostTab switches the schedule between weekly and monthly.
func (c *SessionController) PostTab(w http.ResponseWriter, r *http.Request) {
	s := middleware.MustCurrentSession(r)

	tab, ok := dashboard.ParseTab(r.FormValue("tab"))
	if !ok {
		http.Error(w, "Unknown tab", http.StatusBadRequest)
		return
	}

	if !c.update(w, r, s.ID, func(st *state.AppState) error { return st.SetTab(tab) }) {
		return
	}
	http.Redirect(w, r, "/#schedule", http.StatusSeeOther)
}

// PostToggleWeek expands or collapses one week of the monthly schedule.
func (c *SessionController) PostToggleWeek(w http.ResponseWriter, r *http.Request) {
	s := middleware.MustCurrentSession(r)

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Invalid week", http.StatusBadRequest)
		return
	}

	if !c.update(w, r, s.ID, func(st *state.AppState) error { return st.ToggleWeek(index) }) {
		return
	}
	http.Redirect(w, r, "/#schedule", http.StatusSeeOther)
}

// PostLanguage sets the display language. Results already on screen keep the
// language they were generated in.
func (c *SessionController) PostLanguage(w http.ResponseWriter, r *http.Request) {
	s := middleware.MustCurrentSession(r)

	lang, err := i18n.Parse(r.FormValue("lang"))
	if err != nil {
		http.Error(w, "Unsupported language", http.StatusBadRequest)
		return
	}

	if !c.update(w, r, s.ID, func(st *state.AppState) error { return st.SetLanguage(lang) }) {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// update applies fn to the session and writes an error response on failure.
func (c *SessionController) update(w http.ResponseWriter, r *http.Request, id string, fn func(*state.AppState) error) bool {
	_, err := c.store.Update(r.Context(), id, fn)
	switch {
	case err == nil:
		return true
	case errors.Is(err, state.ErrNoResult), errors.Is(err, state.ErrWeekOutOfRange), errors.Is(err, state.ErrUnknownTab):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, state.ErrStateNotFound):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		c.logger.Error("failed to update session state", zap.String("session", id), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return false
}
