// Package state holds the per-session application state: selected language,
// the pending request, the current analysis and the schedule widget.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smartsoil/smartsoil/internal/dashboard"
	"github.com/smartsoil/smartsoil/internal/i18n"
	"github.com/smartsoil/smartsoil/internal/models"
)

var (
	ErrStateNotFound  = errors.New("session state not found")
	ErrStaleRequest   = errors.New("analysis request was superseded")
	ErrNoResult       = errors.New("no analysis result")
	ErrWeekOutOfRange = errors.New("week index out of range")
	ErrUnknownTab     = errors.New("unknown schedule tab")
)

// ErrorKind tells the page which failure message to show.
type ErrorKind string

const (
	ErrorNone       ErrorKind = ""
	ErrorTransport  ErrorKind = "transport"
	ErrorExtraction ErrorKind = "extraction"
)

// ClassifyError maps an adapter error to the message kind shown to the user.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorNone
	case errors.Is(err, models.ErrExtractionFailed):
		return ErrorExtraction
	default:
		return ErrorTransport
	}
}

// AppState is everything the page needs to render a session. It is stored as
// JSON, so every field must survive a round trip.
type AppState struct {
	ID        string                   `json:"id"`
	Language  i18n.Language            `json:"language"`
	Loading   bool                     `json:"loading"`
	Token     string                   `json:"token,omitempty"`
	StartedAt time.Time                `json:"started_at,omitzero"`
	Form      models.FieldInput        `json:"form"`
	Result    *models.AnalysisResult   `json:"result,omitempty"`
	Sources   []models.GroundingSource `json:"sources,omitempty"`
	Error     ErrorKind                `json:"error,omitempty"`
	Tab       dashboard.Tab            `json:"tab"`
	Expanded  *int                     `json:"expanded_week,omitempty"`
	Solid     bool                     `json:"solid_chrome"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// New returns the initial state of a fresh session.
func New(id string, lang i18n.Language) *AppState {
	return &AppState{
		ID:        id,
		Language:  lang,
		Tab:       dashboard.TabWeekly,
		UpdatedAt: time.Now().UTC(),
	}
}

// NewID returns a random session identifier.
func NewID() string {
	return uuid.NewString()
}

// Begin starts a new analysis request and returns its token. The previous
// result, sources and error are cleared and any pending request is superseded.
func (s *AppState) Begin(form models.FieldInput) string {
	s.Token = uuid.NewString()
	s.StartedAt = time.Now().UTC()
	s.Loading = true
	s.Form = form
	s.Result = nil
	s.Sources = nil
	s.Error = ErrorNone
	s.Tab = dashboard.TabWeekly
	s.Expanded = nil
	s.Solid = true
	s.touch()
	return s.Token
}

// Resolve stores the result of the request identified by token.
func (s *AppState) Resolve(token string, result *models.AnalysisResult, sources []models.GroundingSource) error {
	if err := s.settle(token); err != nil {
		return err
	}
	s.Result = result
	s.Sources = sources
	return nil
}

// Fail records that the request identified by token failed.
func (s *AppState) Fail(token string, kind ErrorKind) error {
	if err := s.settle(token); err != nil {
		return err
	}
	s.Error = kind
	return nil
}

func (s *AppState) settle(token string) error {
	if token == "" || token != s.Token {
		return ErrStaleRequest
	}
	s.Token = ""
	s.StartedAt = time.Time{}
	s.Loading = false
	s.touch()
	return nil
}

// Stalled reports whether a request has been pending longer than maxAge.
func (s *AppState) Stalled(now time.Time, maxAge time.Duration) bool {
	return s.Loading && now.Sub(s.StartedAt) > maxAge
}

// Abandon gives up on a stalled request, for example one whose handler died
// before settling it. It is recorded as a transport failure and reports
// whether anything changed.
func (s *AppState) Abandon(now time.Time, maxAge time.Duration) bool {
	if !s.Stalled(now, maxAge) {
		return false
	}
	s.Token = ""
	s.StartedAt = time.Time{}
	s.Loading = false
	s.Error = ErrorTransport
	s.touch()
	return true
}

// ToggleWeek expands week i of the monthly schedule, collapsing any other.
// Toggling the already expanded week collapses it.
func (s *AppState) ToggleWeek(i int) error {
	if s.Result == nil {
		return ErrNoResult
	}
	if i < 0 || i >= len(s.Result.MonthlySchedule) {
		return fmt.Errorf("%w: %d", ErrWeekOutOfRange, i)
	}
	if s.Expanded != nil && *s.Expanded == i {
		s.Expanded = nil
	} else {
		s.Expanded = &i
	}
	s.touch()
	return nil
}

// SetTab switches the schedule between the weekly and monthly views.
func (s *AppState) SetTab(tab dashboard.Tab) error {
	if _, ok := dashboard.ParseTab(string(tab)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	s.Tab = tab
	s.touch()
	return nil
}

// SetLanguage changes the display language. Existing results stay as they are.
func (s *AppState) SetLanguage(lang i18n.Language) error {
	if _, err := i18n.Parse(string(lang)); err != nil {
		return err
	}
	s.Language = lang
	s.touch()
	return nil
}

// TakeError returns the pending failure kind and clears it, so the message
// is shown once.
func (s *AppState) TakeError() ErrorKind {
	kind := s.Error
	if kind != ErrorNone {
		s.Error = ErrorNone
		s.touch()
	}
	return kind
}

// ShowDashboard reports whether the dashboard should be rendered.
func (s *AppState) ShowDashboard() bool {
	return s.Result != nil
}

// ScheduleState returns the schedule widget's view state.
func (s *AppState) ScheduleState() dashboard.ScheduleState {
	return dashboard.ScheduleState{Tab: s.Tab, Expanded: s.Expanded}
}

func (s *AppState) touch() {
	s.UpdatedAt = time.Now().UTC()
}
