package views

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/smartsoil/smartsoil/internal/i18n"
)

var TemplateFS fs.FS

// Template wraps a parsed template with helper methods for rendering.
type Template struct {
	tmpl *template.Template
}

// TemplateData is the standard data structure passed to all templates.
// It contains common fields that every page might need.
type TemplateData struct {
	// Display language and its label table
	Lang      i18n.Language
	T         *i18n.Translation
	Languages []i18n.Language

	// CSRF token for forms
	CSRFToken string

	// Flash messages
	Error string

	// Page-specific data
	Data interface{}

	// Additional metadata
	Title       string
	Description string

	// Environment
	IsDevelopment bool
}

// DefaultFuncMap returns the default template functions available in all templates.
func DefaultFuncMap() template.FuncMap {
	return template.FuncMap{
		// Number helpers
		"add":   func(a, b int) int { return a + b },
		"coord": formatCoord,

		// HTML helpers
		"safeCSS": func(s string) template.CSS { return template.CSS(s) },

		// Styling
		"alertClass": alertClass,

		// Default value
		"default": defaultValue,
	}
}

// ParseFS parses templates from the embedded filesystem.
// It automatically includes the base layout and any partials.
//
// Usage:
//
//	tmpl, err := views.ParseFS("pages/home.gohtml")
//	// This will parse:
//	// - layouts/base.gohtml
//	// - partials/*.gohtml
//	// - pages/home.gohtml
func ParseFS(patterns ...string) (*Template, error) {
	if TemplateFS == nil {
		return nil, fmt.Errorf("views.TemplateFS is not set")
	}

	tmpl := template.New("").Funcs(DefaultFuncMap())

	baseContent, err := fs.ReadFile(TemplateFS, "layouts/base.gohtml")
	if err != nil {
		return nil, fmt.Errorf("failed to read base template: %w", err)
	}
	tmpl, err = tmpl.Parse(string(baseContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}

	// Partials define their own names with {{define "name"}}
	partialMatches, err := fs.Glob(TemplateFS, "partials/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("failed to glob partials: %w", err)
	}
	for _, match := range partialMatches {
		content, err := fs.ReadFile(TemplateFS, match)
		if err != nil {
			return nil, fmt.Errorf("failed to read partial %s: %w", match, err)
		}
		tmpl, err = tmpl.Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", match, err)
		}
	}

	// Pages define {{define "content"}} which the base layout renders
	for _, pattern := range patterns {
		content, err := fs.ReadFile(TemplateFS, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", pattern, err)
		}
		tmpl, err = tmpl.Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", pattern, err)
		}
	}

	return &Template{tmpl: tmpl}, nil
}

// Execute renders the template to the given writer with the provided data.
func (t *Template) Execute(w io.Writer, data *TemplateData) error {
	return t.tmpl.ExecuteTemplate(w, "base", data)
}

// ExecuteHTTP renders the template as an HTTP response.
func (t *Template) ExecuteHTTP(w http.ResponseWriter, r *http.Request, data *TemplateData) {
	t.ExecuteHTTPWithStatus(w, r, http.StatusOK, data)
}

// ExecuteHTTPWithStatus renders the template with a custom HTTP status code.
// Output is buffered so a failing template never sends a partial page.
func (t *Template) ExecuteHTTPWithStatus(w http.ResponseWriter, r *http.Request, status int, data *TemplateData) {
	buf := &bytes.Buffer{}
	if err := t.Execute(buf, data); err != nil {
		zap.L().Error("template execution failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Template function implementations

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func alertClass(kind string) string {
	switch kind {
	case "error":
		return "bg-red-50 text-red-800 border-red-200"
	default:
		return "bg-blue-50 text-blue-800 border-blue-200"
	}
}

func defaultValue(value, defaultVal interface{}) interface{} {
	if value == nil || value == "" || value == 0 {
		return defaultVal
	}
	return value
}
