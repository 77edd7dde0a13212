// Package templates embeds the HTML templates rendered by internal/views.
package templates

import "embed"

//go:embed layouts partials pages
var FS embed.FS
