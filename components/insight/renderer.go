package insight

import (
	"embed"
	"io"
	"io/fs"

	template "github.com/goliatone/go-template"
)

// Renderer describes the template renderer contract needed by the web layer.
type Renderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
}

//go:embed templates/*.html templates/partials/*.html
var embeddedTemplates embed.FS

// NewTemplateRenderer creates a go-template renderer backed by the embedded templates.
func NewTemplateRenderer() (Renderer, error) {
	return template.NewRenderer(
		template.WithFS(embeddedTemplates),
		template.WithBaseDir("templates"),
		template.WithExtension(".html"),
	)
}

// TemplateNames lists the page templates the web layer renders.
var TemplateNames = []string{
	"login.html",
	"dashboard.html",
	"editor.html",
	"edit_row.html",
	"reports.html",
	"users.html",
	"profile.html",
	"alerts.html",
	"error.html",
}

//go:embed assets/*
var embeddedAssets embed.FS

// Assets exposes the embedded stylesheet for static serving under /static.
func Assets() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		return embeddedAssets
	}
	return sub
}
