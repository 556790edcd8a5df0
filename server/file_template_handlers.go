package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog"
)

//go:embed templates/*
var templateFiles embed.FS

const layoutTemplate = "layout.html"

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page template together with the shared layout.
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(name).ParseFS(TemplateFilesFS(), layoutTemplate, name)
}

// pageData is embedded in every page's template data.
type pageData struct {
	AppName string
	Title   string
}

func (s *Server) page(title string) pageData {
	return pageData{AppName: s.config.GetAppName(), Title: title}
}

// render writes the page with status 200. tmpl is nil when parsing failed at
// start-up.
func render(log zerolog.Logger, w http.ResponseWriter, tmpl *template.Template, data any) {
	if tmpl == nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		log.Err(err).Str("template", tmpl.Name()).Msg("Failed to render template")
	}
}

// parsePage parses name, logging and returning nil on failure.
func (s *Server) parsePage(name string) *template.Template {
	tmpl, err := ParseTemplate(name)
	if err != nil {
		s.log.Err(err).Str("template", name).Msg("Failed to parse template")
		return nil
	}
	return tmpl
}
