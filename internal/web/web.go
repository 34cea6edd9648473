package web

import (
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.tmpl
var files embed.FS

// Templates parses the portal pages.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"label": func(s string) string { return strings.ReplaceAll(s, "_", " ") },
	}).ParseFS(files, "templates/*.tmpl")
}
