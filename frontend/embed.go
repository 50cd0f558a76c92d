// Package frontend embeds the collection page and the admin templates.
package frontend

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed build/*
var assets embed.FS

//go:embed templates/*.html
var templates embed.FS

// Handler returns an http.Handler that serves the embedded collection page.
// It strips the "build" prefix and serves index.html for unknown paths.
func Handler() http.Handler {
	// Strip the "build" prefix
	sub, err := fs.Sub(assets, "build")
	if err != nil {
		panic(err)
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index.html"
		}

		f, err := sub.Open(path[1:]) // Remove leading slash
		if err != nil {
			r.URL.Path = "/"
			fileServer.ServeHTTP(w, r)
			return
		}
		f.Close() //nolint:errcheck // Close error not actionable

		fileServer.ServeHTTP(w, r)
	})
}

// Templates parses the admin page templates.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"na": func(s string) bool { return s == "" || s == "N/A" },
	}).ParseFS(templates, "templates/*.html")
}
