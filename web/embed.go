// Package web holds the default control panel served when no web files
// directory is configured.
package web

import (
	"embed"
	"net/http"
)

//go:embed index.html app.js style.css
var assets embed.FS

// FileSystem serves dir when set, otherwise the embedded panel.
func FileSystem(dir string) http.FileSystem {
	if dir != "" {
		return http.Dir(dir)
	}
	return http.FS(assets)
}
