package web

import (
	"net/http"
	"path/filepath"
)

// ServeDashboard serves the dashboard page. The page is a thin viewer over
// the /ws event stream and the JSON API; it holds no transform logic of
// its own.
func ServeDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	http.ServeFile(w, r, filepath.Join("web", "index.html"))
}
