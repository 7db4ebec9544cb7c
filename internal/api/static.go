package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// staticHandler serves files from a directory. Directories resolve to their
// index.html; anything else that does not exist is a 404.
type staticHandler struct {
	staticDir string
}

func (h staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.staticDir == "" {
		http.NotFound(w, r)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	name := filepath.Join(h.staticDir, filepath.FromSlash(clean))

	fi, err := os.Stat(name)
	if err == nil && fi.IsDir() {
		name = filepath.Join(name, "index.html")
		fi, err = os.Stat(name)
	}
	if err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}

	// Cache static assets aggressively
	if strings.HasPrefix(clean, "/assets/") {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}

	http.ServeFile(w, r, name)
}
