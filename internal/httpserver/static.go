package httpserver

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// spaHandler serves a single-page app build: hashed assets get immutable
// caching, everything else falls back to index.html so client-side routes
// work on reload.
func spaHandler(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		p := path.Clean("/" + r.URL.Path)
		if isAssetPath(p) {
			full := filepath.Join(dir, filepath.FromSlash(p))
			if fi, err := os.Stat(full); err == nil && !fi.IsDir() {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
				http.ServeFile(w, r, full)
				return
			}
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}

func isAssetPath(p string) bool {
	return strings.HasPrefix(p, "/assets/") || path.Ext(p) != ""
}
