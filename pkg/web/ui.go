package web

import (
	"net/http"
	"os"
	"path/filepath"
)

// serveSPA serves files from directory and falls back to mainIndex for
// anything it does not have, so client side routes still load.
func serveSPA(directory string, mainIndex string) http.HandlerFunc {
	mainIndexPath := filepath.Join(directory, mainIndex)

	return func(w http.ResponseWriter, r *http.Request) {
		// Disable caching
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		if r.URL.Path == "/" || r.URL.Path == "" {
			http.ServeFile(w, r, mainIndexPath)
			return
		}

		filePath := filepath.Join(directory, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(filePath); err != nil || info.IsDir() {
			// Can't find the requested file, serve index.
			http.ServeFile(w, r, mainIndexPath)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}
