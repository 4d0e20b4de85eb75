package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed assets
var assets embed.FS

// MountShell registers the page shell at / and its static files under
// /assets/. They carry no wiki content and need no authentication.
func MountShell(r chi.Router) {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(sub))))
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFileFS(w, req, sub, "index.html")
	})
}
