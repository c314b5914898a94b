package swagger

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// Register attaches the API docs and the OpenAPI document to r.
// Routes:
//
//	GET /api-docs      -> ReDoc HTML
//	GET /openapi.yaml  -> embedded OpenAPI document
func Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}

	r.HandleFunc("/api-docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	}).Methods(http.MethodGet)

	r.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	}).Methods(http.MethodGet)
}

// ReDoc is loaded from its CDN; only the document is served locally.
const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>clickrank API</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
    <script>Redoc.init('/openapi.yaml', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`
