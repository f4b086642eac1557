package files

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers the file API and the store socket on r.
func RegisterRoutes(r *mux.Router, h *Handler) {
	route := func(path, method string, fn http.HandlerFunc) {
		r.Handle(path, h.Metrics.Middleware(path, fn)).Methods(method)
	}

	route("/api/v1/files", http.MethodPost, h.CreateFiles)
	route("/api/v1/files/{fileId}/enter", http.MethodPost, h.EnterFile)
	route("/api/v1/files/{fileId}/exit", http.MethodPost, h.ExitFile)
	route("/api/v1/files/{fileId}/edit", http.MethodPost, h.RecordEdit)
	route("/api/v1/files/{fileId}/users", http.MethodGet, h.PresentUsers)
	route("/api/v1/users", http.MethodPost, h.CreateUser)
	route("/api/v1/users/{userId}", http.MethodGet, h.GetUser)

	// Not wrapped: the metrics recorder does not implement http.Hijacker.
	r.HandleFunc("/app/file/{slug}", h.ServeWS).Methods(http.MethodGet)
}
