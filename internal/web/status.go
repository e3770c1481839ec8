// Package web serves the operator pages of the wall server.
package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/Ko-stant/tilewall/internal/protocol"
	"github.com/Ko-stant/tilewall/internal/web/views"
)

// StatusSource supplies the snapshot rendered by the status page.
type StatusSource interface {
	Status() protocol.StatusSnapshot
}

// StatusHandler serves views.StatusPage for the current snapshot.
func StatusHandler(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := views.StatusPage(src.Status()).Render(r.Context(), w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// ErrorsHandler serves the recent error records as JSON.
func ErrorsHandler(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		errs := src.Status().Errors
		if errs == nil {
			errs = []protocol.ErrorRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(errs); err != nil {
			log.Printf("Failed to write errors: %v", err)
		}
	}
}
