// internal/api/middleware.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"prompt-pipeline/internal/common/observability"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Instrument records a counter and duration per route. The operation label is
// the route template, not the raw path, so ids don't explode cardinality.
func Instrument(obs *observability.Observability) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operation := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					operation = r.Method + " " + tmpl
				}
			}

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(recorder, r)

			status := strconv.Itoa(recorder.status)
			obs.RecordOperation(r.Context(), operation, status)
			obs.RecordDuration(r.Context(), operation, time.Since(start), status)
		})
	}
}
