// Package api assembles the HTTP surface: the versioned REST routes,
// the live notification socket, and the operational endpoints (health,
// metrics, docs).
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"parley/pkg/api/handlers"
	"parley/pkg/store"
	"parley/pkg/telemetry"
)

// Router builds the full application router. The perimeter middleware
// (CORS, identity, rate limiting) is applied by the caller so tests can
// exercise routes directly.
func Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", readyzHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(routeMetrics)
	handlers.RegisterUsers(v1)
	handlers.RegisterRooms(v1)
	handlers.RegisterMessages(v1)
	handlers.RegisterWS(v1)

	return r
}

// routeMetrics records per-route counters and latency using the mux
// path template, keeping metric cardinality independent of ids.
func routeMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if t, err := cur.GetPathTemplate(); err == nil {
				route = t
			}
		}
		telemetry.Middleware(route, next).ServeHTTP(w, r)
	})
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
