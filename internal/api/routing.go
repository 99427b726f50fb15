package api

import (
	"net/http"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const contentTypeForm = "application/x-www-form-urlencoded"

// Router serves every call on /{call} with the call's method, the same
// calls on /?action={call}, and /health and /metrics.
func (a *API) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.Health()).
		Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})).
		Methods(http.MethodGet)

	r.HandleFunc("/", a.Action()).
		Methods(http.MethodGet, http.MethodPost).
		Queries("action", "{action}")

	for _, call := range sso.Calls() {
		path := "/" + string(call)
		if call.Method() == http.MethodGet {
			r.HandleFunc(path, a.Call(call)).
				Methods(http.MethodGet)
			continue
		}
		r.HandleFunc(path, a.CallForm(call)).
			Methods(http.MethodPost).
			HeadersRegexp("Content-Type", "^"+contentTypeForm)
		r.HandleFunc(path, a.CallJSON(call)).
			Methods(http.MethodPost)
	}

	return a.logRequests(r)
}
