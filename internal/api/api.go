// Package api binds a server.Server to HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"git.sr.ht/~jakintosh/sso/pkg/server"
	"git.sr.ht/~jakintosh/sso/pkg/sso"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type API struct {
	server       *server.Server
	log          *logrus.Logger
	registry     *prometheus.Registry
	metrics      *Metrics
	secretHeader string
	tokenHeader  string
}

type Option func(*API)

func WithLogger(log *logrus.Logger) Option {
	return func(a *API) {
		a.log = log
	}
}

// WithRegistry registers the call metrics on registry and serves it on
// /metrics.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(a *API) {
		a.registry = registry
	}
}

// WithHeaderNames overrides the credential header names.
func WithHeaderNames(secretHeader, tokenHeader string) Option {
	return func(a *API) {
		a.secretHeader = secretHeader
		a.tokenHeader = tokenHeader
	}
}

func New(
	srv *server.Server,
	opts ...Option,
) *API {
	a := &API{
		server:       srv,
		secretHeader: sso.HeaderClientSecret,
		tokenHeader:  sso.HeaderClientToken,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logrus.New()
	}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	a.metrics = NewMetrics(a.registry)
	return a
}

// decodeRequest reads a JSON body into req. An empty body leaves req
// untouched; a malformed one is logged and reported as false.
func decodeRequest[T any](
	req *T,
	r *http.Request,
	log *logrus.Logger,
) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(req)
	if errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		logApiErr(log, r, "bad json request", err)
		return false
	}
	return true
}

func returnJson(
	data any,
	w http.ResponseWriter,
) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}

func logApiErr(
	log *logrus.Logger,
	r *http.Request,
	msg string,
	err error,
) {
	entry := log.WithFields(logrus.Fields{
		"method": r.Method,
		"uri":    r.RequestURI,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(msg)
}
