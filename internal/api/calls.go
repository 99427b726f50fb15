package api

import (
	"mime"
	"net/http"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/sso/pkg/server"
	"git.sr.ht/~jakintosh/sso/pkg/sso"
)

type CallRequest struct {
	Authorization string      `json:"authorization"`
	Username      string      `json:"username"`
	Context       sso.Context `json:"context"`
}

func (c CallRequest) body() server.Body {
	return server.Body{
		Authorization: c.Authorization,
		Username:      c.Username,
		Context:       c.Context,
	}
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (a *API) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnJson(HealthResponse{Status: "ok"}, w)
	}
}

// Call serves a call without a body.
func (a *API) Call(call sso.Call) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.serve(w, r, call, server.Body{})
	}
}

// CallJSON serves a call with a JSON body. A malformed body is served as
// empty so the call still answers with an envelope.
func (a *API) CallJSON(call sso.Call) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CallRequest
		if ok := decodeRequest(&req, r, a.log); !ok {
			req = CallRequest{}
		}
		a.serve(w, r, call, req.body())
	}
}

// CallForm serves a call with a form-encoded body. Context entries are
// sent as context[key]=value.
func (a *API) CallForm(call sso.Call) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeForm(w, r)
		if !ok {
			logApiErr(a.log, r, "bad form request", nil)
		}
		a.serve(w, r, call, req.body())
	}
}

// Action serves query-style routing: /?action={call}.
func (a *API) Action() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := sso.ParseCall(r.URL.Query().Get("action"))
		if !ok {
			logApiErr(a.log, r, "unknown action", nil)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodGet {
			a.Call(call)(w, r)
			return
		}
		if isForm(r) {
			a.CallForm(call)(w, r)
			return
		}
		a.CallJSON(call)(w, r)
	}
}

func (a *API) serve(
	w http.ResponseWriter,
	r *http.Request,
	call sso.Call,
	body server.Body,
) {
	start := time.Now()
	req := server.Request{
		ClientSecret:  r.Header.Get(a.secretHeader),
		ClientToken:   r.Header.Get(a.tokenHeader),
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
	}

	res, err := a.server.Handle(r.Context(), call, req)
	if err != nil {
		logApiErr(a.log, r, "couldn't handle call", err)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	a.metrics.RecordCall(call, res.Status(), time.Since(start))
	if rw, ok := w.(*responseWriter); ok {
		rw.call = call
	}
	returnJson(res, w)
}

func decodeForm(
	w http.ResponseWriter,
	r *http.Request,
) (
	CallRequest,
	bool,
) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return CallRequest{}, false
	}

	req := CallRequest{
		Authorization: r.PostForm.Get("authorization"),
		Username:      r.PostForm.Get("username"),
	}
	for key, values := range r.PostForm {
		name, ok := strings.CutPrefix(key, "context[")
		if !ok || !strings.HasSuffix(name, "]") || len(values) == 0 {
			continue
		}
		if req.Context == nil {
			req.Context = sso.Context{}
		}
		req.Context[strings.TrimSuffix(name, "]")] = values[0]
	}
	return req, true
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == contentTypeForm
}
