package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/engine"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/evaluation"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/logging"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/report"
)

// API serves the engine over HTTP/JSON.
type API struct {
	engine  *engine.Engine
	catalog *catalog.Catalog
	log     *slog.Logger
}

// New builds the HTTP API. A nil logger discards.
func New(e *engine.Engine, c *catalog.Catalog, log *slog.Logger) *API {
	if log == nil {
		log = logging.Discard()
	}
	return &API{engine: e, catalog: c, log: log.With(slog.String("component", "rest"))}
}

// NewRouter registers every route.
func (a *API) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/standards", a.listStandards).Methods("GET")
	r.HandleFunc("/zones/{zoneId}/evaluations", a.evaluate).Methods("POST")
	r.HandleFunc("/zones/{zoneId}/preview", a.preview).Methods("GET")
	r.HandleFunc("/zones/{zoneId}/outputs/{standardId}", a.findOutput).Methods("GET")
	r.HandleFunc("/outputs/{outputId}/versions", a.listVersions).Methods("GET")
	r.HandleFunc("/outputs/{outputId}/versions/latest", a.getVersion).Methods("GET")
	r.HandleFunc("/outputs/{outputId}/versions/{number:[0-9]+}", a.getVersion).Methods("GET")
	r.HandleFunc("/outputs/{outputId}/versions/latest/report", a.renderReport).Methods("GET")
	r.HandleFunc("/outputs/{outputId}/versions/{number:[0-9]+}/report", a.renderReport).Methods("GET")

	return r
}

// Handler wraps the router with access logging to w and panic recovery.
func (a *API) Handler(w io.Writer) http.Handler {
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(
		handlers.LoggingHandler(w, a.NewRouter()),
	)
}

// #region handlers
type evaluateBody struct {
	StandardID      string   `json:"standard_id"`
	DatapointIDs    []string `json:"datapoint_ids"`
	Recommendations string   `json:"recommendations"`
}

type standardSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Revision   string `json:"revision"`
	Parameters int    `json:"parameters"`
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (a *API) listStandards(w http.ResponseWriter, _ *http.Request) {
	var out []standardSummary
	for _, std := range a.catalog.Standards() {
		out = append(out, standardSummary{ID: std.ID, Name: std.Name, Revision: std.Revision, Parameters: len(std.Parameters)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) evaluate(w http.ResponseWriter, r *http.Request) {
	var body evaluateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "request body is not valid JSON"})
		return
	}
	v, err := a.engine.Evaluate(r.Context(), mux.Vars(r)["zoneId"], body.StandardID, body.DatapointIDs, body.Recommendations)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (a *API) preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	doc, err := a.engine.Preview(r.Context(), mux.Vars(r)["zoneId"], q.Get("standard"), q["datapoint"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeDocument(w, r, doc)
}

func (a *API) findOutput(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	out, err := a.engine.FindOutput(r.Context(), vars["zoneId"], vars["standardId"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) listVersions(w http.ResponseWriter, r *http.Request) {
	vs, err := a.engine.ListVersions(r.Context(), mux.Vars(r)["outputId"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (a *API) getVersion(w http.ResponseWriter, r *http.Request) {
	v, err := a.loadVersion(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) renderReport(w http.ResponseWriter, r *http.Request) {
	v, err := a.loadVersion(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	doc, err := a.engine.RenderReport(r.Context(), v)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeDocument(w, r, doc)
}

func (a *API) loadVersion(r *http.Request) (evaluation.Version, error) {
	vars := mux.Vars(r)
	number := 0
	if raw, ok := vars["number"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return evaluation.Version{}, evaluation.NewError("get version", evaluation.ErrValidation, "version number must be positive", err)
		}
		number = n
	}
	return a.engine.GetVersion(r.Context(), vars["outputId"], number)
}
// #endregion handlers

// #region responses
type errorBody struct {
	Error string `json:"error"`
}

func (a *API) writeDocument(w http.ResponseWriter, r *http.Request, doc report.Document) {
	if r.URL.Query().Get("format") != "text" {
		writeJSON(w, http.StatusOK, doc)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := report.WriteText(w, doc); err != nil {
		a.log.Warn("write text report", slog.Any("error", err))
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, evaluation.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, evaluation.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, evaluation.ErrAlreadyExists):
		code = http.StatusConflict
	case errors.Is(err, evaluation.ErrTransient):
		code = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	}
	if code >= http.StatusInternalServerError {
		a.log.Warn("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	writeJSON(w, code, errorBody{Error: evaluation.Message(err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
// #endregion responses
