package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/HerbHall/naspulse/internal/aggregate"
	"github.com/HerbHall/naspulse/internal/command"
	"github.com/HerbHall/naspulse/internal/dsm"
	"github.com/HerbHall/naspulse/internal/history"
)

// Observer toggles the scheduler's observed flag. Satisfied by
// *sched.Scheduler.
type Observer interface {
	SetObserved(observed bool)
}

// API serves the versioned consumer endpoints.
type API struct {
	agg      *aggregate.Aggregator
	hist     *history.Store
	exec     *command.Executor
	observer Observer
	logger   *zap.Logger
}

// NewAPI creates the API handler set. hist and observer may be nil when the
// corresponding feature is disabled.
func NewAPI(agg *aggregate.Aggregator, hist *history.Store, exec *command.Executor, observer Observer, logger *zap.Logger) *API {
	return &API{
		agg:      agg,
		hist:     hist,
		exec:     exec,
		observer: observer,
		logger:   logger.Named("api"),
	}
}

// RegisterRoutes mounts the API on the server mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/snapshot", a.handleSnapshot)
	mux.HandleFunc("GET /api/v1/sources", a.handleSources)
	mux.HandleFunc("GET /api/v1/sources/{name}", a.handleSource)
	mux.HandleFunc("GET /api/v1/sources/{name}/history", a.handleSourceHistory)
	mux.HandleFunc("POST /api/v1/active", a.handleActive)
	mux.HandleFunc("POST /api/v1/commands/{command}", a.handleCommand)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleSnapshot returns the full engine state.
func (a *API) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.agg.Snapshot())
}

// handleSources returns every source record.
func (a *API) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.agg.Snapshot().Records)
}

// handleSource returns one source record.
func (a *API) handleSource(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rec, ok := a.agg.Record(name)
	if !ok {
		NotFound(w, "unknown source "+name, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSourceHistory returns recent poll results for one source.
func (a *API) handleSourceHistory(w http.ResponseWriter, r *http.Request) {
	if a.hist == nil {
		NotFound(w, "history is disabled", r.URL.Path)
		return
	}
	name := r.PathValue("name")
	if _, ok := a.agg.Record(name); !ok {
		NotFound(w, "unknown source "+name, r.URL.Path)
		return
	}

	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			BadRequest(w, "limit must be a positive integer", r.URL.Path)
			return
		}
		limit = n
	}

	entries, err := a.hist.Recent(r.Context(), name, limit)
	if err != nil {
		a.logger.Error("history query failed", zap.String("source", name), zap.Error(err))
		InternalError(w, "history query failed", r.URL.Path)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type activeRequest struct {
	Source   string `json:"source,omitempty"`
	Observed *bool  `json:"observed,omitempty"`
}

// handleActive switches the displayed source and/or toggles the observed
// flag. POST /api/v1/active {"source":"storage","observed":true}
func (a *API) handleActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body", r.URL.Path)
		return
	}
	if req.Source == "" && req.Observed == nil {
		BadRequest(w, "provide source and/or observed", r.URL.Path)
		return
	}

	if req.Source != "" {
		if err := a.agg.SetActive(r.Context(), req.Source); err != nil {
			NotFound(w, err.Error(), r.URL.Path)
			return
		}
	}
	if req.Observed != nil && a.observer != nil {
		a.observer.SetObserved(*req.Observed)
	}

	writeJSON(w, http.StatusOK, a.agg.Snapshot().State)
}

// handleCommand issues one appliance control command.
// POST /api/v1/commands/{command} with an optional JSON object of string
// parameters.
func (a *API) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("command")

	params := url.Values{}
	if r.Body != nil && r.ContentLength != 0 {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			BadRequest(w, "invalid JSON body", r.URL.Path)
			return
		}
		for k, v := range body {
			params.Set(k, v)
		}
	}

	ack, err := a.exec.Execute(r.Context(), name, params)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrUnsupportedCommand):
			BadRequest(w, err.Error(), r.URL.Path)
		case isApplianceError(err):
			BadGateway(w, err.Error(), r.URL.Path)
		default:
			InternalError(w, err.Error(), r.URL.Path)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, ack)
}

// isApplianceError reports whether err came from the appliance side.
func isApplianceError(err error) bool {
	var (
		authErr  *dsm.AuthError
		netErr   *dsm.NetworkError
		apiErr   *dsm.APIError
		parseErr *dsm.ParseError
	)
	return errors.As(err, &authErr) || errors.As(err, &netErr) ||
		errors.As(err, &apiErr) || errors.As(err, &parseErr)
}
