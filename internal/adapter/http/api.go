package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
	"github.com/couchcryptid/vigil-feed-service/internal/projector"
	"github.com/couchcryptid/vigil-feed-service/internal/session"
)

// ViewModel is the read and filter surface of a session.
type ViewModel interface {
	View() projector.View
	ViewOf(f *session.Frame) projector.View
	ViewFiltered(f projector.Filter) projector.View
	Frame() *session.Frame
	ToggleFilter(ctx context.Context, sev domain.Severity) (projector.Filter, error)
	ClearFilter(ctx context.Context) error
}

// StreamStatus reports the push feed connection state.
type StreamStatus interface {
	Status() string
}

type api struct {
	vm     ViewModel
	stream StreamStatus
	logger *slog.Logger
}

// StatsResponse is the body of GET /api/v1/stats.
type StatsResponse struct {
	Stats        domain.Stats     `json:"stats"`
	VisibleCount int              `json:"visible_count"`
	Filter       projector.Filter `json:"filter"`
	Streamed     int              `json:"streamed"`
	Arcs         int              `json:"arcs"`
	Version      uint64           `json:"version"`
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/view", a.handleView)
	mux.HandleFunc("GET /api/v1/view.geojson", a.handleGeoJSON)
	mux.HandleFunc("GET /api/v1/arcs", a.handleArcs)
	mux.HandleFunc("GET /api/v1/stats", a.handleStats)
	mux.HandleFunc("GET /api/v1/stream", a.handleStream)
	mux.HandleFunc("POST /api/v1/filter/{severity}", a.handleToggle)
	mux.HandleFunc("DELETE /api/v1/filter", a.handleClear)
}

// view honours an optional ?severity= override without touching the
// session filter.
func (a *api) view(r *http.Request) (projector.View, error) {
	raw := r.URL.Query().Get("severity")
	if raw == "" {
		return a.vm.View(), nil
	}
	sev, err := domain.ParseSeverity(raw)
	if err != nil {
		return projector.View{}, err
	}
	return a.vm.ViewFiltered(projector.Only(sev)), nil
}

func (a *api) handleView(w http.ResponseWriter, r *http.Request) {
	v, err := a.view(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *api) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	v, err := a.view(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := v.FeatureCollection().MarshalJSON()
	if err != nil {
		a.logger.Error("encode geojson failed", "error", err)
		writeError(w, http.StatusInternalServerError, "encode geojson")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck // client may have gone away
}

func (a *api) handleArcs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"arcs": a.vm.Frame().Arcs})
}

func (a *api) handleStats(w http.ResponseWriter, _ *http.Request) {
	f := a.vm.Frame()
	v := a.vm.ViewOf(f)
	writeJSON(w, http.StatusOK, StatsResponse{
		Stats:        f.State.Stats,
		VisibleCount: v.VisibleCount,
		Filter:       f.Filter,
		Streamed:     f.State.Streamed,
		Arcs:         len(f.Arcs),
		Version:      f.State.Version,
	})
}

func (a *api) handleStream(w http.ResponseWriter, _ *http.Request) {
	state := "disabled"
	if a.stream != nil {
		state = a.stream.Status()
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": state})
}

func (a *api) handleToggle(w http.ResponseWriter, r *http.Request) {
	sev, err := domain.ParseSeverity(r.PathValue("severity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := a.vm.ToggleFilter(r.Context(), sev)
	if err != nil {
		a.mutationFailed(w, err)
		return
	}
	a.logger.Info("filter toggled", "filter", f.String())
	writeJSON(w, http.StatusOK, map[string]any{"filter": f})
}

func (a *api) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := a.vm.ClearFilter(r.Context()); err != nil {
		a.mutationFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filter": projector.Filter{}})
}

func (a *api) mutationFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrStopped) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	a.logger.Warn("filter update failed", "error", err)
	writeError(w, http.StatusServiceUnavailable, "filter update failed")
}
