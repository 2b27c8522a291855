package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/anldrms/satellite-tracker-pro/internal/catalog"
	"github.com/anldrms/satellite-tracker-pro/internal/httputil"
	"github.com/anldrms/satellite-tracker-pro/internal/scene"
	"github.com/anldrms/satellite-tracker-pro/internal/view"
)

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

type searchRequest struct {
	Term string `json:"term"`
}

type selectRequest struct {
	Name string `json:"name"`
}

type pickRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type pickResponse struct {
	Hit       bool          `json:"hit"`
	Selection *view.Details `json:"selection,omitempty"`
}

type cameraResponse struct {
	LonDeg     float64 `json:"lon_deg"`
	LatDeg     float64 `json:"lat_deg"`
	AltKm      float64 `json:"alt_km"`
	DurationMs int64   `json:"duration_ms"`
}

type toggleResponse struct {
	Category string     `json:"category"`
	Active   bool       `json:"active"`
	Stats    view.Stats `json:"stats"`
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.deps.Coordinator.Status())
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.deps.View.Stats())
}

func (h *handlers) categories(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.deps.View.Categories())
}

func (h *handlers) toggleCategory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	stats, err := h.deps.View.ToggleCategory(name)
	if errors.Is(err, catalog.ErrUnknownCategory) {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("toggle category failed", "category", name, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := toggleResponse{Category: name, Stats: stats}
	for _, c := range h.deps.View.Categories() {
		if c.Name == name {
			resp.Active = c.Active
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.deps.View.SetSearch(req.Term))
}

func (h *handlers) satellites(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.deps.View.List())
}

func (h *handlers) selection(w http.ResponseWriter, r *http.Request) {
	d, ok := h.deps.View.Selected()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *handlers) selectSatellite(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	d, err := h.deps.View.Select(req.Name)
	if errors.Is(err, view.ErrUnknownSatellite) {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("select failed", "name", req.Name, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *handlers) deselect(w http.ResponseWriter, r *http.Request) {
	h.deps.View.Deselect()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) pick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.X == nil || req.Y == nil {
		httputil.WriteError(w, http.StatusBadRequest, "x and y are required")
		return
	}

	d, ok := h.deps.View.Pick(scene.Point{X: *req.X, Y: *req.Y})
	resp := pickResponse{Hit: ok}
	if ok {
		resp.Selection = &d
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *handlers) playbackState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.deps.Playback.State())
}

func (h *handlers) togglePlay(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.deps.Playback.TogglePlay())
}

func (h *handlers) cycleSpeed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.deps.Playback.CycleSpeed())
}

func (h *handlers) home(w http.ResponseWriter, r *http.Request) {
	h.deps.Scene.Home()
	cam := h.deps.Scene.Camera()
	httputil.WriteJSON(w, http.StatusOK, cameraResponse{
		LonDeg:     cam.Target.LonDeg,
		LatDeg:     cam.Target.LatDeg,
		AltKm:      cam.Target.AltKm,
		DurationMs: cam.Duration.Milliseconds(),
	})
}
