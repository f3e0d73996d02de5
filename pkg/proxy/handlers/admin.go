package handlers

import (
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/proxy"
	"mercator-hq/saturn/pkg/state"
	"mercator-hq/saturn/pkg/wire"
)

// ConfigHandler serves GET and POST /api/config.
//
// GET reports the configuration of the live snapshot. POST validates the
// body as a complete configuration file and atomically replaces the
// on-disk file; the live snapshot is untouched until the next reload.
type ConfigHandler struct {
	cell *state.Cell
}

// NewConfigHandler creates the config endpoint handler.
func NewConfigHandler(cell *state.Cell) *ConfigHandler {
	return &ConfigHandler{cell: cell}
}

func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPost:
		h.post(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		proxy.WriteJSON(w, http.StatusMethodNotAllowed,
			wire.NewErrorResponse(wire.ErrTypeInvalidRequest, "method not allowed"))
	}
}

// get returns the live snapshot's configuration as JSON. The config
// structs carry yaml tags only, so the response is produced by a
// yaml-to-generic-map round trip rather than a second set of struct tags.
func (h *ConfigHandler) get(w http.ResponseWriter, r *http.Request) {
	snap := h.cell.Current()

	raw, err := yaml.Marshal(snap.Config)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to serialize configuration", "error", err)
		proxy.WriteJSON(w, http.StatusInternalServerError,
			wire.NewErrorResponse(wire.ErrTypeAPI, "failed to serialize configuration"))
		return
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		slog.ErrorContext(r.Context(), "failed to serialize configuration", "error", err)
		proxy.WriteJSON(w, http.StatusInternalServerError,
			wire.NewErrorResponse(wire.ErrTypeAPI, "failed to serialize configuration"))
		return
	}

	proxy.WriteJSON(w, http.StatusOK, doc)
}

// post validates the request body as a configuration file and writes it
// to disk atomically. The original bytes are persisted, not a re-marshal,
// so comments and formatting in the submitted document survive.
func (h *ConfigHandler) post(w http.ResponseWriter, r *http.Request) {
	path := h.cell.Path()
	if path == "" {
		proxy.WriteJSON(w, http.StatusInternalServerError,
			wire.NewErrorResponse(wire.ErrTypeAPI, "server started without a configuration file"))
		return
	}

	body, err := proxy.ReadBody(r)
	if err != nil {
		proxy.HandleError(w, err)
		return
	}

	if _, err := config.Parse(body); err != nil {
		proxy.WriteJSON(w, http.StatusBadRequest,
			wire.NewErrorResponse(wire.ErrTypeInvalidRequest, err.Error()))
		return
	}

	if err := config.WriteRaw(path, body); err != nil {
		slog.ErrorContext(r.Context(), "failed to write configuration file", "path", path, "error", err)
		proxy.WriteJSON(w, http.StatusInternalServerError,
			wire.NewErrorResponse(wire.ErrTypeAPI, err.Error()))
		return
	}

	slog.InfoContext(r.Context(), "configuration file updated", "path", path, "bytes", len(body))
	w.WriteHeader(http.StatusNoContent)
}

// ReloadHandler serves POST /api/reload: rebuild the snapshot from the
// on-disk configuration and swap it in. On failure the previous snapshot
// keeps serving and the error comes back in the response body.
type ReloadHandler struct {
	cell *state.Cell
}

// NewReloadHandler creates the reload endpoint handler.
func NewReloadHandler(cell *state.Cell) *ReloadHandler {
	return &ReloadHandler{cell: cell}
}

func (h *ReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	snap, err := h.cell.Reload(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "configuration reload failed", "error", err)
		proxy.WriteJSON(w, http.StatusInternalServerError,
			wire.NewErrorResponse(wire.ErrTypeAPI, err.Error()))
		return
	}

	proxy.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"generation": snap.Generation,
		"providers":  snap.Registry.Len(),
		"models":     len(snap.Resolver.Models()),
	})
}
