// Package admin exposes the read/delete management surface over the relay
// core: aggregate stats, session and room listings, and force-deletes.
// Every mutation routes through Core operations so the directory and room
// invariants hold afterwards.
package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/paxio/streaming-relay/internal/httpserver"
	"github.com/paxio/streaming-relay/internal/relay"
)

type Handler struct {
	core      *relay.Core
	log       *slog.Logger
	relayPath string
	started   time.Time

	mux *http.ServeMux
}

func New(core *relay.Core, logger *slog.Logger, relayPath string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		core:      core,
		log:       logger,
		relayPath: relayPath,
		started:   time.Now(),
		mux:       http.NewServeMux(),
	}
	h.routes()
	return h
}

// ServeHTTP applies the permissive CORS policy, answers preflight, and
// routes the rest.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hdr := w.Header()
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /api/health", h.handleHealth)
	h.mux.HandleFunc("GET /api/stats", h.handleStats)

	h.mux.HandleFunc("GET /api/sessions", h.handleListSessions)
	h.mux.HandleFunc("GET /api/sessions/{id}", h.handleGetSession)
	h.mux.HandleFunc("DELETE /api/sessions/{id}", h.handleDeleteSession)

	h.mux.HandleFunc("GET /api/rooms", h.handleListRooms)
	h.mux.HandleFunc("GET /api/rooms/{id}", h.handleGetRoom)
	h.mux.HandleFunc("DELETE /api/rooms/{id}", h.handleDeleteRoom)

	h.mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		httpserver.WriteJSON(w, http.StatusNotFound, map[string]any{"error": "API endpoint not found"})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"wsPath":    h.relayPath,
		"timestamp": time.Now().UnixMilli(),
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.core.Stats()
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"users": map[string]any{
			"total":  stats.SessionsTotal,
			"online": stats.SessionsOnline,
		},
		"rooms": map[string]any{
			"total":             stats.RoomsTotal,
			"totalParticipants": stats.RoomsParticipants,
		},
		"server": map[string]any{
			"uptime":    time.Since(h.started).Seconds(),
			"timestamp": time.Now().UnixMilli(),
		},
	})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, h.core.Sessions())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.core.Lookup(r.PathValue("id"))
	if err != nil {
		httpserver.WriteJSON(w, http.StatusNotFound, map[string]any{"error": "Session not found"})
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.core.DeleteSession(id); err != nil {
		if errors.Is(err, relay.ErrNotFound) {
			httpserver.WriteJSON(w, http.StatusNotFound, map[string]any{"error": "Session not found"})
			return
		}
		httpserver.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal server error"})
		return
	}
	h.log.Info("admin deleted session", "client_id", id)
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"message": "Session deleted"})
}

func (h *Handler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, h.core.Rooms())
}

func (h *Handler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	info, err := h.core.Room(r.PathValue("id"))
	if err != nil {
		httpserver.WriteJSON(w, http.StatusNotFound, map[string]any{"error": "Room not found"})
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.core.DeleteRoom(id); err != nil {
		if errors.Is(err, relay.ErrNotFound) {
			httpserver.WriteJSON(w, http.StatusNotFound, map[string]any{"error": "Room not found"})
			return
		}
		httpserver.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal server error"})
		return
	}
	h.log.Info("admin deleted room", "room_id", id)
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"message": "Room deleted"})
}
