package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mahaj/roomcast/pkg/engine"
)

const maxRESTMessages = 500

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// inspection serves read-only views of the engine state.
type inspection struct {
	engine *engine.Engine
	hub    *Hub
	logger *slog.Logger
}

func (s *inspection) routes(mux *http.ServeMux) {
	mux.Handle("GET /api/health", CORSMiddleware(http.HandlerFunc(s.health)))
	mux.Handle("GET /api/messages", CORSMiddleware(http.HandlerFunc(s.messages)))
	mux.Handle("GET /api/users", CORSMiddleware(http.HandlerFunc(s.users)))
	mux.Handle("GET /api/rooms", CORSMiddleware(http.HandlerFunc(s.rooms)))
	mux.Handle("GET /api/stats", CORSMiddleware(http.HandlerFunc(s.stats)))
}

func (s *inspection) health(w http.ResponseWriter, r *http.Request) {
	s.write(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"clients":   s.hub.Len(),
	})
}

func (s *inspection) messages(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		roomID = r.URL.Query().Get("room_id")
	}
	if roomID == "" {
		http.Error(w, "roomId is required", http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRESTMessages)
	}
	s.write(w, s.engine.Messages(roomID, limit))
}

func (s *inspection) users(w http.ResponseWriter, r *http.Request) {
	s.write(w, s.engine.Presence())
}

func (s *inspection) rooms(w http.ResponseWriter, r *http.Request) {
	s.write(w, s.engine.Rooms())
}

func (s *inspection) stats(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Stats()
	s.write(w, map[string]any{
		"users":           st.Users,
		"messages":        st.Messages,
		"rooms":           st.Rooms,
		"active_rooms":    st.ActiveRooms,
		"pending_cleanup": st.Pending,
		"uptime_seconds":  int64(st.Uptime.Seconds()),
	})
}

func (s *inspection) write(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Could not write response", "error", err.Error())
	}
}
