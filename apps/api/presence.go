package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mahaj/roomcast/pkg/presence"
)

type PresenceSource interface {
	Users(ctx context.Context) ([]presence.Entry, error)
	RoomUsers(ctx context.Context, roomID string) ([]string, error)
}

type PresenceHandler struct {
	source PresenceSource
	logger *slog.Logger
}

func NewPresenceHandler(source PresenceSource, logger *slog.Logger) *PresenceHandler {
	return &PresenceHandler{source: source, logger: logger}
}

// Users serves GET /presence.
func (h *PresenceHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.source.Users(r.Context())
	if err != nil {
		h.logger.Error("Failed to fetch presence", "error", err.Error())
		http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, users)
}

// RoomUsers serves GET /rooms/{id}/users.
func (h *PresenceHandler) RoomUsers(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	users, err := h.source.RoomUsers(r.Context(), roomID)
	if err != nil {
		h.logger.Error("Failed to fetch presence", "room_id", roomID, "error", err.Error())
		http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, users)
}
