package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mahaj/roomcast/pkg/auth"
	"github.com/mahaj/roomcast/pkg/db"
	"github.com/mahaj/roomcast/pkg/model"
	"github.com/mahaj/roomcast/pkg/validator"
)

type HistorySource interface {
	History(ctx context.Context, scope string, before time.Time, limit int) ([]model.Message, error)
}

type HistoryHandler struct {
	archive  HistorySource
	validate *validator.Validator
	logger   *slog.Logger
}

func NewHistoryHandler(archive HistorySource, v *validator.Validator, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{archive: archive, validate: v, logger: logger}
}

// ServeHTTP serves archived messages of a room (room_id) or of the caller's
// private conversation with another user (with).
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	roomID := strings.TrimSpace(q.Get("room_id"))
	if roomID == "" {
		roomID = "global"
	}
	if errs := h.validate.Validate(roomID, "max=64"); len(errs) > 0 {
		http.Error(w, "room_id is too long", http.StatusBadRequest)
		return
	}
	scope := db.RoomScope(roomID)
	if with := strings.TrimSpace(q.Get("with")); with != "" {
		scope = db.DirectScope(claims.DisplayName, with)
	}

	var before time.Time
	if raw := q.Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "before must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		before = t
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	messages, err := h.archive.History(r.Context(), scope, before, limit)
	if err != nil {
		h.logger.Error("Failed to read history", "scope", scope, "error", err.Error())
		http.Error(w, "Failed to retrieve history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, messages)
}

type LoginRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=64"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func LoginHandler(issuer *auth.Issuer, v *validator.Validator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if errs := v.ValidateStruct(req); len(errs) > 0 {
			http.Error(w, errs[0].String(), http.StatusBadRequest)
			return
		}

		token, err := issuer.GenerateToken(req.DisplayName)
		if err != nil {
			logger.Error("Failed to generate token", "error", err.Error())
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, LoginResponse{Token: token})
	}
}

func AuthMiddleware(issuer *auth.Issuer, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := auth.TokenFromRequest(r)
		if err != nil {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		claims, err := issuer.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		logger.Debug("Authenticated request", "display_name", claims.DisplayName, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Could not write response", "error", err.Error())
	}
}
