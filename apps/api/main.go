package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/mahaj/roomcast/pkg/auth"
	"github.com/mahaj/roomcast/pkg/config"
	"github.com/mahaj/roomcast/pkg/db"
	"github.com/mahaj/roomcast/pkg/logging"
	"github.com/mahaj/roomcast/pkg/presence"
	"github.com/mahaj/roomcast/pkg/validator"
	"github.com/redis/go-redis/v9"
)

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if r.Method == http.MethodOptions {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// newMux wires the routes. Everything except /login requires a token.
func newMux(issuer *auth.Issuer, history HistorySource, source PresenceSource, logger *slog.Logger) *http.ServeMux {
	v := validator.New()
	protect := func(h http.Handler) http.Handler {
		return CORSMiddleware(AuthMiddleware(issuer, logger, h))
	}
	ph := NewPresenceHandler(source, logger)

	mux := http.NewServeMux()
	mux.Handle("/login", CORSMiddleware(LoginHandler(issuer, v, logger)))
	mux.Handle("GET /history", protect(NewHistoryHandler(history, v, logger)))
	mux.Handle("GET /presence", protect(http.HandlerFunc(ph.Users)))
	mux.Handle("GET /rooms/{id}/users", protect(http.HandlerFunc(ph.RoomUsers)))
	return mux
}

func main() {
	var cfg config.API
	if err := config.Parse(&cfg); err != nil {
		logging.New(os.Stderr, "info", "json").Error("Invalid configuration", "error", err.Error())
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.Level, cfg.Format)

	if err := db.EnsureSchema(cfg.ScyllaHosts, cfg.ScyllaKeyspace, logger); err != nil {
		logger.Error("Could not prepare schema", "error", err.Error())
		os.Exit(1)
	}
	session, err := db.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace, logger)
	if err != nil {
		logger.Error("Failed to connect to ScyllaDB", "error", err.Error())
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: newMux(issuer, db.NewArchive(session), presence.NewReader(rdb, logger), logger),
	}
	go func() {
		logger.Info("API Service starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API Service stopped", "error", err.Error())
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"api": func(ctx context.Context) error {
				err := srv.Shutdown(ctx)
				session.Close()
				return errors.Join(err, rdb.Close())
			},
		},
	)

	exitCode := <-wait
	logger.Info("API Service exited", "code", exitCode)
	os.Exit(exitCode)
}
