package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/mahaj/roomcast/pkg/auth"
	"github.com/mahaj/roomcast/pkg/config"
	"github.com/mahaj/roomcast/pkg/engine"
	"github.com/mahaj/roomcast/pkg/journal"
	"github.com/mahaj/roomcast/pkg/logging"
	"github.com/mahaj/roomcast/pkg/presence"
	"github.com/redis/go-redis/v9"
)

const journalBuffer = 4096

func main() {
	var cfg config.Gateway
	if err := config.Parse(&cfg); err != nil {
		logging.New(os.Stderr, "info", "json").Error("Invalid configuration", "error", err.Error())
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.Level, cfg.Format)

	engCfg, err := cfg.Engine()
	if err != nil {
		logger.Error("Invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	ctx, cancelPumps := context.WithCancel(context.Background())
	var pumps []*journal.Pump
	var sinks journal.Multi
	var closers []func() error

	if len(cfg.KafkaBrokers) > 0 {
		writer := journal.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, writer.Close)
		pump := journal.NewPump("kafka", journal.NewKafkaHandler(writer), journalBuffer, logger)
		pumps = append(pumps, pump)
		sinks = append(sinks, pump)
		logger.Info("Publishing journal to Kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, rdb.Close)
		mirror := presence.NewMirror(rdb, logger)
		if err := mirror.Reset(ctx); err != nil {
			logger.Warn("Could not reset presence mirror", "error", err.Error())
		}
		pump := journal.NewPump("redis", mirror, journalBuffer, logger)
		pumps = append(pumps, pump)
		sinks = append(sinks, pump)
		logger.Info("Mirroring presence to Redis", "addr", cfg.RedisAddr)
	}
	for _, p := range pumps {
		go p.Run(ctx)
	}

	hub := NewHub(logger)
	eng, err := engine.New(engCfg, hub, logger, engine.WithJournal(sinks))
	if err != nil {
		logger.Error("Could not start engine", "error", err.Error())
		os.Exit(1)
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, 0)
	mux := http.NewServeMux()
	mux.Handle("/ws", NewGateway(hub, eng, issuer, cfg.FramesPerSecond, logger))
	(&inspection{engine: eng, hub: hub, logger: logger}).routes(mux)

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		logger.Info("Gateway starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Gateway stopped", "error", err.Error())
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"gateway": func(ctx context.Context) error {
				logger.Info("Graceful shutdown initiated")
				err := srv.Shutdown(ctx)
				hub.Drain()
				eng.Close()

				cancelPumps()
				var wg sync.WaitGroup
				for _, p := range pumps {
					wg.Add(1)
					go func() {
						defer wg.Done()
						p.Wait()
					}()
				}
				wg.Wait()

				for _, c := range closers {
					err = errors.Join(err, c())
				}
				return err
			},
		},
	)

	exitCode := <-wait
	logger.Info("Gateway exited", "code", exitCode)
	os.Exit(exitCode)
}
