package main

import (
	"context"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/mahaj/roomcast/pkg/config"
	"github.com/mahaj/roomcast/pkg/db"
	"github.com/mahaj/roomcast/pkg/logging"
)

func main() {
	var cfg config.Archiver
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
		logger.Error("Could not connect to ScyllaDB", "error", err.Error())
		os.Exit(1)
	}

	consumer := NewConsumer(NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID), db.NewArchive(session), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("Starting archiver", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic, "group_id", cfg.KafkaGroupID)
		consumer.Consume(ctx)
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		30*time.Second,
		map[string]gfshutdown.Operation{
			"archiver": func(ctx context.Context) error {
				cancel()
				select {
				case <-done:
				case <-ctx.Done():
				}
				err := consumer.Close()
				session.Close()
				return err
			},
		},
	)

	exitCode := <-wait
	logger.Info("Archiver exited", "code", exitCode)
	os.Exit(exitCode)
}
