// Package config loads per-process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mahaj/roomcast/pkg/engine"
)

var ErrSeedRoom = errors.New("invalid seed room")

// Log is shared by every process.
type Log struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type Gateway struct {
	Log

	Addr            string        `env:"GATEWAY_ADDR"      envDefault:":8080"`
	JWTSecret       string        `env:"JWT_SECRET,notEmpty"`
	DefaultRoomID   string        `env:"DEFAULT_ROOM_ID"   envDefault:"global"`
	DefaultRoomName string        `env:"DEFAULT_ROOM_NAME" envDefault:"Global Chat"`
	SeedRooms       []string      `env:"SEED_ROOMS"        envDefault:"tech:Tech Talk,random:Random" envSeparator:","`
	MessageCapacity int           `env:"MESSAGE_CAPACITY"  envDefault:"500"`
	HistoryLimit    int           `env:"HISTORY_LIMIT"     envDefault:"50"`
	JoinDebounce    time.Duration `env:"JOIN_DEBOUNCE"     envDefault:"2s"`
	CleanupDebounce time.Duration `env:"CLEANUP_DEBOUNCE"  envDefault:"3s"`
	MaxRooms        int           `env:"MAX_ROOMS"         envDefault:"1000"`
	FramesPerSecond float64       `env:"FRAMES_PER_SECOND" envDefault:"40"`
	KafkaBrokers    []string      `env:"KAFKA_BROKERS"     envSeparator:","`
	KafkaTopic      string        `env:"KAFKA_TOPIC"       envDefault:"chat-events"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"  envDefault:"30s"`
}

// Engine converts the gateway settings into the engine configuration.
func (g Gateway) Engine() (engine.Config, error) {
	seeds, err := ParseSeedRooms(g.SeedRooms)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		DefaultRoomID:   g.DefaultRoomID,
		DefaultRoomName: g.DefaultRoomName,
		SeedRooms:       seeds,
		MessageCapacity: g.MessageCapacity,
		HistoryLimit:    g.HistoryLimit,
		JoinDebounce:    g.JoinDebounce,
		CleanupDebounce: g.CleanupDebounce,
		MaxRooms:        g.MaxRooms,
	}, nil
}

type API struct {
	Log

	Addr            string        `env:"API_ADDR"         envDefault:":8081"`
	JWTSecret       string        `env:"JWT_SECRET,notEmpty"`
	TokenTTL        time.Duration `env:"TOKEN_TTL"        envDefault:"24h"`
	RedisAddr       string        `env:"REDIS_ADDR"       envDefault:"localhost:6379"`
	ScyllaHosts     []string      `env:"SCYLLA_HOSTS"     envDefault:"localhost" envSeparator:","`
	ScyllaKeyspace  string        `env:"SCYLLA_KEYSPACE"  envDefault:"roomcast"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type Archiver struct {
	Log

	KafkaBrokers   []string `env:"KAFKA_BROKERS"   envDefault:"localhost:9092" envSeparator:","`
	KafkaTopic     string   `env:"KAFKA_TOPIC"     envDefault:"chat-events"`
	KafkaGroupID   string   `env:"KAFKA_GROUP_ID"  envDefault:"roomcast-archiver"`
	ScyllaHosts    []string `env:"SCYLLA_HOSTS"    envDefault:"localhost" envSeparator:","`
	ScyllaKeyspace string   `env:"SCYLLA_KEYSPACE" envDefault:"roomcast"`
}

// Parse loads configuration from environment variables into target.
func Parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseSeedRooms reads "id:Name" pairs. A pair without a name uses the id.
func ParseSeedRooms(raw []string) ([]engine.SeedRoom, error) {
	var out []engine.SeedRoom
	for _, pair := range raw {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, name, _ := strings.Cut(pair, ":")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if id == "" {
			return nil, fmt.Errorf("%w: %q", ErrSeedRoom, pair)
		}
		if name == "" {
			name = id
		}
		out = append(out, engine.SeedRoom{ID: id, Name: name})
	}
	return out, nil
}
