// Package db stores archived chat messages in ScyllaDB.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
)

type Session struct {
	*gocql.Session
}

func newCluster(hosts []string, keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.ConnectTimeout = 5 * time.Second

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        1 * time.Second,
	}
	return cluster
}

func NewSession(hosts []string, keyspace string, logger *slog.Logger) (*Session, error) {
	session, err := newCluster(hosts, keyspace).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla %v: %w", hosts, err)
	}

	logger.Info("Connected to ScyllaDB cluster", "hosts", hosts, "keyspace", keyspace)
	return &Session{Session: session}, nil
}

// EnsureSchema creates the keyspace and the messages table when missing. It
// connects through the system keyspace because the target may not exist yet.
func EnsureSchema(hosts []string, keyspace string, logger *slog.Logger) error {
	sys, err := NewSession(hosts, "system", logger)
	if err != nil {
		return err
	}
	defer sys.Close()

	stmts := []string{
		fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`, keyspace),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.messages (
			scope text,
			ts timestamp,
			id text,
			sender text,
			sender_id text,
			body text,
			type text,
			room_id text,
			recipient_id text,
			recipient_name text,
			is_private boolean,
			PRIMARY KEY ((scope), ts, id)
		) WITH CLUSTERING ORDER BY (ts DESC, id ASC)`, keyspace),
	}
	for _, stmt := range stmts {
		if err := sys.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	logger.Info("Schema ready", "keyspace", keyspace)
	return nil
}
