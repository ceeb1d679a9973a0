// Package presence mirrors the engine's sessions into Redis so other processes
// can answer "who is online" without talking to the gateway.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mahaj/roomcast/pkg/journal"
	"github.com/redis/go-redis/v9"
)

const (
	usersKey = "presence"
	roomsKey = "rooms"
)

func roomUsersKey(roomID string) string {
	return "room:" + roomID + ":users"
}

// Client is the subset of *redis.Client the mirror and reader use.
type Client interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HKeys(ctx context.Context, key string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Entry is one online user as stored in the presence hash.
type Entry struct {
	DisplayName  string    `json:"display_name"`
	ConnectionID string    `json:"connection_id"`
	RoomID       string    `json:"room_id"`
	Since        time.Time `json:"since"`
}

// Mirror applies journal entries to Redis. It runs behind a journal.Pump so
// Redis latency never reaches the engine.
type Mirror struct {
	rdb    Client
	logger *slog.Logger
}

func NewMirror(rdb Client, logger *slog.Logger) *Mirror {
	return &Mirror{rdb: rdb, logger: logger}
}

// Reset clears state left behind by a previous gateway run.
func (m *Mirror) Reset(ctx context.Context) error {
	rooms, err := m.rdb.HKeys(ctx, roomsKey).Result()
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	keys := []string{usersKey, roomsKey}
	for _, id := range rooms {
		keys = append(keys, roomUsersKey(id))
	}
	if err := m.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete presence keys: %w", err)
	}
	return nil
}

func (m *Mirror) Handle(ctx context.Context, e journal.Entry) error {
	switch e.Kind {
	case journal.KindSessionStarted, journal.KindSessionResumed:
		if err := m.rdb.SAdd(ctx, roomUsersKey(e.RoomID), e.DisplayName).Err(); err != nil {
			return fmt.Errorf("add %s to room %s: %w", e.DisplayName, e.RoomID, err)
		}
		if err := m.rdb.HSet(ctx, roomsKey, e.RoomID, e.RoomID).Err(); err != nil {
			return fmt.Errorf("track room %s: %w", e.RoomID, err)
		}
		return m.put(ctx, Entry{DisplayName: e.DisplayName, ConnectionID: e.ConnectionID, RoomID: e.RoomID, Since: e.At})

	case journal.KindSessionEnded:
		if err := m.rdb.SRem(ctx, roomUsersKey(e.RoomID), e.DisplayName).Err(); err != nil {
			return fmt.Errorf("remove %s from room %s: %w", e.DisplayName, e.RoomID, err)
		}
		if err := m.rdb.HDel(ctx, usersKey, e.DisplayName).Err(); err != nil {
			return fmt.Errorf("remove %s: %w", e.DisplayName, err)
		}

	case journal.KindRoomChanged:
		if err := m.rdb.SRem(ctx, roomUsersKey(e.PreviousRoomID), e.DisplayName).Err(); err != nil {
			return fmt.Errorf("remove %s from room %s: %w", e.DisplayName, e.PreviousRoomID, err)
		}
		if err := m.rdb.SAdd(ctx, roomUsersKey(e.RoomID), e.DisplayName).Err(); err != nil {
			return fmt.Errorf("add %s to room %s: %w", e.DisplayName, e.RoomID, err)
		}
		if err := m.rdb.HSet(ctx, roomsKey, e.RoomID, e.RoomID).Err(); err != nil {
			return fmt.Errorf("track room %s: %w", e.RoomID, err)
		}
		return m.put(ctx, Entry{DisplayName: e.DisplayName, ConnectionID: e.ConnectionID, RoomID: e.RoomID, Since: e.At})

	case journal.KindRoomCreated:
		name := e.RoomName
		if name == "" {
			name = e.RoomID
		}
		if err := m.rdb.HSet(ctx, roomsKey, e.RoomID, name).Err(); err != nil {
			return fmt.Errorf("track room %s: %w", e.RoomID, err)
		}
	}
	return nil
}

func (m *Mirror) put(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := m.rdb.HSet(ctx, usersKey, entry.DisplayName, data).Err(); err != nil {
		return fmt.Errorf("store presence for %s: %w", entry.DisplayName, err)
	}
	return nil
}

// Reader answers presence queries for processes other than the gateway.
type Reader struct {
	rdb    Client
	logger *slog.Logger
}

func NewReader(rdb Client, logger *slog.Logger) *Reader {
	return &Reader{rdb: rdb, logger: logger}
}

// Users returns every online user ordered by display name. Corrupt entries are skipped.
func (r *Reader) Users(ctx context.Context) ([]Entry, error) {
	raw, err := r.rdb.HGetAll(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read presence: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for name, value := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(value), &e); err != nil {
			r.logger.Warn("Skipping corrupt presence entry", "display_name", name, "error", err.Error())
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

// RoomUsers returns the display names present in roomID, sorted.
func (r *Reader) RoomUsers(ctx context.Context, roomID string) ([]string, error) {
	users, err := r.rdb.SMembers(ctx, roomUsersKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read room %s: %w", roomID, err)
	}
	sort.Strings(users)
	return users, nil
}
