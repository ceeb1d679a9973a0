package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mahaj/roomcast/pkg/journal"
	"github.com/neilotoole/slogt"
	"github.com/redis/go-redis/v9"
)

// memRedis implements Client over plain maps.
type memRedis struct {
	sets   map[string]map[string]struct{}
	hashes map[string]map[string]string
	err    error
}

func newMemRedis() *memRedis {
	return &memRedis{sets: map[string]map[string]struct{}{}, hashes: map[string]map[string]string{}}
}

func (m *memRedis) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	if m.sets[key] == nil {
		m.sets[key] = map[string]struct{}{}
	}
	for _, v := range members {
		m.sets[key][fmt.Sprint(v)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (m *memRedis) SRem(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	for _, v := range members {
		delete(m.sets[key], fmt.Sprint(v))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (m *memRedis) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	out := []string{}
	for v := range m.sets[key] {
		out = append(out, v)
	}
	return redis.NewStringSliceResult(out, m.err)
}

func (m *memRedis) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	if m.hashes[key] == nil {
		m.hashes[key] = map[string]string{}
	}
	for i := 0; i+1 < len(values); i += 2 {
		var v string
		switch val := values[i+1].(type) {
		case []byte:
			v = string(val)
		default:
			v = fmt.Sprint(val)
		}
		m.hashes[key][fmt.Sprint(values[i])] = v
	}
	return redis.NewIntResult(1, nil)
}

func (m *memRedis) HDel(_ context.Context, key string, fields ...string) *redis.IntCmd {
	for _, f := range fields {
		delete(m.hashes[key], f)
	}
	return redis.NewIntResult(int64(len(fields)), m.err)
}

func (m *memRedis) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	out := map[string]string{}
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, m.err)
}

func (m *memRedis) HKeys(_ context.Context, key string) *redis.StringSliceCmd {
	out := []string{}
	for k := range m.hashes[key] {
		out = append(out, k)
	}
	sort.Strings(out)
	return redis.NewStringSliceResult(out, m.err)
}

func (m *memRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.sets, k)
		delete(m.hashes, k)
	}
	return redis.NewIntResult(int64(len(keys)), m.err)
}

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func apply(t *testing.T, m *Mirror, entries ...journal.Entry) {
	t.Helper()
	for _, e := range entries {
		if err := m.Handle(context.Background(), e); err != nil {
			t.Fatalf("Handle(%s) err = %v", e.Kind, err)
		}
	}
}

func TestMirror_Lifecycle(t *testing.T) {
	rdb := newMemRedis()
	m := NewMirror(rdb, slogt.New(t))
	r := NewReader(rdb, slogt.New(t))
	ctx := context.Background()

	apply(t, m,
		journal.Entry{Kind: journal.KindSessionStarted, ConnectionID: "c1", DisplayName: "alice", RoomID: "global", At: t0},
		journal.Entry{Kind: journal.KindSessionStarted, ConnectionID: "c2", DisplayName: "bob", RoomID: "global", At: t0},
		journal.Entry{Kind: journal.KindRoomChanged, ConnectionID: "c2", DisplayName: "bob", RoomID: "tech", PreviousRoomID: "global", At: t0.Add(time.Second)},
	)

	global, err := r.RoomUsers(ctx, "global")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"alice"}, global); diff != "" {
		t.Errorf("global mismatch (-want +got):\n%s", diff)
	}
	tech, _ := r.RoomUsers(ctx, "tech")
	if diff := cmp.Diff([]string{"bob"}, tech); diff != "" {
		t.Errorf("tech mismatch (-want +got):\n%s", diff)
	}

	apply(t, m,
		journal.Entry{Kind: journal.KindSessionResumed, ConnectionID: "c3", PreviousConnID: "c1", DisplayName: "alice", RoomID: "global", At: t0.Add(2 * time.Second)},
		journal.Entry{Kind: journal.KindSessionEnded, ConnectionID: "c2", DisplayName: "bob", RoomID: "tech", At: t0.Add(3 * time.Second)},
	)

	users, err := r.Users(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{{DisplayName: "alice", ConnectionID: "c3", RoomID: "global", Since: t0.Add(2 * time.Second)}}
	if diff := cmp.Diff(want, users); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}
	if tech, _ := r.RoomUsers(ctx, "tech"); len(tech) != 0 {
		t.Errorf("tech still has %v", tech)
	}
}

func TestMirror_Reset(t *testing.T) {
	rdb := newMemRedis()
	m := NewMirror(rdb, slogt.New(t))
	apply(t, m,
		journal.Entry{Kind: journal.KindSessionStarted, ConnectionID: "c1", DisplayName: "alice", RoomID: "global", At: t0},
		journal.Entry{Kind: journal.KindRoomCreated, RoomID: "room_1", RoomName: "Book Club"},
	)

	if err := m.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rdb.sets) != 0 || len(rdb.hashes) != 0 {
		t.Errorf("leftover keys: sets=%v hashes=%v", rdb.sets, rdb.hashes)
	}
}

func TestMirror_RedisError(t *testing.T) {
	rdb := newMemRedis()
	rdb.err = errors.New("connection refused")
	m := NewMirror(rdb, slogt.New(t))

	err := m.Handle(context.Background(), journal.Entry{Kind: journal.KindSessionStarted, DisplayName: "alice", RoomID: "global"})
	if !errors.Is(err, rdb.err) {
		t.Errorf("err = %v, want wrapped redis error", err)
	}
	if err := m.Handle(context.Background(), journal.Entry{Kind: journal.KindMessage}); err != nil {
		t.Errorf("message entry err = %v, want nil", err)
	}
}

func TestReader_SkipsCorruptEntries(t *testing.T) {
	rdb := newMemRedis()
	rdb.hashes[usersKey] = map[string]string{
		"alice": `{"display_name":"alice","connection_id":"c1","room_id":"global","since":"2026-01-01T00:00:00Z"}`,
		"bob":   "{broken",
	}

	users, err := NewReader(rdb, slogt.New(t)).Users(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].DisplayName != "alice" {
		t.Errorf("users = %+v", users)
	}
}
