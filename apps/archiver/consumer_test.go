package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mahaj/roomcast/pkg/db"
	"github.com/mahaj/roomcast/pkg/journal"
	"github.com/mahaj/roomcast/pkg/model"
	"github.com/neilotoole/slogt"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

// scriptedReader hands out msgs in order, then blocks until ctx ends.
type scriptedReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	drained   chan struct{}
}

func newScriptedReader(msgs ...kafka.Message) *scriptedReader {
	return &scriptedReader{msgs: msgs, drained: make(chan struct{})}
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

type fakeArchive struct {
	mu       sync.Mutex
	stored   []string
	scopes   []string
	failures int
}

func (a *fakeArchive) InsertMessage(_ context.Context, msg model.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failures > 0 {
		a.failures--
		return errors.New("scylla unavailable")
	}
	a.stored = append(a.stored, msg.ID)
	a.scopes = append(a.scopes, db.Scope(msg))
	return nil
}

func entryMessage(t *testing.T, offset int64, e journal.Entry) kafka.Message {
	t.Helper()
	value, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: value}
}

func runConsumer(t *testing.T, r *scriptedReader, a *fakeArchive) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewConsumer(r, a, slogt.New(t)).Consume(ctx)
	}()

	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the reader")
	}
	cancel()
	<-done
}

func TestConsumer_ArchivesMessages(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newScriptedReader(
		entryMessage(t, 1, journal.Entry{Kind: journal.KindSessionStarted, DisplayName: "alice", At: at}),
		entryMessage(t, 2, journal.Entry{Kind: journal.KindMessage, Message: &model.Message{ID: "msg_1", RoomID: "global", Body: "hi"}, At: at}),
		kafka.Message{Offset: 3, Value: []byte("{garbage")},
		entryMessage(t, 4, journal.Entry{Kind: journal.KindMessage, Message: &model.Message{ID: "pm_2", Private: true}, At: at}),
	)
	a := &fakeArchive{}

	runConsumer(t, r, a)

	require.Equal(t, []string{"msg_1", "pm_2"}, a.stored)
	require.Equal(t, []int64{1, 2, 3, 4}, r.committed)
}

func TestConsumer_RetriesFailedInsert(t *testing.T) {
	r := newScriptedReader(
		entryMessage(t, 7, journal.Entry{Kind: journal.KindMessage, Message: &model.Message{ID: "msg_1", RoomID: "global"}}),
	)
	a := &fakeArchive{failures: 1}

	runConsumer(t, r, a)

	require.Equal(t, []string{"msg_1"}, a.stored)
	require.Equal(t, []int64{7}, r.committed)
}

func TestConsumer_RoomNamedLikeDirectScope(t *testing.T) {
	r := newScriptedReader(
		entryMessage(t, 1, journal.Entry{Kind: journal.KindMessage, Message: &model.Message{ID: "msg_1", RoomID: "dm:alice:bob", Sender: "mallory"}}),
		entryMessage(t, 2, journal.Entry{Kind: journal.KindMessage, Message: &model.Message{ID: "pm_2", Private: true, Sender: "alice", RecipientName: "bob"}}),
	)
	a := &fakeArchive{}

	runConsumer(t, r, a)

	require.Equal(t, []string{"room:dm:alice:bob", db.DirectScope("alice", "bob")}, a.scopes)
	require.NotEqual(t, a.scopes[0], a.scopes[1])
}
