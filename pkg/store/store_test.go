package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mahaj/roomcast/pkg/model"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func msg(i int, roomID string) model.Message {
	return model.Message{
		ID:        fmt.Sprintf("msg_%d", i),
		Sender:    "alice",
		Body:      fmt.Sprintf("m%d", i),
		RoomID:    roomID,
		Timestamp: t0.Add(time.Duration(i) * time.Second),
	}
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestStore_EvictsOldest(t *testing.T) {
	s := New(DefaultCapacity)
	var evicted []string
	for i := 1; i <= DefaultCapacity+1; i++ {
		evicted = append(evicted, s.Append(msg(i, "global"))...)
	}

	if diff := cmp.Diff([]string{"msg_1"}, evicted); diff != "" {
		t.Errorf("evicted mismatch (-want +got):\n%s", diff)
	}
	if s.Len() != DefaultCapacity {
		t.Errorf("Len() = %d, want %d", s.Len(), DefaultCapacity)
	}
	recent := s.Recent("global", DefaultCapacity)
	if len(recent) != DefaultCapacity || recent[0].ID != "msg_2" {
		t.Errorf("Recent() = %d messages starting at %s", len(recent), recent[0].ID)
	}
	if _, err := s.Get("msg_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(evicted) err = %v", err)
	}
}

func TestStore_RecentFiltersRoomAndPrivate(t *testing.T) {
	s := New(10)
	s.Append(msg(1, "global"))
	s.Append(msg(2, "tech"))
	pm := msg(3, "")
	pm.Private = true
	s.Append(pm)
	s.Append(msg(4, "global"))
	s.Append(msg(5, "global"))

	if diff := cmp.Diff([]string{"msg_4", "msg_5"}, ids(s.Recent("global", 2))); diff != "" {
		t.Errorf("Recent() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"msg_2"}, ids(s.Recent("tech", 50))); diff != "" {
		t.Errorf("Recent(tech) mismatch (-want +got):\n%s", diff)
	}
	if got := s.Recent("empty", 50); got == nil || len(got) != 0 {
		t.Errorf("Recent(empty) = %#v, want empty slice", got)
	}
}

func TestStore_Before(t *testing.T) {
	s := New(10)
	for i := 1; i <= 5; i++ {
		s.Append(msg(i, "global"))
	}

	got := s.Before("global", msg(4, "").Timestamp, 2)
	if diff := cmp.Diff([]string{"msg_2", "msg_3"}, ids(got)); diff != "" {
		t.Errorf("Before() mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_ToggleReaction(t *testing.T) {
	s := New(10)
	s.Append(msg(1, "global"))

	got, err := s.ToggleReaction("msg_1", "👍", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string][]string{"👍": {"alice"}}, got); diff != "" {
		t.Errorf("first toggle mismatch (-want +got):\n%s", diff)
	}

	s.ToggleReaction("msg_1", "👍", "bob")
	got, _ = s.ToggleReaction("msg_1", "👍", "alice")
	if diff := cmp.Diff(map[string][]string{"👍": {"bob"}}, got); diff != "" {
		t.Errorf("after alice toggled off (-want +got):\n%s", diff)
	}

	got, _ = s.ToggleReaction("msg_1", "👍", "bob")
	if diff := cmp.Diff(map[string][]string{}, got); diff != "" {
		t.Errorf("all toggled off (-want +got):\n%s", diff)
	}

	if _, err := s.ToggleReaction("missing", "👍", "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestStore_ReturnedMessagesAreCopies(t *testing.T) {
	s := New(10)
	s.Append(msg(1, "global"))

	m, _ := s.Get("msg_1")
	m.Reactions["🔥"] = []string{"mallory"}
	m.Body = "changed"

	again, _ := s.Get("msg_1")
	if again.Body != "m1" || len(again.Reactions) != 0 {
		t.Errorf("stored message mutated: %+v", again)
	}
}

func TestStore_MarkRead(t *testing.T) {
	s := New(10)
	s.Append(msg(1, "global"))

	s.MarkRead("msg_1", "bob")
	got, err := s.MarkRead("msg_1", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"bob"}, got); diff != "" {
		t.Errorf("MarkRead() mismatch (-want +got):\n%s", diff)
	}
}
