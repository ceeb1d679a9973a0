// Package store keeps the bounded, memory-resident message log.
package store

import (
	"errors"
	"time"

	"github.com/mahaj/roomcast/pkg/model"
)

// DefaultCapacity is the number of messages kept when no capacity is configured.
const DefaultCapacity = 500

var ErrNotFound = errors.New("message not found")

// Store is an append-only log evicted oldest-first once it exceeds its
// capacity. Reactions and read receipts live on the stored messages and are
// discarded with them. Not safe for concurrent use.
type Store struct {
	capacity int
	log      []*model.Message
	byID     map[string]*model.Message
}

func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		byID:     make(map[string]*model.Message),
	}
}

// Append stores msg at the tail and returns the messages evicted to stay
// within capacity.
func (s *Store) Append(msg model.Message) (evicted []string) {
	m := msg.Clone()
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	s.log = append(s.log, &m)
	s.byID[m.ID] = &m

	for len(s.log) > s.capacity {
		head := s.log[0]
		s.log[0] = nil
		s.log = s.log[1:]
		delete(s.byID, head.ID)
		evicted = append(evicted, head.ID)
	}
	return evicted
}

// Recent returns the newest limit messages of roomID, oldest first.
func (s *Store) Recent(roomID string, limit int) []model.Message {
	return s.collect(roomID, limit, func(*model.Message) bool { return true })
}

// Before returns the newest limit messages of roomID strictly older than cursor,
// oldest first.
func (s *Store) Before(roomID string, cursor time.Time, limit int) []model.Message {
	return s.collect(roomID, limit, func(m *model.Message) bool { return m.Timestamp.Before(cursor) })
}

func (s *Store) collect(roomID string, limit int, keep func(*model.Message) bool) []model.Message {
	out := make([]model.Message, 0)
	if limit <= 0 {
		return out
	}
	for i := len(s.log) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.log[i]
		if m.Private || m.RoomID != roomID || !keep(m) {
			continue
		}
		out = append(out, m.Clone())
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *Store) Get(id string) (model.Message, error) {
	m, ok := s.byID[id]
	if !ok {
		return model.Message{}, ErrNotFound
	}
	return m.Clone(), nil
}

// ToggleReaction adds displayName under emoji, or removes it when already
// present. An emoji whose set becomes empty is dropped. It returns a snapshot of
// the whole reaction map.
func (s *Store) ToggleReaction(id, emoji, displayName string) (map[string][]string, error) {
	m, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	names := m.Reactions[emoji]
	idx := -1
	for i, n := range names {
		if n == displayName {
			idx = i
			break
		}
	}
	if idx >= 0 {
		names = append(names[:idx], names[idx+1:]...)
		if len(names) == 0 {
			delete(m.Reactions, emoji)
		} else {
			m.Reactions[emoji] = names
		}
	} else {
		m.Reactions[emoji] = append(names, displayName)
	}
	return model.CloneReactions(m.Reactions), nil
}

// MarkRead appends displayName to the read list unless it is already there.
func (s *Store) MarkRead(id, displayName string) ([]string, error) {
	m, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, n := range m.ReadBy {
		if n == displayName {
			return append([]string(nil), m.ReadBy...), nil
		}
	}
	m.ReadBy = append(m.ReadBy, displayName)
	return append([]string(nil), m.ReadBy...), nil
}

func (s *Store) Len() int {
	return len(s.log)
}

func (s *Store) Capacity() int {
	return s.capacity
}
