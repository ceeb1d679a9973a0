// Package session tracks which connection holds which display name.
package session

import (
	"errors"
	"sort"
	"time"

	"github.com/mahaj/roomcast/pkg/model"
)

var ErrNotFound = errors.New("session not found")

// Registry maps connection ids to sessions and keeps display names unique.
// It is not safe for concurrent use; the engine serializes access.
type Registry struct {
	byConn map[string]*model.Session
	byName map[string]string // display name -> connection id
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*model.Session),
		byName: make(map[string]string),
	}
}

// Register installs a session for connID. If another connection already holds
// displayName, that session is removed and returned as evicted; the caller is
// responsible for tearing down its room membership and typing state.
func (r *Registry) Register(connID, displayName, roomID string, joinedAt time.Time) (sess model.Session, evicted *model.Session) {
	if prevConn, ok := r.byName[displayName]; ok && prevConn != connID {
		if old, err := r.Remove(prevConn); err == nil {
			evicted = &old
		}
	}
	if cur, ok := r.byConn[connID]; ok && cur.DisplayName != displayName {
		delete(r.byName, cur.DisplayName)
	}

	s := &model.Session{
		ConnectionID: connID,
		DisplayName:  displayName,
		CurrentRoom:  roomID,
		JoinedAt:     joinedAt,
	}
	r.byConn[connID] = s
	r.byName[displayName] = connID
	return *s, evicted
}

func (r *Registry) Lookup(connID string) (model.Session, error) {
	s, ok := r.byConn[connID]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return *s, nil
}

func (r *Registry) LookupName(displayName string) (model.Session, error) {
	connID, ok := r.byName[displayName]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return r.Lookup(connID)
}

// SetRoom updates the session's current room.
func (r *Registry) SetRoom(connID, roomID string) error {
	s, ok := r.byConn[connID]
	if !ok {
		return ErrNotFound
	}
	s.CurrentRoom = roomID
	return nil
}

// Remove deletes the session. A second call for the same connection returns ErrNotFound.
func (r *Registry) Remove(connID string) (model.Session, error) {
	s, ok := r.byConn[connID]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	delete(r.byConn, connID)
	if r.byName[s.DisplayName] == connID {
		delete(r.byName, s.DisplayName)
	}
	return *s, nil
}

// All returns every session ordered by join time.
func (r *Registry) All() []model.Session {
	out := make([]model.Session, 0, len(r.byConn))
	for _, s := range r.byConn {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ConnectionID < out[j].ConnectionID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// Presence returns the presence listing in join order.
func (r *Registry) Presence() []model.PresenceEntry {
	all := r.All()
	out := make([]model.PresenceEntry, len(all))
	for i, s := range all {
		out[i] = model.PresenceEntry{ConnectionID: s.ConnectionID, DisplayName: s.DisplayName}
	}
	return out
}

// ConnectionIDs returns the connection id of every session.
func (r *Registry) ConnectionIDs() []string {
	out := make([]string, 0, len(r.byConn))
	for id := range r.byConn {
		out = append(out, id)
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.byConn)
}
