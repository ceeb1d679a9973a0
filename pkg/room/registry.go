// Package room holds room metadata and member sets.
package room

import (
	"errors"
	"sort"
	"time"

	"github.com/mahaj/roomcast/pkg/model"
)

var (
	ErrNotFound = errors.New("room not found")
	ErrLimit    = errors.New("room limit reached")
)

type Room struct {
	ID        string
	Name      string
	CreatedAt time.Time
	CreatedBy string

	seq     int64
	members map[string]struct{}
}

// Registry stores rooms in creation order. The default room is created by
// NewRegistry and can never be removed. Not safe for concurrent use.
type Registry struct {
	rooms     map[string]*Room
	defaultID string
	maxRooms  int
	nextSeq   int64
	now       func() time.Time
}

// NewRegistry creates a registry holding the default room. maxRooms <= 0 means
// no limit.
func NewRegistry(defaultID, defaultName string, maxRooms int) *Registry {
	r := &Registry{
		rooms:     make(map[string]*Room),
		defaultID: defaultID,
		maxRooms:  maxRooms,
		now:       time.Now,
	}
	r.add(defaultID, defaultName, "")
	return r
}

func (r *Registry) DefaultID() string {
	return r.defaultID
}

func (r *Registry) add(id, name, createdBy string) *Room {
	r.nextSeq++
	rm := &Room{
		ID:        id,
		Name:      name,
		CreatedAt: r.now(),
		CreatedBy: createdBy,
		seq:       r.nextSeq,
		members:   make(map[string]struct{}),
	}
	r.rooms[id] = rm
	return rm
}

// Ensure returns the existing room or creates it with name. created reports
// whether a new room was made.
func (r *Registry) Ensure(id, name, createdBy string) (rm *Room, created bool, err error) {
	if existing, ok := r.rooms[id]; ok {
		return existing, false, nil
	}
	if r.maxRooms > 0 && len(r.rooms) >= r.maxRooms {
		return nil, false, ErrLimit
	}
	if name == "" {
		name = id
	}
	return r.add(id, name, createdBy), true, nil
}

func (r *Registry) Get(id string) (*Room, bool) {
	rm, ok := r.rooms[id]
	return rm, ok
}

// Join adds connID to the room's member set. Joining twice is a no-op.
func (r *Registry) Join(id, connID string) error {
	rm, ok := r.rooms[id]
	if !ok {
		return ErrNotFound
	}
	rm.members[connID] = struct{}{}
	return nil
}

// Leave removes connID from the room's member set. Leaving twice is a no-op.
func (r *Registry) Leave(id, connID string) {
	if rm, ok := r.rooms[id]; ok {
		delete(rm.members, connID)
	}
}

// Members returns the connection ids in the room, sorted.
func (r *Registry) Members(id string) []string {
	rm, ok := r.rooms[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(rm.members))
	for connID := range rm.members {
		out = append(out, connID)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) IsMember(id, connID string) bool {
	rm, ok := r.rooms[id]
	if !ok {
		return false
	}
	_, ok = rm.members[connID]
	return ok
}

// Summaries lists every room ordered by creation.
func (r *Registry) Summaries() []model.RoomSummary {
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].seq < rooms[j].seq })

	out := make([]model.RoomSummary, len(rooms))
	for i, rm := range rooms {
		out[i] = model.RoomSummary{ID: rm.ID, Name: rm.Name, MemberCount: len(rm.members)}
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.rooms)
}

// ActiveLen counts rooms with at least one member.
func (r *Registry) ActiveLen() int {
	n := 0
	for _, rm := range r.rooms {
		if len(rm.members) > 0 {
			n++
		}
	}
	return n
}
