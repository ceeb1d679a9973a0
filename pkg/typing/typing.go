// Package typing aggregates who is typing in each room.
package typing

import "sort"

// Aggregator is a passive per-room set of typing display names. Not safe for
// concurrent use.
type Aggregator struct {
	rooms map[string]map[string]struct{}
}

func New() *Aggregator {
	return &Aggregator{rooms: make(map[string]map[string]struct{})}
}

// Set adds or removes displayName from roomID's typing set and reports whether
// the set changed.
func (a *Aggregator) Set(roomID, displayName string, isTyping bool) bool {
	set := a.rooms[roomID]
	_, present := set[displayName]
	switch {
	case isTyping && !present:
		if set == nil {
			set = make(map[string]struct{})
			a.rooms[roomID] = set
		}
		set[displayName] = struct{}{}
		return true
	case !isTyping && present:
		delete(set, displayName)
		if len(set) == 0 {
			delete(a.rooms, roomID)
		}
		return true
	}
	return false
}

// ClearAll removes displayName from every room and returns the rooms it was removed from.
func (a *Aggregator) ClearAll(displayName string) []string {
	var changed []string
	for roomID, set := range a.rooms {
		if _, ok := set[displayName]; !ok {
			continue
		}
		delete(set, displayName)
		if len(set) == 0 {
			delete(a.rooms, roomID)
		}
		changed = append(changed, roomID)
	}
	sort.Strings(changed)
	return changed
}

// List returns the full typing set of roomID, sorted. Excluding the viewer's own
// name is left to the client.
func (a *Aggregator) List(roomID string) []string {
	out := make([]string, 0, len(a.rooms[roomID]))
	for name := range a.rooms[roomID] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
