package engine

import (
	"errors"

	"github.com/mahaj/roomcast/pkg/journal"
	"github.com/mahaj/roomcast/pkg/model"
	"github.com/mahaj/roomcast/pkg/session"
)

type state int

// Unauthenticated is implicit: a connection becomes known to the engine on
// Connect and goes straight to Joining. Terminated connections are dropped
// from the conns map.
const (
	stateUnauthenticated state = iota
	stateJoining
	stateActive
	statePendingCleanup
	stateTerminated
)

func (s state) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateJoining:
		return "joining"
	case stateActive:
		return "active"
	case statePendingCleanup:
		return "pending_cleanup"
	case stateTerminated:
		return "terminated"
	}
	return "unknown"
}

type conn struct {
	id    string
	name  string
	state state
}

func (e *Engine) connect(ev Connect) {
	if _, ok := e.conns[ev.ConnID]; ok {
		return
	}
	e.conns[ev.ConnID] = &conn{id: ev.ConnID, state: stateJoining}
	e.logger.Debug("Connection opened", "conn_id", ev.ConnID)
}

func (e *Engine) join(ev Join) {
	c, ok := e.conns[ev.ConnID]
	if !ok {
		e.logger.Warn("Join from unknown connection", "conn_id", ev.ConnID)
		return
	}
	ev.DisplayName = trim(ev.DisplayName)

	switch c.state {
	case stateJoining:
	case stateActive:
		if c.name != ev.DisplayName {
			e.reject(c.id, model.CodeValidation, model.EventJoin, "already joined as "+c.name)
		}
		return
	default:
		return
	}

	if !e.check(c.id, model.EventJoin, ev) {
		return
	}
	name := ev.DisplayName

	if _, debounced := e.joinTimers[name]; debounced {
		e.logger.Debug("Join debounced", "conn_id", c.id, "display_name", name)
		return
	}
	e.startJoinDebounce(name)

	if prev, err := e.sessions.LookupName(name); err == nil {
		if pc, ok := e.conns[prev.ConnectionID]; ok && pc.state == statePendingCleanup {
			e.resume(c, prev)
			return
		}
		e.evict(prev)
	}

	roomID := e.rooms.DefaultID()
	sess, _ := e.sessions.Register(c.id, name, roomID, e.now())
	if err := e.rooms.Join(roomID, c.id); err != nil {
		e.logger.Error("Default room missing", "room_id", roomID, "error", err.Error())
	}
	c.name = name
	c.state = stateActive

	e.welcome(sess)
	e.out.ToAllExcept(model.EventPresenceList, e.sessions.Presence(), c.id)
	e.out.ToAllExcept(model.EventRoomList, e.rooms.Summaries(), c.id)

	e.logger.Info("User joined", "conn_id", c.id, "display_name", name, "users", e.sessions.Len())
	e.record(journal.Entry{Kind: journal.KindSessionStarted, ConnectionID: c.id, DisplayName: name, RoomID: roomID})
}

// welcome sends the joining connection its own view of the world. This is the
// only notification the joining connection gets.
func (e *Engine) welcome(sess model.Session) {
	id := sess.ConnectionID
	e.out.ToConnection(id, model.EventWelcome, model.Welcome{
		ConnectionID: id,
		DisplayName:  sess.DisplayName,
		RoomID:       sess.CurrentRoom,
	})
	e.out.ToConnection(id, model.EventPresenceList, e.sessions.Presence())
	e.out.ToConnection(id, model.EventRoomList, e.rooms.Summaries())
	e.sendHistory(id, sess.CurrentRoom)
}

// resume hands a session waiting for cleanup over to a new connection without
// telling anyone the user left.
func (e *Engine) resume(c *conn, prev model.Session) {
	e.cancelCleanup(prev.ConnectionID)

	roomID := prev.CurrentRoom
	e.rooms.Leave(roomID, prev.ConnectionID)
	_, _ = e.sessions.Remove(prev.ConnectionID)
	delete(e.conns, prev.ConnectionID)
	e.broadcastTyping(e.typing.ClearAll(prev.DisplayName), "")

	if _, ok := e.rooms.Get(roomID); !ok {
		roomID = e.rooms.DefaultID()
	}
	sess, _ := e.sessions.Register(c.id, prev.DisplayName, roomID, prev.JoinedAt)
	_ = e.rooms.Join(roomID, c.id)
	c.name = prev.DisplayName
	c.state = stateActive

	e.welcome(sess)
	e.out.ToAllExcept(model.EventPresenceList, e.sessions.Presence(), c.id)

	e.logger.Info("User resumed", "conn_id", c.id, "previous_conn_id", prev.ConnectionID, "display_name", c.name)
	e.record(journal.Entry{
		Kind:           journal.KindSessionResumed,
		ConnectionID:   c.id,
		PreviousConnID: prev.ConnectionID,
		DisplayName:    c.name,
		RoomID:         roomID,
	})
}

// evict tears down an active session whose display name is being claimed by a
// new connection, and closes the old transport.
func (e *Engine) evict(prev model.Session) {
	e.cancelCleanup(prev.ConnectionID)
	e.rooms.Leave(prev.CurrentRoom, prev.ConnectionID)
	_, _ = e.sessions.Remove(prev.ConnectionID)
	delete(e.conns, prev.ConnectionID)
	e.broadcastTyping(e.typing.ClearAll(prev.DisplayName), "")
	e.out.Disconnect(prev.ConnectionID)

	e.logger.Info("Evicted duplicate session", "conn_id", prev.ConnectionID, "display_name", prev.DisplayName)
	e.record(journal.Entry{
		Kind:         journal.KindSessionEnded,
		ConnectionID: prev.ConnectionID,
		DisplayName:  prev.DisplayName,
		RoomID:       prev.CurrentRoom,
		Reason:       "evicted",
	})
}

func (e *Engine) disconnect(ev Disconnect) {
	c, ok := e.conns[ev.ConnID]
	if !ok {
		return
	}

	switch c.state {
	case stateJoining:
		delete(e.conns, c.id)
		e.logger.Debug("Connection closed before join", "conn_id", c.id, "reason", ev.Reason)
	case stateActive:
		e.cancelJoinDebounce(c.name)
		e.cancelCleanup(c.id)
		if ev.Reason.Unintentional() {
			c.state = statePendingCleanup
			e.startCleanup(c.id)
			e.logger.Info("Connection dropped, cleanup pending", "conn_id", c.id, "display_name", c.name, "reason", ev.Reason)
			return
		}
		e.terminate(c, string(ev.Reason))
	}
}

func (e *Engine) logout(ev Logout) {
	c, ok := e.conns[ev.ConnID]
	if !ok {
		return
	}
	if c.state == stateActive || c.state == statePendingCleanup {
		e.cancelJoinDebounce(c.name)
		e.terminate(c, string(ReasonClientClose))
	} else {
		delete(e.conns, c.id)
	}
	e.out.Disconnect(ev.ConnID)
}

// terminate removes every trace of the connection and sends the single
// combined leave notification.
func (e *Engine) terminate(c *conn, reason string) {
	e.cancelCleanup(c.id)
	c.state = stateTerminated
	delete(e.conns, c.id)

	sess, err := e.sessions.Remove(c.id)
	if errors.Is(err, session.ErrNotFound) {
		return
	}
	e.rooms.Leave(sess.CurrentRoom, c.id)
	e.typing.ClearAll(sess.DisplayName)

	e.out.ToAll(model.EventUserLeft, model.UserLeft{
		DisplayName:  sess.DisplayName,
		ConnectionID: c.id,
		Users:        e.sessions.Presence(),
		Rooms:        e.rooms.Summaries(),
		Typing:       model.TypingList{RoomID: sess.CurrentRoom, Users: e.typing.List(sess.CurrentRoom)},
	})

	e.logger.Info("User left", "conn_id", c.id, "display_name", sess.DisplayName, "reason", reason, "users", e.sessions.Len())
	e.record(journal.Entry{
		Kind:         journal.KindSessionEnded,
		ConnectionID: c.id,
		DisplayName:  sess.DisplayName,
		RoomID:       sess.CurrentRoom,
		Reason:       reason,
	})
}

func (e *Engine) startJoinDebounce(name string) {
	e.cancelJoinDebounce(name)
	p := &pending{}
	p.timer = e.sched.AfterFunc(e.cfg.JoinDebounce, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.joinTimers[name] == p {
			delete(e.joinTimers, name)
		}
	})
	e.joinTimers[name] = p
}

func (e *Engine) cancelJoinDebounce(name string) {
	if p, ok := e.joinTimers[name]; ok {
		p.timer.Stop()
		delete(e.joinTimers, name)
	}
}

func (e *Engine) startCleanup(connID string) {
	e.cancelCleanup(connID)
	p := &pending{}
	p.timer = e.sched.AfterFunc(e.cfg.CleanupDebounce, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || e.cleanupTimers[connID] != p {
			return
		}
		delete(e.cleanupTimers, connID)
		if c, ok := e.conns[connID]; ok && c.state == statePendingCleanup {
			e.terminate(c, "cleanup timeout")
		}
	})
	e.cleanupTimers[connID] = p
}

func (e *Engine) cancelCleanup(connID string) {
	if p, ok := e.cleanupTimers[connID]; ok {
		p.timer.Stop()
		delete(e.cleanupTimers, connID)
	}
}
