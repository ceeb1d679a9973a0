package engine

import (
	"errors"
	"fmt"

	"github.com/mahaj/roomcast/pkg/journal"
	"github.com/mahaj/roomcast/pkg/model"
	"github.com/mahaj/roomcast/pkg/room"
)

func (e *Engine) sendMessage(ev SendMessage) {
	sess, ok := e.active(ev.ConnID, model.EventSendMessage)
	if !ok {
		return
	}
	ev.RoomID = trim(ev.RoomID)
	if ev.RoomID == "" {
		ev.RoomID = sess.CurrentRoom
	}
	if trim(ev.Body) == "" {
		ev.Body = ""
	}
	if ev.Type == "" {
		ev.Type = model.TypeText
	}
	if !e.check(ev.ConnID, model.EventSendMessage, ev) {
		return
	}
	if _, exists := e.rooms.Get(ev.RoomID); !exists {
		e.reject(ev.ConnID, model.CodeNotFound, model.EventSendMessage, "unknown room "+ev.RoomID)
		return
	}
	if !e.rooms.IsMember(ev.RoomID, ev.ConnID) {
		e.reject(ev.ConnID, model.CodeValidation, model.EventSendMessage, "not a member of room "+ev.RoomID)
		return
	}

	msg := model.Message{
		ID:        e.newID("msg", ev.ConnID),
		Sender:    sess.DisplayName,
		SenderID:  ev.ConnID,
		Body:      ev.Body,
		Type:      ev.Type,
		RoomID:    ev.RoomID,
		Timestamp: e.now(),
		Reactions: map[string][]string{},
	}
	e.messages.Append(msg)
	e.out.ToRoom(msg.RoomID, model.EventNewMessage, msg, "")

	e.logger.Debug("Message sent", "conn_id", ev.ConnID, "room_id", msg.RoomID, "message_id", msg.ID)
	e.record(journal.Entry{Kind: journal.KindMessage, ConnectionID: ev.ConnID, DisplayName: sess.DisplayName, RoomID: msg.RoomID, Message: &msg})
}

func (e *Engine) sendPrivateMessage(ev SendPrivateMessage) {
	sess, ok := e.active(ev.ConnID, model.EventSendPrivateMessage)
	if !ok {
		return
	}
	if trim(ev.Body) == "" {
		ev.Body = ""
	}
	ev.RecipientID = trim(ev.RecipientID)
	if !e.check(ev.ConnID, model.EventSendPrivateMessage, ev) {
		return
	}
	recipient, err := e.sessions.Lookup(ev.RecipientID)
	if err != nil {
		e.reject(ev.ConnID, model.CodeValidation, model.EventSendPrivateMessage, "unknown recipient "+ev.RecipientID)
		return
	}

	msg := model.Message{
		ID:            e.newID("pm", ev.ConnID),
		Sender:        sess.DisplayName,
		SenderID:      ev.ConnID,
		Body:          ev.Body,
		Type:          model.TypeText,
		RecipientID:   recipient.ConnectionID,
		RecipientName: recipient.DisplayName,
		Private:       true,
		Timestamp:     e.now(),
		Reactions:     map[string][]string{},
	}
	e.messages.Append(msg)
	e.deliverPrivate(msg, model.EventPrivateMessage, msg)

	e.logger.Debug("Private message sent", "conn_id", ev.ConnID, "recipient_id", recipient.ConnectionID, "message_id", msg.ID)
	e.record(journal.Entry{Kind: journal.KindMessage, ConnectionID: ev.ConnID, DisplayName: sess.DisplayName, Message: &msg})
}

// deliverPrivate sends to both participants of a private message, following
// them to their current connections.
func (e *Engine) deliverPrivate(msg model.Message, event model.EventName, payload any) {
	recipients := make([]string, 0, 2)
	for _, name := range []string{msg.RecipientName, msg.Sender} {
		if s, err := e.sessions.LookupName(name); err == nil {
			recipients = append(recipients, s.ConnectionID)
		}
	}
	if len(recipients) == 2 && recipients[0] == recipients[1] {
		recipients = recipients[:1]
	}
	for _, connID := range recipients {
		e.out.ToConnection(connID, event, payload)
	}
}

// deliverScoped notifies whoever can see msg: its room, or its two participants.
func (e *Engine) deliverScoped(msg model.Message, event model.EventName, payload any) {
	if msg.Private {
		e.deliverPrivate(msg, event, payload)
		return
	}
	e.out.ToRoom(msg.RoomID, event, payload, "")
}

// visible reports whether displayName may act on msg. Identity is the display
// name, so a later session under the same name inherits its private messages.
func visible(msg model.Message, displayName string) bool {
	return !msg.Private || msg.Sender == displayName || msg.RecipientName == displayName
}

func (e *Engine) react(ev React) {
	sess, ok := e.active(ev.ConnID, model.EventReact)
	if !ok {
		return
	}
	if !e.check(ev.ConnID, model.EventReact, ev) {
		return
	}
	msg, err := e.messages.Get(ev.MessageID)
	if err != nil || !visible(msg, sess.DisplayName) {
		e.reject(ev.ConnID, model.CodeNotFound, model.EventReact, "unknown message "+ev.MessageID)
		return
	}
	reactions, err := e.messages.ToggleReaction(ev.MessageID, ev.Emoji, sess.DisplayName)
	if err != nil {
		e.reject(ev.ConnID, model.CodeNotFound, model.EventReact, "unknown message "+ev.MessageID)
		return
	}

	e.deliverScoped(msg, model.EventReactionUpdate, model.ReactionUpdate{MessageID: msg.ID, Reactions: reactions})
	e.record(journal.Entry{
		Kind:         journal.KindReaction,
		ConnectionID: ev.ConnID,
		DisplayName:  sess.DisplayName,
		RoomID:       msg.RoomID,
		MessageID:    msg.ID,
		Emoji:        ev.Emoji,
		Reactions:    reactions,
	})
}

func (e *Engine) markRead(ev MarkRead) {
	sess, ok := e.active(ev.ConnID, model.EventMarkRead)
	if !ok {
		return
	}
	if !e.check(ev.ConnID, model.EventMarkRead, ev) {
		return
	}
	msg, err := e.messages.Get(ev.MessageID)
	if err != nil || !visible(msg, sess.DisplayName) {
		e.reject(ev.ConnID, model.CodeNotFound, model.EventMarkRead, "unknown message "+ev.MessageID)
		return
	}
	readBy, err := e.messages.MarkRead(ev.MessageID, sess.DisplayName)
	if err != nil {
		e.reject(ev.ConnID, model.CodeNotFound, model.EventMarkRead, "unknown message "+ev.MessageID)
		return
	}
	if len(readBy) == len(msg.ReadBy) {
		return
	}
	e.deliverScoped(msg, model.EventReadUpdate, model.ReadUpdate{MessageID: msg.ID, ReadBy: readBy})
}

func (e *Engine) setTyping(ev SetTyping) {
	sess, ok := e.active(ev.ConnID, model.EventTyping)
	if !ok {
		return
	}
	if e.typing.Set(sess.CurrentRoom, sess.DisplayName, ev.IsTyping) {
		e.broadcastTyping([]string{sess.CurrentRoom}, ev.ConnID)
	}
}

// joinRoom moves the connection between rooms. Leave, session update and join
// happen under the engine lock, so no observer sees a half-applied switch.
func (e *Engine) joinRoom(ev JoinRoom) {
	sess, ok := e.active(ev.ConnID, model.EventJoinRoom)
	if !ok {
		return
	}
	ev.RoomID = trim(ev.RoomID)
	if !e.check(ev.ConnID, model.EventJoinRoom, ev) {
		return
	}
	if ev.RoomID == sess.CurrentRoom {
		return
	}
	rm, created, err := e.rooms.Ensure(ev.RoomID, ev.RoomID, ev.ConnID)
	if err != nil {
		e.reject(ev.ConnID, model.CodeValidation, model.EventJoinRoom, err.Error())
		return
	}

	oldRoom := sess.CurrentRoom
	e.rooms.Leave(oldRoom, ev.ConnID)
	_ = e.sessions.SetRoom(ev.ConnID, rm.ID)
	_ = e.rooms.Join(rm.ID, ev.ConnID)

	e.broadcastTyping(e.typing.ClearAll(sess.DisplayName), "")
	e.sendHistory(ev.ConnID, rm.ID)
	e.out.ToRoom(oldRoom, model.EventUserLeftRoom, model.RoomMembership{DisplayName: sess.DisplayName, RoomID: oldRoom}, ev.ConnID)
	e.out.ToRoom(rm.ID, model.EventUserJoinedRoom, model.RoomMembership{DisplayName: sess.DisplayName, RoomID: rm.ID}, ev.ConnID)
	e.out.ToAll(model.EventRoomList, e.rooms.Summaries())

	e.logger.Info("User switched room", "conn_id", ev.ConnID, "display_name", sess.DisplayName, "from", oldRoom, "room_id", rm.ID, "created", created)
	e.record(journal.Entry{
		Kind:           journal.KindRoomChanged,
		ConnectionID:   ev.ConnID,
		DisplayName:    sess.DisplayName,
		RoomID:         rm.ID,
		PreviousRoomID: oldRoom,
	})
}

func (e *Engine) createRoom(ev CreateRoom) {
	sess, ok := e.active(ev.ConnID, model.EventCreateRoom)
	if !ok {
		return
	}
	ev.Name = trim(ev.Name)
	if !e.check(ev.ConnID, model.EventCreateRoom, ev) {
		return
	}
	rm, _, err := e.rooms.Ensure(fmt.Sprintf("room_%d", e.ids.Generate()), ev.Name, ev.ConnID)
	if errors.Is(err, room.ErrLimit) {
		e.reject(ev.ConnID, model.CodeValidation, model.EventCreateRoom, err.Error())
		return
	}
	if err != nil {
		e.logger.Error("Could not create room", "conn_id", ev.ConnID, "error", err.Error())
		return
	}

	e.out.ToAll(model.EventRoomCreated, model.RoomCreated{ID: rm.ID, Name: rm.Name})
	e.out.ToAll(model.EventRoomList, e.rooms.Summaries())

	e.logger.Info("Room created", "conn_id", ev.ConnID, "display_name", sess.DisplayName, "room_id", rm.ID, "name", rm.Name)
	e.record(journal.Entry{Kind: journal.KindRoomCreated, ConnectionID: ev.ConnID, DisplayName: sess.DisplayName, RoomID: rm.ID, RoomName: rm.Name})
}

func (e *Engine) listRooms(ev ListRooms) {
	if _, ok := e.conns[ev.ConnID]; !ok {
		return
	}
	e.out.ToConnection(ev.ConnID, model.EventRoomList, e.rooms.Summaries())
}

func (e *Engine) loadHistory(ev LoadHistory) {
	sess, ok := e.active(ev.ConnID, model.EventLoadHistory)
	if !ok {
		return
	}
	if !e.check(ev.ConnID, model.EventLoadHistory, ev) {
		return
	}
	roomID := trim(ev.RoomID)
	if roomID == "" {
		roomID = sess.CurrentRoom
	}
	if _, exists := e.rooms.Get(roomID); !exists {
		e.reject(ev.ConnID, model.CodeNotFound, model.EventLoadHistory, "unknown room "+roomID)
		return
	}
	limit := ev.Limit
	if limit == 0 {
		limit = e.cfg.PageLimit
	}

	var msgs []model.Message
	if ev.Before.IsZero() {
		msgs = e.messages.Recent(roomID, limit)
	} else {
		msgs = e.messages.Before(roomID, ev.Before, limit)
	}
	e.out.ToConnection(ev.ConnID, model.EventMessageHistory, model.History{
		RoomID:   roomID,
		Messages: msgs,
		HasMore:  len(msgs) == limit,
	})
}
