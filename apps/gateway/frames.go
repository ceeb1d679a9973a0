package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mahaj/roomcast/pkg/engine"
	"github.com/mahaj/roomcast/pkg/model"
)

var errUnknownType = errors.New("unknown frame type")

type sendMessagePayload struct {
	Body   string            `json:"body"`
	RoomID string            `json:"room_id"`
	Type   model.MessageType `json:"type"`
}

type sendPrivateMessagePayload struct {
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
}

type reactPayload struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
	RoomID    string `json:"room_id"`
}

type markReadPayload struct {
	MessageID string `json:"message_id"`
}

type typingPayload struct {
	IsTyping bool `json:"is_typing"`
}

type joinRoomPayload struct {
	RoomID string `json:"room_id"`
}

type createRoomPayload struct {
	Name string `json:"name"`
}

type loadHistoryPayload struct {
	RoomID string    `json:"room_id"`
	Before time.Time `json:"before"`
	Limit  int       `json:"limit"`
}

// decodeEvent turns one inbound frame into an engine event. The display name
// of a join always comes from the handshake token.
func decodeEvent(connID, displayName string, data []byte) (engine.Event, model.EventName, error) {
	var frame model.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, "", fmt.Errorf("decode frame: %w", err)
	}

	var err error
	var ev engine.Event
	switch frame.Type {
	case model.EventJoin:
		ev = engine.Join{ConnID: connID, DisplayName: displayName}
	case model.EventSendMessage:
		var p sendMessagePayload
		err = decodePayload(frame.Payload, &p)
		ev = engine.SendMessage{ConnID: connID, Body: p.Body, RoomID: p.RoomID, Type: p.Type}
	case model.EventSendPrivateMessage:
		var p sendPrivateMessagePayload
		err = decodePayload(frame.Payload, &p)
		ev = engine.SendPrivateMessage{ConnID: connID, RecipientID: p.RecipientID, Body: p.Body}
	case model.EventReact:
		var p reactPayload
		err = decodePayload(frame.Payload, &p)
		ev = engine.React{ConnID: connID, MessageID: p.MessageID, Emoji: p.Emoji, RoomID: p.RoomID}
	case model.EventMarkRead:
		var p markReadPayload
		err = decodePayload(frame.Payload, &p)
		ev = engine.MarkRead{ConnID: connID, MessageID: p.MessageID}
	case model.EventTyping:
		var p typingPayload
		err = decodePayload(frame.Payload, &p)
		ev = engine.SetTyping{ConnID: connID, IsTyping: p.IsTyping}
	case model.EventJoinRoom:
		var p joinRoomPayload
		err = decodePayload(frame.Payload, &p)
		ev = engine.JoinRoom{ConnID: connID, RoomID: p.RoomID}
	case model.EventCreateRoom:
		var p createRoomPayload
		err = decodePayload(frame.Payload, &p)
		ev = engine.CreateRoom{ConnID: connID, Name: p.Name}
	case model.EventListRooms:
		ev = engine.ListRooms{ConnID: connID}
	case model.EventLoadHistory:
		var p loadHistoryPayload
		err = decodePayload(frame.Payload, &p)
		ev = engine.LoadHistory{ConnID: connID, RoomID: p.RoomID, Before: p.Before, Limit: p.Limit}
	case model.EventLogout:
		ev = engine.Logout{ConnID: connID}
	default:
		return nil, frame.Type, fmt.Errorf("%w %q", errUnknownType, frame.Type)
	}
	if err != nil {
		return nil, frame.Type, err
	}
	return ev, frame.Type, nil
}

// decodePayload accepts a missing payload as the zero value.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func errorFrame(code model.ErrorCode, event model.EventName, msg string) []byte {
	payload, _ := json.Marshal(model.Error{Code: code, Message: msg, Event: event})
	data, _ := json.Marshal(model.Frame{Type: model.EventError, Payload: payload})
	return data
}
