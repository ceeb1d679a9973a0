package model

import (
	"encoding/json"
	"time"
)

type EventName string

// Inbound frame types.
const (
	EventJoin               EventName = "join"
	EventSendMessage        EventName = "send_message"
	EventSendPrivateMessage EventName = "send_private_message"
	EventReact              EventName = "react"
	EventMarkRead           EventName = "mark_read"
	EventTyping             EventName = "typing"
	EventJoinRoom           EventName = "join_room"
	EventCreateRoom         EventName = "create_room"
	EventListRooms          EventName = "list_rooms"
	EventLoadHistory        EventName = "load_history"
	EventLogout             EventName = "logout"
)

// Outbound frame types.
const (
	EventWelcome        EventName = "welcome"
	EventPresenceList   EventName = "presence_list"
	EventRoomList       EventName = "room_list"
	EventMessageHistory EventName = "message_history"
	EventNewMessage     EventName = "new_message"
	EventPrivateMessage EventName = "private_message"
	EventReactionUpdate EventName = "reaction_update"
	EventReadUpdate     EventName = "read_update"
	EventTypingList     EventName = "typing_list"
	EventUserJoinedRoom EventName = "user_joined_room"
	EventUserLeftRoom   EventName = "user_left_room"
	EventRoomCreated    EventName = "room_created"
	EventUserLeft       EventName = "user_left"
	EventError          EventName = "error"
)

// Frame is the envelope of every websocket text message in both directions.
type Frame struct {
	Type    EventName       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type PresenceEntry struct {
	ConnectionID string `json:"connection_id"`
	DisplayName  string `json:"display_name"`
}

type RoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

type Welcome struct {
	ConnectionID string `json:"connection_id"`
	DisplayName  string `json:"display_name"`
	RoomID       string `json:"room_id"`
}

type History struct {
	RoomID   string    `json:"room_id"`
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

type ReactionUpdate struct {
	MessageID string              `json:"message_id"`
	Reactions map[string][]string `json:"reactions"`
}

type ReadUpdate struct {
	MessageID string   `json:"message_id"`
	ReadBy    []string `json:"read_by"`
}

type TypingList struct {
	RoomID string   `json:"room_id"`
	Users  []string `json:"users"`
}

type RoomMembership struct {
	DisplayName string `json:"display_name"`
	RoomID      string `json:"room_id"`
}

type RoomCreated struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

// UserLeft is the single combined notification sent once a session is torn down.
type UserLeft struct {
	DisplayName  string          `json:"display_name"`
	ConnectionID string          `json:"connection_id"`
	Users        []PresenceEntry `json:"users"`
	Rooms        []RoomSummary   `json:"rooms"`
	Typing       TypingList      `json:"typing"`
}

type ErrorCode string

const (
	CodeValidation      ErrorCode = "validation"
	CodeNotFound        ErrorCode = "not_found"
	CodeUnauthenticated ErrorCode = "unauthenticated"
	CodeRateLimited     ErrorCode = "rate_limited"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Event   EventName `json:"event,omitempty"`
}

// Session is a read-only view of an active connection's identity.
type Session struct {
	ConnectionID string    `json:"connection_id"`
	DisplayName  string    `json:"display_name"`
	CurrentRoom  string    `json:"current_room"`
	JoinedAt     time.Time `json:"joined_at"`
}
