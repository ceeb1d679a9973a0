package engine

import (
	"time"

	"github.com/mahaj/roomcast/pkg/model"
)

// Event is the closed set of inbound events the engine understands. Only types
// in this file implement it.
type Event interface {
	connection() string
}

// Reason explains why a transport connection ended.
type Reason string

const (
	ReasonTransportClose Reason = "transport close"
	ReasonPingTimeout    Reason = "ping timeout"
	ReasonClientClose    Reason = "client close"
	ReasonServerShutdown Reason = "server shutdown"
)

// Unintentional reports whether the drop may be followed by a quick reconnect
// and should therefore be debounced.
func (r Reason) Unintentional() bool {
	return r == ReasonTransportClose || r == ReasonPingTimeout
}

type Connect struct {
	ConnID string
}

type Disconnect struct {
	ConnID string
	Reason Reason
}

type Join struct {
	ConnID      string
	DisplayName string `validate:"required,max=64"`
}

type SendMessage struct {
	ConnID string
	Body   string            `validate:"required,max=4000"`
	RoomID string            `validate:"max=64"`
	Type   model.MessageType `validate:"omitempty,oneof=text file image"`
}

type SendPrivateMessage struct {
	ConnID      string
	RecipientID string `validate:"required"`
	Body        string `validate:"required,max=4000"`
}

// React toggles Emoji on a message. RoomID is informational; the message's own
// scope decides who is notified.
type React struct {
	ConnID    string
	MessageID string `validate:"required"`
	Emoji     string `validate:"required,max=32"`
	RoomID    string
}

type MarkRead struct {
	ConnID    string
	MessageID string `validate:"required"`
}

type SetTyping struct {
	ConnID   string
	IsTyping bool
}

type JoinRoom struct {
	ConnID string
	RoomID string `validate:"required,max=64"`
}

type CreateRoom struct {
	ConnID string
	Name   string `validate:"required,max=64"`
}

type ListRooms struct {
	ConnID string
}

// LoadHistory pages backwards through a room. A zero Before starts from the newest message.
type LoadHistory struct {
	ConnID string
	RoomID string
	Before time.Time
	Limit  int `validate:"gte=0,lte=100"`
}

// Logout is an explicit, intentional disconnect.
type Logout struct {
	ConnID string
}

func (e Connect) connection() string            { return e.ConnID }
func (e Disconnect) connection() string         { return e.ConnID }
func (e Join) connection() string               { return e.ConnID }
func (e SendMessage) connection() string        { return e.ConnID }
func (e SendPrivateMessage) connection() string { return e.ConnID }
func (e React) connection() string              { return e.ConnID }
func (e MarkRead) connection() string           { return e.ConnID }
func (e SetTyping) connection() string          { return e.ConnID }
func (e JoinRoom) connection() string           { return e.ConnID }
func (e CreateRoom) connection() string         { return e.ConnID }
func (e ListRooms) connection() string          { return e.ConnID }
func (e LoadHistory) connection() string        { return e.ConnID }
func (e Logout) connection() string             { return e.ConnID }
