package model

import "time"

type MessageType string

const (
	TypeText  MessageType = "text"
	TypeFile  MessageType = "file"
	TypeImage MessageType = "image"
)

// Message is a chat message scoped either to a room or to a single recipient.
// RoomID and RecipientID are mutually exclusive.
type Message struct {
	ID            string              `json:"id"`
	Sender        string              `json:"sender"`
	SenderID      string              `json:"sender_id"`
	Body          string              `json:"body"`
	Type          MessageType         `json:"type"`
	RoomID        string              `json:"room_id,omitempty"`
	RecipientID   string              `json:"recipient_id,omitempty"`
	RecipientName string              `json:"recipient_name,omitempty"`
	Private       bool                `json:"is_private,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
	Reactions     map[string][]string `json:"reactions"`
	ReadBy        []string            `json:"read_by,omitempty"`
}

// Clone returns a deep copy so callers can hand the value to other goroutines
// without sharing the reaction map or read list.
func (m Message) Clone() Message {
	out := m
	out.Reactions = CloneReactions(m.Reactions)
	if m.ReadBy != nil {
		out.ReadBy = append([]string(nil), m.ReadBy...)
	}
	return out
}

// CloneReactions copies a reaction map. The result is never nil.
func CloneReactions(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for emoji, names := range in {
		out[emoji] = append([]string(nil), names...)
	}
	return out
}
