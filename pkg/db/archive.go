package db

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/mahaj/roomcast/pkg/model"
)

const maxHistory = 200

// Scope is the partition a message is archived under: its room, or a stable
// key for the two participants of a private message. Room and direct scopes
// live under different prefixes, so no room id can name a direct scope.
func Scope(msg model.Message) string {
	if !msg.Private {
		return RoomScope(msg.RoomID)
	}
	return DirectScope(msg.Sender, msg.RecipientName)
}

func RoomScope(roomID string) string {
	return "room:" + roomID
}

// DirectScope is the same for either order of participants. Names are
// escaped so a colon inside a name cannot shift the pair boundary.
func DirectScope(a, b string) string {
	pair := []string{url.QueryEscape(a), url.QueryEscape(b)}
	sort.Strings(pair)
	return "dm:" + pair[0] + ":" + pair[1]
}

type Archive struct {
	session *Session
}

func NewArchive(session *Session) *Archive {
	return &Archive{session: session}
}

// InsertMessage is idempotent: replaying the same message overwrites its row.
func (a *Archive) InsertMessage(ctx context.Context, msg model.Message) error {
	err := a.session.Query(
		`INSERT INTO messages (scope, ts, id, sender, sender_id, body, type, room_id, recipient_id, recipient_name, is_private) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		Scope(msg), msg.Timestamp, msg.ID, msg.Sender, msg.SenderID, msg.Body, string(msg.Type),
		msg.RoomID, msg.RecipientID, msg.RecipientName, msg.Private,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

// History returns up to limit messages of scope older than before (or the
// newest when before is zero), oldest first.
func (a *Archive) History(ctx context.Context, scope string, before time.Time, limit int) ([]model.Message, error) {
	limit = clampLimit(limit)
	if before.IsZero() {
		before = time.Now().Add(time.Minute)
	}

	iter := a.session.Query(
		`SELECT id, sender, sender_id, body, type, room_id, recipient_id, recipient_name, is_private, ts FROM messages WHERE scope = ? AND ts < ? LIMIT ?`,
		scope, before, limit,
	).WithContext(ctx).Iter()

	var out []model.Message
	var m model.Message
	var typ string
	for iter.Scan(&m.ID, &m.Sender, &m.SenderID, &m.Body, &typ, &m.RoomID, &m.RecipientID, &m.RecipientName, &m.Private, &m.Timestamp) {
		m.Type = model.MessageType(typ)
		m.Reactions = map[string][]string{}
		out = append(out, m)
		m = model.Message{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("read history of %s: %w", scope, err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if out == nil {
		out = []model.Message{}
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > maxHistory {
		return maxHistory
	}
	return limit
}
