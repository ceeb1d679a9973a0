// Package journal carries engine side effects to external systems without
// blocking the engine.
package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/mahaj/roomcast/pkg/model"
)

type Kind string

const (
	KindSessionStarted Kind = "session_started"
	KindSessionResumed Kind = "session_resumed"
	KindSessionEnded   Kind = "session_ended"
	KindRoomChanged    Kind = "room_changed"
	KindRoomCreated    Kind = "room_created"
	KindMessage        Kind = "message"
	KindReaction       Kind = "reaction"
)

// Entry is one recorded side effect.
type Entry struct {
	Kind           Kind           `json:"kind"`
	ConnectionID   string         `json:"connection_id,omitempty"`
	PreviousConnID string         `json:"previous_connection_id,omitempty"`
	DisplayName    string         `json:"display_name,omitempty"`
	RoomID         string         `json:"room_id,omitempty"`
	PreviousRoomID string         `json:"previous_room_id,omitempty"`
	RoomName       string         `json:"room_name,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Message        *model.Message `json:"message,omitempty"`

	// Reaction entries carry the toggled emoji and the resulting reaction map.
	MessageID string              `json:"message_id,omitempty"`
	Emoji     string              `json:"emoji,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty"`
	At        time.Time           `json:"at"`
}

// Sink receives entries. Record must never block.
type Sink interface {
	Record(e Entry)
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Record(Entry) {}

// Multi fans an entry out to every sink.
type Multi []Sink

func (m Multi) Record(e Entry) {
	for _, s := range m {
		s.Record(e)
	}
}

// Handler applies an entry to an external system.
type Handler interface {
	Handle(ctx context.Context, e Entry) error
}

// Pump buffers entries and feeds them to a Handler from a single goroutine,
// preserving order. Entries are dropped when the buffer is full.
type Pump struct {
	name    string
	entries chan Entry
	handler Handler
	logger  *slog.Logger
	done    chan struct{}
}

func NewPump(name string, handler Handler, buffer int, logger *slog.Logger) *Pump {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Pump{
		name:    name,
		entries: make(chan Entry, buffer),
		handler: handler,
		logger:  logger.With("sink", name),
		done:    make(chan struct{}),
	}
}

func (p *Pump) Record(e Entry) {
	select {
	case p.entries <- e:
	default:
		p.logger.Warn("Journal buffer full, dropping entry", "kind", e.Kind)
	}
}

// Run drains entries until ctx is cancelled, then flushes what is already
// buffered using a fresh bounded context.
func (p *Pump) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case e := <-p.entries:
			p.handle(ctx, e)
		}
	}
}

// Wait blocks until Run has returned.
func (p *Pump) Wait() {
	<-p.done
}

func (p *Pump) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case e := <-p.entries:
			p.handle(ctx, e)
		default:
			return
		}
	}
}

func (p *Pump) handle(ctx context.Context, e Entry) {
	if err := p.handler.Handle(ctx, e); err != nil {
		p.logger.Warn("Journal handler failed", "kind", e.Kind, "error", err.Error())
	}
}
