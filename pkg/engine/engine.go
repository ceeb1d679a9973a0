// Package engine is the connection lifecycle controller. It owns every
// registry behind one mutex and is the only place that mutates them.
package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mahaj/roomcast/pkg/dispatch"
	"github.com/mahaj/roomcast/pkg/journal"
	"github.com/mahaj/roomcast/pkg/model"
	"github.com/mahaj/roomcast/pkg/room"
	"github.com/mahaj/roomcast/pkg/session"
	"github.com/mahaj/roomcast/pkg/snowflake"
	"github.com/mahaj/roomcast/pkg/store"
	"github.com/mahaj/roomcast/pkg/typing"
	"github.com/mahaj/roomcast/pkg/validator"
)

const (
	defaultHistoryLimit = 50
	defaultPageLimit    = 20
	defaultJoinDebounce = 2 * time.Second
	defaultCleanup      = 3 * time.Second
)

// SeedRoom is a room that exists from startup.
type SeedRoom struct {
	ID   string
	Name string
}

type Config struct {
	DefaultRoomID   string
	DefaultRoomName string
	SeedRooms       []SeedRoom
	MessageCapacity int
	HistoryLimit    int
	PageLimit       int
	JoinDebounce    time.Duration
	CleanupDebounce time.Duration
	MaxRooms        int
}

func (c *Config) applyDefaults() {
	if c.DefaultRoomID == "" {
		c.DefaultRoomID = "global"
	}
	if c.DefaultRoomName == "" {
		c.DefaultRoomName = "Global Chat"
	}
	if c.MessageCapacity <= 0 {
		c.MessageCapacity = store.DefaultCapacity
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	if c.PageLimit <= 0 {
		c.PageLimit = defaultPageLimit
	}
	if c.JoinDebounce <= 0 {
		c.JoinDebounce = defaultJoinDebounce
	}
	if c.CleanupDebounce <= 0 {
		c.CleanupDebounce = defaultCleanup
	}
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d on its own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*Engine)

func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithJournal(s journal.Sink) Option {
	return func(e *Engine) { e.journal = s }
}

func WithIDs(n *snowflake.Node) Option {
	return func(e *Engine) { e.ids = n }
}

// Engine serializes every inbound event through mu. Outbound frames are
// dispatched while mu is held so payloads always match the state that
// produced them.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	logger   *slog.Logger
	sessions *session.Registry
	rooms    *room.Registry
	messages *store.Store
	typing   *typing.Aggregator
	out      *dispatch.Dispatcher
	validate *validator.Validator
	journal  journal.Sink
	ids      *snowflake.Node
	sched    Scheduler
	now      func() time.Time
	started  time.Time

	conns         map[string]*conn
	joinTimers    map[string]*pending // display name
	cleanupTimers map[string]*pending // connection id
	closed        bool
}

type pending struct {
	timer Timer
}

func New(cfg Config, transport dispatch.Transport, logger *slog.Logger, opts ...Option) (*Engine, error) {
	cfg.applyDefaults()

	e := &Engine{
		cfg:           cfg,
		logger:        logger,
		sessions:      session.NewRegistry(),
		rooms:         room.NewRegistry(cfg.DefaultRoomID, cfg.DefaultRoomName, cfg.MaxRooms),
		messages:      store.New(cfg.MessageCapacity),
		typing:        typing.New(),
		validate:      validator.New(),
		journal:       journal.Discard{},
		sched:         realScheduler{},
		now:           func() time.Time { return time.Now().UTC() },
		conns:         make(map[string]*conn),
		joinTimers:    make(map[string]*pending),
		cleanupTimers: make(map[string]*pending),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ids == nil {
		node, err := snowflake.NewNode(1)
		if err != nil {
			return nil, fmt.Errorf("snowflake node: %w", err)
		}
		e.ids = node
	}
	for _, seed := range cfg.SeedRooms {
		if _, _, err := e.rooms.Ensure(seed.ID, seed.Name, ""); err != nil {
			return nil, fmt.Errorf("seed room %q: %w", seed.ID, err)
		}
	}
	e.out = dispatch.New(transport, e.rooms, e.sessions, logger)
	e.started = e.now()
	return e, nil
}

// Handle applies one inbound event atomically.
func (e *Engine) Handle(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	switch ev := ev.(type) {
	case Connect:
		e.connect(ev)
	case Disconnect:
		e.disconnect(ev)
	case Join:
		e.join(ev)
	case Logout:
		e.logout(ev)
	case SendMessage:
		e.sendMessage(ev)
	case SendPrivateMessage:
		e.sendPrivateMessage(ev)
	case React:
		e.react(ev)
	case MarkRead:
		e.markRead(ev)
	case SetTyping:
		e.setTyping(ev)
	case JoinRoom:
		e.joinRoom(ev)
	case CreateRoom:
		e.createRoom(ev)
	case ListRooms:
		e.listRooms(ev)
	case LoadHistory:
		e.loadHistory(ev)
	default:
		e.logger.Warn("Unhandled event", "type", fmt.Sprintf("%T", ev), "conn_id", ev.connection())
	}
}

// Close cancels every pending timer and ignores further events.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for name, p := range e.joinTimers {
		p.timer.Stop()
		delete(e.joinTimers, name)
	}
	for id, p := range e.cleanupTimers {
		p.timer.Stop()
		delete(e.cleanupTimers, id)
	}
}

func (e *Engine) reject(connID string, code model.ErrorCode, event model.EventName, msg string) {
	e.logger.Debug("Rejected event", "conn_id", connID, "event", event, "code", code, "reason", msg)
	e.out.ToConnection(connID, model.EventError, model.Error{Code: code, Message: msg, Event: event})
}

// check validates v and reports the first failed rule to connID.
func (e *Engine) check(connID string, event model.EventName, v any) bool {
	errs := e.validate.ValidateStruct(v)
	if len(errs) == 0 {
		return true
	}
	e.reject(connID, model.CodeValidation, event, errs[0].String())
	return false
}

// active returns the session of an Active connection, rejecting the event otherwise.
func (e *Engine) active(connID string, event model.EventName) (model.Session, bool) {
	c, ok := e.conns[connID]
	if !ok || c.state != stateActive {
		e.reject(connID, model.CodeUnauthenticated, event, "join before sending "+string(event))
		return model.Session{}, false
	}
	sess, err := e.sessions.Lookup(connID)
	if err != nil {
		e.reject(connID, model.CodeUnauthenticated, event, "session not found")
		return model.Session{}, false
	}
	return sess, true
}

func (e *Engine) record(entry journal.Entry) {
	entry.At = e.now()
	e.journal.Record(entry)
}

func (e *Engine) newID(prefix, connID string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, e.ids.Generate(), connID)
}

func (e *Engine) sendHistory(connID, roomID string) {
	e.out.ToConnection(connID, model.EventMessageHistory, model.History{
		RoomID:   roomID,
		Messages: e.messages.Recent(roomID, e.cfg.HistoryLimit),
	})
}

func (e *Engine) broadcastTyping(roomIDs []string, exclude string) {
	for _, roomID := range roomIDs {
		e.out.ToRoom(roomID, model.EventTypingList, model.TypingList{RoomID: roomID, Users: e.typing.List(roomID)}, exclude)
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}

// Stats is a point-in-time summary of the engine.
type Stats struct {
	Users       int           `json:"users"`
	Messages    int           `json:"messages"`
	Rooms       int           `json:"rooms"`
	ActiveRooms int           `json:"active_rooms"`
	Pending     int           `json:"pending_cleanup"`
	Uptime      time.Duration `json:"uptime"`
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Users:       e.sessions.Len(),
		Messages:    e.messages.Len(),
		Rooms:       e.rooms.Len(),
		ActiveRooms: e.rooms.ActiveLen(),
		Pending:     len(e.cleanupTimers),
		Uptime:      e.now().Sub(e.started),
	}
}

func (e *Engine) Presence() []model.PresenceEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions.Presence()
}

func (e *Engine) Rooms() []model.RoomSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms.Summaries()
}

// Messages returns the newest limit messages of roomID.
func (e *Engine) Messages(roomID string, limit int) []model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 {
		limit = e.cfg.HistoryLimit
	}
	return e.messages.Recent(roomID, limit)
}

// Session returns the session held by connID, if any.
func (e *Engine) Session(connID string) (model.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions.Lookup(connID)
}
