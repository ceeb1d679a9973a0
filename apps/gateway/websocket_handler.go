package main

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mahaj/roomcast/pkg/auth"
	"github.com/mahaj/roomcast/pkg/engine"
	"github.com/mahaj/roomcast/pkg/model"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16 << 10

	sendBuffer = 256

	// Consecutive undecodable frames tolerated before the connection is closed.
	maxMalformed = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a middleman between the websocket connection and the engine.
type Client struct {
	ID          string
	DisplayName string

	conn *websocket.Conn

	// Buffered channel of outbound frames.
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, displayName string) *Client {
	return &Client{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
	}
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close asks the write pump to send a close frame and stop.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Gateway owns the websocket endpoint.
type Gateway struct {
	hub             *Hub
	engine          *engine.Engine
	issuer          *auth.Issuer
	framesPerSecond float64
	logger          *slog.Logger
}

func NewGateway(hub *Hub, eng *engine.Engine, issuer *auth.Issuer, framesPerSecond float64, logger *slog.Logger) *Gateway {
	return &Gateway{
		hub:             hub,
		engine:          eng,
		issuer:          issuer,
		framesPerSecond: framesPerSecond,
		logger:          logger,
	}
}

// ServeHTTP authenticates the handshake, upgrades the connection and joins
// the user under the token's display name.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenString, err := auth.TokenFromRequest(r)
	if err != nil {
		g.logger.Info("Unauthorized handshake", "error", err.Error())
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := g.issuer.ValidateToken(tokenString)
	if err != nil {
		g.logger.Info("Unauthorized handshake", "error", err.Error())
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("Upgrade failed", "error", err.Error())
		return
	}

	client := newClient(conn, claims.DisplayName)
	g.hub.register(client)
	g.engine.Handle(engine.Connect{ConnID: client.ID})
	g.engine.Handle(engine.Join{ConnID: client.ID, DisplayName: client.DisplayName})

	go g.writePump(client)
	go g.readPump(client)
}

func (g *Gateway) newLimiter() *rate.Limiter {
	if g.framesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(g.framesPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(g.framesPerSecond), burst)
}

// readPump pumps frames from the websocket connection to the engine.
func (g *Gateway) readPump(c *Client) {
	reason := engine.ReasonTransportClose
	defer func() {
		c.close()
		c.conn.Close()
		g.hub.unregister(c)
		if g.hub.draining.Load() {
			reason = engine.ReasonServerShutdown
		}
		g.engine.Handle(engine.Disconnect{ConnID: c.ID, Reason: reason})
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	limiter := g.newLimiter()
	malformed := 0
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			reason = disconnectReason(err)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.logger.Warn("Read failed", "conn_id", c.ID, "error", err.Error())
			}
			return
		}

		ev, typ, err := decodeEvent(c.ID, c.DisplayName, message)
		if err != nil {
			malformed++
			g.logger.Debug("Malformed frame", "conn_id", c.ID, "event", typ, "error", err.Error())
			c.enqueue(errorFrame(model.CodeValidation, typ, err.Error()))
			if malformed >= maxMalformed {
				g.logger.Warn("Too many malformed frames", "conn_id", c.ID)
				return
			}
			continue
		}
		malformed = 0

		if !limiter.Allow() {
			c.enqueue(errorFrame(model.CodeRateLimited, typ, "too many frames"))
			continue
		}
		g.engine.Handle(ev)
	}
}

// disconnectReason maps a read error to the engine's notion of why the
// connection ended. Only a normal close from the peer is intentional.
func disconnectReason(err error) engine.Reason {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		return engine.ReasonClientClose
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return engine.ReasonPingTimeout
	}
	return engine.ReasonTransportClose
}

// writePump pumps frames from the send buffer to the websocket connection.
func (g *Gateway) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.done:
			// Flush what the engine queued before the close, e.g. a final error frame.
			for n := len(c.send); n > 0; n-- {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
