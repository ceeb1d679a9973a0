// Package dispatch routes outbound frames to room, connection or global scope.
package dispatch

import (
	"encoding/json"
	"log/slog"

	"github.com/mahaj/roomcast/pkg/model"
)

// Transport delivers encoded frames to a connection. Send must not block; it
// reports false when the connection is unknown or its buffer is full.
type Transport interface {
	Send(connID string, data []byte) bool
	Close(connID string)
}

// Members resolves a room's member set.
type Members interface {
	Members(roomID string) []string
}

// Connections lists every connection that should receive global broadcasts.
type Connections interface {
	ConnectionIDs() []string
}

// Dispatcher has no state of its own: recipients are resolved from the
// registries at call time and the payload is encoded once per call.
type Dispatcher struct {
	transport Transport
	rooms     Members
	conns     Connections
	logger    *slog.Logger
}

func New(transport Transport, rooms Members, conns Connections, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		rooms:     rooms,
		conns:     conns,
		logger:    logger,
	}
}

// ToRoom delivers to every member of roomID except exclude (which may be empty).
func (d *Dispatcher) ToRoom(roomID string, event model.EventName, payload any, exclude string) {
	data, ok := d.encode(event, payload)
	if !ok {
		return
	}
	for _, connID := range d.rooms.Members(roomID) {
		if connID == exclude {
			continue
		}
		d.send(connID, event, data)
	}
}

func (d *Dispatcher) ToConnection(connID string, event model.EventName, payload any) {
	data, ok := d.encode(event, payload)
	if !ok {
		return
	}
	d.send(connID, event, data)
}

func (d *Dispatcher) ToAll(event model.EventName, payload any) {
	d.ToAllExcept(event, payload, "")
}

func (d *Dispatcher) ToAllExcept(event model.EventName, payload any, exclude string) {
	data, ok := d.encode(event, payload)
	if !ok {
		return
	}
	for _, connID := range d.conns.ConnectionIDs() {
		if connID == exclude {
			continue
		}
		d.send(connID, event, data)
	}
}

// Disconnect asks the transport to close the connection.
func (d *Dispatcher) Disconnect(connID string) {
	d.transport.Close(connID)
}

func (d *Dispatcher) send(connID string, event model.EventName, data []byte) {
	if !d.transport.Send(connID, data) {
		d.logger.Debug("Dropped frame", "conn_id", connID, "event", event)
	}
}

func (d *Dispatcher) encode(event model.EventName, payload any) ([]byte, bool) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("Could not encode payload", "event", event, "error", err.Error())
		return nil, false
	}
	data, err := json.Marshal(model.Frame{Type: event, Payload: body})
	if err != nil {
		d.logger.Error("Could not encode frame", "event", event, "error", err.Error())
		return nil, false
	}
	return data, true
}
