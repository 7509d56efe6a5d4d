package relay

import (
	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/partyrelay/internal/protocol"
)

// Conn is a transport handle the relay can push frames to. Send must not
// block; delivery is best effort.
type Conn interface {
	Send(payload []byte) error
}

// Dispatcher fans outbound messages out to connections. Each call encodes the
// message once.
type Dispatcher struct {
	sessions *Registry
}

// NewDispatcher returns a Dispatcher resolving recipients through sessions.
func NewDispatcher(sessions *Registry) *Dispatcher {
	return &Dispatcher{sessions: sessions}
}

// BroadcastAll sends msg to every open connection.
func (d *Dispatcher) BroadcastAll(msg protocol.Outbound) {
	d.BroadcastExcept(msg, nil)
}

// BroadcastExcept sends msg to every open connection except excluded.
func (d *Dispatcher) BroadcastExcept(msg protocol.Outbound, excluded Conn) {
	payload, ok := encode(msg)
	if !ok {
		return
	}
	for _, c := range d.sessions.Connections() {
		if excluded != nil && c == excluded {
			continue
		}
		deliver(c, payload, msg)
	}
}

// SendTo sends msg to a connected player. Offline players are skipped
// silently.
func (d *Dispatcher) SendTo(playerID string, msg protocol.Outbound) {
	c, ok := d.sessions.Lookup(playerID)
	if !ok {
		return
	}
	d.SendConn(c, msg)
}

// SendConn sends msg to one connection, joined or not.
func (d *Dispatcher) SendConn(c Conn, msg protocol.Outbound) {
	if c == nil {
		return
	}
	payload, ok := encode(msg)
	if !ok {
		return
	}
	deliver(c, payload, msg)
}

func encode(msg protocol.Outbound) ([]byte, bool) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Msg("dropping outbound message")
		return nil, false
	}
	return payload, true
}

func deliver(c Conn, payload []byte, msg protocol.Outbound) {
	if err := c.Send(payload); err != nil {
		log.Debug().Err(err).Str("type", msg.MessageType()).Msg("outbound message not delivered")
	}
}
