package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tyrowin/partyrelay/internal/protocol"
	"github.com/Tyrowin/partyrelay/internal/relay"
)

const tracerName = "github.com/Tyrowin/partyrelay/internal/server"

// Hub owns the relay. Its Run loop is the only goroutine that touches relay
// state: client registration, disconnects, inbound frames and the cooldown
// sweep all arrive on channels and are handled one at a time.
type Hub struct {
	relay   *relay.Relay
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame

	sweepInterval time.Duration
	tracer        trace.Tracer

	players     atomic.Int64
	connections atomic.Int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub around r. A sweepInterval of zero disables the
// periodic cooldown sweep.
func NewHub(r *relay.Relay, sweepInterval time.Duration) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		relay:         r,
		clients:       make(map[*Client]struct{}),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		inbound:       make(chan inboundFrame, 256),
		sweepInterval: sweepInterval,
		tracer:        otel.Tracer(tracerName),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Players is the number of joined players. Safe to call from any goroutine.
func (h *Hub) Players() int {
	return int(h.players.Load())
}

// Connections is the number of open websocket connections. Safe to call from
// any goroutine.
func (h *Hub) Connections() int {
	return int(h.connections.Load())
}

// Register hands a freshly upgraded client to the hub. It reports false once
// the hub is shutting down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) submit(frame inboundFrame) bool {
	select {
	case h.inbound <- frame:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// Run starts the hub's event loop. It returns after Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	var sweep <-chan time.Time
	if h.sweepInterval > 0 {
		ticker := time.NewTicker(h.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Warn().Msg("received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case frame := <-h.inbound:
			h.dispatch(frame)

		case <-sweep:
			if n := h.relay.SweepCooldowns(); n > 0 {
				log.Debug().Int("expired", n).Msg("swept invite cooldowns")
			}
		}
		h.refreshCounts()
	}
}

func (h *Hub) addClient(c *Client) {
	h.clients[c] = struct{}{}
	h.relay.Connect(c)
	log.Info().Str("remote_addr", c.addr).Int("clients", len(h.clients)).Msg("client registered")

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.relay.Disconnect(c)
	c.closeSend()
	log.Info().Str("remote_addr", c.addr).Int("clients", len(h.clients)).Msg("client unregistered")
}

// dispatch decodes one frame and hands it to the relay inside its own span.
// Frames that fail to decode are logged and dropped without a reply.
func (h *Hub) dispatch(frame inboundFrame) {
	if _, ok := h.clients[frame.client]; !ok {
		return
	}

	_, span := h.tracer.Start(h.ctx, "relay.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer.addr", frame.client.addr)),
	)
	defer span.End()

	msg, err := protocol.Decode(frame.payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		log.Warn().Err(err).Str("remote_addr", frame.client.addr).Msg("dropping invalid message")
		return
	}
	span.SetAttributes(attribute.String("relay.message_type", msg.MessageType()))

	if err := h.relay.Handle(frame.client, msg); err != nil {
		span.RecordError(err)
		log.Debug().Err(err).Str("remote_addr", frame.client.addr).Str("type", msg.MessageType()).Msg("message rejected")
	}
}

func (h *Hub) refreshCounts() {
	h.players.Store(int64(h.relay.Players()))
	h.connections.Store(int64(len(h.clients)))
}

// shutdownClients closes every connection. The relay is not told about the
// departures since the process is going away.
func (h *Hub) shutdownClients() {
	log.Info().Int("clients", len(h.clients)).Msg("shutting down all client connections")

	for client := range h.clients {
		client.closeSend()
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Warn().Err(err).Str("remote_addr", client.addr).Msg("error closing client connection")
			}
		}
		delete(h.clients, client)
	}
	h.refreshCounts()
}

// Shutdown stops the event loop and waits for every client goroutine to
// finish, or until timeout elapses. The timeout also bounds the wait for Run,
// so a hub that was never started reports context.DeadlineExceeded.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Info().Msg("initiating hub shutdown")

	h.cancel()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-h.done:
	case <-deadline.C:
		log.Warn().Msg("hub shutdown timeout reached before the event loop stopped")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("hub shutdown completed")
		return nil
	case <-deadline.C:
		log.Warn().Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
