// Package relay holds the authoritative in-memory state of a multiplayer
// session: who is connected, where they are, which party they belong to and
// what phase each party's infection game is in.
//
// A Relay is not safe for concurrent use. Exactly one goroutine owns it and
// feeds it connection events and decoded messages one at a time; every handler
// runs to completion before the next event is processed, which keeps the
// player, party and game tables consistent with each other without locks.
package relay

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/partyrelay/internal/protocol"
)

// DefaultMaxPartySize is the party capacity used when Options leaves it unset.
const DefaultMaxPartySize = 10

// Sanitizer cleans player supplied text. Implementations must not fail.
type Sanitizer interface {
	Sanitize(text string) string
	DisplayName(requested string) string
}

// Options configures a Relay. Zero values select the defaults.
type Options struct {
	MaxPartySize   int
	InviteCooldown time.Duration
	HistoryLimit   int
	Sanitizer      Sanitizer

	// Now, RandIntn and NewPartyID exist so tests can pin time, alpha
	// selection and party ids.
	Now        func() time.Time
	RandIntn   func(n int) int
	NewPartyID func() string
}

// Relay routes inbound messages to the session, party, chat and game logic and
// pushes the resulting state changes out.
type Relay struct {
	opts Options

	sessions  *Registry
	players   *PlayerStore
	out       *Dispatcher
	history   *History
	parties   map[string]*Party
	invites   map[string][]string
	cooldowns *Cooldowns
}

// New builds an empty Relay.
func New(opts Options) *Relay {
	if opts.MaxPartySize <= 0 {
		opts.MaxPartySize = DefaultMaxPartySize
	}
	if opts.InviteCooldown <= 0 {
		opts.InviteCooldown = DefaultInviteCooldown
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Sanitizer == nil {
		opts.Sanitizer = passthrough{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RandIntn == nil {
		opts.RandIntn = rand.IntN
	}
	if opts.NewPartyID == nil {
		opts.NewPartyID = uuid.NewString
	}

	sessions := NewRegistry()
	return &Relay{
		opts:      opts,
		sessions:  sessions,
		players:   NewPlayerStore(),
		out:       NewDispatcher(sessions),
		history:   NewHistory(opts.HistoryLimit),
		parties:   make(map[string]*Party),
		invites:   make(map[string][]string),
		cooldowns: NewCooldowns(opts.InviteCooldown),
	}
}

type passthrough struct{}

func (passthrough) Sanitize(text string) string        { return text }
func (passthrough) DisplayName(requested string) string { return requested }

// Connect attaches a freshly opened connection. It receives broadcasts but is
// ignored for everything except join until it has joined.
func (r *Relay) Connect(c Conn) {
	r.sessions.Attach(c)
}

// Disconnect tears down everything owned by the connection's player and then
// announces the departure. It is safe to call more than once and for
// connections that never joined.
func (r *Relay) Disconnect(c Conn) {
	id, ok := r.sessions.Unregister(c)
	if !ok {
		return
	}
	p, ok := r.players.Get(id)
	if !ok {
		return
	}
	name := p.Name

	if p.PartyID != "" {
		r.leaveParty(id, departureDisconnect)
	}
	delete(r.invites, id)
	r.players.Remove(id)

	log.Info().Str("player_id", id).Str("username", name).Int("players", r.players.Len()).Msg("player left")
	r.out.BroadcastAll(protocol.NewLeave(id, name))
}

var errUnsupported = errors.New("unsupported message")

// Handle processes one decoded message from c. Validation failures are sent
// back to the sender and also returned so the caller can record them.
func (r *Relay) Handle(c Conn, msg protocol.Inbound) error {
	if join, ok := msg.(protocol.Join); ok {
		err := r.handleJoin(c, join)
		if err != nil {
			r.out.SendConn(c, protocol.NewError(err.Error()))
		}
		return err
	}

	id, ok := r.sessions.Resolve(c)
	if !ok {
		return nil
	}

	var err error
	switch m := msg.(type) {
	case protocol.State:
		r.handleState(c, id, m)
	case protocol.Chat:
		err = r.handleChat(id, m)
	case protocol.Tag:
		r.Tag(id, m.TargetID)
	default:
		return fmt.Errorf("%w: %T", errUnsupported, msg)
	}

	if err != nil {
		r.reject(id, err)
	}
	return err
}

// SweepCooldowns drops expired invite cooldowns.
func (r *Relay) SweepCooldowns() int {
	return r.cooldowns.Sweep(r.opts.Now())
}

// Connections is the number of open connections.
func (r *Relay) Connections() int {
	return r.sessions.Len()
}

// Players is the number of joined players.
func (r *Relay) Players() int {
	return r.players.Len()
}

func (r *Relay) handleJoin(c Conn, msg protocol.Join) error {
	if _, joined := r.sessions.Resolve(c); joined {
		return nil
	}
	if _, taken := r.sessions.Lookup(msg.ID); taken {
		return newError(CodeDuplicateID, "That player id is already connected.")
	}

	stamina := float64(MaxStamina)
	if msg.Stamina != nil {
		stamina = *msg.Stamina
	}
	exhausted := msg.IsExhausted != nil && *msg.IsExhausted

	p, err := r.players.Create(Player{
		ID:          msg.ID,
		Name:        r.opts.Sanitizer.DisplayName(msg.Username),
		X:           *msg.X,
		Y:           *msg.Y,
		Color:       msg.Color,
		Stamina:     stamina,
		IsExhausted: exhausted,
	})
	if err != nil {
		return err
	}
	r.sessions.Attach(c)
	r.sessions.Register(c, p.ID)

	log.Info().Str("player_id", p.ID).Str("username", p.Name).Int("players", r.players.Len()).Msg("player joined")

	r.out.BroadcastExcept(protocol.NewPlayerJoined(r.snapshot(p)), c)

	peers := make([]protocol.PlayerSnapshot, 0, r.players.Len())
	for _, peer := range r.players.All() {
		if peer.ID != p.ID {
			peers = append(peers, r.snapshot(peer))
		}
	}
	r.out.SendConn(c, protocol.NewWelcome(p.ID, peers, r.history.Entries()))
	return nil
}

func (r *Relay) handleState(c Conn, id string, msg protocol.State) {
	if msg.ID != "" && msg.ID != id {
		return
	}
	if !r.players.Update(id, StateUpdate{
		X:           msg.X,
		Y:           msg.Y,
		Color:       msg.Color,
		Stamina:     msg.Stamina,
		IsExhausted: msg.IsExhausted,
	}) {
		return
	}
	p, _ := r.players.Get(id)
	r.out.BroadcastExcept(protocol.NewPlayerState(r.snapshot(p)), c)
}

func (r *Relay) reject(playerID string, err error) {
	var verr *Error
	if errors.As(err, &verr) {
		log.Debug().Str("player_id", playerID).Str("code", string(verr.Code)).Msg(verr.Message)
		r.out.SendTo(playerID, protocol.NewError(verr.Message))
		return
	}
	log.Error().Err(err).Str("player_id", playerID).Msg("handler failed")
}

func (r *Relay) snapshot(p *Player) protocol.PlayerSnapshot {
	s := protocol.PlayerSnapshot{
		ID:          p.ID,
		X:           p.X,
		Y:           p.Y,
		Color:       p.Color,
		Username:    p.Name,
		Stamina:     p.Stamina,
		IsExhausted: p.IsExhausted,
		IsInfected:  p.IsInfected,
	}
	if p.PartyID != "" {
		partyID := p.PartyID
		s.PartyID = &partyID
		if party, ok := r.parties[partyID]; ok {
			s.IsPartyLeader = party.LeaderID == p.ID
		}
	}
	return s
}

// rebroadcast pushes the full state of party's members, followed by the
// extra players, to every connection. It runs after any change to party
// membership, leadership or infection, and covers exactly the players whose
// derived flags that change can touch: at most MaxPartySize+1 frames per
// connection, whatever the number of players online.
func (r *Relay) rebroadcast(party *Party, extra ...string) {
	var ids []string
	if party != nil {
		ids = append(ids, party.Members...)
	}
	for _, id := range extra {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		if p, ok := r.players.Get(id); ok {
			r.out.BroadcastAll(protocol.NewPlayerState(r.snapshot(p)))
		}
	}
}

const systemName = "System"

// notify sends a system notice to one player.
func (r *Relay) notify(playerID, format string, args ...any) {
	scope := protocol.ScopePublic
	if p, ok := r.players.Get(playerID); ok && p.PartyID != "" {
		scope = protocol.ScopeParty
	}
	r.out.SendTo(playerID, protocol.NewChatMessage(protocol.ChatEntry{
		Username: systemName,
		Message:  fmt.Sprintf(format, args...),
		Scope:    scope,
	}))
}

// notifyParty sends a system notice to every member of party.
func (r *Relay) notifyParty(party *Party, format string, args ...any) {
	msg := protocol.NewChatMessage(protocol.ChatEntry{
		Username: systemName,
		Message:  fmt.Sprintf(format, args...),
		Scope:    protocol.ScopeParty,
	})
	for _, id := range party.Members {
		r.out.SendTo(id, msg)
	}
}
