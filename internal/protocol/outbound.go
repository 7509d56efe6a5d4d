package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Outbound is implemented by every message the relay sends.
type Outbound interface {
	MessageType() string
}

// PlayerSnapshot is the public view of one player. PartyID is null when the
// player has no party.
type PlayerSnapshot struct {
	ID            string  `json:"id"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Color         string  `json:"color"`
	Username      string  `json:"username"`
	Stamina       float64 `json:"stamina"`
	IsExhausted   bool    `json:"isExhausted"`
	PartyID       *string `json:"partyId"`
	IsPartyLeader bool    `json:"isPartyLeader"`
	IsInfected    bool    `json:"isInfected"`
}

// ChatEntry is one line of chat as stored in history and sent on the wire.
type ChatEntry struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Scope    string `json:"scope"`
}

// Welcome is sent to a player once their join is accepted.
type Welcome struct {
	Type  string           `json:"type"`
	ID    string           `json:"id"`
	Peers []PlayerSnapshot `json:"peers"`
	Chat  []ChatEntry      `json:"chat"`
}

// PlayerJoined announces a new player to everyone else.
type PlayerJoined struct {
	Type string `json:"type"`
	PlayerSnapshot
}

// PlayerState is the full state snapshot of a single player.
type PlayerState struct {
	Type string `json:"type"`
	PlayerSnapshot
}

// ChatMessage delivers a chat line.
type ChatMessage struct {
	Type string `json:"type"`
	ChatEntry
}

// PartyHistory replays a party's chat to a player who just joined it.
type PartyHistory struct {
	Type     string      `json:"type"`
	Messages []ChatEntry `json:"messages"`
}

// PartyClear tells a player they no longer belong to a party.
type PartyClear struct {
	Type string `json:"type"`
}

// Error is a human readable validation failure sent to the offending sender.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Leave announces a disconnect.
type Leave struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Username string `json:"username"`
}

// MessageType implements Outbound.
func (m Welcome) MessageType() string      { return m.Type }
func (m PlayerJoined) MessageType() string { return m.Type }
func (m PlayerState) MessageType() string  { return m.Type }
func (m ChatMessage) MessageType() string  { return m.Type }
func (m PartyHistory) MessageType() string { return m.Type }
func (m PartyClear) MessageType() string   { return m.Type }
func (m Error) MessageType() string        { return m.Type }
func (m Leave) MessageType() string        { return m.Type }

// NewWelcome greets a joiner with the other players and the public chat
// history. Nil slices encode as empty arrays.
func NewWelcome(id string, peers []PlayerSnapshot, chat []ChatEntry) Welcome {
	if peers == nil {
		peers = []PlayerSnapshot{}
	}
	if chat == nil {
		chat = []ChatEntry{}
	}
	return Welcome{Type: TypeWelcome, ID: id, Peers: peers, Chat: chat}
}

// NewPlayerJoined announces a new player to everyone else.
func NewPlayerJoined(p PlayerSnapshot) PlayerJoined {
	return PlayerJoined{Type: TypeJoin, PlayerSnapshot: p}
}

// NewPlayerState carries one player's full snapshot.
func NewPlayerState(p PlayerSnapshot) PlayerState {
	return PlayerState{Type: TypeState, PlayerSnapshot: p}
}

// NewChatMessage wraps a chat line, including System notices.
func NewChatMessage(entry ChatEntry) ChatMessage {
	return ChatMessage{Type: TypeChat, ChatEntry: entry}
}

// NewPartyHistory replays a party's chat to a new member.
func NewPartyHistory(messages []ChatEntry) PartyHistory {
	if messages == nil {
		messages = []ChatEntry{}
	}
	return PartyHistory{Type: TypePartyHistory, Messages: messages}
}

// NewPartyClear tells a client it no longer belongs to a party.
func NewPartyClear() PartyClear {
	return PartyClear{Type: TypePartyClear}
}

// NewError reports a rejected request to its sender.
func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}

// NewLeave announces a disconnected player.
func NewLeave(id, username string) Leave {
	return Leave{Type: TypeLeave, ID: id, Username: username}
}

var errNoType = errors.New("outbound message has no type")

// Encode serializes an outbound message.
func Encode(msg Outbound) ([]byte, error) {
	if msg == nil || msg.MessageType() == "" {
		return nil, errNoType
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	return b, nil
}
