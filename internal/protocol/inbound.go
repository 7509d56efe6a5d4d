package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Decoding failures. All of them are protocol errors: the caller logs them and
// keeps the connection open without replying.
var (
	ErrMalformed    = errors.New("malformed message")
	ErrUnknownType  = errors.New("unknown message type")
	ErrMissingField = errors.New("missing required field")
)

// Inbound is implemented by every message a client may send.
type Inbound interface {
	MessageType() string
}

// Join asks the relay to register the connection as a player.
type Join struct {
	ID          string   `json:"id"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	Color       string   `json:"color"`
	Username    string   `json:"username"`
	Stamina     *float64 `json:"stamina,omitempty"`
	IsExhausted *bool    `json:"isExhausted,omitempty"`
}

// State is a position/status update. Nil fields leave the stored value alone.
type State struct {
	ID          string   `json:"id"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	Color       *string  `json:"color,omitempty"`
	Stamina     *float64 `json:"stamina,omitempty"`
	IsExhausted *bool    `json:"isExhausted,omitempty"`
}

// Chat carries a chat line or a slash command.
type Chat struct {
	Message *string `json:"message"`
	Scope   string  `json:"scope,omitempty"`
}

// Tag is an infection attempt against TargetID.
type Tag struct {
	TargetID string `json:"targetId"`
}

func (Join) MessageType() string  { return TypeJoin }
func (State) MessageType() string { return TypeState }
func (Chat) MessageType() string  { return TypeChat }
func (Tag) MessageType() string   { return TypeTag }

type discriminator struct {
	Type string `json:"type"`
}

// Decode parses a raw frame into its concrete variant and checks the fields
// each variant cannot do without.
func Decode(raw []byte) (Inbound, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}

	var d discriminator
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch d.Type {
	case TypeJoin:
		msg, err := decodeAs[Join](raw)
		if err != nil {
			return nil, err
		}
		msg.ID = strings.TrimSpace(msg.ID)
		if msg.ID == "" {
			return nil, missing(TypeJoin, "id")
		}
		if msg.X == nil || msg.Y == nil {
			return nil, missing(TypeJoin, "x/y")
		}
		return msg, nil
	case TypeState:
		msg, err := decodeAs[State](raw)
		if err != nil {
			return nil, err
		}
		if msg.X == nil || msg.Y == nil {
			return nil, missing(TypeState, "x/y")
		}
		return msg, nil
	case TypeChat:
		msg, err := decodeAs[Chat](raw)
		if err != nil {
			return nil, err
		}
		if msg.Message == nil {
			return nil, missing(TypeChat, "message")
		}
		return msg, nil
	case TypeTag:
		msg, err := decodeAs[Tag](raw)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.TargetID) == "" {
			return nil, missing(TypeTag, "targetId")
		}
		return msg, nil
	case "":
		return nil, fmt.Errorf("%w: no type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, d.Type)
	}
}

func decodeAs[T any](raw []byte) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

func missing(msgType, field string) error {
	return fmt.Errorf("%w: %s.%s", ErrMissingField, msgType, field)
}
