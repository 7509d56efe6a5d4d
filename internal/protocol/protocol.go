// Package protocol defines the JSON wire format exchanged between game clients
// and the relay. Every frame is a single JSON object carrying a "type"
// discriminator; inbound frames decode into one concrete variant per type.
package protocol

// Inbound message types.
const (
	TypeJoin  = "join"
	TypeState = "state"
	TypeChat  = "chat"
	TypeTag   = "tag"
)

// Outbound message types. TypeJoin, TypeState and TypeChat are shared with the
// inbound side.
const (
	TypeWelcome      = "welcome"
	TypePartyHistory = "party_history"
	TypePartyClear   = "party_clear"
	TypeError        = "error"
	TypeLeave        = "leave"
)

// Chat scopes.
const (
	ScopePublic = "public"
	ScopeParty  = "party"
)
