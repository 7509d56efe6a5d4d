package relay

import (
	"fmt"
	"strings"

	"github.com/Tyrowin/partyrelay/internal/profanity"
	"github.com/Tyrowin/partyrelay/internal/protocol"
)

// MaxChatLength bounds a chat line, in runes.
const MaxChatLength = 200

const (
	partyPrefix = "/party"
	gamePrefix  = "/game"

	partyUsage = "Party commands: /party invite <name>, accept, decline, leave, kick <name>, list"
	gameUsage  = "Game commands: /game start, /game end"
)

type command struct {
	prefix string
	sub    string
	arg    string
}

// parseCommand recognises /party and /game. The token after the prefix is the
// sub-command and the one after that its argument.
func parseCommand(text string) (command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return command{}, false
	}
	prefix := strings.ToLower(fields[0])
	if prefix != partyPrefix && prefix != gamePrefix {
		return command{}, false
	}
	cmd := command{prefix: prefix}
	if len(fields) > 1 {
		cmd.sub = strings.ToLower(fields[1])
	}
	if len(fields) > 2 {
		cmd.arg = fields[2]
	}
	return cmd, true
}

func (r *Relay) handleChat(senderID string, msg protocol.Chat) error {
	text := strings.TrimSpace(r.opts.Sanitizer.Sanitize(*msg.Message))
	if text == "" {
		return nil
	}
	if cmd, ok := parseCommand(text); ok {
		return r.runCommand(senderID, cmd)
	}

	sender, ok := r.players.Get(senderID)
	if !ok {
		return nil
	}
	text = profanity.Truncate(text, MaxChatLength)

	if msg.Scope == protocol.ScopeParty {
		party, ok := r.partyOf(senderID)
		if !ok {
			return newError(CodeNotInParty, "You are not in a party.")
		}
		entry := protocol.ChatEntry{Username: sender.Name, Message: text, Scope: protocol.ScopeParty}
		party.History.Append(entry)
		out := protocol.NewChatMessage(entry)
		for _, id := range party.Members {
			r.out.SendTo(id, out)
		}
		return nil
	}

	entry := protocol.ChatEntry{Username: sender.Name, Message: text, Scope: protocol.ScopePublic}
	r.history.Append(entry)
	r.out.BroadcastAll(protocol.NewChatMessage(entry))
	return nil
}

func (r *Relay) runCommand(senderID string, cmd command) error {
	if cmd.prefix == gamePrefix {
		switch cmd.sub {
		case "start":
			return r.StartGame(senderID)
		case "end":
			return r.EndGame(senderID)
		default:
			return newError(CodeUnknownCommand, "%s", gameUsage)
		}
	}

	switch cmd.sub {
	case "invite":
		if cmd.arg == "" {
			return newError(CodeMissingArgument, "Usage: /party invite <name>")
		}
		return r.Invite(senderID, cmd.arg)
	case "accept":
		return r.Accept(senderID)
	case "decline":
		return r.Decline(senderID)
	case "leave":
		return r.Leave(senderID)
	case "kick":
		if cmd.arg == "" {
			return newError(CodeMissingArgument, "Usage: /party kick <name>")
		}
		return r.Kick(senderID, cmd.arg)
	case "list":
		roster, err := r.List(senderID)
		if err != nil {
			return err
		}
		r.notify(senderID, "%s", formatRoster(roster, r.opts.MaxPartySize))
		return nil
	default:
		return newError(CodeUnknownCommand, "%s", partyUsage)
	}
}

func formatRoster(roster []RosterEntry, capacity int) string {
	names := make([]string, 0, len(roster))
	for _, e := range roster {
		name := e.Name
		if e.Leader {
			name += " (leader)"
		}
		if e.Infected {
			name += " (infected)"
		}
		names = append(names, name)
	}
	return fmt.Sprintf("Party (%d/%d): %s", len(roster), capacity, strings.Join(names, ", "))
}
