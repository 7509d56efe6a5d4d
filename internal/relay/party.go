package relay

import (
	"math"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/partyrelay/internal/protocol"
)

// Party is a group of players with one leader. Members are kept in join
// order; the first remaining member inherits leadership.
type Party struct {
	ID       string
	LeaderID string
	Members  []string
	History  *History
	Game     *GameSession
}

// HasMember reports whether playerID belongs to the party.
func (p *Party) HasMember(playerID string) bool {
	return slices.Contains(p.Members, playerID)
}

// GameActive reports whether an infection game is running.
func (p *Party) GameActive() bool {
	return p.Game != nil && p.Game.Active
}

func (p *Party) removeMember(playerID string) bool {
	before := len(p.Members)
	p.Members = slices.DeleteFunc(p.Members, func(id string) bool { return id == playerID })
	return len(p.Members) != before
}

// RosterEntry is one line of /party list.
type RosterEntry struct {
	PlayerID string
	Name     string
	Leader   bool
	Infected bool
}

type departure int

const (
	departureLeft departure = iota
	departureKicked
	departureSwitched
	departureDisconnect
)

func (r *Relay) partyOf(playerID string) (*Party, bool) {
	p, ok := r.players.Get(playerID)
	if !ok || p.PartyID == "" {
		return nil, false
	}
	party, ok := r.parties[p.PartyID]
	return party, ok
}

func (r *Relay) createParty(leader *Player) *Party {
	party := &Party{
		ID:       r.opts.NewPartyID(),
		LeaderID: leader.ID,
		Members:  []string{leader.ID},
		History:  NewHistory(r.opts.HistoryLimit),
	}
	r.parties[party.ID] = party
	leader.PartyID = party.ID
	log.Info().Str("party_id", party.ID).Str("leader_id", leader.ID).Msg("party created")
	return party
}

// Invite offers targetName a place in the sender's party, creating a party led
// by the sender if they have none.
func (r *Relay) Invite(senderID, targetName string) error {
	sender, ok := r.players.Get(senderID)
	if !ok {
		return nil
	}
	target, ok := r.players.FindByName(strings.TrimSpace(targetName))
	if !ok {
		return newError(CodeTargetNotFound, "Player %q not found.", targetName)
	}
	if target.ID == sender.ID {
		return newError(CodeSelfInvite, "You cannot invite yourself.")
	}
	now := r.opts.Now()
	if left := r.cooldowns.Remaining(sender.ID, target.ID, now); left > 0 {
		return newError(CodeOnCooldown, "Please wait %d seconds before inviting %s again.", int(math.Ceil(left.Seconds())), target.Name)
	}

	party, inParty := r.partyOf(sender.ID)
	if inParty {
		if party.LeaderID != sender.ID {
			return newError(CodeNotLeader, "Only the party leader can invite players.")
		}
		if party.GameActive() {
			return newError(CodeGameInProgress, "You cannot invite players while a game is in progress.")
		}
		if party.HasMember(target.ID) {
			return newError(CodeAlreadyMember, "%s is already in your party.", target.Name)
		}
		if len(party.Members) >= r.opts.MaxPartySize {
			return newError(CodePartyFull, "Your party is full (%d/%d).", len(party.Members), r.opts.MaxPartySize)
		}
	}

	created := false
	if !inParty {
		party = r.createParty(sender)
		created = true
	}

	r.pushInvite(target.ID, party.ID)
	r.cooldowns.Stamp(sender.ID, target.ID, now)

	r.notify(sender.ID, "Invite sent to %s.", target.Name)
	r.notify(target.ID, "%s invited you to their party. Type /party accept or /party decline.", sender.Name)

	if created {
		r.rebroadcast(party)
	}
	return nil
}

func (r *Relay) pushInvite(targetID, partyID string) {
	stack := slices.DeleteFunc(r.invites[targetID], func(id string) bool { return id == partyID })
	r.invites[targetID] = append([]string{partyID}, stack...)
}

func (r *Relay) popInvite(targetID string) (string, bool) {
	stack := r.invites[targetID]
	if len(stack) == 0 {
		return "", false
	}
	partyID := stack[0]
	if len(stack) == 1 {
		delete(r.invites, targetID)
	} else {
		r.invites[targetID] = stack[1:]
	}
	return partyID, true
}

// Accept joins the most recently offered party, leaving the current one first.
func (r *Relay) Accept(playerID string) error {
	player, ok := r.players.Get(playerID)
	if !ok {
		return nil
	}
	partyID, ok := r.popInvite(playerID)
	if !ok {
		return newError(CodeNoPendingInvite, "You have no pending party invites.")
	}
	party, ok := r.parties[partyID]
	if !ok {
		return newError(CodeStaleParty, "That party no longer exists.")
	}
	if party.HasMember(playerID) {
		return newError(CodeAlreadyMember, "You are already in that party.")
	}
	if len(party.Members) >= r.opts.MaxPartySize {
		return newError(CodePartyFull, "That party is full.")
	}
	if party.GameActive() {
		return newError(CodeGameInProgress, "That party has a game in progress.")
	}

	if player.PartyID != "" {
		r.leaveParty(playerID, departureSwitched)
	}

	party.Members = append(party.Members, playerID)
	player.PartyID = party.ID

	r.out.SendTo(playerID, protocol.NewPartyHistory(party.History.Entries()))
	r.notifyParty(party, "%s joined the party.", player.Name)
	log.Info().Str("party_id", party.ID).Str("player_id", playerID).Int("members", len(party.Members)).Msg("party member joined")

	r.rebroadcast(party)
	return nil
}

// Decline discards the most recent invite.
func (r *Relay) Decline(playerID string) error {
	player, ok := r.players.Get(playerID)
	if !ok {
		return nil
	}
	partyID, ok := r.popInvite(playerID)
	if !ok {
		return newError(CodeNoPendingInvite, "You have no pending party invites.")
	}
	r.notify(playerID, "Invite declined.")
	if party, ok := r.parties[partyID]; ok {
		r.notify(party.LeaderID, "%s declined your party invite.", player.Name)
	}
	return nil
}

// Leave removes the player from their party.
func (r *Relay) Leave(playerID string) error {
	if _, ok := r.players.Get(playerID); !ok {
		return nil
	}
	if _, ok := r.partyOf(playerID); !ok {
		return newError(CodeNotInParty, "You are not in a party.")
	}
	r.leaveParty(playerID, departureLeft)
	r.notify(playerID, "You left the party.")
	return nil
}

// Kick removes a member by name. Only the leader may kick.
func (r *Relay) Kick(leaderID, targetName string) error {
	if _, ok := r.players.Get(leaderID); !ok {
		return nil
	}
	party, ok := r.partyOf(leaderID)
	if !ok {
		return newError(CodeNotInParty, "You are not in a party.")
	}
	if party.LeaderID != leaderID {
		return newError(CodeNotLeader, "Only the party leader can kick members.")
	}

	want := foldName(strings.TrimSpace(targetName))
	var target *Player
	for _, id := range party.Members {
		if p, ok := r.players.Get(id); ok && foldName(p.Name) == want {
			target = p
			break
		}
	}
	if target == nil {
		return newError(CodeMemberNotFound, "Member not found in your party: %s", targetName)
	}
	if target.ID == leaderID {
		return newError(CodeCannotKickSelf, "You cannot kick yourself. Use /party leave instead.")
	}

	r.leaveParty(target.ID, departureKicked)
	r.notify(target.ID, "You were kicked from the party.")
	return nil
}

// List returns the caller's party roster in join order.
func (r *Relay) List(playerID string) ([]RosterEntry, error) {
	party, ok := r.partyOf(playerID)
	if !ok {
		return nil, newError(CodeNotInParty, "You are not in a party.")
	}
	roster := make([]RosterEntry, 0, len(party.Members))
	for _, id := range party.Members {
		p, ok := r.players.Get(id)
		if !ok {
			continue
		}
		roster = append(roster, RosterEntry{
			PlayerID: id,
			Name:     p.Name,
			Leader:   id == party.LeaderID,
			Infected: p.IsInfected,
		})
	}
	return roster, nil
}

// leaveParty is the single removal path shared by leave, kick, switching
// parties and disconnects. It keeps leadership, game and party table
// invariants and re-broadcasts state.
func (r *Relay) leaveParty(playerID string, how departure) {
	player, ok := r.players.Get(playerID)
	if !ok || player.PartyID == "" {
		return
	}
	party, ok := r.parties[player.PartyID]
	player.PartyID = ""
	player.IsInfected = false
	if !ok {
		return
	}
	party.removeMember(playerID)

	if how != departureDisconnect {
		r.out.SendTo(playerID, protocol.NewPartyClear())
	}

	if len(party.Members) == 0 {
		delete(r.parties, party.ID)
		log.Info().Str("party_id", party.ID).Msg("party dissolved")
		r.rebroadcast(nil, playerID)
		return
	}

	switch how {
	case departureKicked:
		r.notifyParty(party, "%s was kicked from the party.", player.Name)
	case departureDisconnect:
		r.notifyParty(party, "%s disconnected.", player.Name)
	default:
		r.notifyParty(party, "%s left the party.", player.Name)
	}

	if party.LeaderID == playerID {
		party.LeaderID = party.Members[0]
		if leader, ok := r.players.Get(party.LeaderID); ok {
			r.notifyParty(party, "%s is now the leader.", leader.Name)
		}
	}

	if party.GameActive() && r.memberLeftGame(party, playerID) {
		// endGame already re-sent the remaining members.
		r.rebroadcast(nil, playerID)
		return
	}
	r.rebroadcast(party, playerID)
}
