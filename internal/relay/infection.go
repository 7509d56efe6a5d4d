package relay

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// MinGamePlayers is the smallest party that can play infection.
const MinGamePlayers = 2

// Reasons reported when an infection game ends.
const (
	ReasonAllInfected         = "all survivors infected"
	ReasonEndedByLeader       = "ended by the leader"
	ReasonInsufficientPlayers = "insufficient players"
	ReasonLastSurvivorLeft    = "the last survivor left"
	ReasonNoInfected          = "no infected players remain"
)

// GameSession is the state of a party's infection game.
type GameSession struct {
	Active       bool
	AlphaID      string
	StartTime    time.Time
	Survivors    map[string]struct{}
	InfectionLog []Infection
}

// Infection records one successful tag.
type Infection struct {
	PlayerID string
	Name     string
	At       time.Time
}

// StartGame begins an infection game in the leader's party, picking one
// member at random as the alpha.
func (r *Relay) StartGame(leaderID string) error {
	if _, ok := r.players.Get(leaderID); !ok {
		return nil
	}
	party, ok := r.partyOf(leaderID)
	if !ok {
		return newError(CodeNotInParty, "You are not in a party.")
	}
	if party.LeaderID != leaderID {
		return newError(CodeNotLeader, "Only the party leader can start a game.")
	}
	if party.GameActive() {
		return newError(CodeGameAlreadyActive, "A game is already in progress.")
	}
	if len(party.Members) < MinGamePlayers {
		return newError(CodeInsufficientPlayers, "You need at least %d party members to start a game.", MinGamePlayers)
	}

	for _, id := range party.Members {
		if p, ok := r.players.Get(id); ok {
			p.IsInfected = false
			p.Stamina = MaxStamina
			p.IsExhausted = false
		}
	}

	alphaID := party.Members[r.opts.RandIntn(len(party.Members))]
	game := &GameSession{
		Active:    true,
		AlphaID:   alphaID,
		StartTime: r.opts.Now(),
		Survivors: make(map[string]struct{}, len(party.Members)-1),
	}
	for _, id := range party.Members {
		if id != alphaID {
			game.Survivors[id] = struct{}{}
		}
	}
	party.Game = game

	alpha, _ := r.players.Get(alphaID)
	alpha.IsInfected = true

	log.Info().Str("party_id", party.ID).Str("alpha_id", alphaID).Int("survivors", len(game.Survivors)).Msg("infection game started")

	r.rebroadcast(party)
	r.notifyParty(party, "Infection started! %s is the alpha. Run!", alpha.Name)
	return nil
}

// EndGame stops the leader's running game.
func (r *Relay) EndGame(leaderID string) error {
	if _, ok := r.players.Get(leaderID); !ok {
		return nil
	}
	party, ok := r.partyOf(leaderID)
	if !ok {
		return newError(CodeNotInParty, "You are not in a party.")
	}
	if party.LeaderID != leaderID {
		return newError(CodeNotLeader, "Only the party leader can end the game.")
	}
	if !party.GameActive() {
		return newError(CodeGameNotActive, "No game is in progress.")
	}
	r.endGame(party, ReasonEndedByLeader)
	return nil
}

// Tag infects victimID if attackerID is an infected player in the same running
// game and the victim is still a survivor. Anything else is ignored silently.
func (r *Relay) Tag(attackerID, victimID string) {
	attacker, ok := r.players.Get(attackerID)
	if !ok {
		return
	}
	victim, ok := r.players.Get(victimID)
	if !ok || victim.ID == attacker.ID {
		return
	}
	if attacker.PartyID == "" || attacker.PartyID != victim.PartyID {
		return
	}
	party, ok := r.parties[attacker.PartyID]
	if !ok || !party.GameActive() {
		return
	}
	if !attacker.IsInfected || victim.IsInfected {
		return
	}

	game := party.Game
	victim.IsInfected = true
	game.InfectionLog = append(game.InfectionLog, Infection{PlayerID: victim.ID, Name: victim.Name, At: r.opts.Now()})
	delete(game.Survivors, victim.ID)

	r.rebroadcast(party)
	r.notifyParty(party, "%s infected %s! %d survivor(s) left.", attacker.Name, victim.Name, len(game.Survivors))

	if len(game.Survivors) == 0 {
		r.endGame(party, ReasonAllInfected)
	}
}

// memberLeftGame applies the abort rules after a member has left a party with
// a running game. It reports whether the game ended.
func (r *Relay) memberLeftGame(party *Party, playerID string) bool {
	game := party.Game
	delete(game.Survivors, playerID)

	switch {
	case len(party.Members) < MinGamePlayers:
		r.endGame(party, ReasonInsufficientPlayers)
	case len(game.Survivors) == 0:
		r.endGame(party, ReasonLastSurvivorLeft)
	case !r.anyInfected(party):
		r.endGame(party, ReasonNoInfected)
	default:
		return false
	}
	return true
}

func (r *Relay) anyInfected(party *Party) bool {
	for _, id := range party.Members {
		if p, ok := r.players.Get(id); ok && p.IsInfected {
			return true
		}
	}
	return false
}

// endGame announces the result, clears every member's infection flag and
// drops the session.
func (r *Relay) endGame(party *Party, reason string) {
	game := party.Game
	if game == nil {
		return
	}
	result := gameResult(game, reason)

	for _, id := range party.Members {
		if p, ok := r.players.Get(id); ok {
			p.IsInfected = false
		}
	}
	party.Game = nil

	log.Info().Str("party_id", party.ID).Str("reason", reason).Int("infections", len(game.InfectionLog)).Msg("infection game ended")

	r.notifyParty(party, "%s", result)
	r.rebroadcast(party)
}

// gameResult names the last infected player as the longest survivor.
func gameResult(game *GameSession, reason string) string {
	if len(game.InfectionLog) == 0 {
		return fmt.Sprintf("Game over (%s). No one survived long enough.", reason)
	}
	last := game.InfectionLog[len(game.InfectionLog)-1]
	seconds := last.At.Sub(game.StartTime).Seconds()
	return fmt.Sprintf("Game over (%s)! %s survived the longest: %.1fs.", reason, last.Name, seconds)
}
