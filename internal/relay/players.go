package relay

import (
	"slices"

	"golang.org/x/text/cases"
)

// MaxStamina is the stamina a player starts with and is reset to when an
// infection game starts.
const MaxStamina = 100

// Player is the relay's authoritative state for one connected player.
type Player struct {
	ID          string
	Name        string
	X           float64
	Y           float64
	Color       string
	Stamina     float64
	IsExhausted bool
	PartyID     string
	IsInfected  bool
}

// StateUpdate is a partial update; nil fields are left untouched.
type StateUpdate struct {
	X           *float64
	Y           *float64
	Color       *string
	Stamina     *float64
	IsExhausted *bool
}

// PlayerStore holds every joined player in join order.
type PlayerStore struct {
	byID  map[string]*Player
	order []string
}

// NewPlayerStore returns an empty store.
func NewPlayerStore() *PlayerStore {
	return &PlayerStore{byID: make(map[string]*Player)}
}

func foldName(name string) string {
	return cases.Fold().String(name)
}

// Create adds a player. Names must already be sanitized; they are compared
// case-insensitively against every stored player.
func (s *PlayerStore) Create(p Player) (*Player, error) {
	if _, exists := s.byID[p.ID]; exists {
		return nil, newError(CodeDuplicateID, "That player id is already connected.")
	}
	if _, taken := s.FindByName(p.Name); taken {
		return nil, newError(CodeDuplicateName, usernameTakenMessage)
	}
	stored := p
	s.byID[p.ID] = &stored
	s.order = append(s.order, p.ID)
	return &stored, nil
}

// Update applies a partial state. It reports false for unknown ids, which
// happens when a state packet races a disconnect.
func (s *PlayerStore) Update(id string, u StateUpdate) bool {
	p, ok := s.byID[id]
	if !ok {
		return false
	}
	if u.X != nil {
		p.X = *u.X
	}
	if u.Y != nil {
		p.Y = *u.Y
	}
	if u.Color != nil {
		p.Color = *u.Color
	}
	if u.Stamina != nil {
		p.Stamina = *u.Stamina
	}
	if u.IsExhausted != nil {
		p.IsExhausted = *u.IsExhausted
	}
	return true
}

// Remove deletes a player and returns what was stored.
func (s *PlayerStore) Remove(id string) (*Player, bool) {
	p, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	delete(s.byID, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return p, true
}

// Get returns the stored player.
func (s *PlayerStore) Get(id string) (*Player, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// FindByName looks a player up by display name, ignoring case.
func (s *PlayerStore) FindByName(name string) (*Player, bool) {
	want := foldName(name)
	for _, id := range s.order {
		if p := s.byID[id]; foldName(p.Name) == want {
			return p, true
		}
	}
	return nil, false
}

// All returns every player in join order.
func (s *PlayerStore) All() []*Player {
	out := make([]*Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len is the number of stored players.
func (s *PlayerStore) Len() int {
	return len(s.byID)
}
