package relay

// Registry maps live connections to player ids and back. A connection is
// attached as soon as it opens and only gains a player id once its join is
// accepted.
type Registry struct {
	conns map[Conn]string
	byID  map[string]Conn
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[Conn]string),
		byID:  make(map[string]Conn),
	}
}

// Attach records an open connection that has not joined yet.
func (r *Registry) Attach(c Conn) {
	if _, ok := r.conns[c]; !ok {
		r.conns[c] = ""
	}
}

// Register binds c to playerID. It reports false when c already has a player
// or playerID is held by another connection.
func (r *Registry) Register(c Conn, playerID string) bool {
	if existing := r.conns[c]; existing != "" {
		return false
	}
	if _, taken := r.byID[playerID]; taken {
		return false
	}
	r.conns[c] = playerID
	r.byID[playerID] = c
	return true
}

// Resolve returns the player bound to c.
func (r *Registry) Resolve(c Conn) (string, bool) {
	id := r.conns[c]
	return id, id != ""
}

// Lookup returns the connection of a connected player.
func (r *Registry) Lookup(playerID string) (Conn, bool) {
	c, ok := r.byID[playerID]
	return c, ok
}

// Unregister forgets c entirely and returns the player it was bound to, if
// any. Calling it again for the same connection is a no-op.
func (r *Registry) Unregister(c Conn) (string, bool) {
	id, attached := r.conns[c]
	if !attached {
		return "", false
	}
	delete(r.conns, c)
	if id == "" {
		return "", false
	}
	if r.byID[id] == c {
		delete(r.byID, id)
	}
	return id, true
}

// Connections returns every open connection, joined or not.
func (r *Registry) Connections() []Conn {
	out := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len is the number of open connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// Joined is the number of connections bound to a player.
func (r *Registry) Joined() int {
	return len(r.byID)
}
