package relay

import "github.com/Tyrowin/partyrelay/internal/protocol"

// DefaultHistoryLimit is how many chat entries each scope keeps.
const DefaultHistoryLimit = 50

// History is a FIFO-bounded chat log, most recent last.
type History struct {
	limit   int
	entries []protocol.ChatEntry
}

// NewHistory returns a History keeping at most limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Append adds an entry, evicting the oldest ones past the limit.
func (h *History) Append(entry protocol.ChatEntry) {
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.limit {
		h.entries = append([]protocol.ChatEntry(nil), h.entries[len(h.entries)-h.limit:]...)
	}
}

// Entries returns a copy of the stored entries.
func (h *History) Entries() []protocol.ChatEntry {
	return append([]protocol.ChatEntry(nil), h.entries...)
}

// Len is the number of stored entries.
func (h *History) Len() int {
	return len(h.entries)
}
