package relay

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Tyrowin/partyrelay/internal/protocol"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}

	r.Attach(a)
	if _, ok := r.Resolve(a); ok {
		t.Error("Attached connection should not resolve before register")
	}
	if !r.Register(a, "p1") {
		t.Fatal("Register failed")
	}
	if r.Register(a, "p2") {
		t.Error("A connection may only join once")
	}
	if r.Register(b, "p1") {
		t.Error("Player id already bound to another connection")
	}
	if id, ok := r.Resolve(a); !ok || id != "p1" {
		t.Errorf("Resolve = %q, %v", id, ok)
	}
	if c, ok := r.Lookup("p1"); !ok || c != a {
		t.Error("Lookup did not return the registered connection")
	}

	id, ok := r.Unregister(a)
	if !ok || id != "p1" {
		t.Errorf("Unregister = %q, %v", id, ok)
	}
	if _, ok := r.Unregister(a); ok {
		t.Error("Second unregister should be a no-op")
	}
	if _, ok := r.Lookup("p1"); ok {
		t.Error("Lookup should fail after unregister")
	}
	if r.Len() != 0 || r.Joined() != 0 {
		t.Errorf("Expected empty registry, got %d/%d", r.Len(), r.Joined())
	}
}

func TestRegistryUnregisterUnjoined(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}
	r.Attach(c)

	if _, ok := r.Unregister(c); ok {
		t.Error("Unjoined connection has no player")
	}
	if r.Len() != 0 {
		t.Errorf("Expected connection to be detached, got %d", r.Len())
	}
}

func TestPlayerStoreNamesUniqueIgnoringCase(t *testing.T) {
	s := NewPlayerStore()
	if _, err := s.Create(Player{ID: "p1", Name: "Émile"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, name := range []string{"émile", "ÉMILE", "éMiLe"} {
		if _, err := s.Create(Player{ID: "p2", Name: name}); !errors.Is(err, ErrDuplicateName) {
			t.Errorf("Create(%q) = %v, want duplicate name", name, err)
		}
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 player, got %d", s.Len())
	}
	if p, ok := s.FindByName("ÉMILE"); !ok || p.ID != "p1" {
		t.Error("FindByName should fold case")
	}
}

func TestPlayerStoreUpdateUnknownIsNoop(t *testing.T) {
	s := NewPlayerStore()
	x := 5.0
	if s.Update("ghost", StateUpdate{X: &x}) {
		t.Error("Update of unknown id should report false")
	}
	if s.Len() != 0 {
		t.Error("Update must not create players")
	}
}

func TestPlayerStoreOrderAndRemove(t *testing.T) {
	s := NewPlayerStore()
	for i := 1; i <= 3; i++ {
		if _, err := s.Create(Player{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("n%d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := s.Remove("p2"); !ok {
		t.Fatal("Remove failed")
	}
	if _, ok := s.Remove("p2"); ok {
		t.Error("Second remove should fail")
	}

	all := s.All()
	if len(all) != 2 || all[0].ID != "p1" || all[1].ID != "p3" {
		t.Errorf("Unexpected order after remove: %v", all)
	}
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := NewHistory(DefaultHistoryLimit)
	for i := 0; i < 60; i++ {
		h.Append(protocol.ChatEntry{Username: "a", Message: fmt.Sprintf("m%d", i), Scope: protocol.ScopePublic})
	}

	entries := h.Entries()
	if len(entries) != DefaultHistoryLimit {
		t.Fatalf("Expected %d entries, got %d", DefaultHistoryLimit, len(entries))
	}
	if entries[0].Message != "m10" || entries[len(entries)-1].Message != "m59" {
		t.Errorf("Expected m10..m59, got %s..%s", entries[0].Message, entries[len(entries)-1].Message)
	}

	entries[0].Message = "changed"
	if h.Entries()[0].Message != "m10" {
		t.Error("Entries must return a copy")
	}
}

func TestCooldownWindow(t *testing.T) {
	c := NewCooldowns(15 * time.Second)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if c.Remaining("a", "b", start) != 0 {
		t.Error("No cooldown before the first invite")
	}
	c.Stamp("a", "b", start)

	if got := c.Remaining("a", "b", start.Add(5*time.Second)); got != 10*time.Second {
		t.Errorf("Expected 10s remaining, got %v", got)
	}
	if c.Remaining("b", "a", start) != 0 {
		t.Error("Cooldown is per ordered pair")
	}
	if c.Remaining("a", "b", start.Add(15*time.Second)) != 0 {
		t.Error("Cooldown should expire after the window")
	}

	c.Stamp("a", "c", start.Add(10*time.Second))
	if n := c.Sweep(start.Add(20 * time.Second)); n != 1 {
		t.Errorf("Expected 1 expired entry, got %d", n)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 live entry, got %d", c.Len())
	}
}

type failingConn struct{ calls int }

func (f *failingConn) Send([]byte) error {
	f.calls++
	return errors.New("buffer full")
}

func TestDispatcherModes(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg)
	a, b, lurker := &fakeConn{}, &fakeConn{}, &fakeConn{}
	broken := &failingConn{}
	reg.Attach(a)
	reg.Attach(b)
	reg.Attach(lurker)
	reg.Attach(broken)
	reg.Register(a, "a")
	reg.Register(b, "b")

	d.BroadcastAll(protocol.NewPartyClear())
	if len(a.frames) != 1 || len(b.frames) != 1 || len(lurker.frames) != 1 || broken.calls != 1 {
		t.Error("BroadcastAll should reach every connection")
	}

	d.BroadcastExcept(protocol.NewPartyClear(), a)
	if len(a.frames) != 1 || len(b.frames) != 2 {
		t.Error("BroadcastExcept should skip the excluded connection")
	}

	d.SendTo("b", protocol.NewPartyClear())
	d.SendTo("offline", protocol.NewPartyClear())
	if len(b.frames) != 3 || len(a.frames) != 1 {
		t.Error("SendTo should reach only the addressed player")
	}
}
