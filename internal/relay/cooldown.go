package relay

import "time"

// DefaultInviteCooldown is the minimum gap between two invites from the same
// sender to the same target.
const DefaultInviteCooldown = 15 * time.Second

type cooldownKey struct {
	sender string
	target string
}

// Cooldowns tracks when each sender last invited each target.
type Cooldowns struct {
	window time.Duration
	stamps map[cooldownKey]time.Time
}

// NewCooldowns returns an empty table with the given window.
func NewCooldowns(window time.Duration) *Cooldowns {
	if window <= 0 {
		window = DefaultInviteCooldown
	}
	return &Cooldowns{window: window, stamps: make(map[cooldownKey]time.Time)}
}

// Remaining is how long sender must still wait before inviting target again.
func (c *Cooldowns) Remaining(sender, target string, now time.Time) time.Duration {
	last, ok := c.stamps[cooldownKey{sender, target}]
	if !ok {
		return 0
	}
	left := c.window - now.Sub(last)
	if left < 0 {
		return 0
	}
	return left
}

// Stamp records an invite at now.
func (c *Cooldowns) Stamp(sender, target string, now time.Time) {
	c.stamps[cooldownKey{sender, target}] = now
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cooldowns) Sweep(now time.Time) int {
	removed := 0
	for key, last := range c.stamps {
		if now.Sub(last) >= c.window {
			delete(c.stamps, key)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked pairs.
func (c *Cooldowns) Len() int {
	return len(c.stamps)
}
