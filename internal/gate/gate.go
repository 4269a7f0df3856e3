// Package gate enforces per-kind cool-down windows against the
// notification log. It is the only throttle in the system: the log it
// scans is the same log the notifier appends to, so delivery and
// suppression coordinate through one record with no separate lock.
package gate

import (
	"fmt"
	"time"

	"github.com/heraldhq/herald/internal/state"
)

// Policy maps notification kinds to their cool-down windows. A zero
// window means the kind is never suppressed. Windows are independent:
// there is no global rate limit across kinds.
type Policy struct {
	CoolDowns map[state.NotificationKind]time.Duration
}

// NewDefault returns the stock policy: due/overdue alerts back off for
// four hours, focus nudges for two, digests and reviews are ungated.
func NewDefault() Policy {
	return Policy{CoolDowns: map[state.NotificationKind]time.Duration{
		state.KindDue:   4 * time.Hour,
		state.KindFocus: 2 * time.Hour,
	}}
}

// CoolDown returns the window for a kind, zero when ungated.
func (p Policy) CoolDown(kind state.NotificationKind) time.Duration {
	return p.CoolDowns[kind]
}

func (p Policy) Validate() error {
	for kind, d := range p.CoolDowns {
		if !kind.Valid() {
			return fmt.Errorf("gate policy: unknown kind %q", kind)
		}
		if d < 0 {
			return fmt.Errorf("gate policy: negative cool-down for %s", kind)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can override windows without
// mutating shared policy.
func (p Policy) Clone() Policy {
	out := Policy{CoolDowns: make(map[state.NotificationKind]time.Duration, len(p.CoolDowns))}
	for k, v := range p.CoolDowns {
		out.CoolDowns[k] = v
	}
	return out
}

// ShouldSuppress reports whether any log entry of the same kind was sent
// within coolDown of now. The window slides: it always looks back exactly
// coolDown from now, so behavior never depends on when a window "reset."
// Entries exactly coolDown old do not suppress.
func ShouldSuppress(log []state.NotificationLogEntry, kind state.NotificationKind, coolDown time.Duration, now time.Time) bool {
	if coolDown <= 0 {
		return false
	}
	cutoff := now.Add(-coolDown)
	for _, e := range log {
		if e.Kind == kind && e.SentAt.After(cutoff) {
			return true
		}
	}
	return false
}
