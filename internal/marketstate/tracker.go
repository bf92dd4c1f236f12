// Package marketstate implements the C8 JIF market-state finite-state
// machine: a single-writer/many-reader singleton updated by the realtime
// feed and consulted by the market router and any status UI.
package marketstate

import (
	"sync"

	"github.com/kkim/hanaro-trader/internal/domain"
)

var circuitBreakerSet = map[string]bool{"61": true, "63": true, "68": true, "69": true, "71": true}
var circuitBreakerClear = map[string]bool{"62": true, "70": true}
var sidecarSet = map[string]bool{"64": true, "66": true}
var sidecarClear = map[string]bool{"65": true, "67": true}

// Tracker guards a domain.MarketState behind a short critical section per
// update. Consumers ask questions rather than reading fields directly, so
// the locking discipline cannot be bypassed.
type Tracker struct {
	mu    sync.RWMutex
	state domain.MarketState

	// closeLatched tracks whether check_market_close_and_cancel_orders has
	// already fired for the current session-end transition, per venue.
	closeLatched map[string]bool
}

// New returns an empty Tracker — no JIF data received yet.
func New() *Tracker {
	return &Tracker{closeLatched: map[string]bool{}}
}

// Update applies one JIF frame: jangubun selects which venue's fields are
// touched (1,2 => KRX; 6 => NXT), jstatus is the numeric session-phase code.
func (t *Tracker) Update(jangubun int, jstatus string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	active := isActive(jstatus)
	switch jangubun {
	case 1, 2:
		t.state.KRXStatus = jstatus
		t.state.KRXActive = active
		applyFlag(jstatus, circuitBreakerSet, circuitBreakerClear, &t.state.KRXCircuitBreaker)
		applyFlag(jstatus, sidecarSet, sidecarClear, &t.state.KRXSidecar)
		if jstatus != domain.SessionEndStatus {
			t.closeLatched["KRX"] = false
		}
	case 6:
		t.state.NXTStatus = jstatus
		t.state.NXTActive = active
		applyFlag(jstatus, circuitBreakerSet, circuitBreakerClear, &t.state.NXTCircuitBreaker)
		applyFlag(jstatus, sidecarSet, sidecarClear, &t.state.NXTSidecar)
		if jstatus != domain.SessionEndStatus {
			t.closeLatched["NXT"] = false
		}
	}
}

func isActive(jstatus string) bool {
	n, ok := parseStatus(jstatus)
	if !ok {
		return false
	}
	// 41 is the session-end sentinel and counts as inactive.
	return n >= 21 && n < 41
}

func parseStatus(jstatus string) (int, bool) {
	n := 0
	if jstatus == "" {
		return 0, false
	}
	for _, r := range jstatus {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func applyFlag(jstatus string, set, clear map[string]bool, flag *bool) {
	if set[jstatus] {
		*flag = true
	} else if clear[jstatus] {
		*flag = false
	}
}

// Snapshot returns a copy of the current state for callers needing more
// than the yes/no questions below (e.g. the router).
func (t *Tracker) Snapshot() domain.MarketState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// IsActive reports whether venue ("KRX" or "NXT") is currently in session.
func (t *Tracker) IsActive(venue string) bool {
	s := t.Snapshot()
	if venue == domain.VenueKRX {
		return s.KRXActive
	}
	return s.NXTActive
}

// IsCircuitBreakerActive reports the CB flag for venue.
func (t *Tracker) IsCircuitBreakerActive(venue string) bool {
	s := t.Snapshot()
	if venue == domain.VenueKRX {
		return s.KRXCircuitBreaker
	}
	return s.NXTCircuitBreaker
}

// IsSessionEnd reports whether venue has reached the session-end sentinel.
func (t *Tracker) IsSessionEnd(venue string) bool {
	s := t.Snapshot()
	if venue == domain.VenueKRX {
		return s.KRXStatus == domain.SessionEndStatus
	}
	return s.NXTStatus == domain.SessionEndStatus
}

// HasData reports whether any JIF frame has been received for either venue.
func (t *Tracker) HasData() bool {
	s := t.Snapshot()
	return s.KRXStatus != "" || s.NXTStatus != ""
}

// CheckAndLatchSessionEnd returns true exactly once per transition into
// session-end for venue, used by the execution engine to trigger the
// bulk-cancel-on-close path (spec §4.14).
func (t *Tracker) CheckAndLatchSessionEnd(venue string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := t.state.KRXStatus
	if venue == domain.VenueNXT {
		status = t.state.NXTStatus
	}
	if status != domain.SessionEndStatus {
		return false
	}
	if t.closeLatched[venue] {
		return false
	}
	t.closeLatched[venue] = true
	return true
}
