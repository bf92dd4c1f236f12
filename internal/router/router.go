// Package router implements C17, the market router: which venue (if any) an
// order should be sent to right now. Grounded on spec §4.12's strict
// precedence rules layered over domain.MarketState and the exchange-local
// clock (internal/domain/xtime).
package router

import (
	"time"

	"github.com/kkim/hanaro-trader/internal/domain"
)

// Determine returns domain.VenueKRX, domain.VenueNXT, or "" (no venue open)
// for the given market state and exchange-local time, in the strict
// precedence order spec §4.12 defines:
//  1. session-end sentinel dominates — a venue reporting status "41" is
//     never selected, regardless of its active flag.
//  2. otherwise consult the active flags: both active picks KRX within
//     [09:00, 15:30], NXT outside it; exactly one active picks that one.
//  3. if no JIF data has been received yet, fall back to wall clock bands.
func Determine(state domain.MarketState, hasData bool, now time.Time) string {
	if hasData {
		return determineFromState(state, now)
	}
	return determineFromClock(now)
}

func determineFromState(state domain.MarketState, now time.Time) string {
	krxEnded := state.KRXStatus == domain.SessionEndStatus
	nxtEnded := state.NXTStatus == domain.SessionEndStatus

	if krxEnded {
		if state.NXTActive && !nxtEnded {
			return domain.VenueNXT
		}
		return ""
	}
	if nxtEnded {
		if state.KRXActive {
			return domain.VenueKRX
		}
		return ""
	}

	switch {
	case state.KRXActive && state.NXTActive:
		if inPrimarySession(now) {
			return domain.VenueKRX
		}
		return domain.VenueNXT
	case state.KRXActive:
		return domain.VenueKRX
	case state.NXTActive:
		return domain.VenueNXT
	default:
		return ""
	}
}

func determineFromClock(now time.Time) string {
	h, m := now.Hour(), now.Minute()
	mins := h*60 + m
	switch {
	case mins >= 8*60 && mins < 8*60+49:
		return domain.VenueNXT
	case mins >= 9*60 && mins <= 15*60+30:
		return domain.VenueKRX
	case mins >= 15*60+40 && mins <= 20*60:
		return domain.VenueNXT
	default:
		return ""
	}
}

func inPrimarySession(now time.Time) bool {
	mins := now.Hour()*60 + now.Minute()
	return mins >= 9*60 && mins <= 15*60+30
}
