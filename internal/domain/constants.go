package domain

import "time"

// Timeouts and retry cadences carried from the broker contract. Centralized
// here so every adapter and engine references the same numbers instead of
// re-declaring magic constants.
const (
	TokenIssueTimeout  = 10 * time.Second
	RESTRequestTimeout = 30 * time.Second
	WSRecvTimeout      = 30 * time.Second
	FillAwaitDefault   = 30 * time.Second

	OrderSubmitRetries    = 3
	OrderSubmitBackoff    = 500 * time.Millisecond
	SignalRetryBase       = 1 * time.Second // doubles each attempt: 1s, 2s, 4s
	SignalRetryMaxAttempts = 3

	OHLCChunkDays     = 200
	OHLCMinPacing     = 1100 * time.Millisecond // ~1.1s between OHLC TR calls
	SubscribePacing   = 100 * time.Millisecond

	TokenRefreshSlack = 5 * time.Minute

	StorageRetentionDays = 365

	MaxOrderPrice = 100_000_000

	// Bar Builder integrity thresholds (spec §4.9).
	BarGapTolerance            = 0.10 // consecutive timestamps may drift this much from the timeframe
	BarConsistencyFailRatio    = 0.05 // >5% of bars failing OHLC consistency => corrupt
	BarVolumeZeroRatio         = 0.50 // >50% zero-volume bars on sub-daily timeframe => incomplete
	BarExtremeReturnThreshold  = 0.20 // single-bar return beyond this counts as extreme
	BarExtremeReturnBarRatio   = 0.10 // >10% of bars extreme => corrupt
)
