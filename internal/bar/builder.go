// Package bar implements the C10 Bar Builder: tick-stream resampling into
// OHLCV bars at a configurable timeframe, integrity checks, and gap
// detection/repair against the broker. There is no teacher analog for
// tick-to-bar resampling (a prediction-market CLOB has no concept of a
// timeframe bar); this package is built directly from the bar integrity
// rules and gap-repair algorithm they describe.
package bar

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kkim/hanaro-trader/internal/domain"
	"github.com/kkim/hanaro-trader/internal/ports"
)

// Builder resamples ticks into bars for one symbol at a fixed timeframe.
type Builder struct {
	Symbol    string
	Timeframe time.Duration
	Broker    ports.Broker // used for gap backfill; may be nil to disable repair

	cur      *domain.OHLC
	curStart time.Time
}

// NewBuilder constructs a Builder for symbol at timeframe, backed by broker
// for gap backfill (broker may be nil if repair isn't needed, e.g. in tests).
func NewBuilder(symbol string, timeframe time.Duration, broker ports.Broker) *Builder {
	return &Builder{Symbol: symbol, Timeframe: timeframe, Broker: broker}
}

// AddTick folds tick into the bar it belongs to, returning a completed bar
// (ok=true) whenever tick starts a new bucket. Callers should pass the
// returned bar through Validate (or the batch Sanitize/Repair pipeline)
// before trusting it.
func (b *Builder) AddTick(tick ports.Tick) (bar domain.OHLC, ok bool) {
	bucket := tick.Timestamp.Truncate(b.Timeframe)

	if b.cur == nil {
		b.startBucket(bucket, tick)
		return domain.OHLC{}, false
	}
	if bucket.Equal(b.curStart) {
		b.foldTick(tick)
		return domain.OHLC{}, false
	}

	completed := *b.cur
	b.startBucket(bucket, tick)
	return completed, true
}

// Flush returns the in-progress bar, if any, without waiting for the next
// tick to close it out — used at shutdown or end-of-session.
func (b *Builder) Flush() (domain.OHLC, bool) {
	if b.cur == nil {
		return domain.OHLC{}, false
	}
	completed := *b.cur
	b.cur = nil
	return completed, true
}

func (b *Builder) startBucket(bucket time.Time, tick ports.Tick) {
	o := domain.NewOHLC(b.Symbol, bucket, tick.Price, tick.Price, tick.Price, tick.Price, tick.Volume, 0)
	b.cur = &o
	b.curStart = bucket
}

func (b *Builder) foldTick(tick ports.Tick) {
	if tick.Price > b.cur.High {
		b.cur.High = tick.Price
	}
	if tick.Price < b.cur.Low {
		b.cur.Low = tick.Price
	}
	b.cur.Close = tick.Price
	b.cur.Volume += tick.Volume
	b.cur.Value += tick.Volume * tick.Price
}

// ErrCorrupt/ErrIncomplete classify why Validate rejected a batch outright
// (spec §4.9: too many bars fail consistency, or too many are extreme, or
// too many carry zero volume).
var (
	ErrCorrupt   = fmt.Errorf("bar batch failed integrity checks: %w", domain.ErrDataIntegrity)
	ErrIncomplete = fmt.Errorf("bar batch is incomplete: %w", domain.ErrDataIntegrity)
)

// Sanitize applies the per-bar repair rules (negative-price rejection
// handled by the caller discarding the tick source; high/low swap;
// forward-fill then drop-leading-NaN; duplicate-timestamp rejection) and
// then the whole-batch integrity checks. It returns the cleaned, sorted
// bars, or an error if the batch as a whole is corrupt/incomplete.
func Sanitize(bars []domain.OHLC, timeframe time.Duration) ([]domain.OHLC, error) {
	if len(bars) == 0 {
		return nil, nil
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	seen := make(map[int64]bool, len(bars))
	cleaned := make([]domain.OHLC, 0, len(bars))
	var lastValid *domain.OHLC

	for _, bar := range bars {
		ts := bar.Timestamp.Unix()
		if seen[ts] {
			return nil, fmt.Errorf("bar.Sanitize: duplicate timestamp %d: %w", ts, domain.ErrDataIntegrity)
		}
		seen[ts] = true

		if isNaN(bar) {
			if lastValid == nil {
				continue // drop leading NaN
			}
			filled := *lastValid
			filled.Timestamp = bar.Timestamp
			bar = filled
		}
		if bar.High < bar.Low {
			bar.High, bar.Low = bar.Low, bar.High
		}

		cleaned = append(cleaned, bar)
		v := bar
		lastValid = &v
	}

	if err := checkBatchIntegrity(cleaned, timeframe); err != nil {
		return nil, err
	}
	return cleaned, nil
}

func isNaN(b domain.OHLC) bool {
	return math.IsNaN(b.Open) || math.IsNaN(b.High) || math.IsNaN(b.Low) || math.IsNaN(b.Close)
}

func checkBatchIntegrity(bars []domain.OHLC, timeframe time.Duration) error {
	if len(bars) == 0 {
		return nil
	}

	var inconsistent, zeroVolume, extreme int
	var prevClose float64
	hasPrev := false

	for _, bar := range bars {
		if bar.High < bar.Low || bar.High < bar.Close || bar.Low > bar.Close {
			inconsistent++
		}
		if bar.Volume == 0 {
			zeroVolume++
		}
		if hasPrev && prevClose != 0 {
			ret := math.Abs(bar.Close-prevClose) / prevClose
			if ret > domain.BarExtremeReturnThreshold {
				extreme++
			}
		}
		prevClose = bar.Close
		hasPrev = true
	}

	n := float64(len(bars))
	if float64(inconsistent)/n > domain.BarConsistencyFailRatio {
		return ErrCorrupt
	}
	if float64(extreme)/n > domain.BarExtremeReturnBarRatio {
		return ErrCorrupt
	}
	if timeframe < 24*time.Hour && float64(zeroVolume)/n > domain.BarVolumeZeroRatio {
		return ErrIncomplete
	}
	return nil
}

// Repair detects gaps in bars (consecutive timestamps differing from
// timeframe by more than the tolerance) and attempts a broker backfill for
// the first gap found. On successful backfill the merged result keeps
// server-provided bars on any timestamp collision, sorted ascending. On
// backfill failure (or no broker configured), bars at and after the first
// gap are dropped, keeping only the strictly-before-gap prefix.
func Repair(ctx context.Context, broker ports.Broker, symbol, interval string, timeframe time.Duration, bars []domain.OHLC) ([]domain.OHLC, error) {
	if len(bars) < 2 {
		return bars, nil
	}

	gapIdx := findFirstGap(bars, timeframe)
	if gapIdx < 0 {
		return bars, nil
	}

	if broker == nil {
		return bars[:gapIdx+1], nil
	}

	gapStart := bars[gapIdx].Timestamp.Add(timeframe)
	gapEnd := bars[gapIdx+1].Timestamp.Add(-timeframe)
	backfill, err := broker.GetOHLC(ctx, symbol, interval, gapStart, gapEnd)
	if err != nil || len(backfill) == 0 {
		return bars[:gapIdx+1], nil
	}

	return mergeServerWins(bars, backfill), nil
}

// findFirstGap returns the index of the bar immediately before the first
// gap, or -1 if no gap exceeds tolerance.
func findFirstGap(bars []domain.OHLC, timeframe time.Duration) int {
	tolerance := time.Duration(float64(timeframe) * domain.BarGapTolerance)
	for i := 1; i < len(bars); i++ {
		delta := bars[i].Timestamp.Sub(bars[i-1].Timestamp)
		if delta > timeframe+tolerance {
			return i - 1
		}
	}
	return -1
}

// mergeServerWins combines existing and freshly-backfilled bars, keeping
// the backfilled value whenever both cover the same timestamp, then sorts
// ascending.
func mergeServerWins(existing, backfill []domain.OHLC) []domain.OHLC {
	byTS := make(map[int64]domain.OHLC, len(existing)+len(backfill))
	for _, b := range existing {
		byTS[b.Timestamp.Unix()] = b
	}
	for _, b := range backfill {
		byTS[b.Timestamp.Unix()] = b // server wins
	}
	merged := make([]domain.OHLC, 0, len(byTS))
	for _, b := range byTS {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp.Before(merged[j].Timestamp) })
	return merged
}
