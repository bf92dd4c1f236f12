package ls

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/kkim/hanaro-trader/internal/domain"
)

type ohlcInBlock struct {
	Symbol string `json:"IsuNo"`
	Start  string `json:"StrtDt"` // YYYYMMDD
	End    string `json:"EndDt"`  // YYYYMMDD
	CompressFlag string `json:"CompYn"`
}

// GetOHLC implements the C5 chunked daily/minute paging algorithm: the
// venue caps a single call at ~200 rows, so the window is sliced from end
// backwards in ~200-day chunks, each chunk paced by the OHLC rate
// limiter, results concatenated and sorted ascending.
func (c *Client) GetOHLC(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.OHLC, error) {
	var all []domain.OHLC
	chunkEnd := end
	for !chunkEnd.Before(start) {
		chunkStart := chunkEnd.AddDate(0, 0, -domain.OHLCChunkDays)
		if chunkStart.Before(start) {
			chunkStart = start
		}

		var resp ohlcResponse
		trCode := "t8413"
		if interval != "D" && interval != "" {
			trCode = "t8412" // minute TR
		}
		err := c.post(ctx, trOHLC, "/stock/chart", trCode, ohlcInBlock{
			Symbol:       symbol,
			Start:        chunkStart.Format("20060102"),
			End:          chunkEnd.Format("20060102"),
			CompressFlag: "N",
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("get ohlc %s chunk %s..%s: %w", symbol, chunkStart, chunkEnd, err)
		}

		for _, row := range resp.Block {
			bar, err := parseOHLCRow(symbol, row)
			if err != nil {
				continue // skip malformed rows rather than fail the whole chunk
			}
			all = append(all, bar)
		}

		if chunkStart.Equal(start) {
			break
		}
		chunkEnd = chunkStart.AddDate(0, 0, -1)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
	all = dedupeByTimestamp(all)
	return all, nil
}

func parseOHLCRow(symbol string, row ohlcOutBlock) (domain.OHLC, error) {
	ts, err := time.Parse("20060102", row.Date)
	if err != nil {
		return domain.OHLC{}, err
	}
	open, _ := strconv.ParseFloat(row.Open, 64)
	high, _ := strconv.ParseFloat(row.High, 64)
	low, _ := strconv.ParseFloat(row.Low, 64)
	closeP, _ := strconv.ParseFloat(row.Close, 64)
	vol, _ := strconv.ParseFloat(row.Volume, 64)
	val, _ := strconv.ParseFloat(row.Value, 64)
	return domain.NewOHLC(symbol, ts, open, high, low, closeP, vol, val), nil
}

// dedupeByTimestamp keeps the last occurrence of each timestamp, matching
// storage's "last write wins" merge semantics so chunk-boundary overlaps
// never produce duplicates (spec §8 property 4).
func dedupeByTimestamp(bars []domain.OHLC) []domain.OHLC {
	seen := make(map[int64]int, len(bars))
	out := make([]domain.OHLC, 0, len(bars))
	for _, b := range bars {
		key := b.Timestamp.Unix()
		if idx, ok := seen[key]; ok {
			out[idx] = b
			continue
		}
		seen[key] = len(out)
		out = append(out, b)
	}
	return out
}

// GetCurrentPrice returns the last traded price for symbol via the quote TR.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	var resp ohlcResponse
	err := c.post(ctx, trGeneral, "/stock/market-data", "t1102", struct {
		Symbol string `json:"IsuNo"`
	}{Symbol: symbol}, &resp)
	if err != nil {
		return 0, fmt.Errorf("get current price %s: %w", symbol, err)
	}
	if len(resp.Block) == 0 {
		return 0, domain.ErrNotFound
	}
	price, _ := strconv.ParseFloat(resp.Block[len(resp.Block)-1].Close, 64)
	return price, nil
}

// SyncServerTime queries the time TR, used to calibrate the exchange-local
// clock at startup.
func (c *Client) SyncServerTime(ctx context.Context) (time.Time, error) {
	var resp timeResponse
	if err := c.post(ctx, trGeneral, "/etc/time-search", "t0167", struct{}{}, &resp); err != nil {
		return time.Time{}, fmt.Errorf("sync server time: %w", err)
	}
	kst := time.FixedZone("KST", 9*60*60)
	now := time.Now().In(kst)
	t, err := time.ParseInLocation("20060102150405", now.Format("20060102")+resp.Block.Time, kst)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse server time %q: %w", resp.Block.Time, err)
	}
	return t, nil
}
