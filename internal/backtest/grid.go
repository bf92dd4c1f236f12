package backtest

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/kkim/hanaro-trader/internal/domain"
	"github.com/kkim/hanaro-trader/internal/strategy"
)

// ParamGrid maps a parameter name to the list of values to sweep, e.g.
// {"short": {5, 10}, "long": {20, 40}}. Grounded on
// original_source/core/backtest/parallel_engine.py's parameter_grid dict.
type ParamGrid map[string][]float64

// GridRun is one parameter combination's result, tagged with the params
// that produced it so callers can trace a ranked result back to its inputs.
type GridRun struct {
	Params map[string]float64
	Result domain.BacktestResult
	Err    error
}

// Factory builds a strategy instance from one concrete parameter combination.
type Factory func(params map[string]float64) strategy.Strategy

// RunGrid expands grid into every parameter combination, runs each through
// Run concurrently over a bounded worker pool, and returns results ranked by
// descending Sharpe ratio (ties broken by combination order, so re-running
// the same grid produces the same ranking — spec §8 scenario S2).
//
// Resolved in favor of a goroutine pool over process/thread pools (Go has
// no GIL to work around): see original_source/core/backtest/parallel_engine.py's
// use_processes flag, which this collapses to a single goroutine pool.
func RunGrid(ctx context.Context, grid ParamGrid, newStrategy Factory, symbol string, bars []domain.OHLC, cfg Config, maxWorkers int) []GridRun {
	combos := expandGrid(grid)
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	results := make([]GridRun, len(combos))
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for i, params := range combos {
		wg.Add(1)
		go func(i int, params map[string]float64) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = GridRun{Params: params, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			strat := newStrategy(params)
			result, err := Run(strat, symbol, bars, cfg)
			results[i] = GridRun{Params: params, Result: result, Err: err}
		}(i, params)
	}
	wg.Wait()

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Err != nil {
			return false
		}
		if results[b].Err != nil {
			return true
		}
		return results[a].Result.Sharpe > results[b].Result.Sharpe
	})
	return results
}

// expandGrid produces the Cartesian product of grid's value lists, iterating
// keys in sorted order so the output combination order (and therefore the
// stable-sort tie-break above) is deterministic across runs.
func expandGrid(grid ParamGrid) []map[string]float64 {
	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]float64{{}}
	for _, k := range keys {
		values := grid[k]
		next := make([]map[string]float64, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, v := range values {
				extended := make(map[string]float64, len(combo)+1)
				for ck, cv := range combo {
					extended[ck] = cv
				}
				extended[k] = v
				next = append(next, extended)
			}
		}
		combos = next
	}
	return combos
}
