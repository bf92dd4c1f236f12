package strategy

import "github.com/kkim/hanaro-trader/internal/domain"

// ApplyIndicators computes the indicator series config names and attaches
// them to bars.Indicators, mirroring original_source/dynamic.py's
// apply_indicators pre-pass. Unknown indicator names are silently skipped
// (a misconfigured condition referencing them simply never matches, same
// as the original's best-effort column lookup).
func ApplyIndicators(bars Bars, specs []IndicatorSpec) Bars {
	if bars.Indicators == nil {
		bars.Indicators = make(map[string][]float64)
	}
	closes := closesOf(bars.Rows)

	for _, spec := range specs {
		period := int(spec.Params["period"])
		if period <= 0 {
			period = 14
		}
		switch spec.Name {
		case "MA", "SMA":
			bars.Indicators[indicatorColumn("MA", float64(period))] = sma(closes, period)
		case "EMA":
			bars.Indicators[indicatorColumn("EMA", float64(period))] = ema(closes, period)
		case "RSI":
			bars.Indicators[indicatorColumn("RSI", float64(period))] = rsi(closes, period)
		}
	}
	return bars
}

// IndicatorSpec is one entry of a DynamicStrategy config's "indicators" list.
type IndicatorSpec struct {
	Name   string
	Params map[string]float64
}

func closesOf(rows []domain.OHLC) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Close
	}
	return out
}

func sma(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	var sum float64
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

func ema(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	k := 2.0 / (float64(period) + 1)
	out[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		out[i] = closes[i]*k + out[i-1]*(1-k)
	}
	return out
}

func rsi(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) < 2 {
		return out
	}
	var gainSum, lossSum float64
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		if i <= period {
			gainSum += gain
			lossSum += loss
			if i == period {
				out[i] = rsiFromAvg(gainSum/float64(period), lossSum/float64(period))
			}
			continue
		}
		avgGain := (gainSum*(float64(period)-1) + gain) / float64(period)
		avgLoss := (lossSum*(float64(period)-1) + loss) / float64(period)
		gainSum, lossSum = avgGain, avgLoss
		out[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
