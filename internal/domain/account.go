package domain

import "time"

// Position is a holding in one symbol. AvgPrice only moves on an increase
// (weighted average); a reduction realizes P&L without touching AvgPrice.
type Position struct {
	Symbol        string
	Quantity      float64
	AvgPrice      float64
	CurrentPrice  float64
	UnrealizedPnL float64
	RealizedPnL   float64
}

// TotalValue is the mark-to-market value of the position.
func (p Position) TotalValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// UpdatePrice recomputes UnrealizedPnL for a new mark price.
func (p Position) UpdatePrice(price float64) Position {
	p.CurrentPrice = price
	p.UnrealizedPnL = (price - p.AvgPrice) * p.Quantity
	return p
}

// Increase adds qty at price to the position, recomputing the weighted
// average entry price. It never changes AvgPrice on a reduction — callers
// must use Reduce for that path.
func (p Position) Increase(qty, price float64) Position {
	if qty <= 0 {
		return p
	}
	totalCost := p.AvgPrice*p.Quantity + price*qty
	p.Quantity += qty
	if p.Quantity > 0 {
		p.AvgPrice = totalCost / p.Quantity
	}
	return p
}

// Reduce removes qty from the position at the given exit price, realizing
// P&L on the portion closed. AvgPrice is left unchanged.
func (p Position) Reduce(qty, price float64) Position {
	if qty <= 0 {
		return p
	}
	if qty > p.Quantity {
		qty = p.Quantity
	}
	p.RealizedPnL += (price - p.AvgPrice) * qty
	p.Quantity -= qty
	return p
}

// Account is the trading account's cash and margin state.
type Account struct {
	AccountID       string
	Balance         float64
	Equity          float64
	MarginUsed      float64
	MarginAvailable float64
}

// RecomputeEquity sets Equity = Balance + sum of position total values.
func RecomputeEquity(balance float64, positions []Position) float64 {
	eq := balance
	for _, p := range positions {
		eq += p.TotalValue()
	}
	return eq
}

// Trade is an immutable fill record.
type Trade struct {
	TradeID    string
	OrderID    string
	Symbol     string
	Side       Side
	Quantity   float64
	Price      float64
	Commission float64
	Timestamp  time.Time
}
