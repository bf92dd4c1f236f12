package ports

import (
	"context"
	"time"

	"github.com/kkim/hanaro-trader/internal/domain"
)

// Broker is the venue-agnostic capability set (C2) every broker adapter
// implements. Every method that performs I/O takes a context and may block.
type Broker interface {
	// GetOHLC returns bars for symbol at interval over [start,end], ordered
	// ascending, inclusive endpoints.
	GetOHLC(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.OHLC, error)

	// GetCurrentPrice returns the last traded price for symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)

	// PlaceOrder submits order and returns the venue order id. Idempotent
	// with respect to order.ClientID() when present.
	PlaceOrder(ctx context.Context, order domain.Order) (string, error)

	// CancelOrder cancels orderID for symbol.
	CancelOrder(ctx context.Context, orderID, symbol string) (bool, error)

	// AmendOrder replaces price/quantity on an open order.
	AmendOrder(ctx context.Context, orderID, symbol string, newPrice, newQty float64) (bool, error)

	GetAccount(ctx context.Context) (domain.Account, error)
	GetPositions(ctx context.Context) ([]domain.Position, error)
	GetOpenOrders(ctx context.Context) ([]domain.Order, error)

	// GetOrders includes terminal orders within a configurable lookback.
	GetOrders(ctx context.Context, lookback time.Duration) ([]domain.Order, error)

	// StreamRealtime yields ticks for symbols until ctx is cancelled or the
	// channel's sender closes it. Per-symbol ordering is FIFO; cross-symbol
	// ordering is unspecified. Restartable: callers may call it again after
	// a prior stream ends.
	StreamRealtime(ctx context.Context, symbols []string) (<-chan Tick, error)

	// SyncServerTime returns the broker's current server time, used to
	// calibrate the exchange-local clock at startup.
	SyncServerTime(ctx context.Context) (time.Time, error)

	// Close releases any held connections (token store, websocket).
	Close() error
}

// Tick is one realtime price update.
type Tick struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}
