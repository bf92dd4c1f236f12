package domain

import "time"

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType is the pricing mechanism of an order.
type OrderType string

const (
	Market     OrderType = "MARKET"
	Limit      OrderType = "LIMIT"
	Stop       OrderType = "STOP"
	StopLimit  OrderType = "STOP_LIMIT"
)

// OrderStatus is a one-way progression toward a terminal state.
type OrderStatus string

const (
	Pending        OrderStatus = "PENDING"
	Submitted      OrderStatus = "SUBMITTED"
	PartialFilled  OrderStatus = "PARTIAL_FILLED"
	Filled         OrderStatus = "FILLED"
	Cancelled      OrderStatus = "CANCELLED"
	Rejected       OrderStatus = "REJECTED"
)

// IsTerminal reports whether status can no longer change.
func (s OrderStatus) IsTerminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// VenueKRX and VenueNXT are the two values place_order's mbr_no metadata key
// may carry, chosen by the market router (C17).
const (
	VenueKRX = "KRX"
	VenueNXT = "NXT"
)

// Order is the unit submitted to and tracked against the broker.
type Order struct {
	OrderID        string
	Symbol         string
	Side           Side
	OrderType      OrderType
	Quantity       float64
	Price          float64 // only meaningful for LIMIT/STOP_LIMIT
	FilledQuantity float64
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Metadata       map[string]string // carries "mbr_no" and the caller client-id
}

// ClientID returns the idempotence key attached at creation, if any.
func (o Order) ClientID() string {
	return o.Metadata["client_id"]
}

// MBRNo returns the venue routing tag attached by the execution engine.
func (o Order) MBRNo() string {
	return o.Metadata["mbr_no"]
}

// WithMBRNo returns a copy of o with the venue tag set.
func (o Order) WithMBRNo(venue string) Order {
	md := make(map[string]string, len(o.Metadata)+1)
	for k, v := range o.Metadata {
		md[k] = v
	}
	md["mbr_no"] = venue
	o.Metadata = md
	return o
}

// Validate implements the pre-submit, non-retryable checks from §4.6.
func (o Order) Validate() error {
	if o.Quantity <= 0 {
		return ErrValidation
	}
	if o.OrderType == Limit || o.OrderType == StopLimit {
		if o.Price <= 0 || o.Price > MaxOrderPrice {
			return ErrValidation
		}
	}
	return nil
}

// DeriveStatus normalizes a venue's split executed/unexecuted reporting into
// the unified OrderStatus per §4.6: filled >= quantity && filled > 0 => FILLED;
// 0 < filled < quantity => PARTIAL_FILLED.
func DeriveStatus(quantity, filled float64, fallback OrderStatus) OrderStatus {
	switch {
	case filled > 0 && filled >= quantity:
		return Filled
	case filled > 0 && filled < quantity:
		return PartialFilled
	default:
		return fallback
	}
}

// OrderIntent is what a strategy emits — a trading signal, not yet an order.
type OrderIntent struct {
	Symbol     string
	Side       Side
	Quantity   float64
	OrderType  OrderType
	Price      float64 // optional: limit price
	StopLoss   float64 // optional
	TakeProfit float64 // optional
}
