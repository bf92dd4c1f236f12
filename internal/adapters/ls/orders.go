package ls

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kkim/hanaro-trader/internal/domain"
)

type placeOrderInBlock struct {
	AccountID string `json:"AcntNo"`
	Password  string `json:"InptPwd"`
	Symbol    string `json:"IsuNo"`
	Side      string `json:"BnsTpCode"` // "1" sell, "2" buy
	Quantity  string `json:"OrdQty"`
	Price     string `json:"OrdPrc"`
	OrderType string `json:"OrdprcPtnCode"`
	MBRNo     string `json:"MbrNo"` // KRX vs NXT routing tag, passed through unchanged
	ClientID  string `json:"OrdCndiTpCode"`
}

// PlaceOrder implements validate -> retry-submit -> parse-id (spec §4.6).
// Validation failures are non-retryable; submission retries up to
// OrderSubmitRetries attempts over connection-reset/timeout/venue-code/
// order-id-absent failures.
func (c *Client) PlaceOrder(ctx context.Context, order domain.Order) (string, error) {
	if err := order.Validate(); err != nil {
		return "", fmt.Errorf("place order %s: %w", order.Symbol, err)
	}

	clientID := order.ClientID()
	if clientID == "" {
		clientID = uuid.NewString()
	}

	in := placeOrderInBlock{
		AccountID: c.accountID,
		Password:  c.accountPW,
		Symbol:    order.Symbol,
		Side:      sideCode(order.Side),
		Quantity:  fmt.Sprintf("%d", int64(order.Quantity)),
		Price:     fmt.Sprintf("%.0f", order.Price),
		OrderType: orderTypeCode(order.OrderType),
		MBRNo:     order.MBRNo(),
		ClientID:  clientID,
	}

	var lastErr error
	for attempt := 0; attempt < domain.OrderSubmitRetries; attempt++ {
		var resp orderResponse
		err := c.post(ctx, trOrder, "/stock/order", "CSPAT00600", in, &resp)
		if err != nil {
			lastErr = err
			c.sleep(ctx, attempt)
			continue
		}
		id := resp.orderID()
		if id == "" {
			lastErr = fmt.Errorf("%w: order-id absent from response", domain.ErrRetryExhausted)
			c.sleep(ctx, attempt)
			continue
		}
		return id, nil
	}
	return "", fmt.Errorf("place order %s: %w: %w", order.Symbol, domain.ErrRetryExhausted, lastErr)
}

func sideCode(s domain.Side) string {
	if s == domain.Sell {
		return "1"
	}
	return "2"
}

func orderTypeCode(t domain.OrderType) string {
	switch t {
	case domain.Limit:
		return "00"
	case domain.Stop:
		return "05"
	case domain.StopLimit:
		return "06"
	default:
		return "03" // market
	}
}

// CancelOrder cancels orderID, returning true iff the venue echoes a
// non-empty replacement order id.
func (c *Client) CancelOrder(ctx context.Context, orderID, symbol string) (bool, error) {
	var resp orderResponse
	err := c.post(ctx, trOrder, "/stock/order", "CSPAT00800", struct {
		AccountID string `json:"AcntNo"`
		Symbol    string `json:"IsuNo"`
		OrgOrdNo  string `json:"OrgOrdNo"`
	}{AccountID: c.accountID, Symbol: symbol, OrgOrdNo: orderID}, &resp)
	if err != nil {
		return false, fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return resp.orderID() != "", nil
}

// AmendOrder replaces price/quantity on orderID, returning true iff the
// venue echoes a non-empty replacement order id.
func (c *Client) AmendOrder(ctx context.Context, orderID, symbol string, newPrice, newQty float64) (bool, error) {
	var resp orderResponse
	err := c.post(ctx, trOrder, "/stock/order", "CSPAT00700", struct {
		AccountID string `json:"AcntNo"`
		Symbol    string `json:"IsuNo"`
		OrgOrdNo  string `json:"OrgOrdNo"`
		Price     string `json:"OrdPrc"`
		Quantity  string `json:"OrdQty"`
	}{
		AccountID: c.accountID,
		Symbol:    symbol,
		OrgOrdNo:  orderID,
		Price:     fmt.Sprintf("%.0f", newPrice),
		Quantity:  fmt.Sprintf("%d", int64(newQty)),
	}, &resp)
	if err != nil {
		return false, fmt.Errorf("amend order %s: %w", orderID, err)
	}
	return resp.orderID() != "", nil
}
