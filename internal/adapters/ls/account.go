package ls

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kkim/hanaro-trader/internal/domain"
)

// GetAccount returns the account's cash and margin snapshot.
func (c *Client) GetAccount(ctx context.Context) (domain.Account, error) {
	var resp accountResponse
	err := c.post(ctx, trGeneral, "/stock/accno", "CSPAQ12300", struct {
		AccountID string `json:"AcntNo"`
	}{AccountID: c.accountID}, &resp)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	balance, _ := strconv.ParseFloat(resp.Block.Balance, 64)
	equity, _ := strconv.ParseFloat(resp.Block.Equity, 64)
	marginUsed, _ := strconv.ParseFloat(resp.Block.MarginUsed, 64)
	marginAvail, _ := strconv.ParseFloat(resp.Block.MarginAvailable, 64)
	return domain.Account{
		AccountID:       c.accountID,
		Balance:         balance,
		Equity:          equity,
		MarginUsed:      marginUsed,
		MarginAvailable: marginAvail,
	}, nil
}

// GetPositions returns current holdings.
func (c *Client) GetPositions(ctx context.Context) ([]domain.Position, error) {
	var resp positionsResponse
	err := c.post(ctx, trGeneral, "/stock/accno", "CSPAQ12300", struct {
		AccountID string `json:"AcntNo"`
	}{AccountID: c.accountID}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	out := make([]domain.Position, 0, len(resp.Blocks))
	for _, b := range resp.Blocks {
		qty, _ := strconv.ParseFloat(b.Quantity, 64)
		avg, _ := strconv.ParseFloat(b.AvgPrice, 64)
		cur, _ := strconv.ParseFloat(b.CurrentPrice, 64)
		p := domain.Position{Symbol: b.Symbol, Quantity: qty, AvgPrice: avg}
		p = p.UpdatePrice(cur)
		out = append(out, p)
	}
	return out, nil
}

// GetOrders returns orders within lookback, normalizing the venue's
// executed/unexecuted split into the unified Order.Status (spec §4.6).
func (c *Client) GetOrders(ctx context.Context, lookback time.Duration) ([]domain.Order, error) {
	var resp orderHistoryResponse
	err := c.post(ctx, trGeneral, "/stock/order", "CSPAQ13700", struct {
		AccountID string `json:"AcntNo"`
		FromDate  string `json:"OrdDt"`
	}{
		AccountID: c.accountID,
		FromDate:  time.Now().Add(-lookback).Format("20060102"),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}
	return mapOrderHistory(resp.Blocks), nil
}

// GetOpenOrders returns only non-terminal orders.
func (c *Client) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := c.GetOrders(ctx, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	open := orders[:0]
	for _, o := range orders {
		if !o.Status.IsTerminal() {
			open = append(open, o)
		}
	}
	return open, nil
}

func mapOrderHistory(blocks []orderHistoryOutBlock) []domain.Order {
	out := make([]domain.Order, 0, len(blocks))
	for _, b := range blocks {
		qty, _ := strconv.ParseFloat(b.Quantity, 64)
		price, _ := strconv.ParseFloat(b.Price, 64)
		filled, _ := strconv.ParseFloat(b.FilledQuantity, 64)
		side := domain.Buy
		if b.Side == "1" {
			side = domain.Sell
		}
		fallback := domain.Submitted
		if b.ExecutedFlag == "0" {
			fallback = domain.Filled
		}
		out = append(out, domain.Order{
			OrderID:        b.OrderNo,
			Symbol:         b.Symbol,
			Side:           side,
			Quantity:       qty,
			Price:          price,
			FilledQuantity: filled,
			Status:         domain.DeriveStatus(qty, filled, fallback),
		})
	}
	return out
}
