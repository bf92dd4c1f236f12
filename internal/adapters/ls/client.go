// Package ls implements the broker adapter for the Korean-brokerage ("LS")
// REST + WebSocket API: OAuth token lifecycle (C3), authenticated REST
// transport with rate limiting and retry (C4), market-data paging (C5),
// account/order operations (C6), the realtime feed (C7), and publishes
// market-state updates to the shared tracker (C8).
package ls

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kkim/hanaro-trader/internal/marketstate"
	"github.com/kkim/hanaro-trader/internal/ports"
)

const (
	defaultRESTBase = "https://openapi.ls-sec.co.kr:8080"
	defaultWSBase   = "wss://openapi.ls-sec.co.kr:9443/websocket"

	// The venue enforces strict per-TR rate limits; the OHLC TR in
	// particular allows only ~1 req/s (spec §4.3). Pacing at 1.1s keeps a
	// safety margin without a documented API limit to calibrate against,
	// following the teacher's own practice of under-running documented
	// venue limits.
	ohlcRatePerSec    = 1.0 / 1.1
	orderRatePerSec   = 4
	generalRatePerSec = 8

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is the REST+WebSocket client for the venue.
type Client struct {
	http *http.Client

	restBase string
	wsBase   string

	appKey       string
	appSecretKey string
	accountID    string
	accountPW    string
	paperTrading bool

	tokens *TokenManager

	ohlcLimiter  *rate.Limiter
	orderLimiter *rate.Limiter
	generalLimiter *rate.Limiter

	marketState *marketstate.Tracker
}

// Config bundles Client construction parameters, mirroring config.BrokerConfig.
type Config struct {
	RESTBase        string
	WSBase          string
	AppKey          string
	AppSecretKey    string
	AccountID       string
	AccountPassword string
	PaperTrading    bool
}

// NewClient builds a Client backed by tokenStore for persistence and
// tracker for market-state updates pushed from the realtime feed.
func NewClient(cfg Config, tokenStore ports.TokenStore, tracker *marketstate.Tracker) *Client {
	restBase := cfg.RESTBase
	if restBase == "" {
		restBase = defaultRESTBase
	}
	wsBase := cfg.WSBase
	if wsBase == "" {
		wsBase = defaultWSBase
	}

	c := &Client{
		http:           &http.Client{Timeout: 30 * time.Second},
		restBase:       restBase,
		wsBase:         wsBase,
		appKey:         cfg.AppKey,
		appSecretKey:   cfg.AppSecretKey,
		accountID:      cfg.AccountID,
		accountPW:      cfg.AccountPassword,
		paperTrading:   cfg.PaperTrading,
		ohlcLimiter:    rate.NewLimiter(rate.Limit(ohlcRatePerSec), 1),
		orderLimiter:   rate.NewLimiter(rate.Limit(orderRatePerSec), 2),
		generalLimiter: rate.NewLimiter(rate.Limit(generalRatePerSec), 4),
		marketState:    tracker,
	}
	c.tokens = NewTokenManager(c, tokenStore)
	return c
}

// Close is a no-op: neither the token manager nor the HTTP client holds
// closable state.
func (c *Client) Close() error {
	return nil
}
