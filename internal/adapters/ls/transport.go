package ls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// trClass selects which per-endpoint rate limiter a call paces against.
type trClass int

const (
	trOHLC trClass = iota
	trOrder
	trGeneral
)

func (c *Client) limiterFor(class trClass) *rate.Limiter {
	switch class {
	case trOHLC:
		return c.ohlcLimiter
	case trOrder:
		return c.orderLimiter
	default:
		return c.generalLimiter
	}
}

// venueEnvelope is the common shape of a venue REST response: a non-zero
// rsp_cd inside a 200 OK is still a failure (spec §4.3).
type venueEnvelope struct {
	RspCd  string `json:"rsp_cd"`
	RspMsg string `json:"rsp_msg"`
}

func (e venueEnvelope) retryable() bool {
	// Empty/"00000" is success; anything else is a venue-reported failure.
	// Treat unknown non-empty codes as retryable per §4.3 ("venue code !=
	// success failures are retryable").
	return e.RspCd != "" && e.RspCd != "00000"
}

// post issues an authenticated TR request: trCode names the transaction,
// body is marshaled as the TR's InBlock, out receives the decoded
// response body (whose envelope() method exposes rsp_cd for the retry
// loop to inspect).
func (c *Client) post(ctx context.Context, class trClass, path, trCode string, body any, out venueResponse) error {
	limiter := c.limiterFor(class)
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		tok, err := c.tokens.GetValid(ctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal TR %s body: %w", trCode, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restBase+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		req.Header.Set("tr_cd", trCode)
		req.Header.Set("tr_cont", "N")
		req.Header.Set("tr_cont_key", "")
		req.Header.Set("mac_address", "")
		return c.http.Do(req)
	}, out)
}

// venueResponse is implemented by every TR response struct: it must
// expose its embedded envelope for retry classification.
type venueResponse interface {
	envelope() venueEnvelope
}

// doWithRetry implements bounded retry with exponential backoff for
// network failures, 5xx, venue-code failures; 4xx and validation errors
// surface immediately (spec §4.3, §7).
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out venueResponse) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			lastErr = err
			if attempt == maxRetries {
				break
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by venue", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error %d", resp.StatusCode)
			if attempt == maxRetries {
				break
			}
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			if attempt == maxRetries {
				break
			}
			c.sleep(ctx, attempt)
			continue
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if env := out.envelope(); env.retryable() {
			lastErr = fmt.Errorf("venue error %s: %s", env.RspCd, env.RspMsg)
			if attempt == maxRetries {
				break
			}
			c.sleep(ctx, attempt)
			continue
		}
		return nil
	}
	return fmt.Errorf("retries exhausted: %w", lastErr)
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
