package ports

import (
	"context"
	"time"

	"github.com/kkim/hanaro-trader/internal/domain"
)

// BarStore persists OHLC bars keyed by (symbol, interval) with 1-year
// retention (C9).
type BarStore interface {
	// SaveBars merges bars into the existing set for (symbol, interval):
	// last write wins on timestamp collision, rows older than the
	// retention cutoff are dropped.
	SaveBars(ctx context.Context, symbol, interval string, bars []domain.OHLC) error

	// LoadBars returns bars for (symbol, interval) with timestamp in
	// [start,end], ascending, no duplicates.
	LoadBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.OHLC, error)

	// PruneExpired deletes any stored series whose max timestamp is older
	// than the retention cutoff.
	PruneExpired(ctx context.Context) error

	Close() error
}

// TokenStore persists the OAuth token record (C3).
type TokenStore interface {
	Load(ctx context.Context) (Token, bool, error)
	Save(ctx context.Context, t Token) error
}

// Token is the on-disk record for the broker's access token.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// Valid reports whether the token is usable without refresh — more than
// the 5-minute slack from expiry.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && t.ExpiresAt.Sub(now) > domain.TokenRefreshSlack
}
