package ls

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkim/hanaro-trader/internal/marketstate"
	"github.com/kkim/hanaro-trader/internal/ports"
)

type memTokenStore struct {
	mu sync.Mutex
	t  ports.Token
	ok bool
}

func (m *memTokenStore) Load(ctx context.Context) (ports.Token, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t, m.ok, nil
}

func (m *memTokenStore) Save(ctx context.Context, t ports.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t, m.ok = t, true
	return nil
}

func TestTokenManager_NeverReturnsTokenWithinSlack(t *testing.T) {
	var issued int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&issued, 1)
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "tok-1", TokenType: "Bearer", ExpiresIn: "3600",
		})
	}))
	defer srv.Close()

	store := &memTokenStore{}
	client := NewClient(Config{RESTBase: srv.URL, AppKey: "k", AppSecretKey: "s"}, store, marketstate.New())

	tok, err := client.tokens.GetValid(context.Background())
	require.NoError(t, err)
	assert.True(t, tok.Valid(time.Now()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&issued))
}

func TestTokenManager_SingleFlightConcurrentCallersShareResult(t *testing.T) {
	var issued int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&issued, 1)
		<-release
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "shared-tok", TokenType: "Bearer", ExpiresIn: "3600",
		})
	}))
	defer srv.Close()

	store := &memTokenStore{}
	client := NewClient(Config{RESTBase: srv.URL, AppKey: "k", AppSecretKey: "s"}, store, marketstate.New())

	var wg sync.WaitGroup
	results := make([]ports.Token, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := client.tokens.GetValid(context.Background())
			require.NoError(t, err)
			results[i] = tok
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&issued), "only one refresh should hit the network")
	for _, r := range results {
		assert.Equal(t, "shared-tok", r.AccessToken)
	}
}
