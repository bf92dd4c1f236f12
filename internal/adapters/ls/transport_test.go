package ls

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkim/hanaro-trader/internal/marketstate"
)

func TestDoWithRetry_RetriesOnVenueErrorCodeThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "oauth2") {
			json.NewEncoder(w).Encode(tokenResponse{AccessToken: "t", TokenType: "Bearer", ExpiresIn: "3600"})
			return
		}
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			json.NewEncoder(w).Encode(accountResponse{RspCd: "90001", RspMsg: "busy"})
			return
		}
		json.NewEncoder(w).Encode(accountResponse{RspCd: "00000", Block: accountOutBlock{Balance: "1000"}})
	}))
	defer srv.Close()

	client := NewClient(Config{RESTBase: srv.URL, AppKey: "k", AppSecretKey: "s"}, &memTokenStore{}, marketstate.New())
	client.generalLimiter.SetLimit(1000)

	acct, err := client.GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, acct.Balance)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDoWithRetry_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "oauth2") {
			json.NewEncoder(w).Encode(tokenResponse{AccessToken: "t", TokenType: "Bearer", ExpiresIn: "3600"})
			return
		}
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(Config{RESTBase: srv.URL, AppKey: "k", AppSecretKey: "s"}, &memTokenStore{}, marketstate.New())
	client.generalLimiter.SetLimit(1000)

	_, err := client.GetAccount(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
