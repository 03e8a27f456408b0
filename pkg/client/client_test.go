package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Envelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"account":{"userId":"u1","coins":100,"proTier":"none"},"outcome":"created","granted":100}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	c.SetToken("tok")

	session, err := c.Account().Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "created", session.Outcome)
	assert.Equal(t, int64(100), session.Account.Coins)
	assert.Equal(t, "none", session.Account.Tier())
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(*APIError) bool
	}{
		{
			name:   "insufficient funds",
			status: http.StatusPaymentRequired,
			body:   `{"success":false,"error":{"code":"INSUFFICIENT_FUNDS","message":"insufficient coins: have 5, need 10","details":{"balance":5,"required":10}}}`,
			check:  (*APIError).IsInsufficientFunds,
		},
		{
			name:   "store unavailable",
			status: http.StatusServiceUnavailable,
			body:   `{"success":false,"error":{"code":"STORE_UNAVAILABLE","message":"down"}}`,
			check:  (*APIError).IsUnavailable,
		},
		{
			name:   "plain text body",
			status: http.StatusNotFound,
			body:   "404 page not found",
			check:  (*APIError).IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(Config{BaseURL: srv.URL}).Account().Spend(context.Background(), 10)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.True(t, tt.check(apiErr), "unexpected error %v", apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestClient_InternalUsesAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/api/v1/internal/accounts/u%201/adjust", r.URL.EscapedPath())
		fmt.Fprint(w, `{"success":true,"data":{"userId":"u 1","coins":150}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	acct, err := c.Internal().Adjust(context.Background(), "u 1", AdjustRequest{Field: "coins", Delta: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(150), acct.Coins)
}

func TestAccountService_Watch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: account\nid: 1\ndata: {\"userId\":\"u1\",\"coins\":100,\"version\":1}\n\n")
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, "event: account\nid: 2\ndata: {\"userId\":\"u1\",\"coins\":90,\"version\":2}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	// the request timeout must not apply to the stream
	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	var got []int64
	done := make(chan error, 1)
	go func() {
		done <- c.Account().Watch(ctx, func(a *Account) {
			got = append(got, a.Coins)
			if len(got) == 2 {
				time.Sleep(100 * time.Millisecond)
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("Watch did not return after cancel")
	}
	assert.Equal(t, []int64{100, 90}, got)
}

func TestAccountService_WatchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"success":false,"error":{"code":"NOT_FOUND","message":"Account not found"}}`)
	}))
	defer srv.Close()

	err := NewClient(Config{BaseURL: srv.URL}).Account().Watch(context.Background(), func(*Account) {})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsNotFound())
}

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": hello",
		"event: account",
		"data: {\"a\":",
		"data: 1}",
		"",
		"event: other",
		"data: x",
		"",
	}, "\n") + "\n"

	var events []string
	err := readEvents(strings.NewReader(stream), func(event string, data []byte) error {
		events = append(events, event+"="+string(data))
		return nil
	})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, []string{"account={\"a\":\n1}", "other=x"}, events)
}

func TestClient_Status(t *testing.T) {
	tests := []struct {
		name     string
		readyz   func(w http.ResponseWriter)
		ready    bool
		database string
	}{
		{
			name: "ready",
			readyz: func(w http.ResponseWriter) {
				fmt.Fprint(w, `{"success":true,"data":{"status":"ready","database":"connected"}}`)
			},
			ready:    true,
			database: "connected",
		},
		{
			name: "store down",
			readyz: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprint(w, `{"success":false,"error":{"code":"STORE_UNAVAILABLE","message":"Database connection failed"}}`)
			},
			ready:    false,
			database: "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				switch r.URL.Path {
				case "/healthz":
					fmt.Fprint(w, `{"success":true,"data":{"status":"ok"}}`)
				case "/readyz":
					tt.readyz(w)
				default:
					http.NotFound(w, r)
				}
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL})
			require.NoError(t, c.Ping(context.Background()))

			status, err := c.Status(context.Background())
			require.NoError(t, err)
			assert.True(t, status.Live)
			assert.Equal(t, tt.ready, status.Ready)
			assert.Equal(t, tt.database, status.Database)
		})
	}
}

func TestClient_StatusUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, Timeout: time.Second})
	_, err := c.Status(context.Background())
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
}
