package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/api/middleware"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
)

// readEvents parses "data:" lines of an event stream into accounts
func readEvents(body *bufio.Reader, out chan<- *account.Account) {
	defer close(out)
	for {
		line, err := body.ReadString('\n')
		if err != nil {
			return
		}
		data, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: ")
		if !ok {
			continue
		}
		var a account.Account
		if json.Unmarshal([]byte(data), &a) == nil {
			out <- &a
		}
	}
}

func nextEvent(t *testing.T, events <-chan *account.Account) *account.Account {
	t.Helper()
	select {
	case a, ok := <-events:
		if !ok {
			t.Fatal("stream closed")
		}
		return a
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
	}
	return nil
}

func TestStreamHandler_Stream(t *testing.T) {
	env := newTestEnv(t)
	env.session(t, "u1")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.stream.Stream(w, r.WithContext(middleware.WithUserID(r.Context(), "u1")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	events := make(chan *account.Account, 16)
	go readEvents(bufio.NewReader(resp.Body), events)

	first := nextEvent(t, events)
	if first.Coins != 100 {
		t.Errorf("initial coins = %d, want 100", first.Coins)
	}

	if _, err := env.ledger.Spend(context.Background(), "u1", 25); err != nil {
		t.Fatalf("Spend() error = %v", err)
	}

	second := nextEvent(t, events)
	if second.Coins != 75 {
		t.Errorf("coins after spend = %d, want 75", second.Coins)
	}
	if second.Version <= first.Version {
		t.Errorf("version went from %d to %d", first.Version, second.Version)
	}
}

func TestStreamHandler_MissingAccount(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	env.stream.Stream(rr, newRequest(t, http.MethodGet, "/api/v1/me/account/stream", "ghost", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusNotFound)
	}
}
