package feed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
)

// Runs against a live server when REDIS_TEST_ADDR is set.
func TestRedisBroker_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	channel := "promptmaster:test:" + time.Now().Format("150405.000")
	b, err := NewRedisBroker(ctx, client, channel, logger.Nop())
	if err != nil {
		t.Fatalf("NewRedisBroker() error = %v", err)
	}
	defer b.Close()

	got := make(chan *account.Account, 1)
	h := b.Subscribe("u1", func(a *account.Account) { got <- a })
	defer h.Cancel()

	if err := b.Publish(ctx, &account.Account{UserID: "u1", Version: 7, Coins: 42}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case a := <-got:
		if a.Coins != 42 || a.Version != 7 {
			t.Errorf("received %+v, want coins 42 version 7", a)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("snapshot not relayed")
	}
}
