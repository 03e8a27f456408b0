package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/config"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// RedisBroker publishes snapshots on "<channel>:<userID>" and relays one
// pattern subscription into a local MemoryBroker, so every instance sees
// every instance's writes.
type RedisBroker struct {
	client  *redis.Client
	channel string
	local   *MemoryBroker
	pubsub  *redis.PubSub
	logger  *logger.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

// NewRedisBroker subscribes to channel:* and starts the relay
func NewRedisBroker(ctx context.Context, client *redis.Client, channel string, log *logger.Logger) (*RedisBroker, error) {
	if log == nil {
		log = logger.Nop()
	}
	ps := client.PSubscribe(ctx, channel+":*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s:*: %w", channel, err)
	}

	b := &RedisBroker{
		client:  client,
		channel: channel,
		local:   NewMemoryBroker(log),
		pubsub:  ps,
		logger:  log,
	}

	b.wg.Add(1)
	go b.relay()

	return b, nil
}

func (b *RedisBroker) relay() {
	defer b.wg.Done()

	for msg := range b.pubsub.Channel() {
		var acct account.Account
		if err := json.Unmarshal([]byte(msg.Payload), &acct); err != nil {
			b.logger.WithError(err).With("channel", msg.Channel).Warn("Dropping malformed account snapshot")
			continue
		}
		if acct.UserID == "" {
			acct.UserID = strings.TrimPrefix(msg.Channel, b.channel+":")
		}
		_ = b.local.Publish(context.Background(), &acct)
	}
}

// Publish sends acct to every instance, this one included
func (b *RedisBroker) Publish(ctx context.Context, acct *account.Account) error {
	payload, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("failed to encode account snapshot: %w", err)
	}
	return b.client.Publish(ctx, b.channel+":"+acct.UserID, payload).Err()
}

// Subscribe registers onChange with the local fan-out
func (b *RedisBroker) Subscribe(userID string, onChange func(*account.Account)) account.Handle {
	return b.local.Subscribe(userID, onChange)
}

// Close stops the relay and cancels local subscriptions. The client is left open.
func (b *RedisBroker) Close() error {
	var err error
	b.once.Do(func() {
		err = b.pubsub.Close()
		b.wg.Wait()
		_ = b.local.Close()
	})
	return err
}
