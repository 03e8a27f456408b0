// Package feed fans committed account states out to live subscribers.
package feed

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/domain/account"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/metrics"
)

// Broker delivers published account snapshots to the subscribers of that account
type Broker interface {
	// Publish hands a committed snapshot to every subscriber of its user
	Publish(ctx context.Context, acct *account.Account) error

	// Subscribe registers onChange for userID
	Subscribe(userID string, onChange func(*account.Account)) account.Handle

	// Close cancels every subscription
	Close() error
}

// MemoryBroker is an in-process Broker
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	closed bool
	logger *logger.Logger
}

// NewMemoryBroker creates an in-process broker
func NewMemoryBroker(log *logger.Logger) *MemoryBroker {
	if log == nil {
		log = logger.Nop()
	}
	return &MemoryBroker{
		subs:   make(map[string]map[uint64]*subscriber),
		logger: log,
	}
}

// Publish queues acct for every subscriber of acct.UserID. It never blocks
// and never drops: a slow subscriber's queue grows until its callback catches
// up or it is cancelled.
func (b *MemoryBroker) Publish(_ context.Context, acct *account.Account) error {
	if acct == nil {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs[acct.UserID] {
		s.enqueue(acct)
	}
	return nil
}

// Subscribe registers onChange. Callbacks for one subscription run on a
// single goroutine in version order; stale versions are skipped.
func (b *MemoryBroker) Subscribe(userID string, onChange func(*account.Account)) account.Handle {
	s := &subscriber{
		userID: userID,
		fn:     onChange,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		broker: b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.cancelled.Store(true)
		close(s.done)
		return s
	}
	b.nextID++
	s.id = b.nextID
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[uint64]*subscriber)
	}
	b.subs[userID][s.id] = s
	b.mu.Unlock()

	metrics.FeedSubscriberAdded()
	go s.run()

	return s
}

// Subscribers returns the number of open subscriptions for userID
func (b *MemoryBroker) Subscribers(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

// Close cancels every subscription and rejects new ones
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	var all []*subscriber
	for _, byID := range b.subs {
		for _, s := range byID {
			all = append(all, s)
		}
	}
	b.mu.Unlock()

	for _, s := range all {
		s.Cancel()
	}
	return nil
}

func (b *MemoryBroker) remove(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	byID := b.subs[s.userID]
	if _, ok := byID[s.id]; !ok {
		return
	}
	delete(byID, s.id)
	if len(byID) == 0 {
		delete(b.subs, s.userID)
	}
	metrics.FeedSubscriberRemoved()
}

type subscriber struct {
	id     uint64
	userID string
	fn     func(*account.Account)
	wake   chan struct{}
	done   chan struct{}
	broker *MemoryBroker

	// mu guards pending
	mu      sync.Mutex
	pending []*account.Account

	// deliverMu is held from the cancelled check through fn. Cancel takes it
	// only when no callback has started, closing the gap between the check
	// and the call.
	deliverMu   sync.Mutex
	lastVersion int64
	cancelled   atomic.Bool
	inCallback  atomic.Bool
	once        sync.Once
}

func (s *subscriber) enqueue(acct *account.Account) {
	if s.cancelled.Load() {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, acct)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) take() []*account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for batch := s.take(); len(batch) > 0; batch = s.take() {
			for _, acct := range batch {
				if s.cancelled.Load() {
					return
				}
				s.deliver(acct)
			}
		}
	}
}

func (s *subscriber) deliver(acct *account.Account) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if s.cancelled.Load() || acct.Version <= s.lastVersion {
		return
	}
	s.lastVersion = acct.Version

	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.broker.logger.WithFields(map[string]interface{}{
				"user_id": s.userID,
				"panic":   r,
			}).Error("Account subscriber callback panicked")
		}
	}()
	s.fn(acct)
}

// Cancel stops delivery and releases the subscriber goroutine. Once it
// returns no further callback starts; a callback already running is not
// waited for, so Cancel may be called from inside one.
func (s *subscriber) Cancel() {
	s.once.Do(func() {
		s.cancelled.Store(true)
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()

		if s.broker != nil && s.id != 0 {
			s.broker.remove(s)
		}
		select {
		case <-s.done:
		default:
			close(s.done)
		}

		if !s.inCallback.Load() {
			s.deliverMu.Lock()
			s.deliverMu.Unlock()
		}
	})
}
