// Package history persists dispatched and received notifications, one record
// per message keyed by id. The seen flag is the only field mutated after a
// record is created.
package history

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pushkit/internal/message"
	"pushkit/pkg/logx"
)

var ErrDisabled = errors.New("history disabled")

// Config configures the store.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "" or "none": disabled (no-op store)
type Config struct {
	Driver string
	Path   string
}

// Store is the persistence API used by dispatch and the host app.
//
// A disabled implementation is substitutable without changing dispatch
// behavior: operations become logged no-ops, never errors that matter.
type Store interface {
	Save(ctx context.Context, userID string, m message.Message) error
	Get(ctx context.Context, id string) (message.Message, bool, error)
	Delete(ctx context.Context, id string) error
	MarkSeen(ctx context.Context, id string) error
	// MarkAllSeen with an empty userID marks every record.
	MarkAllSeen(ctx context.Context, userID string) error
	// ByUser returns messages sorted by createdAt descending. An empty
	// userID returns all records.
	ByUser(ctx context.Context, userID string) ([]message.Message, error)
	UnseenCount(ctx context.Context) (int, error)
	// SubscribeUnseen pushes the live unseen count on every change.
	SubscribeUnseen(buffer int) (<-chan int, func())
	// PruneOlderThan deletes records created before cutoff and reports
	// how many were removed.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// Open initializes the configured store. A disabled driver still returns a
// usable Store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none":
		return &disabledStore{log: log}, nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown history driver: " + driver)
	}
}

// disabledStore logs at debug and returns zero values.
type disabledStore struct {
	log  logx.Logger
	subs unseenSubs
}

func (s *disabledStore) Save(ctx context.Context, userID string, m message.Message) error {
	s.log.Debug("history disabled, save skipped", logx.String("id", m.ID))
	return nil
}

func (s *disabledStore) Get(ctx context.Context, id string) (message.Message, bool, error) {
	return message.Message{}, false, nil
}

func (s *disabledStore) Delete(ctx context.Context, id string) error      { return nil }
func (s *disabledStore) MarkSeen(ctx context.Context, id string) error    { return nil }
func (s *disabledStore) MarkAllSeen(ctx context.Context, u string) error  { return nil }
func (s *disabledStore) UnseenCount(ctx context.Context) (int, error)     { return 0, nil }

func (s *disabledStore) ByUser(ctx context.Context, userID string) ([]message.Message, error) {
	return nil, nil
}

func (s *disabledStore) SubscribeUnseen(buffer int) (<-chan int, func()) {
	return s.subs.subscribe(buffer)
}

func (s *disabledStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (s *disabledStore) Close() error { return nil }

// unseenSubs is a tiny copy-on-write broadcast list for live unseen counts.
// Notify is non-blocking; a slow subscriber keeps only the latest count.
type unseenSubs struct {
	mu   sync.Mutex
	subs map[uint64]chan int
	seq  uint64
}

func (u *unseenSubs) subscribe(buffer int) (<-chan int, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan int, buffer)
	u.mu.Lock()
	if u.subs == nil {
		u.subs = map[uint64]chan int{}
	}
	u.seq++
	id := u.seq
	u.subs[id] = ch
	u.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			u.mu.Lock()
			delete(u.subs, id)
			u.mu.Unlock()
			close(ch)
		})
	}
}

func (u *unseenSubs) notify(count int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, ch := range u.subs {
		select {
		case ch <- count:
		default:
			// Drop one stale count, then push the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- count:
			default:
			}
		}
	}
}
