// Package notification owns the user's notification list: an in-memory
// collection mirrored to a single key of a key-value store.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/pmcore/internal/kvstore"
	"github.com/nhle/pmcore/internal/metrics"
	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/toast"
)

// DefaultKey is the storage key used when none is configured.
const DefaultKey = "@notifications"

// Listener receives a snapshot of the list after every change.
type Listener func([]model.Notification)

// Option configures a Store.
type Option func(*Store)

// WithKey sets the storage key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithLogger sets the logger used for fail-open paths.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithToasts sets the presenter used by Add.
func WithToasts(p toast.Presenter) Option {
	return func(s *Store) { s.toasts = p }
}

// WithMetrics records counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides the id generator.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// Store is the authoritative notification list. Mutators are
// serialized: each one waits for the previous one's write to finish,
// so the persisted value always reflects call order. Queries never
// wait on a write.
type Store struct {
	kv      kvstore.Store
	key     string
	log     *zap.Logger
	toasts  toast.Presenter
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string

	writeMu sync.Mutex

	mu     sync.RWMutex
	items  []model.Notification
	nextID int
	subs   map[int]Listener
}

// New creates a Store backed by kv. Call Load before use to pick up
// previously persisted notifications.
func New(kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		log:    zap.NewNop(),
		toasts: toast.Nop{},
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		items:  []model.Notification{},
		subs:   make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key this store persists under.
func (s *Store) Key() string {
	return s.key
}

// Load replaces the in-memory list with the persisted one. A missing
// key, a read error or undecodable JSON all leave an empty list; the
// failure is logged and never returned.
func (s *Store) Load(ctx context.Context) {
	s.writeMu.Lock()

	loaded := []model.Notification{}

	raw, ok, err := s.kv.Get(ctx, s.key)
	switch {
	case err != nil:
		s.log.Error("loading notifications", zap.String("key", s.key), zap.Error(err))
	case ok:
		var decoded []model.Notification
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			s.log.Error("decoding notifications", zap.String("key", s.key), zap.Error(err))
		} else if decoded != nil {
			loaded = decoded
		}
	}

	listeners := s.swap(loaded)
	s.writeMu.Unlock()

	s.notify(listeners)
}

// List returns a copy of the current notifications, newest first.
func (s *Store) List() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.items)
}

// Get returns the notification with the given id.
func (s *Store) Get(id string) (model.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.items {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// UnreadCount returns how many notifications are unread.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CountUnread(s.items)
}

// Add creates an unread notification, prepends it, persists the list
// and shows a toast whose variant matches kind.
func (s *Store) Add(ctx context.Context, title, message string, kind model.Kind) model.Notification {
	n := model.Notification{
		ID:        s.newID(),
		Title:     title,
		Message:   message,
		Kind:      kind,
		Timestamp: s.now(),
		Read:      false,
	}

	s.mutate(ctx, func(cur []model.Notification) ([]model.Notification, bool) {
		next := make([]model.Notification, 0, len(cur)+1)
		next = append(next, n)
		next = append(next, cur...)
		return next, true
	})

	s.metrics.NotificationAdded(string(kind))
	toast.ForKind(s.toasts, kind, message)
	return n
}

// MarkRead marks the notification with id as read. An unknown id is
// not an error; the list is persisted either way.
func (s *Store) MarkRead(ctx context.Context, id string) {
	s.mutate(ctx, func(cur []model.Notification) ([]model.Notification, bool) {
		next := clone(cur)
		for i := range next {
			if next[i].ID == id {
				next[i].Read = true
			}
		}
		return next, true
	})
}

// MarkAllRead marks every notification as read. It does nothing on an
// empty list.
func (s *Store) MarkAllRead(ctx context.Context) {
	s.mutate(ctx, func(cur []model.Notification) ([]model.Notification, bool) {
		if len(cur) == 0 {
			return cur, false
		}
		next := clone(cur)
		for i := range next {
			next[i].Read = true
		}
		return next, true
	})
}

// Remove deletes the notification with id. An unknown id is not an
// error; the list is persisted either way.
func (s *Store) Remove(ctx context.Context, id string) {
	s.mutate(ctx, func(cur []model.Notification) ([]model.Notification, bool) {
		next := make([]model.Notification, 0, len(cur))
		for _, n := range cur {
			if n.ID != id {
				next = append(next, n)
			}
		}
		return next, true
	})
}

// Clear empties the list and persists the empty list.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, func([]model.Notification) ([]model.Notification, bool) {
		return []model.Notification{}, true
	})
}

// Subscribe registers fn to receive a snapshot after every change.
// fn is also called once immediately with the current list. The
// returned func removes the subscription.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	snapshot := clone(s.items)
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// mutate runs one read-modify-write cycle. change returns the next
// list and whether anything should be written. The in-memory list is
// replaced before the write and kept even if the write fails;
// subscribers hear about it after the write.
func (s *Store) mutate(
	ctx context.Context,
	change func([]model.Notification) ([]model.Notification, bool),
) {
	s.writeMu.Lock()

	s.mu.RLock()
	cur := s.items
	s.mu.RUnlock()

	next, write := change(cur)
	if !write {
		s.writeMu.Unlock()
		return
	}

	listeners := s.swap(next)

	if err := s.persist(ctx, next); err != nil {
		s.metrics.WriteFailed(s.key)
		s.log.Error("saving notifications",
			zap.String("key", s.key),
			zap.Int("count", len(next)),
			zap.Error(err),
		)
	}

	s.writeMu.Unlock()

	// Listeners run outside the writer lock so they may call mutators.
	s.notify(listeners)
}

// swap installs next as the current list and returns the listeners to
// notify once the write has been attempted.
func (s *Store) swap(next []model.Notification) []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = next
	s.metrics.SetUnread(model.CountUnread(next))

	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	return listeners
}

// notify hands each listener its own copy of the current list.
func (s *Store) notify(listeners []Listener) {
	if len(listeners) == 0 {
		return
	}
	snapshot := s.List()
	for _, fn := range listeners {
		fn(clone(snapshot))
	}
}

// persist writes the whole list under the store's key.
func (s *Store) persist(ctx context.Context, items []model.Notification) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding notifications: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("writing notifications: %w", err)
	}
	return nil
}

func clone(items []model.Notification) []model.Notification {
	out := make([]model.Notification, len(items))
	copy(out, items)
	return out
}
