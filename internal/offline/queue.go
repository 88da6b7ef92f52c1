// Package offline buffers work that could not be sent while the device
// was offline and drains it when connectivity returns.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/pmcore/internal/connectivity"
	"github.com/nhle/pmcore/internal/kvstore"
	"github.com/nhle/pmcore/internal/metrics"
	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/toast"
)

// DefaultKey is the storage key used when none is configured.
const DefaultKey = "@offline_data"

// Toast messages shown by the queue.
const (
	msgSaved     = "Data saved for sync"
	msgSaveError = "Error saving offline data"
	msgSyncError = "Error syncing data"
)

// FlushPolicy decides when drained entries leave the queue.
type FlushPolicy int

const (
	// FlushOnAck keeps entries queued until the Forwarder accepts them.
	FlushOnAck FlushPolicy = iota

	// FlushOptimistic clears the queue as soon as a flush starts. A
	// forwarding failure loses the entries.
	FlushOptimistic
)

// ParseFlushPolicy maps a config value to a FlushPolicy.
func ParseFlushPolicy(s string) (FlushPolicy, error) {
	switch s {
	case model.FlushPolicyAck, "":
		return FlushOnAck, nil
	case model.FlushPolicyOptimistic:
		return FlushOptimistic, nil
	default:
		return 0, fmt.Errorf("unknown flush policy %q", s)
	}
}

func (p FlushPolicy) String() string {
	if p == FlushOptimistic {
		return model.FlushPolicyOptimistic
	}
	return model.FlushPolicyAck
}

// Forwarder delivers drained entries to a remote system.
type Forwarder interface {
	Forward(ctx context.Context, entries []model.OfflineEntry) error
}

// State is what subscribers observe.
type State struct {
	Entries  []model.OfflineEntry
	Online   bool
	Flushing bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithKey sets the storage key.
func WithKey(key string) Option {
	return func(q *Queue) { q.key = key }
}

// WithLogger sets the logger used for fail-open paths.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// WithToasts sets the presenter for user feedback.
func WithToasts(p toast.Presenter) Option {
	return func(q *Queue) { q.toasts = p }
}

// WithMetrics records queue depth and flush results on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithForwarder sets where flushed entries go. Without one a flush
// only drains the queue.
func WithForwarder(f Forwarder) Option {
	return func(q *Queue) { q.forwarder = f }
}

// WithPolicy sets the flush policy. The default is FlushOnAck.
func WithPolicy(p FlushPolicy) Option {
	return func(q *Queue) { q.policy = p }
}

// WithForwardTimeout bounds a single Forward call.
func WithForwardTimeout(d time.Duration) Option {
	return func(q *Queue) { q.timeout = d }
}

// Queue is a FIFO of offline entries mirrored to one storage key.
type Queue struct {
	kv        kvstore.Store
	key       string
	log       *zap.Logger
	toasts    toast.Presenter
	metrics   *metrics.Metrics
	now       func() time.Time
	forwarder Forwarder
	policy    FlushPolicy
	timeout   time.Duration

	// writeMu serializes mutations and their storage writes.
	writeMu sync.Mutex

	mu       sync.RWMutex
	items    []model.OfflineEntry
	online   bool
	flushing bool
	nextID   int
	subs     map[int]func(State)
}

// New creates a Queue backed by kv. It starts out online.
func New(kv kvstore.Store, opts ...Option) *Queue {
	q := &Queue{
		kv:     kv,
		key:    DefaultKey,
		log:    zap.NewNop(),
		toasts: toast.Nop{},
		now:    time.Now,
		policy: FlushOnAck,
		items:  []model.OfflineEntry{},
		online: true,
		subs:   make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Key returns the storage key this queue persists under.
func (q *Queue) Key() string {
	return q.key
}

// Load replaces the in-memory queue with the persisted one. Failures
// are logged and leave the queue empty.
func (q *Queue) Load(ctx context.Context) {
	q.writeMu.Lock()

	loaded := []model.OfflineEntry{}

	raw, ok, err := q.kv.Get(ctx, q.key)
	switch {
	case err != nil:
		q.log.Error("loading offline queue", zap.String("key", q.key), zap.Error(err))
	case ok:
		var decoded []model.OfflineEntry
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			q.log.Error("decoding offline queue", zap.String("key", q.key), zap.Error(err))
		} else if decoded != nil {
			loaded = decoded
		}
	}

	q.setItems(loaded)
	q.writeMu.Unlock()

	q.notify()
}

// IsOnline reports the latest known connectivity state.
func (q *Queue) IsOnline() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.online
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Entries returns a copy of the queue, oldest first.
func (q *Queue) Entries() []model.OfflineEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return cloneEntries(q.items)
}

// State returns a snapshot of the queue and the connectivity flag.
func (q *Queue) State() State {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stateLocked()
}

// Enqueue appends payload stamped with the current time and persists
// the queue. A payload that cannot be encoded is not queued and an
// error toast is shown instead.
func (q *Queue) Enqueue(ctx context.Context, payload map[string]any) model.OfflineEntry {
	entry := model.NewOfflineEntry(payload, q.now())

	if _, err := json.Marshal(entry); err != nil {
		q.log.Error("encoding offline entry", zap.String("key", q.key), zap.Error(err))
		q.toasts.Error(msgSaveError)
		return entry
	}

	q.writeMu.Lock()
	next := append(q.Entries(), entry)
	q.setItems(next)
	q.save(ctx, next)
	q.writeMu.Unlock()

	q.notify()
	q.toasts.Info(msgSaved)
	return entry
}

// Flush drains the queue and returns how many entries it reported.
// An empty queue is left alone: no toast, no write. While one flush
// is in progress a second call returns 0.
func (q *Queue) Flush(ctx context.Context) int {
	q.writeMu.Lock()

	q.mu.Lock()
	if len(q.items) == 0 || q.flushing {
		q.mu.Unlock()
		q.writeMu.Unlock()
		return 0
	}
	batch := cloneEntries(q.items)
	q.flushing = true
	q.mu.Unlock()

	n := len(batch)
	q.toasts.Success(fmt.Sprintf("Syncing %d items...", n))

	optimistic := q.forwarder == nil || q.policy == FlushOptimistic
	if optimistic {
		q.setItems([]model.OfflineEntry{})
		q.clearStored(ctx)
	}
	q.writeMu.Unlock()
	q.notify()

	err := q.forward(ctx, batch)

	q.writeMu.Lock()
	switch {
	case err != nil && optimistic:
		q.metrics.Flushed("dropped")
		q.log.Error("forwarding offline entries; entries dropped",
			zap.Int("count", n), zap.Error(err))
		q.toasts.Error(msgSyncError)
	case err != nil:
		q.metrics.Flushed("failed")
		q.log.Warn("forwarding offline entries; entries kept",
			zap.Int("count", n), zap.Error(err))
		q.toasts.Error(msgSyncError)
	default:
		q.metrics.Flushed("ok")
		if !optimistic {
			q.dropAcked(ctx, n)
		}
	}

	q.mu.Lock()
	q.flushing = false
	q.mu.Unlock()
	q.writeMu.Unlock()

	q.notify()
	return n
}

// HandleStatus records a connectivity observation. Going from offline
// to online triggers one Flush; going offline only updates the flag.
func (q *Queue) HandleStatus(ctx context.Context, s connectivity.Status) {
	online := s.Online()

	q.mu.Lock()
	was := q.online
	q.online = online
	q.mu.Unlock()

	if was == online {
		return
	}

	q.log.Info("connectivity changed", zap.Bool("online", online))
	q.notify()

	if online {
		q.Flush(ctx)
	}
}

// Watch subscribes the queue to m until ctx is done or stop is called.
func (q *Queue) Watch(ctx context.Context, m connectivity.Monitor) (stop func()) {
	unsubscribe := m.Subscribe(func(s connectivity.Status) {
		q.HandleStatus(ctx, s)
	})

	done := make(chan struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() {
			unsubscribe()
			close(done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()
	return stop
}

// Subscribe registers fn to receive the state after every change. fn
// is called once immediately. The returned func removes it.
func (q *Queue) Subscribe(fn func(State)) (cancel func()) {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.subs[id] = fn
	st := q.stateLocked()
	q.mu.Unlock()

	fn(st)

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.subs, id)
	}
}

func (q *Queue) forward(ctx context.Context, batch []model.OfflineEntry) error {
	if q.forwarder == nil {
		return nil
	}
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	return q.forwarder.Forward(ctx, batch)
}

// dropAcked removes the first n entries, keeping anything enqueued
// while the forward was in flight. Caller holds writeMu.
func (q *Queue) dropAcked(ctx context.Context, n int) {
	q.mu.RLock()
	cur := q.items
	q.mu.RUnlock()

	if n > len(cur) {
		n = len(cur)
	}
	rest := cloneEntries(cur[n:])
	q.setItems(rest)

	if len(rest) == 0 {
		q.clearStored(ctx)
		return
	}
	q.save(ctx, rest)
}

// setItems installs next as the queue. Caller holds writeMu.
func (q *Queue) setItems(next []model.OfflineEntry) {
	q.mu.Lock()
	q.items = next
	q.mu.Unlock()
	q.metrics.SetQueueDepth(len(next))
}

// save writes the whole queue. Failures are logged and counted.
func (q *Queue) save(ctx context.Context, items []model.OfflineEntry) {
	data, err := json.Marshal(items)
	if err == nil {
		err = q.kv.Set(ctx, q.key, string(data))
	}
	if err != nil {
		q.metrics.WriteFailed(q.key)
		q.log.Error("saving offline queue",
			zap.String("key", q.key),
			zap.Int("count", len(items)),
			zap.Error(err),
		)
	}
}

// clearStored removes the persisted queue.
func (q *Queue) clearStored(ctx context.Context) {
	if err := q.kv.Remove(ctx, q.key); err != nil {
		q.metrics.WriteFailed(q.key)
		q.log.Error("clearing offline queue", zap.String("key", q.key), zap.Error(err))
	}
}

func (q *Queue) stateLocked() State {
	return State{
		Entries:  cloneEntries(q.items),
		Online:   q.online,
		Flushing: q.flushing,
	}
}

// notify sends the current state to every subscriber. It must be
// called without holding writeMu.
func (q *Queue) notify() {
	q.mu.RLock()
	fns := make([]func(State), 0, len(q.subs))
	for _, fn := range q.subs {
		fns = append(fns, fn)
	}
	st := q.stateLocked()
	q.mu.RUnlock()

	for _, fn := range fns {
		fn(State{Entries: cloneEntries(st.Entries), Online: st.Online, Flushing: st.Flushing})
	}
}

func cloneEntries(in []model.OfflineEntry) []model.OfflineEntry {
	out := make([]model.OfflineEntry, len(in))
	copy(out, in)
	return out
}
