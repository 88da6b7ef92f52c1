// Package connectivity reports whether the device can reach the network.
package connectivity

import "sync"

// Status is one connectivity observation.
type Status struct {
	// Connected is true when some network interface is up.
	Connected bool

	// InternetReachable is true when a remote host answered.
	InternetReachable bool
}

// Online reports whether both conditions hold.
func (s Status) Online() bool {
	return s.Connected && s.InternetReachable
}

func (s Status) String() string {
	switch {
	case s.Online():
		return "online"
	case s.Connected:
		return "no internet"
	default:
		return "offline"
	}
}

// Monitor delivers connectivity changes to subscribers.
type Monitor interface {
	Subscribe(fn func(Status)) (unsubscribe func())
}

// listeners is the subscriber set shared by the monitors in this package.
type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Status)
}

func (l *listeners) add(fn func(Status)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fns == nil {
		l.fns = make(map[int]func(Status))
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

func (l *listeners) emit(s Status) {
	l.mu.Lock()
	fns := make([]func(Status), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Manual is a Monitor driven by explicit Set calls. The TUI uses it to
// simulate going offline.
type Manual struct {
	subs listeners

	mu     sync.Mutex
	status Status
}

// NewManual returns a Manual monitor starting at initial.
func NewManual(initial Status) *Manual {
	return &Manual{status: initial}
}

// Subscribe registers fn. It is not called with the current status.
func (m *Manual) Subscribe(fn func(Status)) func() {
	return m.subs.add(fn)
}

// Status returns the last value passed to Set.
func (m *Manual) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Set records s and delivers it to every subscriber, even when it
// equals the previous value.
func (m *Manual) Set(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()

	m.subs.emit(s)
}

// Toggle flips between fully online and fully offline and returns the
// new status.
func (m *Manual) Toggle() Status {
	next := Status{Connected: true, InternetReachable: true}
	if m.Status().Online() {
		next = Status{}
	}
	m.Set(next)
	return next
}
