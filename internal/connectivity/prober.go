package connectivity

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultInterval = 5 * time.Second
	defaultTimeout  = 3 * time.Second
)

// ProbeFunc performs one connectivity check.
type ProbeFunc func(ctx context.Context) Status

// Prober polls the network in the background and notifies subscribers
// when the status changes.
type Prober struct {
	probe    ProbeFunc
	interval time.Duration
	log      *zap.Logger
	subs     listeners

	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}

	mu      sync.Mutex
	status  Status
	known   bool
	running bool
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithProbe replaces the network check.
func WithProbe(fn ProbeFunc) ProberOption {
	return func(p *Prober) { p.probe = fn }
}

// WithInterval sets how often the network is checked.
func WithInterval(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger for status transitions.
func WithLogger(l *zap.Logger) ProberOption {
	return func(p *Prober) { p.log = l }
}

// NewProber creates a Prober that dials addr to decide reachability.
// It does nothing until Start is called.
func NewProber(addr string, timeout time.Duration, opts ...ProberOption) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	p := &Prober{
		probe:     NetProbe(addr, timeout),
		interval:  defaultInterval,
		log:       zap.NewNop(),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers fn for status changes.
func (p *Prober) Subscribe(fn func(Status)) func() {
	return p.subs.add(fn)
}

// Status returns the most recent observation. Before the first probe
// completes the device is assumed online.
func (p *Prober) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.known {
		return Status{Connected: true, InternetReachable: true}
	}
	return p.status
}

// Start launches the polling goroutine. The first probe runs
// immediately. Calling Start twice has no effect.
func (p *Prober) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()
}

// Stop halts polling and waits for an in-flight probe to finish. A
// stopped Prober cannot be restarted.
func (p *Prober) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh
}

// Refresh asks for an immediate probe without waiting for the ticker.
func (p *Prober) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A probe is already pending.
	}
}

func (p *Prober) loop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.check()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.check()
		case <-p.triggerCh:
			p.check()
		}
	}
}

// check runs one probe and emits the result if it differs from the
// previous one.
func (p *Prober) check() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	s := p.probe(ctx)
	cancel()

	p.mu.Lock()
	changed := !p.known || s != p.status
	p.status = s
	p.known = true
	p.mu.Unlock()

	if !changed {
		return
	}
	p.log.Info("connectivity changed",
		zap.Bool("connected", s.Connected),
		zap.Bool("internet_reachable", s.InternetReachable),
	)
	p.subs.emit(s)
}

// NetProbe returns a ProbeFunc that reports Connected when a
// non-loopback interface is up and InternetReachable when a TCP dial
// to addr succeeds within timeout.
func NetProbe(addr string, timeout time.Duration) ProbeFunc {
	return func(ctx context.Context) Status {
		s := Status{Connected: interfaceUp()}
		if !s.Connected || addr == "" {
			return s
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return s
		}
		_ = conn.Close()
		s.InternetReachable = true
		return s
	}
}

func interfaceUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 {
			return true
		}
	}
	return false
}
