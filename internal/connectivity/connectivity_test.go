package connectivity

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	online  = Status{Connected: true, InternetReachable: true}
	offline = Status{}
)

type collector struct {
	mu  sync.Mutex
	got []Status
}

func (c *collector) add(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, s)
}

func (c *collector) statuses() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Status, len(c.got))
	copy(out, c.got)
	return out
}

func TestStatusOnline(t *testing.T) {
	assert.True(t, online.Online())
	assert.False(t, Status{Connected: true}.Online())
	assert.False(t, Status{InternetReachable: true}.Online())
	assert.Equal(t, "no internet", Status{Connected: true}.String())
}

func TestManualDeliversEverySet(t *testing.T) {
	m := NewManual(online)
	var c collector
	unsubscribe := m.Subscribe(c.add)

	m.Set(offline)
	m.Set(offline)
	assert.Equal(t, online, m.Toggle())

	unsubscribe()
	m.Set(offline)

	assert.Equal(t, []Status{offline, offline, online}, c.statuses())
	assert.Equal(t, offline, m.Status())
}

// scripted returns each status in turn, repeating the last one.
func scripted(seq ...Status) ProbeFunc {
	var mu sync.Mutex
	i := 0
	return func(context.Context) Status {
		mu.Lock()
		defer mu.Unlock()
		s := seq[i]
		if i < len(seq)-1 {
			i++
		}
		return s
	}
}

func TestProberEmitsOnlyOnChange(t *testing.T) {
	p := NewProber("", time.Second,
		WithProbe(scripted(online, online, offline, offline, online)),
		WithInterval(time.Hour),
	)
	var c collector
	p.Subscribe(c.add)

	assert.Equal(t, online, p.Status(), "assumed online before the first probe")

	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool { return len(c.statuses()) == 1 }, time.Second, time.Millisecond)

	for i := 0; i < 4; i++ {
		p.Refresh()
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(c.statuses()) == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []Status{online, offline, online}, c.statuses())
}

func TestProberStopIsIdempotent(t *testing.T) {
	p := NewProber("", time.Second, WithProbe(scripted(online)))
	p.Stop()

	p.Start()
	p.Start()
	p.Stop()
	p.Stop()
}

func TestNetProbeDialsAddress(t *testing.T) {
	if !interfaceUp() {
		t.Skip("no non-loopback interface")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	probe := NetProbe(addr, time.Second)
	assert.Equal(t, online, probe(context.Background()))

	require.NoError(t, ln.Close())
	assert.Equal(t, Status{Connected: true}, probe(context.Background()))
}
