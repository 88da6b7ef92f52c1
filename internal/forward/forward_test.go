package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	k "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/pmcore/internal/kvstore"
	"github.com/nhle/pmcore/internal/model"
)

func sampleEntries() []model.OfflineEntry {
	return []model.OfflineEntry{
		{Payload: map[string]any{"note": "first"}, EnqueuedAt: time.UnixMilli(1_700_000_000_001)},
		{Payload: map[string]any{"note": "second"}, EnqueuedAt: time.UnixMilli(1_700_000_000_002)},
	}
}

type fakeWriter struct {
	msgs   []k.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...k.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestLogForwarder(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	f := NewLog(zap.New(core))

	require.NoError(t, f.Forward(context.Background(), sampleEntries()))
	assert.Equal(t, 2, logs.FilterMessage("syncing offline entry").Len())
	assert.NoError(t, f.Close())
}

func TestKafkaForwarderOneMessagePerEntry(t *testing.T) {
	w := &fakeWriter{}
	f := newKafka(w)

	require.NoError(t, f.Forward(context.Background(), sampleEntries()))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "1700000000001", string(w.msgs[0].Key))
	var value map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &value))
	assert.Equal(t, "second", value["note"])
	assert.Equal(t, float64(1_700_000_000_002), value["timestamp"])

	require.NoError(t, f.Close())
	assert.True(t, w.closed)
}

func TestKafkaForwarderWrapsError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	f := newKafka(w)

	err := f.Forward(context.Background(), sampleEntries())
	require.Error(t, err)
	assert.ErrorIs(t, err, w.err)
}

func TestComposeMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	raw, err := ComposeMessage("", "me@example.com", sampleEntries(), at)
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "pmcore offline sync: 2 items", subject)

	from, err := mr.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "me@example.com", from[0].Address)

	date, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, at.Equal(date))

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)

	var entries []model.OfflineEntry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Payload["note"])
}

func TestMailboxRequiresPassword(t *testing.T) {
	f := NewMailbox(model.IMAPConfig{
		Host:        "imap.example.com",
		Port:        "993",
		Username:    "me@example.com",
		PasswordKey: "imap-password",
		Mailbox:     "Outbox",
	}, kvstore.NewMemoryStore())

	err := f.Forward(context.Background(), sampleEntries())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMailboxHonoursContextDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	// Accept and never answer.
	held := make(chan net.Conn, 8)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			held <- conn
		}
	}()
	t.Cleanup(func() {
		for {
			select {
			case conn := <-held:
				_ = conn.Close()
			default:
				return
			}
		}
	})

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	secrets := kvstore.NewMemoryStore()
	require.NoError(t, secrets.Set(context.Background(), "imap-password", "secret"))

	for _, useTLS := range []bool{true, false} {
		f := NewMailbox(model.IMAPConfig{
			Host:        host,
			Port:        port,
			Username:    "me@example.com",
			PasswordKey: "imap-password",
			TLS:         useTLS,
			Mailbox:     "Outbox",
		}, secrets)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		start := time.Now()
		err := f.Forward(ctx, sampleEntries())
		cancel()

		assert.Error(t, err, "tls=%v", useTLS)
		assert.Less(t, time.Since(start), 5*time.Second, "tls=%v", useTLS)
	}
}

func TestNewSelectsForwarder(t *testing.T) {
	secrets := kvstore.NewMemoryStore()

	t.Run("none", func(t *testing.T) {
		cfg := model.DefaultAppConfig()
		cfg.Offline.Forwarder = model.ForwarderNone
		f, err := New(cfg, nil, secrets)
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("log", func(t *testing.T) {
		cfg := model.DefaultAppConfig()
		f, err := New(cfg, zap.NewNop(), secrets)
		require.NoError(t, err)
		assert.IsType(t, &Log{}, f)
	})

	t.Run("kafka without brokers", func(t *testing.T) {
		cfg := model.DefaultAppConfig()
		cfg.Offline.Forwarder = model.ForwarderKafka
		_, err := New(cfg, nil, secrets)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("kafka", func(t *testing.T) {
		cfg := model.DefaultAppConfig()
		cfg.Offline.Forwarder = model.ForwarderKafka
		cfg.Forward.Kafka.Brokers = []string{"localhost:9092"}
		f, err := New(cfg, nil, secrets)
		require.NoError(t, err)
		assert.IsType(t, &Kafka{}, f)
		assert.NoError(t, f.Close())
	})

	t.Run("imap without secrets", func(t *testing.T) {
		cfg := model.DefaultAppConfig()
		cfg.Offline.Forwarder = model.ForwarderIMAP
		cfg.Forward.IMAP.Host = "imap.example.com"
		cfg.Forward.IMAP.Username = "me"
		_, err := New(cfg, nil, nil)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("imap", func(t *testing.T) {
		cfg := model.DefaultAppConfig()
		cfg.Offline.Forwarder = model.ForwarderIMAP
		cfg.Forward.IMAP.Host = "imap.example.com"
		cfg.Forward.IMAP.Username = "me"
		f, err := New(cfg, nil, secrets)
		require.NoError(t, err)
		assert.IsType(t, &Mailbox{}, f)
	})
}
