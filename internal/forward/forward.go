// Package forward delivers drained offline entries to a remote system.
package forward

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/nhle/pmcore/internal/kvstore"
	"github.com/nhle/pmcore/internal/model"
)

// ErrNotConfigured is returned when a forwarder is selected but its
// required settings are missing.
var ErrNotConfigured = errors.New("forwarder not configured")

// Forwarder sends a batch of entries and releases its connection on
// Close.
type Forwarder interface {
	Forward(ctx context.Context, entries []model.OfflineEntry) error
	io.Closer
}

// New builds the forwarder selected by cfg.Offline.Forwarder. It
// returns nil for "none". secrets supplies the IMAP password.
func New(cfg *model.AppConfig, log *zap.Logger, secrets kvstore.Store) (Forwarder, error) {
	switch cfg.Offline.Forwarder {
	case model.ForwarderNone:
		return nil, nil
	case model.ForwarderLog:
		return NewLog(log), nil
	case model.ForwarderKafka:
		k := cfg.Forward.Kafka
		if len(k.Brokers) == 0 || k.Topic == "" {
			return nil, fmt.Errorf("kafka forwarder: brokers and topic required: %w", ErrNotConfigured)
		}
		return NewKafka(k.Brokers, k.Topic), nil
	case model.ForwarderIMAP:
		m := cfg.Forward.IMAP
		if m.Host == "" || m.Username == "" {
			return nil, fmt.Errorf("imap forwarder: host and username required: %w", ErrNotConfigured)
		}
		if secrets == nil {
			return nil, fmt.Errorf("imap forwarder: no secret store: %w", ErrNotConfigured)
		}
		return NewMailbox(m, secrets), nil
	default:
		return nil, fmt.Errorf("unknown forwarder %q", cfg.Offline.Forwarder)
	}
}

// Log writes each entry to a logger and always succeeds.
type Log struct {
	log *zap.Logger
}

// NewLog returns a forwarder that logs through l.
func NewLog(l *zap.Logger) *Log {
	if l == nil {
		l = zap.NewNop()
	}
	return &Log{log: l}
}

// Forward logs one line per entry.
func (f *Log) Forward(_ context.Context, entries []model.OfflineEntry) error {
	for _, e := range entries {
		f.log.Info("syncing offline entry",
			zap.Time("enqueued_at", e.EnqueuedAt),
			zap.Any("payload", e.Payload),
		)
	}
	return nil
}

func (f *Log) Close() error {
	return nil
}
