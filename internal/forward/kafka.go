package forward

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	k "github.com/segmentio/kafka-go"

	"github.com/nhle/pmcore/internal/model"
)

// messageWriter is the part of *kafka.Writer the forwarder uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...k.Message) error
	Close() error
}

// Kafka publishes every entry as one message on a topic.
type Kafka struct {
	w messageWriter
}

// NewKafka creates a synchronous writer for topic. A flush is only
// acknowledged once all in-sync replicas have the batch.
func NewKafka(brokers []string, topic string) *Kafka {
	return newKafka(&k.Writer{
		Addr:         k.TCP(brokers...),
		Topic:        topic,
		Balancer:     &k.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: k.RequireAll,
	})
}

func newKafka(w messageWriter) *Kafka {
	return &Kafka{w: w}
}

// Forward writes the batch in one call. The message key is the entry's
// enqueue time in epoch milliseconds.
func (f *Kafka) Forward(ctx context.Context, entries []model.OfflineEntry) error {
	msgs := make([]k.Message, 0, len(entries))
	for _, e := range entries {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding offline entry: %w", err)
		}
		msgs = append(msgs, k.Message{
			Key:   []byte(strconv.FormatInt(e.EnqueuedAt.UnixMilli(), 10)),
			Value: value,
			Time:  e.EnqueuedAt,
		})
	}

	if err := f.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publishing %d offline entries: %w", len(msgs), err)
	}
	return nil
}

func (f *Kafka) Close() error {
	return f.w.Close()
}
