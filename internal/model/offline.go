package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampField is the key the queue owns inside a persisted entry.
const timestampField = "timestamp"

// OfflineEntry is a unit of deferred work. The queue never interprets
// Payload; it only stamps EnqueuedAt.
type OfflineEntry struct {
	Payload    map[string]any
	EnqueuedAt time.Time
}

// NewOfflineEntry copies payload and stamps it with at. A "timestamp"
// key in payload is dropped because the entry owns that field.
func NewOfflineEntry(payload map[string]any, at time.Time) OfflineEntry {
	p := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == timestampField {
			continue
		}
		p[k] = v
	}
	return OfflineEntry{Payload: p, EnqueuedAt: at}
}

// MarshalJSON flattens the payload fields to the top level and adds
// the enqueue time as epoch milliseconds under "timestamp".
func (e OfflineEntry) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		flat[k] = v
	}
	flat[timestampField] = e.EnqueuedAt.UnixMilli()
	return json.Marshal(flat)
}

// UnmarshalJSON reverses MarshalJSON. A missing or non-numeric
// timestamp leaves EnqueuedAt zero.
func (e *OfflineEntry) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("decoding offline entry: %w", err)
	}
	if flat == nil {
		return fmt.Errorf("decoding offline entry: expected object")
	}

	e.EnqueuedAt = time.Time{}
	if ts, ok := flat[timestampField].(float64); ok {
		e.EnqueuedAt = time.UnixMilli(int64(ts))
	}
	delete(flat, timestampField)
	e.Payload = flat

	return nil
}
