// Package history keeps the locally persisted list of submitted
// attendance records.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"qrcheckin/internal/kv"
	"qrcheckin/internal/qr"
)

const historyKey = "qr_attendance_history"

// Event is a validated attendance submission. LocationName starts absent
// and may be filled in exactly once by the annotator.
type Event struct {
	DeviceID     string       `json:"deviceIdentifier"`
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	SessionID    string       `json:"sessionId"`
	EventType    qr.EventType `json:"eventType"`
	LocationName string       `json:"locationName,omitempty"`
}

// Record is an event plus its submission timestamp, which is the unique
// key within the store. Uniqueness comes from wall-clock resolution, not
// cryptography; RFC3339Nano keeps same-tick collisions implausible.
type Record struct {
	Event
	Timestamp string `json:"timestamp"`
}

// Store persists records as one JSON array in the kv substrate. Each
// mutation rewrites the whole list, so reads never see partial writes.
// Safe for a single logical writer only; concurrent writers are
// last-writer-wins.
type Store struct {
	kv kv.Store
}

// NewStore creates a store over the given substrate.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// List returns all records sorted descending by timestamp. Corrupted
// stored data is discarded and treated as empty.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	raw, ok, err := s.kv.Get(ctx, historyKey)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if !ok || raw == "" {
		return []Record{}, nil
	}
	var records []Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		log.Printf("discarding corrupt history: %v", err)
		_ = s.kv.Delete(ctx, historyKey)
		return []Record{}, nil
	}
	sort.Slice(records, func(i, j int) bool {
		ti, erri := time.Parse(time.RFC3339Nano, records[i].Timestamp)
		tj, errj := time.Parse(time.RFC3339Nano, records[j].Timestamp)
		if erri != nil || errj != nil {
			return records[i].Timestamp > records[j].Timestamp
		}
		return ti.After(tj)
	})
	return records, nil
}

// Append stamps the event with the current time, prepends it, persists
// the full list, and returns the updated list.
func (s *Store) Append(ctx context.Context, event Event) ([]Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	record := Record{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	records = append([]Record{record}, records...)
	if err := s.save(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// Update replaces the record with a matching timestamp in place and
// persists. When no record matches, the list is returned unchanged with
// no error.
func (s *Store) Update(ctx context.Context, updated Record) ([]Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Timestamp == updated.Timestamp {
			records[i] = updated
			if err := s.save(ctx, records); err != nil {
				return nil, err
			}
			break
		}
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, records []Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.kv.Set(ctx, historyKey, string(raw)); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}
