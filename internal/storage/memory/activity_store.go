// Package memory provides an in-memory ActivityStore used by tests and the
// --use-memory server mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cypher-activity/internal/domain"
	"cypher-activity/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu     sync.RWMutex
	events []*domain.ActivityEvent // insertion order
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// InsertBulk adds all events in one batch, preserving input order.
func (s *ActivityStore) InsertBulk(_ context.Context, events []*domain.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, ev := range events {
		if err := storage.ValidateEvent(ev); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		copy := *ev
		copy.AddressInvolved = append([]string(nil), ev.AddressInvolved...)
		s.events = append(s.events, &copy)
	}
	return nil
}

// MarkRolledBack flips rollback=true for events at the block height.
func (s *ActivityStore) MarkRolledBack(_ context.Context, blockHeight int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flipped int64
	for _, ev := range s.events {
		if ev.BlockHeight == blockHeight && !ev.Rollback {
			ev.Rollback = true
			flipped++
		}
	}
	return flipped, nil
}

// ListRecent retrieves non-rolled-back events, newest first.
func (s *ActivityStore) ListRecent(_ context.Context, address string, limit int) ([]*domain.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActivityEvent
	for _, ev := range s.events {
		if ev.Rollback {
			continue
		}
		if address != "" && !involves(ev, address) {
			continue
		}
		copy := *ev
		copy.AddressInvolved = append([]string(nil), ev.AddressInvolved...)
		result = append(result, &copy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Summarize counts non-rolled-back events involving the address since the
// given instant.
func (s *ActivityStore) Summarize(_ context.Context, address string, since time.Time) (domain.ActivitySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.EventType]int64)
	for _, ev := range s.events {
		if ev.Rollback || ev.Timestamp.Before(since) || !involves(ev, address) {
			continue
		}
		counts[ev.EventType]++
	}
	return domain.SummaryFromCounts(counts), nil
}

// Ping always succeeds for the in-memory store.
func (s *ActivityStore) Ping(_ context.Context) error {
	return nil
}

func involves(ev *domain.ActivityEvent, address string) bool {
	for _, a := range ev.AddressInvolved {
		if a == address {
			return true
		}
	}
	return false
}
