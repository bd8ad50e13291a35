package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"npcgateway/internal/app/ports"

	"github.com/oklog/ulid/v2"
)

// Store keeps decision records in process memory. It is the default when no
// database is configured; records are lost on restart.
type Store struct {
	mu      sync.RWMutex
	records []ports.DecisionRecord
	entropy *ulid.MonotonicEntropy
}

func NewStore() *Store {
	return &Store{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (s *Store) Append(ctx context.Context, record ports.DecisionRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	record.Content = append([]byte(nil), record.Content...)
	s.records = append(s.records, record)
	return record.ID, nil
}

func (s *Store) QueryRecent(ctx context.Context, limit int) ([]ports.DecisionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]ports.DecisionRecord, len(s.records))
	copy(out, s.records)
	s.mu.RUnlock()

	// ids are monotonic, so they break timestamp ties in insertion order
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
