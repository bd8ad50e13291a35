package decide

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"npcgateway/internal/app/ports"
	"npcgateway/internal/domain/decision"
)

type stubSummarizer struct {
	report string
	err    error
	panic  bool
}

func (s stubSummarizer) Summarize(_ json.RawMessage) (string, error) {
	if s.panic {
		panic("nil map in snapshot")
	}
	return s.report, s.err
}

type stubBackend struct {
	mu       sync.Mutex
	text     string
	err      error
	delay    time.Duration
	requests []ports.BackendRequest
}

func (b *stubBackend) Generate(_ context.Context, req ports.BackendRequest) (ports.BackendReply, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	return ports.BackendReply{Text: b.text}, b.err
}

func (b *stubBackend) last() ports.BackendRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

type ctxBackend struct{}

func (ctxBackend) Generate(ctx context.Context, _ ports.BackendRequest) (ports.BackendReply, error) {
	<-ctx.Done()
	return ports.BackendReply{}, ctx.Err()
}

type stubMetrics struct {
	mu       sync.Mutex
	outcomes []decision.Status
	reasons  []decision.Reason
	latency  int
}

func (m *stubMetrics) RecordOutcome(status decision.Status, reason decision.Reason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, status)
	m.reasons = append(m.reasons, reason)
}

func (m *stubMetrics) RecordBackendLatency(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency++
}

func (m *stubMetrics) RecordPersist(error)       {}
func (m *stubMetrics) RecordBroadcast(int, int) {}
func (m *stubMetrics) RecordObservers(int)      {}

var errBackendDown = errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}
