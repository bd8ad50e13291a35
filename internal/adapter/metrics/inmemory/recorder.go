package inmemory

import (
	"sync"
	"time"

	"npcgateway/internal/domain/decision"
)

type Snapshot struct {
	DecisionTotal      uint64            `json:"decision_total"`
	DecisionOK         uint64            `json:"decision_ok"`
	DecisionWarning    uint64            `json:"decision_warning"`
	DecisionError      uint64            `json:"decision_error"`
	ByReason           map[string]uint64 `json:"by_reason"`
	BackendCalls       uint64            `json:"backend_calls"`
	BackendAvgMillis   float64           `json:"backend_avg_ms"`
	BackendMaxMillis   float64           `json:"backend_max_ms"`
	PersistOK          uint64            `json:"persist_ok"`
	PersistFailed      uint64            `json:"persist_failed"`
	BroadcastSent      uint64            `json:"broadcast_delivered"`
	BroadcastFailed    uint64            `json:"broadcast_failed"`
	ObserversConnected int               `json:"observers_connected"`
}

type Recorder struct {
	mu        sync.Mutex
	byStatus  map[decision.Status]uint64
	byReason  map[string]uint64
	calls     uint64
	latency   time.Duration
	maxLat    time.Duration
	persistOK uint64
	persistKO uint64
	sent      uint64
	sendFail  uint64
	observers int
}

func NewRecorder() *Recorder {
	return &Recorder{
		byStatus: map[decision.Status]uint64{},
		byReason: map[string]uint64{},
	}
}

func (r *Recorder) RecordOutcome(status decision.Status, reason decision.Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byStatus[status]++
	if reason != decision.ReasonNone {
		r.byReason[string(reason)]++
	}
}

func (r *Recorder) RecordBackendLatency(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.latency += d
	if d > r.maxLat {
		r.maxLat = d
	}
}

func (r *Recorder) RecordPersist(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.persistKO++
		return
	}
	r.persistOK++
}

func (r *Recorder) RecordBroadcast(delivered, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent += uint64(delivered)
	r.sendFail += uint64(failed)
}

func (r *Recorder) RecordObservers(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = n
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Snapshot{
		DecisionOK:         r.byStatus[decision.StatusOK],
		DecisionWarning:    r.byStatus[decision.StatusWarning],
		DecisionError:      r.byStatus[decision.StatusError],
		ByReason:           make(map[string]uint64, len(r.byReason)),
		BackendCalls:       r.calls,
		BackendMaxMillis:   millis(r.maxLat),
		PersistOK:          r.persistOK,
		PersistFailed:      r.persistKO,
		BroadcastSent:      r.sent,
		BroadcastFailed:    r.sendFail,
		ObserversConnected: r.observers,
	}
	out.DecisionTotal = out.DecisionOK + out.DecisionWarning + out.DecisionError
	if r.calls > 0 {
		out.BackendAvgMillis = millis(r.latency) / float64(r.calls)
	}
	for k, v := range r.byReason {
		out.ByReason[k] = v
	}
	return out
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
