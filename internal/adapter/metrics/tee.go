// Package metrics combines decision metric recorders.
package metrics

import (
	"time"

	"npcgateway/internal/app/ports"
	"npcgateway/internal/domain/decision"
)

// Tee forwards every observation to each recorder in order.
type Tee []ports.DecisionMetrics

func (t Tee) RecordOutcome(status decision.Status, reason decision.Reason) {
	for _, m := range t {
		m.RecordOutcome(status, reason)
	}
}

func (t Tee) RecordBackendLatency(d time.Duration) {
	for _, m := range t {
		m.RecordBackendLatency(d)
	}
}

func (t Tee) RecordPersist(err error) {
	for _, m := range t {
		m.RecordPersist(err)
	}
}

func (t Tee) RecordBroadcast(delivered, failed int) {
	for _, m := range t {
		m.RecordBroadcast(delivered, failed)
	}
}

func (t Tee) RecordObservers(n int) {
	for _, m := range t {
		m.RecordObservers(n)
	}
}
