package ports

import (
	"time"

	"npcgateway/internal/domain/decision"
)

type DecisionMetrics interface {
	RecordOutcome(status decision.Status, reason decision.Reason)
	RecordBackendLatency(d time.Duration)
	RecordPersist(err error)
	RecordBroadcast(delivered, failed int)
	RecordObservers(n int)
}
