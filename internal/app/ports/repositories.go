package ports

import (
	"context"
	"encoding/json"
	"time"

	"npcgateway/internal/domain/decision"
)

// DecisionRecord is one persisted request/outcome exchange. Records are append-only.
type DecisionRecord struct {
	ID            string
	RequesterID   string
	RequesterName string
	Timestamp     time.Time
	SceneReport   string
	Status        decision.Status
	Content       json.RawMessage
}

type DecisionStore interface {
	Append(ctx context.Context, record DecisionRecord) (string, error)
	// QueryRecent returns at most limit records, newest first.
	QueryRecent(ctx context.Context, limit int) ([]DecisionRecord, error)
}
