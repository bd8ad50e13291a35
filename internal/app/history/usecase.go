package history

import (
	"context"
	"errors"
	"fmt"

	"npcgateway/internal/app/ports"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000

	unknownRequester = "unknown"
)

var ErrInvalidRequest = errors.New("invalid history request")

type UseCase struct {
	Store        ports.DecisionStore
	DefaultLimit int
	MaxLimit     int
}

func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	if req.Limit < 0 {
		return Response{}, fmt.Errorf("%w: limit must not be negative", ErrInvalidRequest)
	}
	limit := u.clamp(req.Limit)

	records, err := u.Store.QueryRecent(ctx, limit)
	if err != nil {
		return Response{}, fmt.Errorf("query recent decisions: %w", err)
	}
	if len(records) > limit {
		records = records[:limit]
	}

	out := Response{Groups: map[string][]Entry{}}
	for _, r := range records {
		key := r.RequesterID
		if key == "" {
			key = unknownRequester
		}
		if _, seen := out.Groups[key]; !seen {
			out.Order = append(out.Order, key)
		}
		out.Groups[key] = append(out.Groups[key], toEntry(key, r))
	}
	return out, nil
}

func (u UseCase) clamp(limit int) int {
	def := u.DefaultLimit
	if def <= 0 {
		def = DefaultLimit
	}
	ceiling := u.MaxLimit
	if ceiling <= 0 {
		ceiling = MaxLimit
	}
	if limit == 0 {
		limit = def
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit
}

func toEntry(key string, r ports.DecisionRecord) Entry {
	content := r.Content
	if len(content) == 0 {
		content = []byte("null")
	}
	return Entry{
		ID:          r.ID,
		NPCID:       key,
		NPCName:     r.RequesterName,
		Timestamp:   r.Timestamp.UTC(),
		SceneReport: r.SceneReport,
		Status:      string(r.Status),
		Content:     content,
	}
}
