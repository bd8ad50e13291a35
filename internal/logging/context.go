package logging

import (
	"context"

	"go.uber.org/zap"
)

type requestCtxKey struct{}
type npcCtxKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

func WithNPC(ctx context.Context, npcID string) context.Context {
	return context.WithValue(ctx, npcCtxKey{}, npcID)
}

func NPCFromContext(ctx context.Context) string {
	id, _ := ctx.Value(npcCtxKey{}).(string)
	return id
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 2)
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := NPCFromContext(ctx); id != "" {
		fields = append(fields, zap.String("npc_id", id))
	}
	return fields
}
