// Package auditcontext carries who-did-it details from the transport layer to
// the audit sink.
package auditcontext

import (
	"context"
	"strings"
)

type contextKey string

const (
	requestIDKey contextKey = "audit_request_id"
	actorKey     contextKey = "audit_actor"
)

// Actor identifies the caller recorded on audit rows.
type Actor struct {
	Type string
	ID   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithActor stores actor on ctx. An actor without a type is ignored.
func WithActor(ctx context.Context, actor Actor) context.Context {
	actor.Type = strings.TrimSpace(actor.Type)
	actor.ID = strings.TrimSpace(actor.ID)
	if actor.Type == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (string, string) {
	actor, _ := ctx.Value(actorKey).(Actor)
	return actor.Type, actor.ID
}
