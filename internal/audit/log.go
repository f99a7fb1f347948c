package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"sanastro.app/internal/auth"
	"sanastro.app/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// Event names.
const (
	EventUserApproved  = "user.approved"
	EventUserRejected  = "user.rejected"
	EventUserSignedUp  = "user.signed_up"
	EventEmailVerified = "user.email_verified"
	EventSessionPurged = "session.purged"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and caller context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	attrs := []any{
		slog.String("type", "audit"),
		slog.String("event", event),
		slog.String("ts", time.Now().UTC().Format(time.RFC3339Nano)),
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		attrs = append(attrs, slog.String("actor_auth_id", identity.ID))
	}
	if admin, ok := auth.AdminFromContext(ctx); ok {
		attrs = append(attrs, slog.String("admin_id", admin.ID))
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	attrs = append(attrs, slog.Any("fields", copyFields))

	obs.Logger().InfoContext(ctx, "audit", attrs...)
	return nil
}
