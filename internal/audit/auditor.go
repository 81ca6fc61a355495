// Package audit writes an audit trail of repository actions: who did what to
// which record type, through which statement, and with what outcome.
// Parameter values are never logged; a SHA-256 digest identifies them.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Level defines which events are recorded.
type Level int

const (
	// None disables audit logging.
	None Level = iota
	// Writes records INSERT, UPDATE and DELETE statements and rejections.
	Writes
	// All records reads as well.
	All
)

// ParseLevel parses "none", "writes" or "all".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "writes":
		return Writes, nil
	case "all":
		return All, nil
	default:
		return None, fmt.Errorf("audit: unknown level %q", s)
	}
}

// Event is one audited statement or rejected action.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	User         string    `json:"user,omitempty"`
	ClientIP     string    `json:"client_ip,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Entity       string    `json:"entity,omitempty"`
	Action       string    `json:"action,omitempty"`
	Operation    string    `json:"operation,omitempty"` // SELECT, INSERT, UPDATE, DELETE
	Table        string    `json:"table,omitempty"`
	SQL          string    `json:"sql,omitempty"`
	ParamsHash   string    `json:"params_hash,omitempty"`
	AffectedRows int64     `json:"affected_rows"`
	Success      bool      `json:"success"`
	Rejected     bool      `json:"rejected,omitempty"`
	Error        string    `json:"error,omitempty"`
	Duration     int64     `json:"duration_ms,omitempty"`
}

// Auditor writes audit events to an slog.Logger.
type Auditor struct {
	logger *slog.Logger
	level  Level
}

// New creates an auditor. A nil logger disables it.
func New(logger *slog.Logger, level Level) *Auditor {
	return &Auditor{
		logger: logger,
		level:  level,
	}
}

// Record completes e with the timestamp and context metadata and writes it
// when the level admits it.
func (a *Auditor) Record(ctx context.Context, e Event) {
	if !a.shouldLog(e) {
		return
	}

	e.Timestamp = time.Now().UTC()
	e.User = User(ctx)
	e.ClientIP = ClientIP(ctx)
	e.RequestID = RequestID(ctx)
	a.logEvent(e)
}

func (a *Auditor) shouldLog(e Event) bool {
	if a == nil || a.logger == nil || a.level == None {
		return false
	}
	if a.level == All || e.Rejected {
		return true
	}
	switch e.Operation {
	case "INSERT", "UPDATE", "DELETE":
		return true
	default:
		return false
	}
}

// logEvent writes Info for successes and Warn for failures and rejections.
func (a *Auditor) logEvent(e Event) {
	logFunc := a.logger.Info
	if !e.Success {
		logFunc = a.logger.Warn
	}

	logFunc("audit_event",
		"timestamp", e.Timestamp,
		"user", e.User,
		"client_ip", e.ClientIP,
		"request_id", e.RequestID,
		"entity", e.Entity,
		"action", e.Action,
		"operation", e.Operation,
		"table", e.Table,
		"sql", e.SQL,
		"params_hash", e.ParamsHash,
		"affected_rows", e.AffectedRows,
		"success", e.Success,
		"rejected", e.Rejected,
		"error", e.Error,
		"duration_ms", e.Duration,
	)
}

// HashParams digests named parameters in key order, so equal parameter sets
// hash equally regardless of map iteration order.
func HashParams(params map[string]interface{}) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		_, _ = fmt.Fprintf(h, "%s=%v;", k, params[k]) // hash.Hash.Write never returns error
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Context keys for audit metadata
type contextKey string

const (
	userKey      contextKey = "entities:user"
	clientIPKey  contextKey = "entities:client_ip"
	requestIDKey contextKey = "entities:request_id"
)

// WithUser adds user information to the context for audit logging.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithClientIP adds client IP to the context for audit logging.
func WithClientIP(ctx context.Context, clientIP string) context.Context {
	return context.WithValue(ctx, clientIPKey, clientIP)
}

// WithRequestID adds request ID to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// User returns the user stored by WithUser.
func User(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

// ClientIP returns the client IP stored by WithClientIP.
func ClientIP(ctx context.Context) string {
	clientIP, _ := ctx.Value(clientIPKey).(string)
	return clientIP
}

// RequestID returns the request ID stored by WithRequestID.
func RequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}
