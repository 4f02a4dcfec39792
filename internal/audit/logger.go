package audit

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	Timestamp    time.Time
	Action       string
	Actor        string
	ResourceType string
	ResourceID   string
	IPAddress    string
	Status       string
	Details      map[string]string
}

// Logger writes audit entries for privileged operations. It is kept apart
// from the application logger so the trail can be shipped separately.
type Logger struct {
	output zerolog.Logger
}

// NewLogger creates an audit logger writing JSON lines to w (stdout if nil).
func NewLogger(w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		output: zerolog.New(w).With().Str("log", "audit").Logger(),
	}
}

// NewLoggerWithZerolog wraps an existing zerolog logger.
func NewLoggerWithZerolog(logger zerolog.Logger) *Logger {
	return &Logger{output: logger}
}

// Nop returns a logger that discards every entry.
func Nop() *Logger {
	return &Logger{output: zerolog.Nop()}
}

// Log writes entry. A zero Timestamp is filled with the current time.
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	event := l.output.Log().
		Time("timestamp", entry.Timestamp).
		Str("action", entry.Action).
		Str("actor", entry.Actor).
		Str("status", entry.Status)
	if entry.ResourceType != "" {
		event = event.Str("resource_type", entry.ResourceType)
	}
	if entry.ResourceID != "" {
		event = event.Str("resource_id", entry.ResourceID)
	}
	if entry.IPAddress != "" {
		event = event.Str("ip_address", entry.IPAddress)
	}
	if len(entry.Details) > 0 {
		dict := zerolog.Dict()
		for k, v := range entry.Details {
			dict = dict.Str(k, v)
		}
		event = event.Dict("details", dict)
	}
	event.Send()
}

// LogSuccess records a successful operation. The client IP is taken from ctx
// when the request middleware stored one.
func (l *Logger) LogSuccess(ctx context.Context, action, actor, resourceType, resourceID string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ClientIPFromContext(ctx),
		Status:       StatusSuccess,
		Details:      details,
	})
}

// LogFailure records a denied or failed operation.
func (l *Logger) LogFailure(ctx context.Context, action, actor string, details map[string]string) {
	l.Log(Entry{
		Action:    action,
		Actor:     actor,
		IPAddress: ClientIPFromContext(ctx),
		Status:    StatusFailure,
		Details:   details,
	})
}

type contextKey string

const clientIPKey contextKey = "auditClientIP"

// WithClientIP stores the caller's address for later audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
