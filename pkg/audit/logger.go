package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/syra-platform/authcore/pkg/contextkeys"
	"github.com/syra-platform/authcore/pkg/observability"
)

// Logger is the interface for audit event persistence
type Logger interface {
	// Log writes a single audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered events
	Close() error
}

// NoopLogger discards every event. Used when auditing is disabled.
type NoopLogger struct{}

func (NoopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (NoopLogger) Close() error                                { return nil }

// MultiLogger fans events out to several loggers. Every logger is attempted;
// the first error is returned after all have run.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger writing to all of the given loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var first error
	for _, l := range m.loggers {
		if err := l.Log(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiLogger) Close() error {
	var first error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Sink is the write path the guards and the grant workflow use. It stamps
// id/timestamp/request-id, counts the event, and swallows logger failures.
type Sink struct {
	logger  Logger
	log     *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewSink wraps logger. log is required; metrics may be nil.
func NewSink(logger Logger, log *observability.Logger, metrics *observability.Metrics) *Sink {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Sink{logger: logger, log: log, metrics: metrics, now: time.Now}
}

// Record persists event best-effort. It never returns an error: a failed
// write is logged and counted, and the caller proceeds as if it succeeded.
func (s *Sink) Record(ctx context.Context, event *Event) {
	if event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = contextkeys.GetRequestID(ctx)
	}
	if s.metrics != nil {
		s.metrics.AuditEventsTotal.WithLabelValues(string(event.EventType)).Inc()
	}
	if err := s.logger.Log(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.AuditWriteErrors.Inc()
		}
		s.log.WithError(err).
			WithField("eventType", string(event.EventType)).
			Warn("audit write failed")
	}
}

// RecordRequest is Record with the request context (ip, user agent, method,
// path) filled in from r.
func (s *Sink) RecordRequest(ctx context.Context, r *http.Request, event *Event) {
	if r != nil {
		event.IPAddress = ClientIP(r)
		event.UserAgent = r.UserAgent()
		event.Method = r.Method
		event.Path = r.URL.Path
	}
	s.Record(ctx, event)
}

// Close closes the underlying logger.
func (s *Sink) Close() error { return s.logger.Close() }

// ClientIP extracts the client address, honoring forwarding proxies.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
