// Package audit records append-only audit events. Writes are fire-and-forget:
// they run off the caller's goroutine and never fail the operation being audited.
package audit

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/lubricentro/internal/db"
	"github.com/ukydev/lubricentro/internal/metrics"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/requestid"
)

// Publisher mirrors audit events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, event models.AuditEvent) error
	Close() error
}

// Logger writes audit events to the store, the console and an optional broker.
type Logger struct {
	store     db.AuditCollection
	publisher Publisher
	log       log.FieldLogger
	timeout   time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

// Option configures a Logger.
type Option func(*Logger)

// WithPublisher mirrors events to p.
func WithPublisher(p Publisher) Option {
	return func(l *Logger) { l.publisher = p }
}

// WithTimeout bounds each background write.
func WithTimeout(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithFieldLogger replaces the console logger.
func WithFieldLogger(fl log.FieldLogger) Option {
	return func(l *Logger) { l.log = fl }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// NewLogger creates an audit logger backed by store.
func NewLogger(store db.AuditCollection, opts ...Option) *Logger {
	l := &Logger{
		store:   store,
		log:     log.StandardLogger(),
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log stamps the event, mirrors it to the console and writes it in the background.
func (l *Logger) Log(ctx context.Context, event models.AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	if event.Severity == "" {
		event.Severity = models.SeverityInfo
	}
	if event.RequestID == "" {
		event.RequestID = requestid.FromContext(ctx)
	}

	l.mirror(event)
	metrics.AuditEvents.WithLabelValues(string(event.Type)).Inc()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				l.log.WithField("panic", r).Error("Audit write panicked")
			}
		}()

		writeCtx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()

		if l.store != nil {
			if err := l.store.InsertAuditEvent(writeCtx, &event); err != nil {
				metrics.AuditWriteFailures.WithLabelValues("store").Inc()
				l.log.WithError(err).WithField("type", event.Type).Error("Failed to write audit event")
			}
		}
		if l.publisher != nil {
			if err := l.publisher.Publish(writeCtx, event); err != nil {
				metrics.AuditWriteFailures.WithLabelValues("broker").Inc()
				l.log.WithError(err).WithField("type", event.Type).Warn("Failed to publish audit event")
			}
		}
	}()
}

// Wait blocks until in-flight writes finish or ctx is done.
func (l *Logger) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending writes and closes the publisher.
func (l *Logger) Close(ctx context.Context) error {
	err := l.Wait(ctx)
	if l.publisher != nil {
		if cerr := l.publisher.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (l *Logger) mirror(event models.AuditEvent) {
	entry := l.log.WithFields(log.Fields{
		"audit":          true,
		"type":           event.Type,
		"severity":       event.Severity,
		"actor_id":       event.ActorID,
		"lubricentro_id": event.LubricentroID,
		"request_id":     event.RequestID,
	})
	if len(event.Metadata) > 0 {
		entry = entry.WithField("metadata", event.Metadata)
	}
	switch event.Severity {
	case models.SeverityCritical, models.SeverityError:
		entry.Error(event.Message)
	case models.SeverityWarning:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}
}

// Event builds an audit event attributed to actor. A nil actor means the system.
func Event(eventType models.EventType, severity models.Severity, actor *models.Claims, lubricentroID, message string, metadata map[string]interface{}) models.AuditEvent {
	e := models.AuditEvent{
		Type:          eventType,
		Severity:      severity,
		LubricentroID: lubricentroID,
		Message:       message,
		Metadata:      metadata,
	}
	if actor != nil {
		e.ActorID = actor.UserID
		e.ActorRole = actor.Role
		if e.LubricentroID == "" {
			e.LubricentroID = actor.LubricentroID
		}
	}
	return e
}

// Info records an informational event.
func (l *Logger) Info(ctx context.Context, eventType models.EventType, actor *models.Claims, lubricentroID, message string, metadata map[string]interface{}) {
	l.Log(ctx, Event(eventType, models.SeverityInfo, actor, lubricentroID, message, metadata))
}

// ValidationFailed records a rejected operation.
func (l *Logger) ValidationFailed(ctx context.Context, actor *models.Claims, lubricentroID, reason string, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["reason"] = reason
	l.Log(ctx, Event(models.EventValidationFailed, models.SeverityWarning, actor, lubricentroID, "operation rejected: "+reason, metadata))
}

// SystemError records an unexpected failure of operation.
func (l *Logger) SystemError(ctx context.Context, actor *models.Claims, lubricentroID, operation string, err error) {
	l.Log(ctx, Event(models.EventSystemError, models.SeverityError, actor, lubricentroID, operation+" failed", map[string]interface{}{
		"operation": operation,
		"error":     err.Error(),
	}))
}
