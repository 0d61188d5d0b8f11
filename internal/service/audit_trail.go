package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	"github.com/YashBawari18/Online-TicketConsession/pkg/jobs"
)

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type auditMetaKey struct{}

// AuditMeta carries request details that every audit entry records.
type AuditMeta struct {
	IPAddress string
	UserAgent string
}

// WithAuditMeta attaches request details to ctx for later audit entries.
func WithAuditMeta(ctx context.Context, meta AuditMeta) context.Context {
	return context.WithValue(ctx, auditMetaKey{}, meta)
}

func auditMetaFrom(ctx context.Context) AuditMeta {
	if ctx == nil {
		return AuditMeta{}
	}
	meta, _ := ctx.Value(auditMetaKey{}).(AuditMeta)
	return meta
}

// AuditTrail writes audit entries through a background queue so request latency never
// depends on the audit table. Failures are retried by the queue and then logged.
type AuditTrail struct {
	writer auditWriter
	queue  *jobs.Queue[models.AuditLog]
	logger *zap.Logger
}

// NewAuditTrail constructs the trail. Call Start before recording and Stop on shutdown.
func NewAuditTrail(writer auditWriter, cfg jobs.QueueConfig) *AuditTrail {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	trail := &AuditTrail{writer: writer, logger: cfg.Logger}
	trail.queue = jobs.NewQueue[models.AuditLog]("audit", trail.handle, cfg)
	return trail
}

// Start launches the queue workers.
func (a *AuditTrail) Start(ctx context.Context) {
	a.queue.Start(ctx)
}

// Stop flushes buffered entries and stops the workers.
func (a *AuditTrail) Stop() {
	a.queue.Stop()
}

// Record enqueues entry, filling request details from ctx. It never blocks the caller;
// when the buffer is full the entry is logged and dropped.
func (a *AuditTrail) Record(ctx context.Context, entry models.AuditLog) {
	if a == nil {
		return
	}
	meta := auditMetaFrom(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = meta.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if err := a.queue.TryEnqueue(jobs.Job[models.AuditLog]{ID: entry.ID, Payload: entry}); err != nil {
		a.logger.Warn("audit entry dropped",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err),
		)
	}
}

func (a *AuditTrail) handle(ctx context.Context, job jobs.Job[models.AuditLog]) error {
	entry := job.Payload
	if err := a.writer.Create(ctx, &entry); err != nil {
		return fmt.Errorf("write audit entry %s: %w", entry.ID, err)
	}
	return nil
}
