package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/YashBawari18/Online-TicketConsession/internal/gateway"
	"github.com/YashBawari18/Online-TicketConsession/internal/models"
)

const auditTable = "concession_audit_logs"

// AuditRepository appends audit trail entries.
type AuditRepository struct {
	gw gateway.Gateway
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(gw gateway.Gateway) *AuditRepository {
	return &AuditRepository{gw: gw}
}

// Create stores one audit entry.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	var payload interface{}
	if len(log.Payload) > 0 {
		payload = jsonColumn(log.Payload)
	}
	row := gateway.Row{
		"id":          log.ID,
		"actor_id":    log.ActorID,
		"action":      log.Action,
		"resource":    log.Resource,
		"resource_id": log.ResourceID,
		"payload":     payload,
		"ip_address":  log.IPAddress,
		"user_agent":  log.UserAgent,
		"created_at":  log.CreatedAt,
	}
	if _, err := r.gw.Insert(ctx, auditTable, row); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListByResource returns the trail for one resource, newest first.
func (r *AuditRepository) ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	q := gateway.Query{Match: gateway.Match{"resource": resource, "resource_id": resourceID}, OrderBy: "created_at", Desc: true}
	if err := r.gw.Query(ctx, auditTable, q, &logs); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

// jsonColumn travels as text through SQL drivers and as raw JSON through REST backends.
type jsonColumn json.RawMessage

func (j jsonColumn) Value() (driver.Value, error) {
	return string(j), nil
}

func (j jsonColumn) MarshalJSON() ([]byte, error) {
	return []byte(j), nil
}
