package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/trackhub/auth-service/internal/core/domain"
)

type auditRow struct {
	ID        uint      `gorm:"primaryKey"`
	AccountID *string   `gorm:"type:uuid;index"`
	Email     string    `gorm:"type:varchar(255);not null"`
	Action    string    `gorm:"type:varchar(32);not null;index"`
	At        time.Time `gorm:"not null"`
}

func (auditRow) TableName() string { return "auth_audit_events" }

// AuditRepository implements ports.AuditLog on PostgreSQL.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	row := auditRow{
		Email:  event.Email,
		Action: string(event.Action),
		At:     event.At.UTC(),
	}
	if event.AccountID != "" {
		id := event.AccountID
		row.AccountID = &id
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
