package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/you/rental-booking/internal/domain"
)

// LogRepo persists one row per inbound delivery attempt. The table is both
// the idempotency lookup and the monitoring dashboard's read surface.
type LogRepo struct{ db *gorm.DB }

func NewLogRepo(db *gorm.DB) *LogRepo {
	return &LogRepo{db: db}
}

func (r *LogRepo) Migrate() error {
	return r.db.AutoMigrate(&domain.WebhookLog{})
}

func (r *LogRepo) Insert(ctx context.Context, row *domain.WebhookLog) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// LatestSuccess returns the newest success row for a provider event id, or
// nil when the event has never completed.
func (r *LogRepo) LatestSuccess(ctx context.Context, providerEventID string) (*domain.WebhookLog, error) {
	var row domain.WebhookLog
	err := r.db.WithContext(ctx).
		Where("provider_event_id = ? AND status = ?", providerEventID, domain.WebhookSuccess).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *LogRepo) Finalize(ctx context.Context, id string, status domain.WebhookStatus, durationMs int64, response, errMsg string) error {
	return r.db.WithContext(ctx).Model(&domain.WebhookLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":                 status,
			"processing_duration_ms": durationMs,
			"response_data":          response,
			"error_message":          errMsg,
		}).Error
}

// Recent lists delivery attempts for the monitoring API, newest first.
func (r *LogRepo) Recent(ctx context.Context, status domain.WebhookStatus, limit int) ([]domain.WebhookLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Model(&domain.WebhookLog{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []domain.WebhookLog
	err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// ByProviderEventID lists every delivery attempt for one event, including
// provider retries.
func (r *LogRepo) ByProviderEventID(ctx context.Context, providerEventID string) ([]domain.WebhookLog, error) {
	var rows []domain.WebhookLog
	err := r.db.WithContext(ctx).
		Where("provider_event_id = ?", providerEventID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
