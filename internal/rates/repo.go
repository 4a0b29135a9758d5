package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/you/rental-booking/internal/domain"
)

// Repo is the append-only rate table. Rates are inserted and superseded by
// newer rows, never updated in place; the full history stays queryable.
type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(&domain.ConversionRate{})
}

func (r *Repo) Insert(ctx context.Context, rate *domain.ConversionRate) error {
	if !rate.Rate.IsPositive() {
		return fmt.Errorf("rate must be positive, got %s", rate.Rate)
	}
	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	if rate.EffectiveFrom.IsZero() {
		rate.EffectiveFrom = time.Now().UTC()
	}
	if rate.Source == "" {
		rate.Source = domain.RateManual
	}
	return r.db.WithContext(ctx).Create(rate).Error
}

// Latest returns the authoritative rate for a pair: newest EffectiveFrom,
// ties broken by insertion order.
func (r *Repo) Latest(ctx context.Context, from, to string) (decimal.Decimal, error) {
	var row domain.ConversionRate
	err := r.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ?", from, to).
		Order("effective_from DESC, created_at DESC, id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, fmt.Errorf("%w: %s->%s", domain.ErrRateUnavailable, from, to)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return row.Rate, nil
}

// History lists rate rows for a pair, newest first. Monitoring/audit only.
func (r *Repo) History(ctx context.Context, from, to string, limit int) ([]domain.ConversionRate, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []domain.ConversionRate
	q := r.db.WithContext(ctx).Model(&domain.ConversionRate{})
	if from != "" {
		q = q.Where("from_currency = ?", from)
	}
	if to != "" {
		q = q.Where("to_currency = ?", to)
	}
	err := q.Order("effective_from DESC, created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
