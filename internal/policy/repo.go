package policy

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/you/rental-booking/internal/domain"
)

// Repo reads payment-method fee schedules. The rows are owned by the
// surrounding admin system; this side only ever fetches them.
type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(&domain.PaymentMethodPolicy{})
}

func (r *Repo) ByMethod(ctx context.Context, methodType string) (*domain.PaymentMethodPolicy, error) {
	var p domain.PaymentMethodPolicy
	err := r.db.WithContext(ctx).First(&p, "method_type = ?", methodType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPolicyNotFound, methodType)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
