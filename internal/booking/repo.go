package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/you/rental-booking/internal/domain"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{db: tx}
}

func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(&domain.Booking{})
}

func (r *Repo) Create(ctx context.Context, b *domain.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = domain.StatusDraft
	}
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *Repo) ByID(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ByIDForUpdate locks the booking row for the rest of the transaction.
// Reconciliation passes for the same booking serialize on this lock; the
// confirmation check is a read-modify-write and must not race.
func (r *Repo) ByIDForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repo) Save(ctx context.Context, b *domain.Booking) error {
	return r.db.WithContext(ctx).Save(b).Error
}
