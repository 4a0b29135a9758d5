package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/you/rental-booking/internal/domain"
)

// Repo owns the payment ledger rows. Every lifecycle transition runs in a
// transaction with the target row locked; rows only move forward.
type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// WithTx returns a copy bound to an outer transaction so settle/aggregate/
// transition can commit atomically.
func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{db: tx}
}

func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(&domain.Payment{})
}

// CreatePending inserts a new ledger entry. At most one live security-deposit
// authorization may exist per booking; a second one is rejected before any
// write happens.
func (r *Repo) CreatePending(ctx context.Context, p *domain.Payment) error {
	if !p.Intent.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidIntent, p.Intent)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.Intent == domain.IntentSecurityDeposit {
			var live domain.Payment
			err := tx.Model(&domain.Payment{}).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("booking_id = ? AND intent = ? AND state IN ?",
					p.BookingID, domain.IntentSecurityDeposit,
					[]domain.PaymentState{domain.PaymentActive, domain.PaymentPaid}).
				Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC()).
				Take(&live).Error
			if err == nil {
				return fmt.Errorf("%w: live security deposit %s already exists for booking %s",
					domain.ErrInvalidIntent, live.ID, p.BookingID)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.State = domain.PaymentPending
		return tx.Create(p).Error
	})
}

// Activate moves pending -> active once a gateway link has been issued.
// Re-activation with the same provider reference is a no-op; with a different
// one it is a conflict.
func (r *Repo) Activate(ctx context.Context, paymentID, providerRef string, expiresAt *time.Time) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockByID(tx, &p, paymentID); err != nil {
			return err
		}
		switch p.State {
		case domain.PaymentActive:
			if p.ProviderReference == providerRef {
				return nil
			}
			return fmt.Errorf("%w: payment %s already active with reference %s",
				domain.ErrStateConflict, p.ID, p.ProviderReference)
		case domain.PaymentPending:
			p.ProviderReference = providerRef
			p.ExpiresAt = expiresAt
			p.State = domain.PaymentActive
			return tx.Save(&p).Error
		default:
			return fmt.Errorf("%w: cannot activate payment %s in state %s",
				domain.ErrStateConflict, p.ID, p.State)
		}
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Settle moves active -> paid. The provider event id is the idempotency key:
// if any row already carries it, that prior row is returned unchanged and
// duplicate=true, with no write. This is the core guarantee against duplicate
// webhook delivery.
func (r *Repo) Settle(ctx context.Context, paymentID, providerEventID string, settledAmount decimal.Decimal) (p *domain.Payment, duplicate bool, err error) {
	var row domain.Payment
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior domain.Payment
		perr := tx.Where("provider_event_id = ?", providerEventID).Take(&prior).Error
		if perr == nil {
			row = prior
			duplicate = true
			return nil
		}
		if !errors.Is(perr, gorm.ErrRecordNotFound) {
			return perr
		}

		if err := lockByID(tx, &row, paymentID); err != nil {
			return err
		}
		if row.State != domain.PaymentActive {
			return fmt.Errorf("%w: cannot settle payment %s in state %s",
				domain.ErrStateConflict, row.ID, row.State)
		}
		now := time.Now().UTC()
		row.State = domain.PaymentPaid
		row.ProviderEventID = &providerEventID
		row.SettledAmount = &settledAmount
		row.SettledAt = &now
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &row, duplicate, nil
}

// Expire moves active -> expired when the gateway link lifetime elapses.
// Expiring twice is a no-op; expiring a paid row is a conflict.
func (r *Repo) Expire(ctx context.Context, paymentID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockByID(tx, &p, paymentID); err != nil {
			return err
		}
		switch p.State {
		case domain.PaymentExpired:
			return nil
		case domain.PaymentActive, domain.PaymentPending:
			p.State = domain.PaymentExpired
			return tx.Save(&p).Error
		default:
			return fmt.Errorf("%w: cannot expire payment %s in state %s",
				domain.ErrStateConflict, p.ID, p.State)
		}
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Fail records a gateway-reported failure for an active attempt.
func (r *Repo) Fail(ctx context.Context, paymentID, reason string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockByID(tx, &p, paymentID); err != nil {
			return err
		}
		switch p.State {
		case domain.PaymentFailed:
			return nil
		case domain.PaymentPending, domain.PaymentActive:
			p.State = domain.PaymentFailed
			p.FailureReason = reason
			return tx.Save(&p).Error
		default:
			return fmt.Errorf("%w: cannot fail payment %s in state %s",
				domain.ErrStateConflict, p.ID, p.State)
		}
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) ByID(ctx context.Context, id string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ByProviderReference resolves the ledger entry a gateway callback refers to
// (the provider transaction id assigned at activation).
func (r *Repo) ByProviderReference(ctx context.Context, ref string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).First(&p, "provider_reference = ?", ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: provider reference %s", domain.ErrPaymentNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) ListByBooking(ctx context.Context, bookingID string) ([]domain.Payment, error) {
	var rows []domain.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// AggregateForBooking recomputes booking totals from ledger rows. Always a
// fresh read; the result must not outlive one reconciliation pass.
func (r *Repo) AggregateForBooking(ctx context.Context, bookingID string) (Aggregate, error) {
	rows, err := r.ListByBooking(ctx, bookingID)
	if err != nil {
		return Aggregate{}, err
	}
	return Compute(rows, time.Now().UTC()), nil
}

func lockByID(tx *gorm.DB, dst *domain.Payment, id string) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(dst, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, id)
	}
	return err
}
