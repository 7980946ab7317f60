package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/courtbook/webhook-service/internal/model"
)

// ErrPaymentNotFound is returned when no payment matches a correlation key.
// The charge may have been created on the gateway before our own row was
// committed, so callers treat this as retryable.
var ErrPaymentNotFound = errors.New("payment not found for correlation key")

// ErrEventNotFound is returned when no webhook event matches the identifier.
var ErrEventNotFound = errors.New("webhook event not found")

// RepositoryInterface restricts Repo methods (方便单元测试 mock)
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	StoreEvent(ctx context.Context, evt *model.WebhookEvent) (*model.WebhookEvent, bool, error)
	GetEvent(ctx context.Context, provider model.Provider, externalID string) (*model.WebhookEvent, error)
	UpdateEvent(ctx context.Context, id string, fields map[string]interface{}) error
	DuePendingEvents(ctx context.Context, limit, maxAttempts int) ([]model.WebhookEvent, error)
	DeleteTerminalEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetPaymentForUpdate(ctx context.Context, tx *gorm.DB, orderNo string) (*model.Payment, error)
	GetBooking(ctx context.Context, tx *gorm.DB, id uint64) (*model.Booking, error)
	MarkPaymentCompleted(ctx context.Context, tx *gorm.DB, paymentID uint64, txnID, response string) error
	MarkBookingPaid(ctx context.Context, tx *gorm.DB, bookingID uint64) error
	AcquireLease(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name string) error
}

// Repository implements RepositoryInterface.
type Repository struct {
	db  *gorm.DB
	rdb *redis.Client
	log *zap.SugaredLogger
}

// NewRepository constructs repo. rdb may be nil; lease calls then always grant.
func NewRepository(db *gorm.DB, rdb *redis.Client, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// StoreEvent inserts evt unless a row with the same (provider, external_id)
// already exists. The unique index arbitrates concurrent duplicates; the
// loser of the race reads back the winner's row. Returns the stored row and
// whether this call created it.
func (r *Repository) StoreEvent(ctx context.Context, evt *model.WebhookEvent) (*model.WebhookEvent, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(evt)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return evt, true, nil
	}
	existing, err := r.GetEvent(ctx, evt.Provider, evt.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetEvent loads one event by its provider-scoped external identifier.
func (r *Repository) GetEvent(ctx context.Context, provider model.Provider, externalID string) (*model.WebhookEvent, error) {
	var evt model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&evt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

// UpdateEvent writes selected columns of one event.
func (r *Repository) UpdateEvent(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.WebhookEvent{}).Where("id = ?", id).
		Updates(fields).Error
}

// DuePendingEvents pulls the oldest pending events whose retry time has
// arrived and that still have attempts left.
func (r *Repository) DuePendingEvents(ctx context.Context, limit, maxAttempts int) ([]model.WebhookEvent, error) {
	var evts []model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", model.WebhookStatusPending).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", time.Now()).
		Where("attempts < ?", maxAttempts).
		Order("created_at").
		Limit(limit).
		Find(&evts).Error
	return evts, err
}

// DeleteTerminalEventsBefore removes completed/failed events created before
// cutoff and reports how many rows went away.
func (r *Repository) DeleteTerminalEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ?", []model.WebhookStatus{model.WebhookStatusCompleted, model.WebhookStatusFailed}).
		Where("created_at < ?", cutoff).
		Delete(&model.WebhookEvent{})
	return res.RowsAffected, res.Error
}

// GetPaymentForUpdate locks the payment row matching the gateway order
// reference for the duration of tx.
func (r *Repository) GetPaymentForUpdate(ctx context.Context, tx *gorm.DB, orderNo string) (*model.Payment, error) {
	var p model.Payment
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("gateway_order_no = ?", orderNo).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetBooking loads a booking inside tx.
func (r *Repository) GetBooking(ctx context.Context, tx *gorm.DB, id uint64) (*model.Booking, error) {
	var b model.Booking
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// MarkPaymentCompleted records the gateway outcome on the payment row.
func (r *Repository) MarkPaymentCompleted(ctx context.Context, tx *gorm.DB, paymentID uint64, txnID, response string) error {
	return tx.WithContext(ctx).Model(&model.Payment{}).Where("id = ?", paymentID).
		Updates(map[string]interface{}{
			"status":                 model.PaymentStatusCompleted,
			"gateway_transaction_id": txnID,
			"gateway_response":       response,
			"updated_at":             time.Now(),
		}).Error
}

// MarkBookingPaid flips the booking's payment status.
func (r *Repository) MarkBookingPaid(ctx context.Context, tx *gorm.DB, bookingID uint64) error {
	return tx.WithContext(ctx).Model(&model.Booking{}).Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"payment_status": model.BookingPaymentPaid,
			"updated_at":     time.Now(),
		}).Error
}

// AcquireLease takes a short-lived SETNX lease so two replicas never run the
// same periodic tick concurrently. Without Redis configured it always grants.
func (r *Repository) AcquireLease(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if r.rdb == nil {
		return true, nil
	}
	return r.rdb.SetNX(ctx, fmt.Sprintf("lease:%s", name), 1, ttl).Result()
}

// ReleaseLease drops the tick lease early.
func (r *Repository) ReleaseLease(ctx context.Context, name string) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Del(ctx, fmt.Sprintf("lease:%s", name)).Err()
}
