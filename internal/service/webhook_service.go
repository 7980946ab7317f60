package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/courtbook/webhook-service/internal/config"
	"github.com/courtbook/webhook-service/internal/gateway"
	"github.com/courtbook/webhook-service/internal/model"
	"github.com/courtbook/webhook-service/internal/notify"
	"github.com/courtbook/webhook-service/internal/repo"
)

// WebhookService owns the webhook event lifecycle: idempotent ingestion,
// the retry state machine, batch processing and retention cleanup.
type WebhookService struct {
	repo     repo.RepositoryInterface
	notifier notify.Notifier
	adapters map[model.Provider]gateway.Adapter
	retry    config.RetryConfig
	batch    int
	log      *zap.SugaredLogger
}

// NewWebhookService wires the processor.
func NewWebhookService(r repo.RepositoryInterface, n notify.Notifier, adapters []gateway.Adapter, retry config.RetryConfig, batchSize int, logger *zap.SugaredLogger) *WebhookService {
	byProvider := make(map[model.Provider]gateway.Adapter, len(adapters))
	for _, a := range adapters {
		byProvider[a.Provider()] = a
	}
	return &WebhookService{
		repo:     r,
		notifier: n,
		adapters: byProvider,
		retry:    retry,
		batch:    batchSize,
		log:      logger,
	}
}

// Adapter returns the adapter registered for provider, if any.
func (s *WebhookService) Adapter(provider model.Provider) (gateway.Adapter, bool) {
	a, ok := s.adapters[provider]
	return a, ok
}

// StoreEvent records one inbound notification. Duplicate deliveries of the
// same (provider, externalID) return the original row untouched.
func (s *WebhookService) StoreEvent(ctx context.Context, provider model.Provider, eventType, externalID, payload string) (*model.WebhookEvent, error) {
	evt := &model.WebhookEvent{
		ID:         uuid.NewString(),
		Provider:   provider,
		EventType:  eventType,
		ExternalID: externalID,
		Payload:    payload,
		Status:     model.WebhookStatusPending,
	}
	stored, created, err := s.repo.StoreEvent(ctx, evt)
	if err != nil {
		return nil, fmt.Errorf("store webhook event: %w", err)
	}
	if !created {
		s.log.Infof("duplicate webhook delivery provider=%s external_id=%s", provider, externalID)
	}
	return stored, nil
}

// ProcessEvent drives one event through the state machine. It returns true
// when the event reached a non-retryable outcome and false when a retry was
// scheduled or the event is exhausted. Errors never escape; they become
// retry decisions.
func (s *WebhookService) ProcessEvent(ctx context.Context, provider model.Provider, externalID string) bool {
	evt, err := s.repo.GetEvent(ctx, provider, externalID)
	if err != nil {
		s.log.Errorf("load webhook provider=%s external_id=%s: %v", provider, externalID, err)
		return false
	}

	// Already finished: redundant processing is a no-op.
	if evt.Status == model.WebhookStatusCompleted {
		return true
	}
	if evt.Status == model.WebhookStatusFailed && evt.Attempts >= s.retry.MaxAttempts {
		return false
	}

	now := time.Now()
	if err := s.repo.UpdateEvent(ctx, evt.ID, map[string]interface{}{
		"status":          model.WebhookStatusProcessing,
		"last_attempt_at": now,
	}); err != nil {
		s.log.Errorf("mark processing id=%s: %v", evt.ID, err)
		return false
	}

	adapter, ok := s.adapters[evt.Provider]
	if !ok {
		// Configuration error, not a transient fault. Park the event for an
		// operator instead of burning retries.
		s.log.Errorf("no adapter for provider=%s id=%s", evt.Provider, evt.ID)
		msg := fmt.Sprintf("unknown provider %q", evt.Provider)
		if err := s.repo.UpdateEvent(ctx, evt.ID, map[string]interface{}{
			"status":        model.WebhookStatusFailed,
			"next_retry_at": nil,
			"error_message": msg,
		}); err != nil {
			s.log.Errorf("park unknown-provider event id=%s: %v", evt.ID, err)
		}
		return false
	}

	handled, err := s.applyEffect(ctx, adapter, evt)
	if err != nil {
		s.scheduleRetry(ctx, evt, err.Error())
		return false
	}
	if !handled {
		s.scheduleRetry(ctx, evt, "matching payment not found yet")
		return false
	}

	if err := s.repo.UpdateEvent(ctx, evt.ID, map[string]interface{}{
		"status":       model.WebhookStatusCompleted,
		"processed_at": time.Now(),
	}); err != nil {
		s.log.Errorf("mark completed id=%s: %v", evt.ID, err)
		return false
	}
	return true
}

// applyEffect interprets the payload and applies the domain-side effect.
// Returns (false, nil) for the retryable payment-not-found case and an error
// for transient faults; gateway-declared payment failures are handled, not
// retried, since another attempt cannot change the gateway's verdict.
func (s *WebhookService) applyEffect(ctx context.Context, adapter gateway.Adapter, evt *model.WebhookEvent) (bool, error) {
	interp, err := adapter.Interpret([]byte(evt.Payload))
	if err != nil {
		return false, fmt.Errorf("interpret payload: %w", err)
	}

	if !interp.Succeeded {
		s.log.Warnf("gateway reports failed payment provider=%s order_no=%s code=%s reason=%s",
			evt.Provider, interp.OrderNo, interp.FailureCode, interp.FailureReason)
		return true, nil
	}

	var completed notify.PaymentCompletedEvent
	found := true
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.GetPaymentForUpdate(ctx, tx, interp.OrderNo)
		if errors.Is(err, repo.ErrPaymentNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		booking, err := s.repo.GetBooking(ctx, tx, payment.BookingID)
		if err != nil {
			return err
		}
		if err := s.repo.MarkPaymentCompleted(ctx, tx, payment.ID, interp.TransactionID, interp.Response); err != nil {
			return err
		}
		if err := s.repo.MarkBookingPaid(ctx, tx, booking.ID); err != nil {
			return err
		}
		completed = notify.PaymentCompletedEvent{
			PaymentID: payment.ID,
			BookingID: booking.ID,
			UserID:    booking.UserID,
			Amount:    payment.Amount,
			Method:    payment.Method,
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("complete payment order_no=%s: %w", interp.OrderNo, err)
	}
	if !found {
		return false, nil
	}

	// Fire-and-forget after commit; a lost notification never rolls back or
	// retries the settled payment.
	if err := s.notifier.PaymentCompleted(ctx, completed); err != nil {
		s.log.Warnf("notify payment completed payment_id=%d: %v", completed.PaymentID, err)
	}
	return true, nil
}

// scheduleRetry advances the attempt counter and either re-queues the event
// with exponential backoff or marks it exhausted.
func (s *WebhookService) scheduleRetry(ctx context.Context, evt *model.WebhookEvent, cause string) {
	attempts := evt.Attempts + 1
	fields := map[string]interface{}{"attempts": attempts}

	if attempts >= s.retry.MaxAttempts {
		fields["status"] = model.WebhookStatusFailed
		fields["next_retry_at"] = nil
		fields["error_message"] = fmt.Sprintf("giving up after %d attempts: %s", attempts, cause)
		s.log.Errorf("webhook exhausted id=%s provider=%s attempts=%d: %s", evt.ID, evt.Provider, attempts, cause)
	} else {
		next := time.Now().Add(s.backoffDelay(attempts))
		fields["status"] = model.WebhookStatusPending
		fields["next_retry_at"] = next
		fields["error_message"] = fmt.Sprintf("attempt %d failed (%s), retry at %s", attempts, cause, next.Format(time.RFC3339))
		s.log.Warnf("webhook retry scheduled id=%s attempts=%d next=%s: %s", evt.ID, attempts, next.Format(time.RFC3339), cause)
	}

	if err := s.repo.UpdateEvent(ctx, evt.ID, fields); err != nil {
		s.log.Errorf("persist retry state id=%s: %v", evt.ID, err)
	}
}

// backoffDelay computes initialDelay * multiplier^(attempts-1), capped.
func (s *WebhookService) backoffDelay(attempts int) time.Duration {
	d := time.Duration(float64(s.retry.InitialDelay()) * math.Pow(s.retry.BackoffMultiplier, float64(attempts-1)))
	if max := s.retry.MaxDelay(); d > max {
		d = max
	}
	return d
}

// ProcessPendingWebhooks runs one batch tick: select due events oldest-first
// and process them concurrently. One event's failure never aborts the rest.
func (s *WebhookService) ProcessPendingWebhooks(ctx context.Context) (succeeded, failed int, err error) {
	events, err := s.repo.DuePendingEvents(ctx, s.batch, s.retry.MaxAttempts)
	if err != nil {
		return 0, 0, fmt.Errorf("select due webhooks: %w", err)
	}
	if len(events) == 0 {
		return 0, 0, nil
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, evt := range events {
		evt := evt
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Errorf("panic processing webhook id=%s: %v", evt.ID, r)
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}()
			ok := s.ProcessEvent(ctx, evt.Provider, evt.ExternalID)
			mu.Lock()
			if ok {
				succeeded++
			} else {
				failed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.log.Infof("webhook batch done total=%d succeeded=%d failed=%d", len(events), succeeded, failed)
	return succeeded, failed, nil
}

// CleanupOldWebhooks deletes terminal events created more than daysToKeep
// days ago. Pending and processing rows are never touched.
func (s *WebhookService) CleanupOldWebhooks(ctx context.Context, daysToKeep int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -daysToKeep)
	deleted, err := s.repo.DeleteTerminalEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old webhooks: %w", err)
	}
	if deleted > 0 {
		s.log.Infof("retention sweep removed %d webhook events older than %s", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}
