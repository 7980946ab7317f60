package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// PaymentCompletedEvent is pushed to the realtime channel after a payment
// commit. Keyed by the booking owner so consumers can fan out per user.
type PaymentCompletedEvent struct {
	PaymentID uint64          `json:"payment_id"`
	BookingID uint64          `json:"booking_id"`
	UserID    uint64          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
}

// Notifier is the one-way relay toward connected clients. Delivery is
// best-effort: callers log failures and move on.
type Notifier interface {
	PaymentCompleted(ctx context.Context, evt PaymentCompletedEvent) error
}

// KafkaNotifier publishes payment events to the notification topic.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier wraps an already configured writer.
func NewKafkaNotifier(w *kafka.Writer) *KafkaNotifier {
	return &KafkaNotifier{writer: w}
}

// PaymentCompleted sends one payment.completed message.
func (n *KafkaNotifier) PaymentCompleted(ctx context.Context, evt PaymentCompletedEvent) error {
	body, err := json.Marshal(map[string]interface{}{
		"event": "payment.completed",
		"data":  evt,
	})
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", evt.UserID)),
		Value: body,
		Time:  time.Now(),
	}
	return n.writer.WriteMessages(ctx, msg)
}
