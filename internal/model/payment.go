package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus values mirror the gateway-facing lifecycle.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Booking payment states; only pending → paid happens here.
const (
	BookingPaymentPending = "pending"
	BookingPaymentPaid    = "paid"
)

// Payment is the domain record a gateway notification settles.
// GatewayOrderNo is the order reference we handed to the gateway when the
// charge was created; incoming payloads carry it back as the correlation key.
type Payment struct {
	ID                   uint64          `gorm:"primaryKey"`
	BookingID            uint64          `gorm:"not null;index"`
	Amount               decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Method               string          `gorm:"size:32"`
	Status               string          `gorm:"size:16;not null;default:'pending'"`
	GatewayOrderNo       string          `gorm:"size:64;not null;index"`
	GatewayTransactionID *string         `gorm:"size:128"`
	GatewayResponse      *string         `gorm:"type:jsonb"`
	CreatedAt            time.Time       `gorm:"autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

// Booking owns a payment; its PaymentStatus flips to paid in the same
// transaction that completes the Payment.
type Booking struct {
	ID            uint64    `gorm:"primaryKey"`
	UserID        uint64    `gorm:"not null;index"`
	PaymentStatus string    `gorm:"size:16;not null;default:'pending'"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Booking) TableName() string { return "bookings" }
