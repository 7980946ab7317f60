package model

import "time"

// Provider identifies the payment gateway that delivered a webhook.
type Provider string

const (
	ProviderOmise    Provider = "omise"
	ProviderChillPay Provider = "chillpay"
	Provider2C2P     Provider = "2c2p"
)

// Valid reports whether p is a known gateway.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOmise, ProviderChillPay, Provider2C2P:
		return true
	}
	return false
}

// WebhookStatus is the processing state of a stored webhook event.
type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "pending"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusCompleted  WebhookStatus = "completed"
	WebhookStatusFailed     WebhookStatus = "failed"
)

// WebhookEvent is one inbound gateway notification. Exactly one row exists
// per (provider, external_id); duplicate deliveries hit the unique index.
type WebhookEvent struct {
	ID            string        `gorm:"primaryKey;size:36"`
	Provider      Provider      `gorm:"size:32;not null;uniqueIndex:uq_provider_external"`
	EventType     string        `gorm:"size:64;not null"`
	ExternalID    string        `gorm:"size:255;not null;uniqueIndex:uq_provider_external"`
	Payload       string        `gorm:"type:jsonb;not null"`
	Status        WebhookStatus `gorm:"size:16;not null;default:'pending';index"`
	Attempts      int           `gorm:"not null;default:0"`
	LastAttemptAt *time.Time
	NextRetryAt   *time.Time `gorm:"index"`
	ProcessedAt   *time.Time
	ErrorMessage  *string
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
