package models

import (
	"strings"
	"time"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSuccess   = "success"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// PaymentStatuses lists every accepted status value.
var PaymentStatuses = []string{
	PaymentStatusPending,
	PaymentStatusSuccess,
	PaymentStatusFailed,
	PaymentStatusCancelled,
}

// OrderStatus is the latest known payment outcome of an order. CollectID is
// unique: an order has at most one status row, updated in place.
type OrderStatus struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	CollectID         uint      `gorm:"not null;uniqueIndex" json:"collect_id"`
	OrderAmount       float64   `gorm:"type:decimal(12,2);not null" json:"order_amount"`
	TransactionAmount float64   `gorm:"type:decimal(12,2);not null;default:0" json:"transaction_amount"`
	PaymentMode       string    `gorm:"type:varchar(50);not null;default:''" json:"payment_mode"`
	PaymentDetails    string    `gorm:"type:varchar(255);not null;default:''" json:"payment_details"`
	BankReference     string    `gorm:"type:varchar(100);not null;default:''" json:"bank_reference"`
	PaymentMessage    string    `gorm:"type:varchar(255);not null;default:''" json:"payment_message"`
	Status            string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ErrorMessage      string    `gorm:"type:text" json:"error_message"`
	PaymentTime       time.Time `gorm:"type:datetime(3);not null;index" json:"payment_time"`
	WebhookLogID      *uint     `gorm:"index" json:"webhook_log_id,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Order *Order `gorm:"foreignKey:CollectID;constraint:OnDelete:CASCADE" json:"-"`
}

// NormalizePaymentStatus lower-cases s and reports whether it is a known status.
func NormalizePaymentStatus(s string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, known := range PaymentStatuses {
		if v == known {
			return v, true
		}
	}
	return v, false
}

// IsWebhookWritten reports whether the row was last written by a gateway
// notification rather than created at payment initiation.
func (s *OrderStatus) IsWebhookWritten() bool {
	return s != nil && s.WebhookLogID != nil
}

// SupersededBy reports whether a notification carrying paymentTime may
// overwrite this status. Rows not yet touched by a webhook always yield; after
// that an update is only applied when it is not older than the stored one.
func (s *OrderStatus) SupersededBy(paymentTime time.Time) bool {
	if !s.IsWebhookWritten() {
		return true
	}
	return !paymentTime.Before(s.PaymentTime)
}
