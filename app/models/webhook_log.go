package models

import (
	"encoding/json"
	"time"
)

// WebhookLog is the audit row written for every inbound gateway notification.
// ErrorMessage is the gateway's own error text. ProcessingError records why
// the row was rejected or ignored. Only Processed, ProcessingError and
// ArchiveKey change after insert.
type WebhookLog struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	OrderID           string     `gorm:"type:varchar(191);not null;default:'';index" json:"order_id"`
	OrderAmount       float64    `gorm:"type:decimal(12,2);not null;default:0" json:"order_amount"`
	TransactionAmount float64    `gorm:"type:decimal(12,2);not null;default:0" json:"transaction_amount"`
	Gateway           string     `gorm:"type:varchar(100);not null;default:''" json:"gateway"`
	BankReference     string     `gorm:"type:varchar(100);not null;default:''" json:"bank_reference"`
	Status            string     `gorm:"type:varchar(20);not null;default:''" json:"status"`
	PaymentMode       string     `gorm:"type:varchar(50);not null;default:''" json:"payment_mode"`
	PaymentDetails    string     `gorm:"type:varchar(255);not null;default:''" json:"payment_details"`
	PaymentMessage    string     `gorm:"type:varchar(255);not null;default:''" json:"payment_message"`
	PaymentTime       *time.Time `gorm:"type:datetime(3);default:null" json:"payment_time"`
	ErrorMessage      string     `gorm:"type:text" json:"error_message"`
	ProcessingError   string     `gorm:"type:text" json:"processing_error"`
	WebhookPayload    string     `gorm:"type:longtext;not null" json:"-"`
	Processed         bool       `gorm:"not null;default:false;index" json:"processed"`
	SignatureValid    bool       `gorm:"not null;default:false" json:"signature_valid"`
	ArchiveKey        string     `gorm:"type:varchar(255);not null;default:''" json:"archive_key,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// MarshalJSON emits the stored payload as embedded JSON when it is valid and
// as a string otherwise, so rejected bodies still show up in the log listing.
func (l WebhookLog) MarshalJSON() ([]byte, error) {
	type alias WebhookLog
	out := struct {
		alias
		WebhookPayload any `json:"webhook_payload"`
	}{alias: alias(l)}

	if json.Valid([]byte(l.WebhookPayload)) {
		out.WebhookPayload = json.RawMessage(l.WebhookPayload)
	} else {
		out.WebhookPayload = l.WebhookPayload
	}
	return json.Marshal(out)
}
