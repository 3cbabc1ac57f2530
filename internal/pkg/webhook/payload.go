package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/internal/pkg/apperr"
	"github.com/luminapay/schoolpay/internal/pkg/validate"
)

// Notification is the body the payment gateway posts to /webhook.
type Notification struct {
	Status    *int       `json:"status" validate:"required"`
	OrderInfo *OrderInfo `json:"order_info" validate:"required"`
}

// OrderInfo carries the payment outcome. The gateway spells two keys
// "payemnt_details" and "Payment_message"; they are accepted as sent.
type OrderInfo struct {
	OrderID           string     `json:"order_id" validate:"required,max=191"`
	OrderAmount       float64    `json:"order_amount" validate:"gte=0"`
	TransactionAmount float64    `json:"transaction_amount" validate:"gte=0"`
	Gateway           string     `json:"gateway" validate:"required,max=100"`
	BankReference     string     `json:"bank_reference" validate:"max=100"`
	Status            string     `json:"status" validate:"required,oneof=pending success failed cancelled"`
	PaymentMode       string     `json:"payment_mode" validate:"max=50"`
	PaymentDetails    string     `json:"payemnt_details" validate:"max=255"`
	PaymentMessage    string     `json:"Payment_message" validate:"max=255"`
	PaymentTime       *Timestamp `json:"payment_time" validate:"required"`
	ErrorMessage      string     `json:"error_message"`
}

// Timestamp is an ISO-8601 date-time. Values without a zone offset are read
// as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses s with the first matching ISO-8601 layout.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid payment_time %q: expected an ISO-8601 date-time", s)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid payment_time: expected an ISO-8601 string")
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// DecodeNotification strictly decodes and validates raw. Unknown fields are
// rejected. On failure the returned notification holds whatever could be
// read leniently so the audit row is as complete as possible.
func DecodeNotification(raw []byte) (*Notification, error) {
	var n Notification

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&n); err != nil {
		lenient := decodeLenient(raw)
		return lenient, apperr.Validation(describeDecodeError(err))
	}
	if dec.More() {
		return &n, apperr.Validation("request body must contain a single JSON object")
	}

	if n.OrderInfo != nil {
		n.OrderInfo.normalize()
	}
	if err := validate.Check(n); err != nil {
		return &n, err
	}
	return &n, nil
}

func decodeLenient(raw []byte) *Notification {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	if n.OrderInfo != nil {
		n.OrderInfo.normalize()
	}
	return &n
}

func describeDecodeError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return "request body is empty"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "malformed JSON: unexpected end of input"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("invalid value for field %q", typeErr.Field)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	}
	return "invalid webhook payload: " + err.Error()
}

func (o *OrderInfo) normalize() {
	o.OrderID = strings.TrimSpace(o.OrderID)
	o.Gateway = strings.TrimSpace(o.Gateway)
	o.Status, _ = models.NormalizePaymentStatus(o.Status)
	if o.PaymentTime != nil {
		o.PaymentTime.Time = o.PaymentTime.UTC()
	}
}

// newLog builds the audit row for raw. n may be nil when nothing decoded.
func newLog(raw []byte, n *Notification) *models.WebhookLog {
	log := &models.WebhookLog{WebhookPayload: string(raw)}
	if n == nil || n.OrderInfo == nil {
		return log
	}
	info := n.OrderInfo
	log.OrderID = truncate(info.OrderID, 191)
	log.OrderAmount = info.OrderAmount
	log.TransactionAmount = info.TransactionAmount
	log.Gateway = truncate(info.Gateway, 100)
	log.BankReference = truncate(info.BankReference, 100)
	log.Status = truncate(info.Status, 20)
	log.PaymentMode = truncate(info.PaymentMode, 50)
	log.PaymentDetails = truncate(info.PaymentDetails, 255)
	log.PaymentMessage = truncate(info.PaymentMessage, 255)
	log.ErrorMessage = info.ErrorMessage
	if info.PaymentTime != nil {
		t := info.PaymentTime.Time
		log.PaymentTime = &t
	}
	return log
}

// truncate keeps at most n runes of s. Column widths count characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
