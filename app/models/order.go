package models

import (
	"fmt"
	"time"
)

// StudentInfo identifies the student an order is paid for.
type StudentInfo struct {
	Name  string `gorm:"column:student_name;type:varchar(150);not null" json:"name"`
	ID    string `gorm:"column:student_id;type:varchar(64);not null" json:"id"`
	Email string `gorm:"column:student_email;type:varchar(200);not null" json:"email"`
}

// Order is a payment order created for a student of a school. It is written
// once at payment creation and never changed afterwards.
type Order struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	SchoolID      string      `gorm:"type:varchar(64);not null;index" json:"school_id"`
	TrusteeID     string      `gorm:"type:varchar(64);not null" json:"trustee_id"`
	StudentInfo   StudentInfo `gorm:"embedded" json:"student_info"`
	GatewayName   string      `gorm:"type:varchar(100);not null" json:"gateway_name"`
	CustomOrderID string      `gorm:"type:varchar(191);not null;uniqueIndex" json:"custom_order_id"`
	CreatedAt     time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`

	Status *OrderStatus `gorm:"foreignKey:CollectID" json:"status,omitempty"`
}

// GenerateCustomOrderID returns the default external order id, ORDER_<unix millis>.
func GenerateCustomOrderID(now time.Time) string {
	return fmt.Sprintf("ORDER_%d", now.UnixMilli())
}
