package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusCompleted OrderStatus = "completed"
)

// order_numberは表示用ラベル。主キーはIDのみ。
type Order struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string      `gorm:"type:uuid;not null;index" json:"user_id"`
	OrderNumber string      `gorm:"type:varchar(20);not null" json:"order_number"`
	TotalAmount int64       `gorm:"not null" json:"total_amount"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//決済完了時にだけ入る
	PaymentID     *string `gorm:"type:varchar(255)" json:"payment_id"`
	PaymentMethod *string `gorm:"type:varchar(50)" json:"payment_method"`

	ShippingName    string `gorm:"type:varchar(100);not null" json:"shipping_name"`
	ShippingPhone   string `gorm:"type:varchar(20);not null" json:"shipping_phone"`
	ShippingAddress string `gorm:"type:varchar(500);not null" json:"shipping_address"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
