package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 注文時点の価格・商品名スナップショット。作成後は変更しない。
type OrderItem struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	OrderID      string    `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID    string    `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName  string    `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductPrice int64     `gorm:"not null" json:"product_price"`
	Quantity     int64     `gorm:"not null" json:"quantity"`
	Subtotal     int64     `gorm:"not null" json:"subtotal"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
