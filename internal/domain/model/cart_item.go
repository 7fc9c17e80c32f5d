package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// カート明細はユーザー直結。注文確定かユーザー操作で消える。
// 価格は持たない（表示も注文もその時点の商品価格を使う）。
type CartItem struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index:idx_cart_user_product,unique" json:"user_id"`
	ProductID string    `gorm:"type:uuid;not null;index:idx_cart_user_product,unique" json:"product_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
