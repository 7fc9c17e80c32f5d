package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// ステータス更新のパッチ。PaymentID/PaymentMethod はnilなら触らない。
type OrderStatusPatch struct {
	Status        model.OrderStatus
	PaymentID     *string
	PaymentMethod *string
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (model.Order, error)

	// 条件付き1回更新。PaymentIDを設定する場合は payment_id が未設定の行にしか
	// 効かせない（決済コールバック重複対策）。競合で0件更新なら保存済みの行を返す。
	UpdateStatus(ctx context.Context, orderID string, patch OrderStatusPatch) (model.Order, error)
}
