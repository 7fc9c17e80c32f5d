package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (model.Order, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return model.Order{}, err
	}
	return order, nil
}

// UpdateStatus は条件付きの1回更新。
// PaymentIDを設定するパッチは payment_id が未設定の行にしか効かない。
// 0件更新（先行コールバックに負けた/既に設定済み）のときは保存済みの行をそのまま返す。
func (r *OrderGormRepository) UpdateStatus(ctx context.Context, orderID string, patch repo.OrderStatusPatch) (model.Order, error) {
	values := map[string]interface{}{
		"status":     patch.Status,
		"updated_at": time.Now(),
	}
	if patch.PaymentID != nil {
		values["payment_id"] = *patch.PaymentID
	}
	if patch.PaymentMethod != nil {
		values["payment_method"] = *patch.PaymentMethod
	}

	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", orderID)
	if patch.PaymentID != nil {
		q = q.Where("payment_id IS NULL")
	}

	res := q.Updates(values)
	if res.Error != nil {
		return model.Order{}, res.Error
	}

	//0件でも行自体が無いとは限らないので読み直す
	o, err := r.FindByID(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}
