package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 一覧検索
type ProductListQuery struct {
	Page         int
	Limit        int
	Q            string
	CategorySlug string
	Sort         string // newest / price_asc / price_desc / name
}

// 商品の永続化（取得）だけを約束。カタログは読み取り専用。
type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id string) (model.Product, error)

	// 価格再計算用。見つかった分だけ返す（欠けの検出は呼び出し側）
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}
