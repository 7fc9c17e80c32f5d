package usecase

import (
	"context"
	"fmt"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// クライアント申告額との許容誤差（最小通貨単位、丸め吸収用）
const totalTolerance = 1

// Reconcile はカート明細の合計をDBの現在価格で再計算する。
// clientTotalは参考値で、金額の決定には一切使わない。
// 読み取りのみで副作用は無い。失敗したら注文は作らない。
func Reconcile(ctx context.Context, products repo.ProductRepository, lineItems []model.CartItem, clientTotal int64) (int64, []model.OrderItem, error) {
	ids := make([]string, 0, len(lineItems))
	seen := make(map[string]bool, len(lineItems))
	for _, it := range lineItems {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	fetched, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return 0, nil, fmt.Errorf("load products: %w", err)
	}

	priceByID := make(map[string]model.Product, len(fetched))
	for _, p := range fetched {
		priceByID[p.ID] = p
	}

	//1つでも解決できなければ失敗
	if len(priceByID) != len(ids) {
		missing := make([]string, 0)
		for _, id := range ids {
			if _, ok := priceByID[id]; !ok {
				missing = append(missing, id)
			}
		}
		return 0, nil, &ProductLookupError{Missing: missing}
	}

	var total int64 = 0
	items := make([]model.OrderItem, 0, len(lineItems))
	for _, it := range lineItems {
		p := priceByID[it.ProductID]
		subtotal := p.Price * it.Quantity

		items = append(items, model.OrderItem{
			ProductID:    it.ProductID,
			ProductName:  p.Name,
			ProductPrice: p.Price,
			Quantity:     it.Quantity,
			Subtotal:     subtotal,
		})
		total += subtotal
	}

	diff := total - clientTotal
	if diff < 0 {
		diff = -diff
	}
	if diff > totalTolerance {
		return 0, nil, &TotalMismatchError{Calculated: total, Provided: clientTotal}
	}

	return total, items, nil
}
