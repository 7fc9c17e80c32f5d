package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/labstack/gommon/log"
)

type OrderUsecase struct {
	tx        repo.TransactionManager
	cartItems repo.CartItemRepository
	logger    *log.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, cartItems repo.CartItemRepository, logger *log.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, cartItems: cartItems, logger: logger}
}

type ShippingInfo struct {
	Name    string
	Phone   string
	Address string
}

type CreateOrderInput struct {
	Items       []model.CartItem
	ClientTotal int64
	Shipping    ShippingInfo
}

type UpdateStatusInput struct {
	Status        model.OrderStatus
	PaymentID     string
	PaymentMethod string
	// 空なら内部呼び出しとして所有チェックを省略
	RequestingUserID string
}

type OrderItemOutput struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type OrderOutput struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	OrderNumber     string            `json:"order_number"`
	Status          string            `json:"status"`
	TotalAmount     int64             `json:"total_amount"`
	PaymentID       *string           `json:"payment_id"`
	PaymentMethod   *string           `json:"payment_method"`
	ShippingName    string            `json:"shipping_name"`
	ShippingPhone   string            `json:"shipping_phone"`
	ShippingAddress string            `json:"shipping_address"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemOutput `json:"items"`
}

// CreateOrder はカート明細から注文を作る。
// 金額はDBの現在価格で再計算し、注文行と明細行は1トランザクションで入れる。
// カートクリアだけはコミット後のベストエフォート。
func (u *OrderUsecase) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (OrderOutput, error) {
	if userID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if len(in.Items) == 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "cart empty")
	}
	for _, it := range in.Items {
		if it.ProductID == "" || it.Quantity < 1 {
			return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		total, items, err := Reconcile(ctx, r.Products(), in.Items, in.ClientTotal)
		if err != nil {
			return err
		}

		created, err := r.Orders().Create(ctx, model.Order{
			UserID:          userID,
			OrderNumber:     newOrderNumber(time.Now()),
			TotalAmount:     total, //クライアント申告額は使わない
			Status:          model.OrderStatusPending,
			ShippingName:    in.Shipping.Name,
			ShippingPhone:   in.Shipping.Phone,
			ShippingAddress: in.Shipping.Address,
		})
		if err != nil {
			return &OrderPersistError{Err: err}
		}

		//明細はスナップショット価格で一括作成
		if err := r.OrderItems().CreateBulk(ctx, created.ID, items); err != nil {
			return &LineItemPersistError{Err: err}
		}

		out = toOrderOutput(created, items)
		return nil
	})

	if err != nil {
		u.logger.Debugf("create order failed: user=%s items=%d err=%v", userID, len(in.Items), err)
		return OrderOutput{}, err
	}

	//カートクリア失敗は注文の成否に影響させない
	if err := u.cartItems.DeleteByUserID(ctx, userID); err != nil {
		u.logger.Warnf("cart clear failed: user=%s err=%v", userID, err)
	}

	return out, nil
}

// UpdateStatus は注文のステータス遷移を1件適用する。
// 支払い済み注文への決済コールバック再送はno-opで既存の注文を返す。
func (u *OrderUsecase) UpdateStatus(ctx context.Context, orderID string, in UpdateStatusInput) (OrderOutput, error) {
	if orderID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	switch in.Status {
	case model.OrderStatusPending, model.OrderStatusPaid, model.OrderStatusCancelled, model.OrderStatusCompleted:
		// OK
	default:
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return ErrOrderNotFound
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//所有チェック（呼び出し側が身元を渡したときだけ）
		if in.RequestingUserID != "" && o.UserID != in.RequestingUserID {
			return ErrOrderForbidden
		}

		//決済情報が入っている支払い済み注文には再適用しない
		if in.Status == model.OrderStatusPaid && o.Status == model.OrderStatusPaid &&
			in.PaymentID != "" && o.PaymentID != nil {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			out = toOrderOutput(o, items)
			return nil
		}

		patch := repo.OrderStatusPatch{Status: in.Status}
		if in.PaymentID != "" {
			patch.PaymentID = &in.PaymentID
		}
		if in.PaymentMethod != "" {
			patch.PaymentMethod = &in.PaymentMethod
		}

		updated, err := r.Orders().UpdateStatus(ctx, orderID, patch)
		if err == repo.ErrNotFound {
			return ErrOrderNotFound
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(updated, items)
		return nil
	})

	if err != nil {
		u.logger.Debugf("update order status failed: order=%s status=%s err=%v", orderID, in.Status, err)
		return OrderOutput{}, err
	}
	return out, nil
}

type ListOrdersInput struct {
	Page  int
	Limit int
}

type ListOrdersOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID string, in ListOrdersInput) (ListOrdersOutput, error) {
	if userID == "" {
		return ListOrdersOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.Page < 0 {
		return ListOrdersOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 0 || in.Limit > 100 {
		return ListOrdersOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	page := in.Page
	if page <= 0 {
		page = 1
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}

	out := ListOrdersOutput{Page: page, Limit: limit}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, limit)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out.Total = total

		out.Items = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			out.Items = append(out.Items, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return ListOrdersOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID string, orderID string) (OrderOutput, error) {
	if userID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return ErrOrderNotFound
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return ErrOrderNotFound
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 表示用の注文番号。衝突し得るのでキーには使わない。
func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%03d", now.UTC().Format("20060102"), rand.Intn(1000))
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Price:     it.ProductPrice,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		UserID:          o.UserID,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		PaymentID:       o.PaymentID,
		PaymentMethod:   o.PaymentMethod,
		ShippingName:    o.ShippingName,
		ShippingPhone:   o.ShippingPhone,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}
