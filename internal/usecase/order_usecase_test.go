package usecase

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var orderNumberRe = regexp.MustCompile(`^ORD-\d{8}-\d{3}$`)

func newOrderUsecaseForTest(orders *OrderRepoMock, orderItems *OrderItemRepoMock, products *ProductRepoMock, cartItems *CartItemRepoMock) (*OrderUsecase, *TxManagerMock) {
	tx := &TxManagerMock{
		Repos: &TxReposMock{
			orders:     orders,
			orderItems: orderItems,
			cartItems:  cartItems,
			products:   products,
		},
	}
	tx.On("WithinTx", mock.Anything).Return(nil)

	return NewOrderUsecase(tx, cartItems, log.New("test")), tx
}

func TestCreateOrder_Success(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)
	products := new(ProductRepoMock)
	cartItems := new(CartItemRepoMock)

	products.On("FindByIDs", mock.Anything, []string{"p1"}).
		Return([]model.Product{{ID: "p1", Name: "Tシャツ", Price: 15000}}, nil)

	//金額・ステータス・注文番号の形式をINSERT時点で検証する
	orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.UserID == "u1" &&
			o.TotalAmount == 30000 &&
			o.Status == model.OrderStatusPending &&
			orderNumberRe.MatchString(o.OrderNumber) &&
			o.ShippingName == "山田太郎"
	})).Return(model.Order{
		ID:              "o1",
		UserID:          "u1",
		OrderNumber:     "ORD-20250101-042",
		TotalAmount:     30000,
		Status:          model.OrderStatusPending,
		ShippingName:    "山田太郎",
		ShippingPhone:   "090-1234-5678",
		ShippingAddress: "東京都",
		CreatedAt:       time.Now(),
	}, nil)

	orderItems.On("CreateBulk", mock.Anything, "o1", mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 1 &&
			items[0].ProductID == "p1" &&
			items[0].ProductPrice == 15000 &&
			items[0].Quantity == 2 &&
			items[0].Subtotal == 30000
	})).Return(nil)

	cartItems.On("DeleteByUserID", mock.Anything, "u1").Return(nil)

	uc, _ := newOrderUsecaseForTest(orders, orderItems, products, cartItems)

	out, err := uc.CreateOrder(context.Background(), "u1", CreateOrderInput{
		Items:       []model.CartItem{{ProductID: "p1", Quantity: 2}},
		ClientTotal: 30000,
		Shipping:    ShippingInfo{Name: "山田太郎", Phone: "090-1234-5678", Address: "東京都"},
	})

	assert.NoError(t, err)
	assert.Equal(t, "o1", out.ID)
	assert.Equal(t, int64(30000), out.TotalAmount)
	assert.Equal(t, "pending", out.Status)
	assert.Len(t, out.Items, 1)
	assert.Equal(t, int64(15000), out.Items[0].Price)

	orders.AssertExpectations(t)
	orderItems.AssertExpectations(t)
	cartItems.AssertExpectations(t)
}

func TestCreateOrder_TamperedTotal_PersistsNothing(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)
	products := new(ProductRepoMock)
	cartItems := new(CartItemRepoMock)

	products.On("FindByIDs", mock.Anything, mock.Anything).
		Return([]model.Product{{ID: "p1", Name: "Tシャツ", Price: 15000}}, nil)

	uc, _ := newOrderUsecaseForTest(orders, orderItems, products, cartItems)

	_, err := uc.CreateOrder(context.Background(), "u1", CreateOrderInput{
		Items:       []model.CartItem{{ProductID: "p1", Quantity: 2}},
		ClientTotal: 25000,
		Shipping:    ShippingInfo{Name: "山田太郎", Phone: "090-1234-5678", Address: "東京都"},
	})

	var mismatch *TotalMismatchError
	assert.True(t, errors.As(err, &mismatch))
	assert.Equal(t, int64(30000), mismatch.Calculated)
	assert.Equal(t, int64(25000), mismatch.Provided)

	//注文もカートも触らない
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	orderItems.AssertNotCalled(t, "CreateBulk", mock.Anything, mock.Anything, mock.Anything)
	cartItems.AssertNotCalled(t, "DeleteByUserID", mock.Anything, mock.Anything)
}

func TestCreateOrder_MissingProduct_PersistsNothing(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)
	products := new(ProductRepoMock)
	cartItems := new(CartItemRepoMock)

	products.On("FindByIDs", mock.Anything, mock.Anything).
		Return([]model.Product{}, nil)

	uc, _ := newOrderUsecaseForTest(orders, orderItems, products, cartItems)

	_, err := uc.CreateOrder(context.Background(), "u1", CreateOrderInput{
		Items:       []model.CartItem{{ProductID: "gone", Quantity: 1}},
		ClientTotal: 1000,
		Shipping:    ShippingInfo{Name: "山田太郎", Phone: "090-1234-5678", Address: "東京都"},
	})

	var lookup *ProductLookupError
	assert.True(t, errors.As(err, &lookup))
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateOrder_OrderInsertFails(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)
	products := new(ProductRepoMock)
	cartItems := new(CartItemRepoMock)

	products.On("FindByIDs", mock.Anything, mock.Anything).
		Return([]model.Product{{ID: "p1", Name: "Tシャツ", Price: 15000}}, nil)
	orders.On("Create", mock.Anything, mock.Anything).
		Return(model.Order{}, errors.New("insert failed"))

	uc, _ := newOrderUsecaseForTest(orders, orderItems, products, cartItems)

	_, err := uc.CreateOrder(context.Background(), "u1", CreateOrderInput{
		Items:       []model.CartItem{{ProductID: "p1", Quantity: 1}},
		ClientTotal: 15000,
		Shipping:    ShippingInfo{Name: "山田太郎", Phone: "090-1234-5678", Address: "東京都"},
	})

	var persist *OrderPersistError
	assert.True(t, errors.As(err, &persist))
	cartItems.AssertNotCalled(t, "DeleteByUserID", mock.Anything, mock.Anything)
}

func TestCreateOrder_LineItemInsertFails(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)
	products := new(ProductRepoMock)
	cartItems := new(CartItemRepoMock)

	products.On("FindByIDs", mock.Anything, mock.Anything).
		Return([]model.Product{{ID: "p1", Name: "Tシャツ", Price: 15000}}, nil)
	orders.On("Create", mock.Anything, mock.Anything).
		Return(model.Order{ID: "o1", Status: model.OrderStatusPending}, nil)
	orderItems.On("CreateBulk", mock.Anything, "o1", mock.Anything).
		Return(errors.New("insert failed"))

	uc, _ := newOrderUsecaseForTest(orders, orderItems, products, cartItems)

	_, err := uc.CreateOrder(context.Background(), "u1", CreateOrderInput{
		Items:       []model.CartItem{{ProductID: "p1", Quantity: 1}},
		ClientTotal: 15000,
		Shipping:    ShippingInfo{Name: "山田太郎", Phone: "090-1234-5678", Address: "東京都"},
	})

	//トランザクションごと巻き戻る前提のエラー型
	var persist *LineItemPersistError
	assert.True(t, errors.As(err, &persist))
	cartItems.AssertNotCalled(t, "DeleteByUserID", mock.Anything, mock.Anything)
}

func TestCreateOrder_CartClearFailureIsSwallowed(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)
	products := new(ProductRepoMock)
	cartItems := new(CartItemRepoMock)

	products.On("FindByIDs", mock.Anything, mock.Anything).
		Return([]model.Product{{ID: "p1", Name: "Tシャツ", Price: 15000}}, nil)
	orders.On("Create", mock.Anything, mock.Anything).
		Return(model.Order{ID: "o1", UserID: "u1", Status: model.OrderStatusPending, TotalAmount: 15000}, nil)
	orderItems.On("CreateBulk", mock.Anything, "o1", mock.Anything).Return(nil)

	//カートクリアが落ちても注文は成功のまま
	cartItems.On("DeleteByUserID", mock.Anything, "u1").
		Return(errors.New("delete failed"))

	uc, _ := newOrderUsecaseForTest(orders, orderItems, products, cartItems)

	out, err := uc.CreateOrder(context.Background(), "u1", CreateOrderInput{
		Items:       []model.CartItem{{ProductID: "p1", Quantity: 1}},
		ClientTotal: 15000,
		Shipping:    ShippingInfo{Name: "山田太郎", Phone: "090-1234-5678", Address: "東京都"},
	})

	assert.NoError(t, err)
	assert.Equal(t, "o1", out.ID)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	uc, _ := newOrderUsecaseForTest(new(OrderRepoMock), new(OrderItemRepoMock), new(ProductRepoMock), new(CartItemRepoMock))

	_, err := uc.CreateOrder(context.Background(), "u1", CreateOrderInput{
		Items:       []model.CartItem{},
		ClientTotal: 0,
	})

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
}

func TestOrderNumberFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		n := newOrderNumber(time.Now())
		assert.Regexp(t, orderNumberRe, n)
	}

	//日付部分はUTC
	fixed := time.Date(2025, 1, 2, 23, 30, 0, 0, time.UTC)
	assert.Regexp(t, `^ORD-20250102-\d{3}$`, newOrderNumber(fixed))
}

func TestUpdateStatus_PaidSetsPaymentFields(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)

	pending := model.Order{ID: "o1", UserID: "u1", Status: model.OrderStatusPending}
	paymentID := "pay_X"
	method := "toss_payments"
	paid := model.Order{ID: "o1", UserID: "u1", Status: model.OrderStatusPaid, PaymentID: &paymentID, PaymentMethod: &method}

	orders.On("FindByID", mock.Anything, "o1").Return(pending, nil)
	orders.On("UpdateStatus", mock.Anything, "o1", mock.MatchedBy(func(p repo.OrderStatusPatch) bool {
		return p.Status == model.OrderStatusPaid &&
			p.PaymentID != nil && *p.PaymentID == "pay_X" &&
			p.PaymentMethod != nil && *p.PaymentMethod == "toss_payments"
	})).Return(paid, nil)
	orderItems.On("ListByOrderID", mock.Anything, "o1").Return([]model.OrderItem{}, nil)

	uc, _ := newOrderUsecaseForTest(orders, orderItems, new(ProductRepoMock), new(CartItemRepoMock))

	out, err := uc.UpdateStatus(context.Background(), "o1", UpdateStatusInput{
		Status:           model.OrderStatusPaid,
		PaymentID:        "pay_X",
		PaymentMethod:    "toss_payments",
		RequestingUserID: "u1",
	})

	assert.NoError(t, err)
	assert.Equal(t, "paid", out.Status)
	assert.Equal(t, "pay_X", *out.PaymentID)
	orders.AssertExpectations(t)
}

func TestUpdateStatus_RepeatedPaidCallbackIsNoOp(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)

	firstPayment := "pay_X"
	method := "toss_payments"
	paid := model.Order{ID: "o1", UserID: "u1", Status: model.OrderStatusPaid, PaymentID: &firstPayment, PaymentMethod: &method}

	orders.On("FindByID", mock.Anything, "o1").Return(paid, nil)
	orderItems.On("ListByOrderID", mock.Anything, "o1").Return([]model.OrderItem{}, nil)

	uc, _ := newOrderUsecaseForTest(orders, orderItems, new(ProductRepoMock), new(CartItemRepoMock))

	//2回目のコールバック（同じキーでも別のキーでも上書きしない）
	out, err := uc.UpdateStatus(context.Background(), "o1", UpdateStatusInput{
		Status:           model.OrderStatusPaid,
		PaymentID:        "pay_Y",
		PaymentMethod:    "toss_payments",
		RequestingUserID: "u1",
	})

	assert.NoError(t, err)
	assert.Equal(t, "pay_X", *out.PaymentID)
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_OwnershipGuard(t *testing.T) {
	orders := new(OrderRepoMock)

	orders.On("FindByID", mock.Anything, "o1").
		Return(model.Order{ID: "o1", UserID: "u1", Status: model.OrderStatusPending}, nil)

	uc, _ := newOrderUsecaseForTest(orders, new(OrderItemRepoMock), new(ProductRepoMock), new(CartItemRepoMock))

	_, err := uc.UpdateStatus(context.Background(), "o1", UpdateStatusInput{
		Status:           model.OrderStatusPaid,
		PaymentID:        "pay_X",
		RequestingUserID: "u2",
	})

	assert.ErrorIs(t, err, ErrOrderForbidden)
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_OwnershipSkippedForInternalCaller(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)

	pending := model.Order{ID: "o1", UserID: "u1", Status: model.OrderStatusPending}
	cancelled := model.Order{ID: "o1", UserID: "u1", Status: model.OrderStatusCancelled}

	orders.On("FindByID", mock.Anything, "o1").Return(pending, nil)
	orders.On("UpdateStatus", mock.Anything, "o1", mock.Anything).Return(cancelled, nil)
	orderItems.On("ListByOrderID", mock.Anything, "o1").Return([]model.OrderItem{}, nil)

	uc, _ := newOrderUsecaseForTest(orders, orderItems, new(ProductRepoMock), new(CartItemRepoMock))

	//RequestingUserID空は信頼済み内部呼び出し
	out, err := uc.UpdateStatus(context.Background(), "o1", UpdateStatusInput{
		Status: model.OrderStatusCancelled,
	})

	assert.NoError(t, err)
	assert.Equal(t, "cancelled", out.Status)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	orders := new(OrderRepoMock)
	orders.On("FindByID", mock.Anything, "missing").Return(model.Order{}, repo.ErrNotFound)

	uc, _ := newOrderUsecaseForTest(orders, new(OrderItemRepoMock), new(ProductRepoMock), new(CartItemRepoMock))

	_, err := uc.UpdateStatus(context.Background(), "missing", UpdateStatusInput{
		Status:           model.OrderStatusPaid,
		RequestingUserID: "u1",
	})

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	uc, _ := newOrderUsecaseForTest(new(OrderRepoMock), new(OrderItemRepoMock), new(ProductRepoMock), new(CartItemRepoMock))

	_, err := uc.UpdateStatus(context.Background(), "o1", UpdateStatusInput{
		Status: model.OrderStatus("shipped"),
	})

	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
}

func TestGetMyOrderDetail_ForeignOrderIsNotFound(t *testing.T) {
	orders := new(OrderRepoMock)
	orders.On("FindByID", mock.Anything, "o1").
		Return(model.Order{ID: "o1", UserID: "u1"}, nil)

	uc, _ := newOrderUsecaseForTest(orders, new(OrderItemRepoMock), new(ProductRepoMock), new(CartItemRepoMock))

	//他人の注文は「存在しない扱い」
	_, err := uc.GetMyOrderDetail(context.Background(), "u2", "o1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetMyOrderDetail_KeepsSnapshotAfterPriceChange(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)
	products := new(ProductRepoMock)
	cartItems := new(CartItemRepoMock)

	products.On("FindByIDs", mock.Anything, []string{"p1"}).
		Return([]model.Product{{ID: "p1", Name: "Tシャツ", Price: 15000}}, nil).Once()

	order := model.Order{
		ID:          "o1",
		UserID:      "u1",
		OrderNumber: "ORD-20250101-042",
		TotalAmount: 30000,
		Status:      model.OrderStatusPending,
	}
	orders.On("Create", mock.Anything, mock.Anything).Return(order, nil)

	//INSERTされた明細をそのまま一覧の戻りに使う
	var saved []model.OrderItem
	orderItems.On("CreateBulk", mock.Anything, "o1", mock.Anything).
		Run(func(args mock.Arguments) {
			saved = args.Get(2).([]model.OrderItem)
		}).Return(nil)
	cartItems.On("DeleteByUserID", mock.Anything, "u1").Return(nil)

	uc, _ := newOrderUsecaseForTest(orders, orderItems, products, cartItems)

	_, err := uc.CreateOrder(context.Background(), "u1", CreateOrderInput{
		Items:       []model.CartItem{{ProductID: "p1", Quantity: 2}},
		ClientTotal: 30000,
		Shipping:    ShippingInfo{Name: "山田太郎", Phone: "090-1234-5678", Address: "東京都"},
	})
	assert.NoError(t, err)

	//注文後に商品が値上げされても、明細は購入時点の金額のまま
	products.On("FindByIDs", mock.Anything, mock.Anything).
		Return([]model.Product{{ID: "p1", Name: "Tシャツ", Price: 99000}}, nil)
	orders.On("FindByID", mock.Anything, "o1").Return(order, nil)
	orderItems.On("ListByOrderID", mock.Anything, "o1").Return(saved, nil)

	out, err := uc.GetMyOrderDetail(context.Background(), "u1", "o1")

	assert.NoError(t, err)
	assert.Len(t, out.Items, 1)
	assert.Equal(t, int64(15000), out.Items[0].Price)
	assert.Equal(t, int64(30000), out.Items[0].Subtotal)
	assert.Equal(t, int64(30000), out.TotalAmount)

	//詳細の取得は商品マスタを参照しない
	products.AssertNumberOfCalls(t, "FindByIDs", 1)
	products.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestListMyOrders_Pagination(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)

	orders.On("ListByUserID", mock.Anything, "u1", 2, 10).
		Return([]model.Order{{ID: "o1", UserID: "u1", TotalAmount: 30000, Status: model.OrderStatusPending}}, int64(12), nil)
	orderItems.On("ListByOrderID", mock.Anything, "o1").Return([]model.OrderItem{}, nil)

	uc, _ := newOrderUsecaseForTest(orders, orderItems, new(ProductRepoMock), new(CartItemRepoMock))

	out, err := uc.ListMyOrders(context.Background(), "u1", ListOrdersInput{Page: 2, Limit: 10})

	assert.NoError(t, err)
	assert.Len(t, out.Items, 1)
	assert.Equal(t, int64(12), out.Total)
	assert.Equal(t, 2, out.Page)
	assert.Equal(t, 10, out.Limit)
	orders.AssertExpectations(t)
}

func TestListMyOrders_DefaultsAndLimitCap(t *testing.T) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)

	//未指定はpage=1/limit=20に落とす
	orders.On("ListByUserID", mock.Anything, "u1", 1, 20).
		Return([]model.Order{}, int64(0), nil)

	uc, _ := newOrderUsecaseForTest(orders, orderItems, new(ProductRepoMock), new(CartItemRepoMock))

	out, err := uc.ListMyOrders(context.Background(), "u1", ListOrdersInput{})
	assert.NoError(t, err)
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, 20, out.Limit)

	_, err = uc.ListMyOrders(context.Background(), "u1", ListOrdersInput{Limit: 101})
	he, ok := AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
}
