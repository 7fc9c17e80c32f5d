package usecase

import (
	"errors"
	"fmt"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 注文まわりのドメインエラー。handlerのwriteErrorでHTTPステータスに変換する。
var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderForbidden = errors.New("no permission for this order")
)

// カートが参照する商品が店頭から消えている
type ProductLookupError struct {
	Missing []string
}

func (e *ProductLookupError) Error() string {
	return "one or more referenced products no longer exist"
}

// クライアント申告額とサーバー再計算額が許容誤差を超えてずれている
type TotalMismatchError struct {
	Calculated int64
	Provided   int64
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("order total mismatch: calculated=%d provided=%d", e.Calculated, e.Provided)
}

// 注文行のINSERT失敗
type OrderPersistError struct {
	Err error
}

func (e *OrderPersistError) Error() string {
	return "failed to create order, please try again later"
}

func (e *OrderPersistError) Unwrap() error { return e.Err }

// 注文明細のINSERT失敗（トランザクションごと巻き戻る）
type LineItemPersistError struct {
	Err error
}

func (e *LineItemPersistError) Error() string {
	return "failed to create order, please try again later"
}

func (e *LineItemPersistError) Unwrap() error { return e.Err }
