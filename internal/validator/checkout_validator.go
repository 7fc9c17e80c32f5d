package validator

import (
	"errors"
	"regexp"
	"strings"

	"storefront/internal/usecase"
)

var (
	// 配送先の入力が不正
	ErrInvalidShipping = errors.New("invalid shipping info")
)

// 数字とハイフンの電話番号（8〜13桁、両端は数字）
var phoneRe = regexp.MustCompile(`^[0-9][0-9-]{6,11}[0-9]$`)

// ValidateShipping はチェックアウトの配送先入力を検証する。
func ValidateShipping(in usecase.ShippingInfo) error {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	address := strings.TrimSpace(in.Address)

	// 必須チェック
	if name == "" || phone == "" || address == "" {
		return ErrInvalidShipping
	}

	if len(name) > 100 || len(address) > 500 {
		return ErrInvalidShipping
	}

	if !phoneRe.MatchString(phone) {
		return ErrInvalidShipping
	}

	return nil
}
