package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 決済ウィジェットのリダイレクトコールバックを受ける。
// successは同じブラウザ操作で複数回飛んでくることがある（戻るボタン等）。
type PaymentHandler struct {
	uc *usecase.OrderUsecase
}

func NewPaymentHandler(uc *usecase.OrderUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

// 決済プロバイダ固定
const paymentMethodToss = "toss_payments"

type PaymentConfirmRequest struct {
	PaymentKey string `json:"payment_key"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/payments")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("/:orderId/confirm", h.confirm)
	g.POST("/:orderId/fail", h.fail)
}

// 成功リダイレクト。paid遷移は再送されても二重適用されない。
func (h *PaymentHandler) confirm(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PaymentConfirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.PaymentKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid payment_key"})
	}

	out, err := h.uc.UpdateStatus(c.Request().Context(), c.Param("orderId"), usecase.UpdateStatusInput{
		Status:           model.OrderStatusPaid,
		PaymentID:        req.PaymentKey,
		PaymentMethod:    paymentMethodToss,
		RequestingUserID: userID,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// 失敗リダイレクトはステータスを変えない（ユーザーはカートへ戻る）
func (h *PaymentHandler) fail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), userID, c.Param("orderId"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
