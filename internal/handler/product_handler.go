package handler

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// 金額不一致だけは両方の値をそのまま返す（原因調査用）
type totalMismatchResponse struct {
	Error      string `json:"error"`
	Calculated int64  `json:"calculated"`
	Provided   int64  `json:"provided"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	var mismatch *usecase.TotalMismatchError
	if errors.As(err, &mismatch) {
		return c.JSON(http.StatusBadRequest, totalMismatchResponse{
			Error:      mismatch.Error(),
			Calculated: mismatch.Calculated,
			Provided:   mismatch.Provided,
		})
	}

	var lookup *usecase.ProductLookupError
	if errors.As(err, &lookup) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: lookup.Error()})
	}

	var orderPersist *usecase.OrderPersistError
	var itemPersist *usecase.LineItemPersistError
	if errors.As(err, &orderPersist) || errors.As(err, &itemPersist) {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}

	switch {
	case errors.Is(err, usecase.ErrOrderNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrOrderForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
	}

	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// /products と /categories の公開API
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

// 公開商品のルートを登録
func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products", h.list)
	e.GET("/products/:id", h.detail)
	e.GET("/categories", h.categories)
}

func (h *ProductHandler) list(c echo.Context) error {
	// page（default 1）
	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		}
		page = p
	}

	// limit（default 20）
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	out, err := h.uc.ListPublicProducts(c.Request().Context(), usecase.ListProductsInput{
		Page:     page,
		Limit:    limit,
		Q:        c.QueryParam("q"),
		Category: c.QueryParam("category"),
		Sort:     c.QueryParam("sort"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	p, err := h.uc.GetProductDetail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) categories(c echo.Context) error {
	out, err := h.uc.ListCategories(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
