// Checkout and order HTTP handlers.
//
// This file exposes REST endpoints for the payment flow:
//   - POST /products/{id}/checkout   (begin checkout, idempotent via header)
//   - GET  /orders                   (list, paginated, ETag support)
//   - GET  /orders/{id}/status       (ownership-scoped point-in-time status)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veltix/go-access-backend/internal/domain"
	"github.com/veltix/go-access-backend/internal/http/middleware"
	"github.com/veltix/go-access-backend/internal/repo"
	"github.com/veltix/go-access-backend/internal/services"
	"github.com/veltix/go-access-backend/internal/utils"
)

//
// DTOs
//

// CheckoutResponse is returned when a checkout is begun (or replayed).
type CheckoutResponse struct {
	OrderID string `json:"order_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// CheckoutURL is the gateway page the buyer should be redirected to.
	// Empty on replays where the original session may have expired.
	CheckoutURL string `json:"checkout_url,omitempty"`
	// Amount is the price in minor currency units.
	Amount int64 `json:"amount" example:"1999"`
	// DisplayAmount is Amount rendered for humans (e.g. "$19.99").
	DisplayAmount string `json:"display_amount,omitempty" example:"$19.99"`
	Currency      string `json:"currency" example:"usd"`
	// Replayed is true when the Idempotency-Key matched a prior checkout.
	Replayed bool `json:"replayed,omitempty"`
}

// OrderStatusResponse reports the resolved status of one order.
type OrderStatusResponse struct {
	OrderID string `json:"order_id"`
	// Status is one of: success, pending, failed, cancelled.
	Status string `json:"status" example:"pending"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListOrdersResponse wraps a page of orders and pagination information.
type ListOrdersResponse struct {
	Orders     []domain.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// BeginCheckout godoc
// @ID          beginCheckout
// @Summary     Begin a product checkout
// @Description Creates a pending order and a gateway checkout session. Safe to retry with the same Idempotency-Key.
// @Tags        Checkout
// @Produce     json
//
// @Param       id               path    string  true   "Product ID"  example(prod_dashboards)
// @Param       Idempotency-Key  header  string  false  "Stable key for safe retries"
//
// @Success     201  {object} handlers.CheckoutResponse
// @Success     200  {object} handlers.CheckoutResponse "Replayed prior checkout"
// @Failure     400  {object} handlers.ErrorResponse "Unknown product"
// @Failure     401  {object} handlers.ErrorResponse "No authenticated identity"
// @Failure     502  {object} handlers.ErrorResponse "Payment gateway unavailable"
// @Router      /products/{id}/checkout [post]
func (h *Handlers) BeginCheckout(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("id"))
	idemKey, _ := middleware.GetIdempotencyKey(c)

	co, err := h.checkoutSvc.Begin(c.Request.Context(), userID(c), productID, idemKey)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthenticated):
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		case errors.Is(err, services.ErrUnknownProduct):
			fail(c, http.StatusBadRequest, ErrCodeUnknownProduct, "unknown product")
		case errors.Is(err, services.ErrCheckoutUnavailable):
			fail(c, http.StatusBadGateway, ErrCodeCheckoutFailed, "payment gateway unavailable, please retry")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCheckoutFailed, err.Error())
		}
		return
	}

	status := http.StatusCreated
	if co.Replayed {
		status = http.StatusOK
	}
	ok(c, status, CheckoutResponse{
		OrderID:       co.Order.ID,
		CheckoutURL:   co.URL,
		Amount:        co.Order.Amount,
		DisplayAmount: utils.FormatAmount(co.Order.Amount, co.Order.Currency),
		Currency:      co.Order.Currency,
		Replayed:      co.Replayed,
	})
}

// ListOrders godoc
// @ID          listOrders
// @Summary     List orders (paginated)
// @Description Returns a page of the user's orders, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Orders
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListOrdersResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "No authenticated identity"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /orders [get]
func (h *Handlers) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, isConcrete := h.checkoutSvc.(*services.CheckoutService); isConcrete {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.OrdersStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"orders:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	if db == nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "order listing unavailable")
		return
	}

	total, err := repo.CountOrders(ctx, db, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, err := repo.ListOrdersPage(ctx, db, uid, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListOrdersResponse{
		Orders: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// OrderStatus godoc
// @ID          orderStatus
// @Summary     Resolve an order's status
// @Description Returns the current status of an order owned by the caller. Success is asserted only once the entitlement is visible.
// @Tags        Orders
// @Produce     json
//
// @Param       id  path  string  true  "Order ID (UUID)"  format(uuid) example(141add05-4415-4938-b5a1-17e0d3171aff)
//
// @Success     200  {object} handlers.OrderStatusResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "No authenticated identity"
// @Failure     404  {object} handlers.ErrorResponse "Order not found (or not yours)"
// @Router      /orders/{id}/status [get]
func (h *Handlers) OrderStatus(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	orderID := c.Param("id")
	if _, err := uuid.Parse(orderID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a UUID")
		return
	}

	status, err := h.orderSvc.Status(c.Request.Context(), uid, orderID)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
		return
	}
	ok(c, http.StatusOK, OrderStatusResponse{OrderID: orderID, Status: status})
}
