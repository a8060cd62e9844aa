// Package handler is the thin HTTP pass-through over the order service. It
// shapes requests and responses and maps domain errors to status codes; it
// adds no business logic of its own.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/reseller-orders/internal/domain/order"
)

// OrderService is the contract boundary the HTTP layer delegates to.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateRequest) (*order.Detail, error)
	UpdateStatus(ctx context.Context, orderID, statusID uuid.UUID) (bool, error)
	ListOrders(ctx context.Context, statusFilter string) ([]order.Summary, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Detail, error)
	MonthlyProfit(ctx context.Context, year int, month time.Month, statusName string) (decimal.Decimal, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ProfitStatus is the status name used for monthly profit when the
	// request does not name one.
	ProfitStatus string
}

// Handler registers the order routes on a gin router and delegates to the
// order service.
type Handler struct {
	orders       OrderService
	profitStatus string
}

// New constructs a Handler with the required dependencies.
func New(cfg Config, orders OrderService) *Handler {
	profitStatus := cfg.ProfitStatus
	if profitStatus == "" {
		profitStatus = "Completed"
	}
	return &Handler{
		orders:       orders,
		profitStatus: profitStatus,
	}
}

// Register mounts all routes on the given router group.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/orders", h.ListOrders)
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/:id", h.GetOrder)
	r.PATCH("/orders/:id/status", h.UpdateStatus)
	r.GET("/profit/monthly", h.MonthlyProfit)
}

// errorResponse is the JSON error body. Field is set for validation failures
// so the caller can correct the offending part of the request.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// respondError maps domain errors to HTTP status codes: validation failures
// become client errors, unexpected store failures become an opaque 500.
func respondError(c *gin.Context, err error) {
	var fkErr *order.ForeignKeyError
	if errors.As(err, &fkErr) {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: fkErr.Error(),
			Field:   fkErr.Field,
		})
		return
	}

	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: iqErr.Error(),
			Field:   "items",
		})
		return
	}

	if errors.Is(err, order.ErrEmptyItems) {
		badRequest(c, err.Error())
		return
	}

	if errors.Is(err, order.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{
			Code:    http.StatusNotFound,
			Message: "order not found",
		})
		return
	}

	zctx.From(c.Request.Context()).Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, errorResponse{
		Code:    http.StatusInternalServerError,
		Message: "internal error",
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{
		Code:    http.StatusBadRequest,
		Message: msg,
	})
}
