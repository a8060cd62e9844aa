package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/reseller-orders/internal/domain/order"
)

// Request bodies. Identifiers cross the boundary as textual GUIDs; the
// binding tags reject malformed ones before the service sees them.

type createOrderRequest struct {
	ResellerID string                `json:"resellerId" binding:"required,uuid"`
	CustomerID string                `json:"customerId" binding:"required,uuid"`
	StatusID   string                `json:"statusId" binding:"required,uuid"`
	Items      []createOrderItemBody `json:"items" binding:"required,min=1,dive"`
}

type createOrderItemBody struct {
	ServiceID string `json:"serviceId" binding:"required,uuid"`
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type updateStatusRequest struct {
	StatusID string `json:"statusId" binding:"required,uuid"`
}

type monthlyProfitQuery struct {
	Year   int    `form:"year" binding:"required,gte=1000,lte=9999"`
	Month  int    `form:"month" binding:"required,gte=1,lte=12"`
	Status string `form:"status"`
}

// Response bodies. Decimal amounts are rendered as JSON strings to keep
// exact values on the wire.

type orderItemResponse struct {
	ID          string          `json:"id"`
	ServiceID   string          `json:"serviceId"`
	ServiceName string          `json:"serviceName"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalCost   decimal.Decimal `json:"totalCost"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

type orderSummaryResponse struct {
	ID         string          `json:"id"`
	ResellerID string          `json:"resellerId"`
	CustomerID string          `json:"customerId"`
	StatusID   string          `json:"statusId"`
	StatusName string          `json:"statusName"`
	ItemCount  int             `json:"itemCount"`
	TotalCost  decimal.Decimal `json:"totalCost"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type orderDetailResponse struct {
	orderSummaryResponse
	Items []orderItemResponse `json:"items"`
}

type updateStatusResponse struct {
	Updated bool `json:"updated"`
}

type monthlyProfitResponse struct {
	Year   int             `json:"year"`
	Month  int             `json:"month"`
	Status string          `json:"status"`
	Profit decimal.Decimal `json:"profit"`
}

// CreateOrder handles POST /orders.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	items := make([]order.CreateItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.CreateItem{
			ServiceID: uuid.MustParse(item.ServiceID),
			ProductID: uuid.MustParse(item.ProductID),
			Quantity:  item.Quantity,
		}
	}

	detail, err := h.orders.CreateOrder(c.Request.Context(), order.CreateRequest{
		ResellerID: uuid.MustParse(req.ResellerID),
		CustomerID: uuid.MustParse(req.CustomerID),
		StatusID:   uuid.MustParse(req.StatusID),
		Items:      items,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toDetailResponse(detail))
}

// ListOrders handles GET /orders with an optional exact status-name filter.
func (h *Handler) ListOrders(c *gin.Context) {
	summaries, err := h.orders.ListOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]orderSummaryResponse, len(summaries))
	for i, s := range summaries {
		out[i] = toSummaryResponse(s)
	}
	c.JSON(http.StatusOK, out)
}

// GetOrder handles GET /orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid order id")
		return
	}

	detail, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDetailResponse(detail))
}

// UpdateStatus handles PATCH /orders/:id/status. An unknown order id is a
// plain 404; an unknown status id is a validation failure.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	updated, err := h.orders.UpdateStatus(c.Request.Context(), id, uuid.MustParse(req.StatusID))
	if err != nil {
		respondError(c, err)
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, errorResponse{
			Code:    http.StatusNotFound,
			Message: "order not found",
		})
		return
	}
	c.JSON(http.StatusOK, updateStatusResponse{Updated: true})
}

// MonthlyProfit handles GET /profit/monthly. Out-of-range month or year
// values are rejected here; the core itself simply matches no rows.
func (h *Handler) MonthlyProfit(c *gin.Context) {
	var q monthlyProfitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}

	status := q.Status
	if status == "" {
		status = h.profitStatus
	}

	profit, err := h.orders.MonthlyProfit(c.Request.Context(), q.Year, time.Month(q.Month), status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, monthlyProfitResponse{
		Year:   q.Year,
		Month:  q.Month,
		Status: status,
		Profit: profit,
	})
}

func toSummaryResponse(s order.Summary) orderSummaryResponse {
	return orderSummaryResponse{
		ID:         s.ID.String(),
		ResellerID: s.ResellerID.String(),
		CustomerID: s.CustomerID.String(),
		StatusID:   s.StatusID.String(),
		StatusName: s.StatusName,
		ItemCount:  s.ItemCount,
		TotalCost:  s.TotalCost,
		TotalPrice: s.TotalPrice,
		CreatedAt:  s.CreatedAt,
	}
}

func toDetailResponse(d *order.Detail) orderDetailResponse {
	resp := orderDetailResponse{
		orderSummaryResponse: toSummaryResponse(d.Summary),
		Items:                make([]orderItemResponse, len(d.Items)),
	}
	for i, item := range d.Items {
		resp.Items[i] = orderItemResponse{
			ID:          item.ID.String(),
			ServiceID:   item.ServiceID.String(),
			ServiceName: item.ServiceName,
			ProductID:   item.ProductID.String(),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitCost:    item.UnitCost,
			UnitPrice:   item.UnitPrice,
			TotalCost:   item.TotalCost,
			TotalPrice:  item.TotalPrice,
		}
	}
	return resp
}
