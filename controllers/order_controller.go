package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/services"
)

// OrderItemRequest is one cart line. Price is accepted for compatibility with
// older clients but ignored; the catalog price is always charged.
type OrderItemRequest struct {
	ProductID uint     `json:"product_id" binding:"required"`
	Quantity  int      `json:"quantity" binding:"required,gt=0"`
	Price     *float64 `json:"price"`
}

// CreateOrderRequest represents the request body for checking out
type CreateOrderRequest struct {
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	PromotionCode string             `json:"promotion_code"`
}

// UpdateOrderStatusRequest represents the request body for moving an order along
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateOrderNotesRequest represents the request body for replacing admin notes
type UpdateOrderNotesRequest struct {
	Notes string `json:"notes"`
}

type orderView struct {
	models.Order
	OrderNumber string `json:"order_number"`
}

func newOrderView(order models.Order) orderView {
	return orderView{Order: order, OrderNumber: order.OrderNumber()}
}

func newOrderService() *services.OrderService {
	db := config.GetDB()
	return services.NewOrderService(db, services.NewPromotionService(db), services.GetNotifier(), services.GetDispatcher())
}

// CreateOrder handles POST /api/orders - checks out the caller's cart
func CreateOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	input := services.CreateOrderInput{
		UserID:        user.ID,
		PromotionCode: req.PromotionCode,
		Items:         make([]services.OrderItemInput, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, services.OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := newOrderService().Create(c.Request.Context(), input)
	if err != nil {
		var promoErr *services.PromotionError
		switch {
		case errors.As(err, &promoErr):
			respondError(c, http.StatusBadRequest, "PROMOTION_INVALID", promoErr.Reason)
		case errors.Is(err, services.ErrProductNotFound):
			respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "One or more products could not be found")
		case errors.Is(err, services.ErrInvalidOrder):
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		default:
			respondInternal(c, "DATABASE_ERROR", "Failed to create order", err)
		}
		return
	}

	respondData(c, http.StatusCreated, newOrderView(*order))
}

// ListOrders handles GET /api/orders - admins see every order, customers their own
func ListOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	orders, err := newOrderService().List(c.Request.Context(), *user)
	if err != nil {
		respondInternal(c, "DATABASE_ERROR", "Failed to retrieve orders", err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order))
	}
	respondData(c, http.StatusOK, views)
}

// GetOrder handles GET /api/orders/:id. Orders of other customers look missing.
func GetOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := newOrderService().Get(c.Request.Context(), id, *user)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
			return
		}
		respondInternal(c, "DATABASE_ERROR", "Failed to retrieve order", err)
		return
	}

	respondData(c, http.StatusOK, newOrderView(*order))
}

// UpdateOrderStatus handles PATCH /api/orders/:id/status (admin)
func UpdateOrderStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_STATUS", "Invalid order status")
		return
	}

	order, err := newOrderService().UpdateStatus(c.Request.Context(), id, models.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidStatus):
			respondError(c, http.StatusBadRequest, "INVALID_STATUS", "Invalid order status")
		case errors.Is(err, services.ErrNotFound):
			respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		default:
			respondInternal(c, "DATABASE_ERROR", "Failed to update order status", err)
		}
		return
	}

	respondData(c, http.StatusOK, newOrderView(*order))
}

// UpdateOrderNotes handles PATCH /api/orders/:id/notes (admin)
func UpdateOrderNotes(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	order, err := newOrderService().UpdateNotes(c.Request.Context(), id, req.Notes)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
			return
		}
		respondInternal(c, "DATABASE_ERROR", "Failed to update order notes", err)
		return
	}

	respondData(c, http.StatusOK, newOrderView(*order))
}
