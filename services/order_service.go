package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record is missing or hidden from the caller
	ErrNotFound = errors.New("not found")
	// ErrProductNotFound is returned when an order references an unknown product
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidOrder wraps cart validation failures
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInvalidStatus is returned for unknown order statuses
	ErrInvalidStatus = errors.New("invalid order status")
)

// OrderItemInput is one requested cart line. Prices always come from the catalog.
type OrderItemInput struct {
	ProductID uint
	Quantity  int
}

// CreateOrderInput is a checkout request for UserID
type CreateOrderInput struct {
	UserID        uint
	Items         []OrderItemInput
	PromotionCode string
}

// OrderService creates orders and applies admin updates
type OrderService struct {
	db         *gorm.DB
	promotions *PromotionService
	notifier   Notifier
	dispatcher Dispatcher
}

// NewOrderService wires the order service. notifier may be nil to disable emails.
func NewOrderService(db *gorm.DB, promotions *PromotionService, notifier Notifier, dispatcher Dispatcher) *OrderService {
	if dispatcher == nil {
		dispatcher = InlineDispatcher{}
	}
	return &OrderService{db: db, promotions: promotions, notifier: notifier, dispatcher: dispatcher}
}

// Create prices the cart from live product data, re-validates the promotion,
// and persists the order with its items, snapshot and usage record in one
// transaction. The confirmation email is dispatched after commit.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidOrder)
		}
	}

	var orderID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := s.priceItems(tx, in.Items)
		if err != nil {
			return err
		}

		subtotal := Subtotal(items)
		order := models.Order{
			Subtotal: subtotal,
			Total:    subtotal,
			Status:   models.OrderStatusReceived,
			UserID:   in.UserID,
			Items:    items,
		}

		var quote *PromotionQuote
		if code := NormalizeCode(in.PromotionCode); code != "" {
			quote, err = s.promotions.validate(tx, code, subtotal, in.UserID, true)
			if err != nil {
				return err
			}
			order.DiscountAmount = quote.DiscountAmount
			order.Total = quote.Total
			order.PromotionID = &quote.Promotion.ID
			order.PromotionSnapshot = quote.Promotion.Snapshot()
		}

		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		if quote != nil {
			if err := recordPromotionUse(tx, quote, order); err != nil {
				return err
			}
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("order created",
		slog.Uint64("order_id", uint64(order.ID)),
		slog.Uint64("user_id", uint64(order.UserID)),
		slog.Float64("total", order.Total))

	s.notify(ctx, func(ctx context.Context, n Notifier) {
		n.SendOrderConfirmation(ctx, *order)
	})
	return order, nil
}

func (s *OrderService) priceItems(tx *gorm.DB, inputs []OrderItemInput) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(inputs))
	for _, input := range inputs {
		var product models.Product
		if err := tx.First(&product, input.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %d", ErrProductNotFound, input.ProductID)
			}
			return nil, fmt.Errorf("load product %d: %w", input.ProductID, err)
		}
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    input.Quantity,
			UnitPrice:   RoundMoney(product.Price),
		})
	}
	return items, nil
}

// recordPromotionUse bumps current_uses only while still under max_uses, so
// concurrent checkouts cannot overshoot the cap.
func recordPromotionUse(tx *gorm.DB, quote *PromotionQuote, order models.Order) error {
	res := tx.Model(&models.Promotion{}).
		Where("id = ? AND (max_uses IS NULL OR current_uses < max_uses)", quote.Promotion.ID).
		UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))
	if res.Error != nil {
		return fmt.Errorf("increment promotion usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return rejectPromotion(ReasonUsageLimit)
	}

	usage := models.PromotionUsage{
		PromotionID:    quote.Promotion.ID,
		UserID:         order.UserID,
		OrderID:        order.ID,
		DiscountAmount: quote.DiscountAmount,
		UsedAt:         time.Now(),
	}
	if err := tx.Create(&usage).Error; err != nil {
		return fmt.Errorf("record promotion usage: %w", err)
	}
	return nil
}

// List returns every order for admins and only the caller's own otherwise, newest first
func (s *OrderService) List(ctx context.Context, viewer models.User) ([]models.Order, error) {
	query := s.preloaded(ctx).Order("created_at DESC, id DESC")
	if !viewer.IsAdmin() {
		query = query.Where("user_id = ?", viewer.ID)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// Get returns one order. Orders owned by someone else look missing to non-admins.
func (s *OrderService) Get(ctx context.Context, id uint, viewer models.User) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && order.UserID != viewer.ID {
		return nil, ErrNotFound
	}
	return order, nil
}

// UpdateStatus moves an order to any valid status. A status email goes out
// only when the status actually changed.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var oldStatus models.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		oldStatus = order.Status
		if oldStatus == status {
			return nil
		}
		return tx.Model(&order).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if oldStatus != status {
		logger.FromContext(ctx).Info("order status changed",
			slog.Uint64("order_id", uint64(id)),
			slog.String("from", string(oldStatus)),
			slog.String("to", string(status)))

		s.notify(ctx, func(ctx context.Context, n Notifier) {
			n.SendOrderStatusUpdate(ctx, *order, oldStatus, status)
		})
	}
	return order, nil
}

// UpdateNotes replaces the admin notes on an order
func (s *OrderService) UpdateNotes(ctx context.Context, id uint, notes string) (*models.Order, error) {
	res := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("notes", notes)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
	}
	return s.load(ctx, id)
}

func (s *OrderService) preloaded(ctx context.Context) *gorm.DB {
	unscoped := func(db *gorm.DB) *gorm.DB { return db.Unscoped() }
	return s.db.WithContext(ctx).
		Preload("User", unscoped).
		Preload("Items.Product", unscoped)
}

func (s *OrderService) load(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.preloaded(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// notify runs send on the dispatcher with a context detached from the request
func (s *OrderService) notify(ctx context.Context, send func(context.Context, Notifier)) {
	if s.notifier == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	n := s.notifier
	s.dispatcher.Dispatch(func() {
		send(detached, n)
	})
}
