package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rusticroots/storefront-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier() (*NotificationService, *MockMailer) {
	mailer := NewMockMailer()
	return NewNotificationService(mailer, "https://shop.test", "owner@shop.test"), mailer
}

func sampleOrder() models.Order {
	return models.Order{
		ID:             42,
		Subtotal:       1299.99,
		DiscountAmount: 130,
		Total:          1169.99,
		Status:         models.OrderStatusReceived,
		User:           models.User{Name: "John Smith", Email: "john@example.com"},
		Items: []models.OrderItem{
			{ProductName: "Reclaimed Oak Dining Table", Quantity: 1, UnitPrice: 1299.99},
		},
		PromotionSnapshot: &models.PromotionSnapshot{Code: "WELCOME10"},
	}
}

func TestSendWelcome(t *testing.T) {
	notifier, mailer := newTestNotifier()

	result := notifier.SendWelcome(context.Background(), models.User{Name: "John", Email: "john@example.com"})
	assert.True(t, result.Success)
	assert.Empty(t, result.Error)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"john@example.com"}, sent[0].To)
	assert.Equal(t, "Welcome to Rustic Roots - Your Account is Ready!", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "Hello John,")
	assert.Contains(t, sent[0].HTML, "WELCOME10")
	assert.Contains(t, sent[0].Text, "WELCOME10")
}

func TestSendPasswordReset(t *testing.T) {
	notifier, mailer := newTestNotifier()

	result := notifier.SendPasswordReset(context.Background(), models.User{Email: "jane@example.com"}, "abc123")
	assert.True(t, result.Success)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Reset Your Rustic Roots Password", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "https://shop.test/auth/reset-password?token=abc123")
	assert.Contains(t, sent[0].HTML, "Hello Customer,")
}

func TestSendOrderConfirmation(t *testing.T) {
	notifier, mailer := newTestNotifier()

	result := notifier.SendOrderConfirmation(context.Background(), sampleOrder())
	assert.True(t, result.Success)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Order Confirmation #RR-000042 - Thank You!", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "Reclaimed Oak Dining Table")
	assert.Contains(t, sent[0].HTML, "$1169.99")
	assert.Contains(t, sent[0].Text, "Discount (WELCOME10): -$130.00")
	assert.Contains(t, sent[0].Text, "Total: $1169.99")
}

func TestSendOrderConfirmation_NoDiscountLine(t *testing.T) {
	notifier, mailer := newTestNotifier()
	order := sampleOrder()
	order.DiscountAmount = 0
	order.Total = order.Subtotal
	order.PromotionSnapshot = nil

	notifier.SendOrderConfirmation(context.Background(), order)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.NotContains(t, sent[0].Text, "Discount")
}

func TestSendOrderStatusUpdate(t *testing.T) {
	notifier, mailer := newTestNotifier()

	result := notifier.SendOrderStatusUpdate(context.Background(), sampleOrder(),
		models.OrderStatusWorkInProgress, models.OrderStatusInShipping)
	assert.True(t, result.Success)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Order #RR-000042 Update: In Shipping", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "from Work In Progress to In Shipping")
	assert.Contains(t, sent[0].Text, statusMessages[models.OrderStatusInShipping])
}

func TestSendContactMessage(t *testing.T) {
	notifier, mailer := newTestNotifier()

	result := notifier.SendContactMessage(context.Background(), ContactMessage{
		Type:    "contact",
		Name:    "Sam",
		Email:   "sam@example.com",
		Subject: "Delivery",
		Message: "Do you deliver to <b>Perth</b>?",
	})
	assert.True(t, result.Success)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"owner@shop.test"}, sent[0].To)
	assert.Equal(t, "sam@example.com", sent[0].ReplyTo)
	assert.Equal(t, "Contact Form: Delivery", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "&lt;b&gt;Perth&lt;/b&gt;", "HTML body is escaped")
}

func TestSendContactMessage_CustomBuild(t *testing.T) {
	notifier, mailer := newTestNotifier()

	notifier.SendContactMessage(context.Background(), ContactMessage{
		Type:        "custom-build",
		Name:        "Alex",
		Email:       "alex@example.com",
		Description: "A walnut bookshelf",
		Budget:      "$2000-$3000",
	})

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Custom Build Request from Alex", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "A walnut bookshelf")
	assert.Contains(t, sent[0].Text, "Budget: $2000-$3000")
}

func TestSendFailureIsReportedNotReturned(t *testing.T) {
	notifier, mailer := newTestNotifier()
	mailer.FailWith(errors.New("relay unavailable"))

	result := notifier.SendWelcome(context.Background(), models.User{Name: "John", Email: "john@example.com"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "relay unavailable")
	assert.Empty(t, mailer.Sent())
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Received Order", StatusLabel(models.OrderStatusReceived))
	assert.Equal(t, "Work In Progress", StatusLabel(models.OrderStatusWorkInProgress))
	assert.Equal(t, "Delivered", StatusLabel(models.OrderStatusDelivered))
}

func TestEveryTemplateRenders(t *testing.T) {
	for _, name := range []string{"welcome", "password_reset", "order_confirmation", "order_status", "contact"} {
		t.Run(name, func(t *testing.T) {
			data := map[string]any{
				"Name": "Test", "AppURL": "https://shop.test", "ResetURL": "https://shop.test/r",
				"OrderNumber": "RR-000001", "Items": []orderLine{}, "Subtotal": 1.0,
				"DiscountAmount": 0.0, "Total": 1.0, "PromotionCode": "",
				"OldStatus": "A", "NewStatus": "B", "StatusMessage": "m",
				"CustomBuild": false, "Email": "t@example.com",
			}
			html, text, err := renderEmail(name, data)
			require.NoError(t, err)
			assert.Contains(t, html, "<html>")
			assert.NotEmpty(t, text)
		})
	}
}
