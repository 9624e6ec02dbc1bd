package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/models"
)

//go:embed templates/*
var templateFS embed.FS

const sendTimeout = 30 * time.Second

var templateFuncs = map[string]any{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", RoundMoney(v)) },
}

var statusMessages = map[models.OrderStatus]string{
	models.OrderStatusReceived:       "We have received your order and will review it shortly.",
	models.OrderStatusReviewing:      "Our team is reviewing your order details.",
	models.OrderStatusWorkInProgress: "Our artisans have started crafting your furniture.",
	models.OrderStatusInShipping:     "Your order has been shipped and is on its way to you.",
	models.OrderStatusDelivered:      "Your order has been delivered - enjoy your new furniture!",
}

// EmailResult reports the outcome of a send. Failures never surface as errors.
type EmailResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ContactMessage is a submission from the public contact form
type ContactMessage struct {
	Type           string
	Name           string
	Email          string
	Phone          string
	Subject        string
	Message        string
	ProjectType    string
	Timeline       string
	Budget         string
	Dimensions     string
	WoodPreference string
	Description    string
	Inspiration    string
}

// IsCustomBuild reports whether this is a custom furniture request
func (m ContactMessage) IsCustomBuild() bool {
	return m.Type == "custom-build"
}

// Notifier renders and sends transactional emails
type Notifier interface {
	SendWelcome(ctx context.Context, user models.User) EmailResult
	SendPasswordReset(ctx context.Context, user models.User, token string) EmailResult
	SendOrderConfirmation(ctx context.Context, order models.Order) EmailResult
	SendOrderStatusUpdate(ctx context.Context, order models.Order, oldStatus, newStatus models.OrderStatus) EmailResult
	SendContactMessage(ctx context.Context, msg ContactMessage) EmailResult
}

// NotificationService renders embedded templates and sends them through a Mailer
type NotificationService struct {
	mailer    Mailer
	appURL    string
	recipient string
}

var notifierInstance Notifier

// NewNotificationService creates a notifier. appURL prefixes links; recipient
// receives contact form messages.
func NewNotificationService(mailer Mailer, appURL, recipient string) *NotificationService {
	return &NotificationService{mailer: mailer, appURL: appURL, recipient: recipient}
}

// GetNotifier returns the global notifier
func GetNotifier() Notifier {
	return notifierInstance
}

// SetNotifier sets the global notifier
func SetNotifier(n Notifier) {
	notifierInstance = n
}

type orderLine struct {
	Name      string
	Quantity  int
	UnitPrice float64
	LineTotal float64
}

func (s *NotificationService) SendWelcome(ctx context.Context, user models.User) EmailResult {
	data := map[string]any{"Name": displayName(user), "AppURL": s.appURL}
	return s.deliver(ctx, "welcome", []string{user.Email}, "", "Welcome to Rustic Roots - Your Account is Ready!", data)
}

func (s *NotificationService) SendPasswordReset(ctx context.Context, user models.User, token string) EmailResult {
	data := map[string]any{
		"Name":     displayName(user),
		"AppURL":   s.appURL,
		"ResetURL": s.ResetURL(token),
	}
	return s.deliver(ctx, "password_reset", []string{user.Email}, "", "Reset Your Rustic Roots Password", data)
}

// ResetURL is the client page that accepts token
func (s *NotificationService) ResetURL(token string) string {
	return fmt.Sprintf("%s/auth/reset-password?token=%s", s.appURL, url.QueryEscape(token))
}

func (s *NotificationService) SendOrderConfirmation(ctx context.Context, order models.Order) EmailResult {
	lines := make([]orderLine, 0, len(order.Items))
	for _, item := range order.Items {
		name := item.ProductName
		if name == "" {
			name = item.Product.Name
		}
		lines = append(lines, orderLine{
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: LineTotal(item.UnitPrice, item.Quantity),
		})
	}

	promoCode := ""
	if order.PromotionSnapshot != nil {
		promoCode = order.PromotionSnapshot.Code
	}

	data := map[string]any{
		"Name":           displayName(order.User),
		"AppURL":         s.appURL,
		"OrderNumber":    order.OrderNumber(),
		"Items":          lines,
		"Subtotal":       order.Subtotal,
		"DiscountAmount": order.DiscountAmount,
		"Total":          order.Total,
		"PromotionCode":  promoCode,
	}
	subject := fmt.Sprintf("Order Confirmation #%s - Thank You!", order.OrderNumber())
	return s.deliver(ctx, "order_confirmation", []string{order.User.Email}, "", subject, data)
}

func (s *NotificationService) SendOrderStatusUpdate(ctx context.Context, order models.Order, oldStatus, newStatus models.OrderStatus) EmailResult {
	message, ok := statusMessages[newStatus]
	if !ok {
		message = "Your order status has been updated."
	}
	data := map[string]any{
		"Name":          displayName(order.User),
		"AppURL":        s.appURL,
		"OrderNumber":   order.OrderNumber(),
		"OldStatus":     StatusLabel(oldStatus),
		"NewStatus":     StatusLabel(newStatus),
		"StatusMessage": message,
	}
	subject := fmt.Sprintf("Order #%s Update: %s", order.OrderNumber(), StatusLabel(newStatus))
	return s.deliver(ctx, "order_status", []string{order.User.Email}, "", subject, data)
}

func (s *NotificationService) SendContactMessage(ctx context.Context, msg ContactMessage) EmailResult {
	var subject string
	switch {
	case msg.IsCustomBuild():
		subject = "Custom Build Request from " + msg.Name
	case msg.Subject != "":
		subject = "Contact Form: " + msg.Subject
	default:
		subject = "Contact Form Message from " + msg.Name
	}

	data := map[string]any{
		"AppURL":         s.appURL,
		"CustomBuild":    msg.IsCustomBuild(),
		"Name":           msg.Name,
		"Email":          msg.Email,
		"Phone":          msg.Phone,
		"Subject":        msg.Subject,
		"Message":        msg.Message,
		"ProjectType":    msg.ProjectType,
		"Timeline":       msg.Timeline,
		"Budget":         msg.Budget,
		"Dimensions":     msg.Dimensions,
		"WoodPreference": msg.WoodPreference,
		"Description":    msg.Description,
		"Inspiration":    msg.Inspiration,
	}
	return s.deliver(ctx, "contact", []string{s.recipient}, msg.Email, subject, data)
}

func (s *NotificationService) deliver(ctx context.Context, name string, to []string, replyTo, subject string, data any) EmailResult {
	log := logger.FromContext(ctx).With(slog.String("template", name), slog.Any("to", to))

	html, text, err := renderEmail(name, data)
	if err != nil {
		log.Error("failed to render email", slog.Any("error", err))
		return EmailResult{Success: false, Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err = s.mailer.Send(ctx, Email{To: to, ReplyTo: replyTo, Subject: subject, HTML: html, Text: text})
	if err != nil {
		log.Error("failed to send email", slog.Any("error", err))
		return EmailResult{Success: false, Error: err.Error()}
	}

	log.Info("email sent")
	return EmailResult{Success: true}
}

func renderEmail(name string, data any) (string, string, error) {
	htmlTmpl, err := htmltemplate.New(name).Funcs(templateFuncs).
		ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
	if err != nil {
		return "", "", fmt.Errorf("parse %s.html: %w", name, err)
	}
	var html bytes.Buffer
	if err := htmlTmpl.ExecuteTemplate(&html, name+".html", data); err != nil {
		return "", "", fmt.Errorf("render %s.html: %w", name, err)
	}

	textTmpl, err := texttemplate.New(name).Funcs(templateFuncs).
		ParseFS(templateFS, "templates/"+name+".txt")
	if err != nil {
		return "", "", fmt.Errorf("parse %s.txt: %w", name, err)
	}
	var text bytes.Buffer
	if err := textTmpl.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return "", "", fmt.Errorf("render %s.txt: %w", name, err)
	}

	return html.String(), text.String(), nil
}

// StatusLabel turns IN_SHIPPING into "In Shipping"
func StatusLabel(status models.OrderStatus) string {
	parts := strings.Split(strings.ToLower(string(status)), "_")
	for i, part := range parts {
		if part != "" {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, " ")
}

func displayName(user models.User) string {
	if user.Name != "" {
		return user.Name
	}
	return "Customer"
}
