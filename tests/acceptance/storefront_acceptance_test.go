package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/middleware"
	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/server"
	"github.com/rusticroots/storefront-api/services"
	"github.com/rusticroots/storefront-api/tests/testutil"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// StorefrontAcceptanceTestSuite exercises the API over real HTTP the way the
// browser client does: session cookie, JSON bodies, CORS.
type StorefrontAcceptanceTestSuite struct {
	suite.Suite
	server *httptest.Server
	db     *gorm.DB
	cfg    *config.Config
	mailer *services.MockMailer
	admin  models.User
	table  models.Product
	bench  models.Product
}

// SetupSuite runs once before all tests
func (s *StorefrontAcceptanceTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	services.BcryptCost = bcrypt.MinCost

	s.cfg = testutil.LoadTestConfig(s.T())
	logger.Init(s.cfg.LogLevel, s.cfg.GoEnv)

	s.db = testutil.NewTestDB(s.T())
	config.SetDB(s.db)
	config.SetConfig(s.cfg)

	s.mailer = services.NewMockMailer()
	services.SetNotifier(services.NewNotificationService(s.mailer, s.cfg.AppURL, s.cfg.ContactRecipient))
	services.SetDispatcher(services.InlineDispatcher{})
	services.SetSessionService(services.NewSessionService(s.cfg.SessionSecret, s.cfg.SessionIssuer, s.cfg.SessionAudience, s.cfg.SessionTTL))
	services.SetContactLimiter(services.NewMemoryRateLimiter(5, time.Hour))
	services.SetProductCache(services.NoopProductCache{})
	storage := services.NewMockStorage()
	storage.SetAsMockForTesting()
	services.InitImageService(storage, "")

	router, err := server.SetupRouter(s.cfg, middleware.NewMetrics())
	s.Require().NoError(err)
	s.server = httptest.NewServer(router)

	s.admin = testutil.CreateUser(s.T(), s.db, "Admin User", "admin@therusticroots.com.au", models.RoleAdmin)
	s.table = testutil.CreateProduct(s.T(), s.db, s.admin.ID, "Rustic Oak Dining Table", 1299.99)
	s.bench = testutil.CreateProduct(s.T(), s.db, s.admin.ID, "Teak Outdoor Bench", 349.99)
	testutil.CreateWelcomePromotion(s.T(), s.db, s.admin.ID)
}

// TearDownSuite runs once after all tests
func (s *StorefrontAcceptanceTestSuite) TearDownSuite() {
	s.server.Close()
}

// newBrowser returns a client that keeps cookies like a browser tab
func (s *StorefrontAcceptanceTestSuite) newBrowser() *http.Client {
	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (s *StorefrontAcceptanceTestSuite) send(client *http.Client, method, path string, body interface{}) (*http.Response, envelope) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	var env envelope
	if len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (s *StorefrontAcceptanceTestSuite) decode(env envelope, v interface{}) {
	s.Require().True(env.Success, "error code %s", env.Error.Code)
	s.Require().NoError(json.Unmarshal(env.Data, v))
}

// TestBrowseWithoutAccount covers the anonymous shopper
func (s *StorefrontAcceptanceTestSuite) TestBrowseWithoutAccount() {
	browser := s.newBrowser()

	resp, env := s.send(browser, http.MethodGet, "/api/health", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("Rustic Roots API is running", env.Message)
	s.NotEmpty(resp.Header.Get("X-Request-ID"))
	s.Equal("http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, env = s.send(browser, http.MethodGet, "/api/products?category=tables", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var products []models.Product
	s.decode(env, &products)
	s.Len(products, 2)

	resp, env = s.send(browser, http.MethodGet, "/api/promotions", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	var promotions []map[string]interface{}
	s.decode(env, &promotions)
	s.Require().Len(promotions, 1)
	s.Equal("WELCOME10", promotions[0]["code"])

	resp, env = s.send(browser, http.MethodPost, "/api/cart/quote", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": s.bench.ID, "quantity": 2}},
		"promotion_code": "WELCOME10",
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	var quote struct {
		Total     float64 `json:"total"`
		Promotion struct {
			IsValid bool `json:"is_valid"`
		} `json:"promotion"`
	}
	s.decode(env, &quote)
	s.Equal(699.98, quote.Total)
	s.False(quote.Promotion.IsValid)

	resp, env = s.send(browser, http.MethodPost, "/api/orders", map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": s.bench.ID, "quantity": 1}},
	})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("UNAUTHORIZED", env.Error.Code)
}

// TestCookieSessionCheckout signs up, shops and signs out using only the session cookie
func (s *StorefrontAcceptanceTestSuite) TestCookieSessionCheckout() {
	browser := s.newBrowser()

	resp, _ := s.send(browser, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Olivia Brown", "email": "olivia@example.com", "password": "timber123",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	resp, _ = s.send(browser, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "olivia@example.com", "password": "timber123",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	s.Require().NotNil(sessionCookie, "login sets the session cookie")
	s.True(sessionCookie.HttpOnly)
	s.Equal(http.SameSiteLaxMode, sessionCookie.SameSite)

	resp, env := s.send(browser, http.MethodGet, "/api/auth/me", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var me models.User
	s.decode(env, &me)
	s.Equal("olivia@example.com", me.Email)
	s.Equal(models.RoleUser, me.Role)

	resp, env = s.send(browser, http.MethodPost, "/api/cart/quote", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": s.table.ID, "quantity": 1}},
		"promotion_code": "welcome10",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var quote struct {
		DiscountAmount float64 `json:"discount_amount"`
		Total          float64 `json:"total"`
	}
	s.decode(env, &quote)
	s.Equal(130.0, quote.DiscountAmount)

	resp, env = s.send(browser, http.MethodPost, "/api/orders", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": s.table.ID, "quantity": 1}},
		"promotion_code": "welcome10",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var order struct {
		ID          uint    `json:"id"`
		OrderNumber string  `json:"order_number"`
		Total       float64 `json:"total"`
	}
	s.decode(env, &order)
	s.Equal(quote.Total, order.Total, "checkout charges what the quote showed")
	s.Equal(fmt.Sprintf("RR-%06d", order.ID), order.OrderNumber)

	resp, _ = s.send(browser, http.MethodGet, fmt.Sprintf("/api/orders/%d", order.ID), nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.send(browser, http.MethodGet, "/api/users", nil)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp, _ = s.send(browser, http.MethodPost, "/api/auth/logout", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, env = s.send(browser, http.MethodGet, "/api/auth/me", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("UNAUTHORIZED", env.Error.Code)
}

// TestContactForm submits a custom build request
func (s *StorefrontAcceptanceTestSuite) TestContactForm() {
	browser := s.newBrowser()
	s.mailer.Clear()

	resp, env := s.send(browser, http.MethodPost, "/api/contact", map[string]string{
		"type":        "custom-build",
		"name":        "Liam Nguyen",
		"email":       "liam@example.com",
		"timeline":    "Before Christmas",
		"description": "Hall table in blackbutt, 1.2m long",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("Message sent successfully", env.Message)

	sent := s.mailer.Sent()
	s.Require().Len(sent, 1)
	s.Equal("Custom Build Request from Liam Nguyen", sent[0].Subject)
	s.Equal([]string{s.cfg.ContactRecipient}, sent[0].To)
}

// TestStorefrontAcceptanceTestSuite runs the acceptance test suite
func TestStorefrontAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(StorefrontAcceptanceTestSuite))
}
