package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/models"
	"gorm.io/gorm"
)

// SessionCookieName is the HttpOnly cookie carrying the session token
const SessionCookieName = "session_token"

// Gin context keys
const (
	ContextUserID      = "user_id"
	ContextClaims      = "validated_claims"
	ContextCurrentUser = "current_user"
)

// CustomClaims contains the session data we add on top of the registered claims.
type CustomClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
}

// Validate rejects tokens carrying an unknown role.
func (c *CustomClaims) Validate(ctx context.Context) error {
	if c.Role != "" && !models.IsValidRole(c.Role) {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	return nil
}

// HasRole checks whether the token was issued for role.
func (c CustomClaims) HasRole(role string) bool {
	return c.Role == role
}

// NewSessionValidator builds the HS256 validator for tokens issued by services.SessionService.
func NewSessionValidator(cfg *config.Config) (*validator.Validator, error) {
	secret := []byte(cfg.SessionSecret)
	keyFunc := func(context.Context) (interface{}, error) {
		return secret, nil
	}

	return validator.New(
		keyFunc,
		validator.HS256,
		cfg.SessionIssuer,
		[]string{cfg.SessionAudience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
}

// cookieTokenExtractor reads the session cookie, treating a missing cookie as no token.
func cookieTokenExtractor(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

var tokenExtractor = jwtmiddleware.MultiTokenExtractor(
	jwtmiddleware.AuthHeaderTokenExtractor,
	cookieTokenExtractor,
)

// RequireSession is a middleware that will check the validity of the session token
// from the Authorization header or the session cookie.
func RequireSession(jwtValidator *validator.Validator) gin.HandlerFunc {
	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		logger.FromContext(r.Context()).Info("rejected session token", slog.Any("error", err))

		code, message := "INVALID_TOKEN", "Failed to validate session."
		if errors.Is(err, jwtmiddleware.ErrJWTMissing) {
			code, message = "UNAUTHORIZED", "Authentication required"
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		body := fmt.Sprintf(`{"success":false,"error":{"code":%q,"message":%q}}`, code, message)
		if _, writeErr := w.Write([]byte(body)); writeErr != nil {
			logger.FromContext(r.Context()).Warn("failed to write error response", slog.Any("error", writeErr))
		}
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
		jwtmiddleware.WithTokenExtractor(tokenExtractor),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			passed = true
			claims := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			setSession(c, claims)
			c.Request = r
			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

// OptionalSession attaches the session when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalSession(jwtValidator *validator.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := tokenExtractor(c.Request)
		if err != nil || token == "" {
			c.Next()
			return
		}

		validated, err := jwtValidator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("ignoring invalid optional session", slog.Any("error", err))
			c.Next()
			return
		}

		if claims, ok := validated.(*validator.ValidatedClaims); ok {
			setSession(c, claims)
		}
		c.Next()
	}
}

func setSession(c *gin.Context, claims *validator.ValidatedClaims) {
	c.Set(ContextUserID, claims.RegisteredClaims.Subject)
	c.Set(ContextClaims, claims)
}

// LoadCurrentUser resolves the session subject to a user record. A session
// whose user no longer exists is rejected with 401. Requests without a
// session pass through untouched.
func LoadCurrentUser(db func() *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); !exists {
			c.Next()
			return
		}

		userID, err := GetUserIDUint(c)
		if err != nil {
			abortUnauthorized(c, "INVALID_TOKEN", "Session subject is not a valid user id")
			return
		}

		var user models.User
		if err := db().WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abortUnauthorized(c, "USER_NOT_FOUND", "User no longer exists")
				return
			}
			logger.FromContext(c.Request.Context()).Error("failed to load session user", slog.Any("error", err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to load user",
				},
			})
			return
		}

		c.Set(ContextCurrentUser, &user)
		c.Next()
	}
}

// RequireRole is a middleware that checks the current user's stored role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetCurrentUser(c)
		if err != nil {
			abortUnauthorized(c, "UNAUTHORIZED", "Authentication required")
			return
		}

		if user.Role != role {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "Insufficient permissions to access this resource",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
	c.Abort()
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	userIDStr, ok := userID.(string)
	if !ok {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}

	return userIDStr, nil
}

// GetUserIDUint is GetUserID parsed as a database id
func GetUserIDUint(c *gin.Context) (uint, error) {
	userID, err := GetUserID(c)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(strings.TrimSpace(userID), 10, 64)
	if err != nil || id == 0 {
		return 0, &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not numeric"}
	}
	return uint(id), nil
}

// GetClaims extracts the validated session claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(ContextClaims)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// GetCurrentUser returns the user loaded by LoadCurrentUser
func GetCurrentUser(c *gin.Context) (*models.User, error) {
	value, exists := c.Get(ContextCurrentUser)
	if !exists {
		return nil, &AuthError{Code: "MISSING_USER", Message: "Current user not found in context"}
	}

	user, ok := value.(*models.User)
	if !ok || user == nil {
		return nil, &AuthError{Code: "INVALID_USER", Message: "Current user is not in the expected format"}
	}
	return user, nil
}

// IsAdmin reports whether the request carries an admin user
func IsAdmin(c *gin.Context) bool {
	user, err := GetCurrentUser(c)
	return err == nil && user.IsAdmin()
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
