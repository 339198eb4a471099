package middleware

import (
	"fmt"
	"strings"

	"github.com/Xebarter/Tina-s-Bakery-sub000/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdentityKey is the gin context key holding the caller's models.Identity.
const IdentityKey = "identity"

// IdentityClaims are the claims of a storefront bearer token.
type IdentityClaims struct {
	AccountType string `json:"account_type"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// Identity resolves the caller from an optional bearer token. Checkout works
// without signing in, so a missing or invalid token leaves the caller anonymous.
func Identity(secret []byte, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(IdentityKey, resolveIdentity(c.GetHeader("Authorization"), secret, logger))
		c.Next()
	}
}

// GetIdentity returns the identity set by Identity, or an anonymous one.
func GetIdentity(c *gin.Context) models.Identity {
	if v, ok := c.Get(IdentityKey); ok {
		if id, ok := v.(models.Identity); ok {
			return id
		}
	}
	return models.AnonymousIdentity{}
}

func resolveIdentity(header string, secret []byte, logger *zap.Logger) models.Identity {
	if !strings.HasPrefix(header, "Bearer ") || len(secret) == 0 {
		return models.AnonymousIdentity{}
	}

	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		logger.Debug("Ignoring invalid bearer token", zap.Error(err))
		return models.AnonymousIdentity{}
	}

	customerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		logger.Debug("Bearer token subject is not a customer id", zap.String("sub", claims.Subject))
		return models.AnonymousIdentity{}
	}

	switch claims.AccountType {
	case models.AccountTypeRegistered:
		return models.RegisteredIdentity{CustomerID: customerID, Email: claims.Email}
	case models.AccountTypeBillingOnly:
		return models.BillingOnlyIdentity{CustomerID: customerID, Phone: claims.Phone}
	default:
		return models.AnonymousIdentity{}
	}
}
