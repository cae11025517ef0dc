package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "hireguard.io/atssync/internal/pkg/errors"
)

// JWTClaims are issued by the dashboard backend for calls into /api/v1.
// OrganizationID binds the caller to one tenant; ScopeAdmin lifts that.
type JWTClaims struct {
	OrganizationID string   `json:"org_id"`
	Scopes         []string `json:"scopes"`
	jwt.RegisteredClaims
}

// JWTConfig holds signing and verification settings.
type JWTConfig struct {
	SigningKey []byte
	// VerificationKeys are previous signing keys still accepted while a
	// rotation is in progress.
	VerificationKeys [][]byte
	Issuer           string
	ExpiresIn        time.Duration
}

// GenerateToken creates a signed token for subject acting in organizationID.
func GenerateToken(cfg JWTConfig, subject, organizationID string, scopes []string) (string, time.Time, error) {
	now := time.Now()
	expiresIn := cfg.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	expiresAt := now.Add(expiresIn)

	claims := JWTClaims{
		OrganizationID: organizationID,
		Scopes:         scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken parses tokenString with the signing key first and then each
// verification key.
func (cfg JWTConfig) ValidateToken(_ context.Context, tokenString string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	keys := append([][]byte{cfg.SigningKey}, cfg.VerificationKeys...)
	var lastErr error
	for _, key := range keys {
		if len(key) == 0 {
			continue
		}
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		}, opts...)
		if err == nil && token.Valid {
			return claims, nil
		}
		if err == nil {
			err = jwt.ErrTokenInvalidClaims
		}
		lastErr = err
		// Only a signature mismatch is worth retrying with an older key.
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	if lastErr == nil {
		lastErr = jwt.ErrTokenUnverifiable
	}
	return nil, lastErr
}

// JWTAuth validates Bearer tokens and populates the caller context.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := cfg.ValidateToken(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			abortUnauthorized(c, msg)
			return
		}

		c.Set(string(ctxKeySubject), claims.Subject)
		c.Set(string(ctxKeyOrganization), claims.OrganizationID)
		c.Set(string(ctxKeyScopes), claims.Scopes)
		c.Request = c.Request.WithContext(
			SetCallerContext(c.Request.Context(), claims.Subject, claims.OrganizationID, claims.Scopes),
		)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    apperrors.CodeUnauthorized,
		"message": msg,
	})
}
