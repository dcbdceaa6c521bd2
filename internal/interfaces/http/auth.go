package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const claimsContextKey = "auth_claims"

var errInvalidToken = errors.New("invalid or expired token")

// Claims are the verified token claims the handlers rely on. DepartmentID
// mirrors the department the user logged in under and, when present,
// overrides the user row's own department during permission resolution.
type Claims struct {
	UserID       int64  `json:"uid"`
	Username     string `json:"username"`
	DepartmentID *int64 `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

// verifyToken parses and validates an HS256 token string.
func verifyToken(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

// authMiddleware verifies the Authorization bearer token and stores the
// claims in the request context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		if tokenStr == "" || tokenStr == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing bearer token",
			})
			return
		}

		claims, err := verifyToken(tokenStr, s.jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   err.Error(),
			})
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// currentClaims returns the verified claims stored by authMiddleware.
func currentClaims(c *gin.Context) *Claims {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
