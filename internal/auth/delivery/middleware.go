package delivery

import (
	"net/http"
	"strings"

	"jobtrack-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	UserKey   = "user"
	UserIDKey = "userID"
)

// AuthMiddleware accepts "Authorization: Bearer <jwt>" (scheme is
// case-insensitive) and stores the resolved user for the handlers.
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
		token = strings.TrimSpace(token)
		switch {
		case scheme == "":
			unauthorized(c, "authorization header required")
			return
		case !ok || !strings.EqualFold(scheme, "Bearer") || token == "":
			unauthorized(c, "invalid authorization header format")
			return
		}

		user, err := authUsecase.ValidateToken(token)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
