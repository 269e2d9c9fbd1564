package middleware

import (
	"context"
	"net/http"
	"strings"

	"petaverse-chat/internal/services"
	"petaverse-chat/internal/transport/httpdto"
	"petaverse-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextUserKey is the gin context key holding the authenticated user id.
const ContextUserKey = "user_id"

type Authenticator interface {
	Authenticate(token string) (uuid.UUID, error)
}

// AuthMiddleware resolves the bearer token to a principal once and binds it to
// the request context.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.Authenticate(extractBearer(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			return
		}

		ctx := services.WithUserContext(c.Request.Context(), userID)
		ctx = context.WithValue(ctx, logger.UserIdKey, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextUserKey, userID)
		c.Next()
	}
}

// CurrentUser returns the principal set by AuthMiddleware.
func CurrentUser(c *gin.Context) (uuid.UUID, bool) {
	if v, ok := c.Get(ContextUserKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id, true
		}
	}
	return services.UserIDFromContext(c.Request.Context())
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
