package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/http/response"
	"github.com/ignatzorin/hsse-backend/internal/logger"
	"github.com/ignatzorin/hsse-backend/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey   = "userID"
	ContextRoleKey     = "role"
	ContextIdentityKey = "identity"
)

// AuthMiddleware проверяет JWT access токен и кладёт личность запроса в контекст.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			response.Unauthorized(c, "требуется авторизация")
			return
		}

		identity, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil || identity.UserID == uuid.Nil {
			response.Unauthorized(c, "токен невалиден")
			return
		}

		SetIdentity(c, identity)
		c.Next()
	}
}

// SetIdentity сохраняет личность в gin и в записи лога запроса.
func SetIdentity(c *gin.Context, identity service.Identity) {
	c.Set(ContextUserIDKey, identity.UserID)
	c.Set(ContextRoleKey, identity.Role)
	c.Set(ContextIdentityKey, identity)

	entry := logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
		"user_id": identity.UserID,
		"role":    identity.Role,
	})
	c.Request = c.Request.WithContext(logger.WithEntry(c.Request.Context(), entry))
}

// RequireRoles пропускает только пользователей с одной из ролей.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, ok := c.Get(ContextRoleKey)
		if !ok {
			response.Unauthorized(c, "требуется авторизация")
			return
		}
		if _, ok := allowed[role.(string)]; !ok {
			response.Forbidden(c, "недостаточно прав")
			return
		}
		c.Next()
	}
}

// APIKeyMiddleware проверяет ключ машинного клиента в заголовке X-API-Key
// или в Authorization: Bearer. Пустой ключ закрывает доступ полностью.
func APIKeyMiddleware(client, expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			provided = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		if expected == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
				"client": client,
				"ip":     c.ClientIP(),
			}).Warn("запрос с неверным API ключом")
			response.Unauthorized(c, "неверный API ключ")
			return
		}

		c.Set(ContextRoleKey, client)
		c.Next()
	}
}
