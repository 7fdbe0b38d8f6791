package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/tradehub-backend/internal/service"
)

// ContextPrincipalKey: ключ проверенного владельца токена в gin.Context.
const ContextPrincipalKey = "principal"

// AuthMiddleware проверяет JWT access токен из заголовка Authorization.
func AuthMiddleware(verifier *service.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация", "code": "UNAUTHORIZED"})
			return
		}

		principal, err := verifier.Verify(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен невалиден", "code": "UNAUTHORIZED"})
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Next()
	}
}

// RequireRole пропускает только владельцев токена с указанной ролью. Ставится после AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok || principal.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "недостаточно прав", "code": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}

// PrincipalFrom достаёт владельца токена из контекста запроса.
func PrincipalFrom(c *gin.Context) (service.Principal, bool) {
	v, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return service.Principal{}, false
	}
	p, ok := v.(service.Principal)
	return p, ok
}
