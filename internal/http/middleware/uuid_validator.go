package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UUIDValidator проверяет, что параметр пути является валидным UUID, и кладёт разобранное значение в контекст.
// Использование: router.GET("/orders/:id", UUIDValidator("id"), handler.GetEscrow)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param(paramName))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "параметр " + paramName + " должен быть валидным UUID",
				"code":  "BAD_REQUEST",
			})
			return
		}
		c.Set(uuidKey(paramName), id)
		c.Next()
	}
}

// ParamUUID возвращает UUID, разобранный UUIDValidator.
func ParamUUID(c *gin.Context, paramName string) (uuid.UUID, bool) {
	v, ok := c.Get(uuidKey(paramName))
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func uuidKey(paramName string) string {
	return "uuid:" + paramName
}
