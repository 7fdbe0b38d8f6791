package common

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/tradehub-backend/internal/http/middleware"
	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tradehub-backend/internal/service"
)

// CurrentPrincipal извлекает владельца токена из контекста.
func CurrentPrincipal(c *gin.Context) (service.Principal, error) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		return service.Principal{}, apperror.ErrUnauthorized
	}
	return principal, nil
}

// ParseUUIDParam возвращает UUID параметра пути. Если UUIDValidator уже разобрал параметр, значение берётся из контекста.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	if id, ok := middleware.ParamUUID(c, paramName); ok {
		return id, nil
	}

	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, apperror.Newf(apperror.ErrCodeBadRequest, "параметр %s отсутствует", paramName)
	}
	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, apperror.Newf(apperror.ErrCodeBadRequest, "параметр %s должен быть валидным UUID", paramName)
	}
	return parsed, nil
}

// BindJSON разбирает тело запроса и превращает ошибку в VALIDATION_ERROR.
func BindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "ошибка валидации запроса: "+err.Error())
	}
	return nil
}

// ParseBoolQuery читает булев query параметр, при пустом или неразборчивом значении возвращает fallback.
func ParseBoolQuery(c *gin.Context, key string, fallback bool) bool {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// Fail передаёт ошибку в ErrorHandler и прерывает обработку.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
