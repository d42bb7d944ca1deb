package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Jooldo/zarify-sub003/internal/services"
	"github.com/Jooldo/zarify-sub003/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader пользователь сессии, проставляется шлюзом аутентификации
	UserIDHeader = "X-User-ID"
	tenantKey    = "merchant_id"
)

// TenantMiddleware определяет мерчанта по пользователю и кладет его в контекст запроса
func TenantMiddleware(resolver store.TenantResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Не указан пользователь",
				"kind":  "unauthorized",
			})
			return
		}

		merchantID, err := resolver.ResolveTenant(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Пользователь не привязан к мерчанту",
					"kind":  "unauthorized",
				})
				return
			}
			respondError(c, "Ошибка определения мерчанта", err)
			c.Abort()
			return
		}

		c.Set(tenantKey, merchantID)
		c.Next()
	}
}

func tenantFrom(c *gin.Context) string {
	return c.GetString(tenantKey)
}

// RequestLogger логирование всех запросов
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Printf("🌐 %s %s - Status: %d - Latency: %v", method, path, c.Writer.Status(), time.Since(start))
	}
}

// CORS для фронтенда
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// respondError отдает ошибку с машиночитаемым видом
func respondError(c *gin.Context, message string, err error) {
	status, body := errorResponse(message, err)
	c.JSON(status, body)
}

// errorResponse статус и тело ответа для ошибки сервиса
func errorResponse(message string, err error) (int, gin.H) {
	kind := services.ErrorKind(err)
	status := http.StatusInternalServerError
	switch kind {
	case services.KindValidation:
		status = http.StatusBadRequest
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindExhausted, services.KindUniqueViolation:
		status = http.StatusConflict
	case services.KindTransient:
		status = http.StatusServiceUnavailable
	}

	body := gin.H{
		"error":   message,
		"kind":    kind,
		"details": err.Error(),
	}
	var partial *services.PartialUpdateError
	if errors.As(err, &partial) {
		body["failed_ids"] = partial.FailedIDs
		body["total"] = partial.Total
	}
	return status, body
}
