// README: Recovery middleware; turns panics into a logged 500.
package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"velo/internal/logger"
)

func Recovery(log logger.ILogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic while handling request",
					logger.String("route", c.FullPath()),
					logger.String("panic", fmt.Sprint(r)),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
