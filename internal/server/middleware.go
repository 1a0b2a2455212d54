package server

import (
	"time"

	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if len(c.Errors) > 0 {
		fields["errors"] = c.Errors.String()
	}

	// websocket sessions outlive the request; log the upgrade at debug
	if c.FullPath() == "/ws" {
		utils.Debug("HTTP Request", fields)
		return
	}
	utils.Info("HTTP Request", fields)
}
