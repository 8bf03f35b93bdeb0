package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/wagewizard/pkg/errors"
	"github.com/YuminosukeSato/wagewizard/pkg/log"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "wagewizard_request_id"
)

// RequestID reuses an inbound X-Request-ID or assigns a new UUID, stores it
// in the context and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the ID assigned by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// CORS allows any origin, method and header. Preflight requests are
// answered with 204 and never reach a handler. An OPTIONS request without
// Access-Control-Request-Method is not a preflight; it is routed like any
// other request and, with no OPTIONS routes registered, gets the router's
// 404 carrying the allow-origin headers.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		if origin := c.GetHeader("Origin"); origin != "" {
			// Credentialed requests may not use the "*" wildcard.
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		} else {
			h.Set("Access-Control-Allow-Origin", "*")
		}

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
			if reqHeaders := c.GetHeader("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			} else {
				h.Set("Access-Control-Allow-Headers", "*")
			}
			h.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// AccessLog logs one record per request.
func AccessLog(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			log.RequestIDKey, GetRequestID(c),
			log.RouteKey, c.FullPath(),
			"http.method", c.Request.Method,
			"http.path", c.Request.URL.Path,
			log.StatusKey, status,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, c.Errors.Last().Err)
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}

// Recovery converts handler panics into a logged PanicError and a 500.
func Recovery(logger log.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := errors.NewPanicError(c.FullPath(), recovered)
		logger.Error("Handler panicked", err, log.RequestIDKey, GetRequestID(c))
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	})
}
