package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
)

const RequestIDKey = "request_id"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// RequestID reuses an upstream X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(RequestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AccessLog writes one line per request.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"req_id", c.GetString(RequestIDKey),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("http.request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("http.request", attrs...)
		default:
			logger.Info("http.request", attrs...)
		}
	}
}

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := common.HTTPStatus(err)

		resp := ErrorResponse{
			Type:    common.Kind(err),
			Message: err.Error(),
			Status:  strconv.Itoa(status),
		}
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			resp.Code = appErr.Code
		}
		if status >= http.StatusInternalServerError {
			logger.Error("http.handler.error", "path", c.FullPath(), "req_id", c.GetString(RequestIDKey), "error", err)
			resp.Message = http.StatusText(status)
		}
		if !c.Writer.Written() {
			c.JSON(status, resp)
		}
	}
}
