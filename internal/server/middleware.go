package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Makepad-fr/basket/internal/feed"
	"github.com/Makepad-fr/basket/internal/store"
)

const maxBodyBytes = 64 << 10

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("request", fields...)
		case c.Writer.Status() >= 400:
			log.Warn("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}

// requireAPIKey accepts "Authorization: Bearer <key>". An empty key turns
// the check off.
func requireAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(got) > 7 && strings.EqualFold(got[:7], "bearer ") {
			got = strings.TrimSpace(got[7:])
		} else {
			got = ""
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
			return
		}
		c.Next()
	}
}

func validRoom() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.CheckKeys(c.Param("room")); err != nil {
			abortWithError(c, http.StatusBadRequest, "validation", err.Error())
			return
		}
		c.Next()
	}
}

func validItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.CheckKeys(c.Param("room"), c.Param("id")); err != nil {
			abortWithError(c, http.StatusBadRequest, "validation", err.Error())
			return
		}
		c.Next()
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, feed.ErrorBody{Error: feed.ErrorDetail{Code: code, Message: msg}})
}
