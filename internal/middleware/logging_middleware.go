package middleware

import (
	"time"

	"github.com/annel0/blockpos/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader — заголовок с идентификатором запроса.
const RequestIDHeader = "X-Request-ID"

// RequestLogger снабжает каждый HTTP-запрос request-ID и пишет краткие логи.
type RequestLogger struct {
	log *logging.Logger
}

// NewRequestLogger создаёт middleware. nil log — логгер компонента api.
func NewRequestLogger(log *logging.Logger) *RequestLogger {
	if log == nil {
		log = logging.GetAPILogger()
	}
	return &RequestLogger{log: log}
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Входящий идентификатор сохраняется, чтобы связать логи клиента и сервера.
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		start := time.Now()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		rl.log.Debug("[HTTP] ▶ %s %s ip=%s id=%s", method, path, c.ClientIP(), requestID)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		if len(c.Errors) > 0 {
			rl.log.Warn("[HTTP] ◀ %s %s %d %s id=%s err=%s", method, path, status, latency, requestID, c.Errors.String())
			return
		}
		rl.log.Info("[HTTP] ◀ %s %s %d %s id=%s", method, path, status, latency, requestID)
	}
}
