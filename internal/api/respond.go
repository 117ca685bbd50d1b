package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/apperr"
)

// respondError translates a service error into the JSON error envelope.
// Domain errors surface their own message; anything unclassified is logged
// and reported as a generic 500 so internals never leak to clients.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	msg := "internal server error"
	if status != http.StatusInternalServerError {
		msg = err.Error()
	} else {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": true, "message": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": msg})
}

// queryInt64 reads an optional int64 query parameter, returning def when
// absent. The second return reports whether the value parsed cleanly.
func queryInt64(c *gin.Context, name string, def int64) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// queryLimit reads the "limit" parameter: default 50, capped at 100.
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 50, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, false
	}
	if limit > 100 {
		limit = 100
	}
	return limit, true
}
