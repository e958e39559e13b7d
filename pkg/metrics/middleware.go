package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// MonitorMiddleware records every request. Paths are labelled by route template so ids
// in the URL do not explode the label set.
func MonitorMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
