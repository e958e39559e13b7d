package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"BloodLink/pkg/flatstore"
	"BloodLink/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/mssola/user_agent"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// OperationLogTable is the append-only audit trail of mutating requests.
var OperationLogTable = flatstore.Table{
	Name: "operator_log",
	Fields: []string{
		"time", "username", "role", "method", "path", "status", "ip",
		"device", "browser", "os", "location",
	},
}

// Context keys the session middleware fills in.
const (
	CtxUsername = "username"
	CtxRole     = "role"
)

// OperationLogger appends audit rows to the flat store.
type OperationLogger struct {
	store *flatstore.Store
	geo   *geoip2.Reader
}

// NewOperationLogger opens the GeoLite2 city database when geoDBPath is set.
// A missing database only disables the location column.
func NewOperationLogger(store *flatstore.Store, geoDBPath string) *OperationLogger {
	ol := &OperationLogger{store: store}
	if geoDBPath != "" {
		reader, err := geoip2.Open(geoDBPath)
		if err != nil {
			logger.Warn("geoip database unavailable", zap.String("path", geoDBPath), zap.Error(err))
		} else {
			ol.geo = reader
		}
	}
	return ol
}

func (ol *OperationLogger) Close() error {
	if ol.geo != nil {
		return ol.geo.Close()
	}
	return nil
}

// Middleware records every non-GET request after it has been handled.
// A failed write is logged and never changes the response.
func (ol *OperationLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		ua := user_agent.New(c.Request.UserAgent())
		browser, version := ua.Browser()
		device := ua.Platform()
		if ua.Mobile() {
			device = "mobile " + device
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		row := flatstore.Row{
			"time":     time.Now().Format(time.RFC3339),
			"username": c.GetString(CtxUsername),
			"role":     c.GetString(CtxRole),
			"method":   c.Request.Method,
			"path":     path,
			"status":   strconv.Itoa(c.Writer.Status()),
			"ip":       c.ClientIP(),
			"device":   device,
			"browser":  browser + " " + version,
			"os":       ua.OS(),
			"location": ol.location(c.ClientIP()),
		}
		if err := ol.store.Append(OperationLogTable, row); err != nil {
			logger.Warn("record operation log failed", zap.String("path", path), zap.Error(err))
		}
	}
}

func (ol *OperationLogger) location(ip string) string {
	if ol.geo == nil {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	record, err := ol.geo.City(parsed)
	if err != nil {
		return ""
	}
	city := record.City.Names["en"]
	if record.Country.IsoCode == "" {
		return city
	}
	if city == "" {
		return record.Country.IsoCode
	}
	return city + ", " + record.Country.IsoCode
}
