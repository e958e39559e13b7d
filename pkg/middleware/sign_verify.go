package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"BloodLink/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	SignatureHeader = "X-Signature"
	TimestampHeader = "X-Timestamp"
)

// Sign returns the hex HMAC-SHA256 of method, path and unix timestamp.
func Sign(secret, method, path, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.ToUpper(method) + "\n" + path + "\n" + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignVerifyMiddleware guards the peer sync listings. An empty secret turns
// verification off. Timestamps older than skew are rejected to limit replay.
func SignVerifyMiddleware(secret string, skew time.Duration) gin.HandlerFunc {
	if skew <= 0 {
		skew = 5 * time.Minute
	}
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		signature := c.GetHeader(SignatureHeader)
		ts := c.GetHeader(TimestampHeader)
		if signature == "" || ts == "" {
			response.Fail(c, http.StatusUnauthorized, "signature is missing")
			return
		}
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			response.Fail(c, http.StatusUnauthorized, "invalid timestamp")
			return
		}
		if d := time.Since(time.Unix(sec, 0)); d > skew || d < -skew {
			response.Fail(c, http.StatusUnauthorized, "timestamp out of range")
			return
		}
		expected := Sign(secret, c.Request.Method, c.Request.URL.Path, ts)
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			response.Fail(c, http.StatusUnauthorized, "invalid signature")
			return
		}
		c.Next()
	}
}
