package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	CtxKeyIdemKey       = "idem_key"
	CtxKeyIdemGenerated = "idem_generated"
)

// IdempotencyKey attaches an idempotency key to every request. A
// caller-supplied header is taken verbatim; otherwise a key is derived with a
// keyed hash and echoed back so the caller can retry with it. The key is not
// interpreted here; uniqueness is enforced by the ledger.
func IdempotencyKey(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		generated := false
		if key == "" {
			key = generateIdemKey(secret, actingUserID(c))
			generated = true
		}

		c.Set(CtxKeyIdemKey, key)
		c.Set(CtxKeyIdemGenerated, generated)
		c.Writer.Header().Set(HeaderIdempotencyKey, key)

		c.Next()
	}
}

// GetIdemKey returns the request's idempotency key and whether it was
// server-generated.
func GetIdemKey(c *gin.Context) (string, bool) {
	key, _ := c.Get(CtxKeyIdemKey)
	gen, _ := c.Get(CtxKeyIdemGenerated)
	s, _ := key.(string)
	g, _ := gen.(bool)
	return s, g
}

// Auth lives in front of this service; the acting user, when known, arrives
// as a forwarded header and only seeds key derivation.
func actingUserID(c *gin.Context) string {
	if uid := c.GetHeader("X-User-ID"); uid != "" {
		return uid
	}
	return "anonymous"
}

func generateIdemKey(secret, userID string) string {
	nonce := make([]byte, 8)
	_, _ = rand.Read(nonce)

	raw := fmt.Sprintf("%s:%d:%s", userID, time.Now().UnixMilli(), hex.EncodeToString(nonce))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
