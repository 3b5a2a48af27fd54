package middleware

import (
	"crypto/subtle"
	"strings"

	"jornada/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const (
	HeaderWebhookSecret = "x-webhook-secret"
	HeaderAdminKey      = "x-admin-key"
)

// WebhookSecret guards the inbound webhook with a static shared secret taken from
// the x-webhook-secret header or the ?secret= query parameter.
func WebhookSecret(secret string) gin.HandlerFunc {
	return sharedSecret(secret, func(c *gin.Context) string {
		if v := c.GetHeader(HeaderWebhookSecret); v != "" {
			return v
		}
		return c.Query("secret")
	}, "Webhook secret not configured on server.", "Invalid webhook secret.")
}

func AdminKey(key string) gin.HandlerFunc {
	return sharedSecret(key, func(c *gin.Context) string {
		return c.GetHeader(HeaderAdminKey)
	}, "Admin key not configured on server.", "Invalid admin key.")
}

func sharedSecret(expected string, extract func(*gin.Context) string, unsetMsg, mismatchMsg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			abort(c, errutil.Forbidden(unsetMsg, nil))
			return
		}

		got := strings.TrimSpace(extract(c))
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			abort(c, errutil.Forbidden(mismatchMsg, nil))
			return
		}

		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	be, _ := errutil.As(err)
	c.AbortWithStatusJSON(be.Code.HTTPStatus(), be.JSON())
}
