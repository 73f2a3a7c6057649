package middleware

import (
	"net/http"
	"strings"

	"sms-support-server/pkg/logger"
	"sms-support-server/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignatureHeader carries the carrier's HMAC of the webhook request
const SignatureHeader = "X-Twilio-Signature"

// WebhookSignatureMiddleware rejects carrier webhooks whose signature does not
// match authToken. publicURL is the externally visible base URL the carrier
// calls; when empty the request's own scheme and host are used.
func WebhookSignatureMiddleware(authToken, publicURL string) gin.HandlerFunc {
	publicURL = strings.TrimRight(publicURL, "/")

	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			abort(c, http.StatusBadRequest, "Invalid form body")
			return
		}

		fullURL := webhookURL(c.Request, publicURL)
		err := utils.ValidateWebhookSignature(authToken, fullURL, c.Request.PostForm, c.GetHeader(SignatureHeader))
		if err != nil {
			logger.Warn("Webhook signature rejected",
				zap.String("client_ip", c.ClientIP()),
				zap.String("url", fullURL),
				zap.Error(err),
			)
			abort(c, http.StatusForbidden, "Invalid webhook signature")
			return
		}

		c.Next()
	}
}

func webhookURL(req *http.Request, publicURL string) string {
	if publicURL != "" {
		return publicURL + req.URL.RequestURI()
	}
	scheme := "http"
	if requestIsHTTPS(req) {
		scheme = "https"
	}
	return scheme + "://" + req.Host + req.URL.RequestURI()
}
