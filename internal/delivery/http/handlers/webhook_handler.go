package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/ratelimit"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/payment"
	"github.com/gin-gonic/gin"
)

// MaxWebhookBody caps the payload read from a provider callback.
const MaxWebhookBody = 1 << 20

type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, provider string, headers http.Header, payload []byte) (*payment.WebhookResult, error)
}

type WebhookHandler struct {
	Logger    *slog.Logger
	Processor WebhookProcessor
	// Limiter may be nil, in which case signature failures are not throttled.
	Limiter ratelimit.Limiter
}

func NewWebhookHandler(logger *slog.Logger, processor WebhookProcessor, limiter ratelimit.Limiter) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{Logger: logger, Processor: processor, Limiter: limiter}
}

// POST /webhooks/:provider
// Any 5xx makes the provider redeliver; 4xx answers are final.
func (h *WebhookHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	provider := c.Param("provider")
	key := ratelimit.Key(provider, c.ClientIP())

	if h.Limiter != nil {
		exceeded, err := h.Limiter.Exceeded(ctx, key)
		if err != nil {
			h.Logger.Warn("webhook limiter unavailable", "provider", provider, "error", err)
		} else if exceeded {
			c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "too many invalid signatures"})
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxWebhookBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	if len(body) > MaxWebhookBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": "payload too large"})
		return
	}

	result, err := h.Processor.HandleWebhook(ctx, provider, c.Request.Header, body)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true, "outcome": result.Outcome, "event_id": result.EventID})
	case errors.Is(err, domain.ErrSignatureInvalid):
		c.JSON(h.signatureFailureStatus(ctx, provider, key, c.ClientIP()), gin.H{"ok": false, "error": "invalid signature"})
	case errors.Is(err, domain.ErrUnknownProvider):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "unknown provider"})
	case errors.Is(err, domain.ErrMalformedPayload):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "malformed payload"})
	default:
		h.Logger.Error("webhook apply failed", "provider", provider, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
	}
}

func (h *WebhookHandler) signatureFailureStatus(ctx context.Context, provider, key, clientIP string) int {
	if h.Limiter == nil {
		return http.StatusUnauthorized
	}
	reached, err := h.Limiter.Hit(ctx, key)
	if err != nil {
		h.Logger.Warn("failed to count webhook signature failure", "provider", provider, "error", err)
		return http.StatusUnauthorized
	}
	if reached {
		h.Logger.Warn("webhook forgery limit reached",
			"security_event", "webhook_forgery_throttled",
			"provider", provider,
			"client_ip", clientIP,
		)
		return http.StatusTooManyRequests
	}
	return http.StatusUnauthorized
}
