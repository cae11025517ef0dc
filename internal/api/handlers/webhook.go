package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hireguard.io/atssync/internal/api/middleware"
	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/pkg/logger"
	"hireguard.io/atssync/internal/webhook"
)

// ReceiveWebhook handles POST /webhooks/merge.
//
// The raw body is verified before it is parsed: a bad signature is a 401
// with nothing processed. A malformed envelope is a 500 so the provider
// redelivers. A delivery for an unknown linked account is a 404. Anything
// else, including per-entity sync failures, is acknowledged with 200.
func (s *Server) ReceiveWebhook(c *gin.Context) {
	rid := middleware.GetRequestID(c.Request.Context())

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(apperrors.New(apperrors.CodeWebhookBodyTooLarge, "webhook body too large", http.StatusRequestEntityTooLarge).
				WithParams(map[string]interface{}{"limit": tooLarge.Limit}))
			return
		}
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "failed to read webhook body"))
		return
	}

	if !s.verifier.Verify(body, c.GetHeader(webhook.SignatureHeader)) {
		logger.Warn("Webhook rejected: invalid signature",
			zap.String("request_id", rid),
			zap.Int("body_bytes", len(body)),
		)
		_ = c.Error(apperrors.ErrSignatureInvalid())
		return
	}

	env, err := webhook.Parse(body)
	if err != nil {
		logger.Error("Webhook rejected: malformed envelope",
			zap.String("request_id", rid),
			zap.Error(err),
		)
		_ = c.Error(apperrors.ErrEnvelopeInvalidf(err))
		return
	}
	ev := env.ToEvent()

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.webhookTimeout)
	defer cancel()

	result := s.pipeline.HandleEvent(ctx, ev)

	logger.Info("Webhook processed",
		zap.String("request_id", rid),
		zap.String("hook_id", ev.HookID),
		zap.String("event_type", string(ev.Type)),
		zap.String("raw_event", ev.RawEvent),
		zap.String("org_id", ev.OrganizationID()),
		zap.String("linked_account_id", ev.LinkedAccount.ID),
		zap.String("status", string(result.Status)),
		zap.String("reason", result.Reason),
	)

	if result.IntegrationMissing() {
		_ = c.Error(apperrors.ErrIntegrationNotFoundf(ev.LinkedAccount.ID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
