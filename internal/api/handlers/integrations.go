package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hireguard.io/atssync/internal/api/middleware"
	"hireguard.io/atssync/internal/domain"
	"hireguard.io/atssync/internal/governance/audit"
	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/pkg/logger"
	"hireguard.io/atssync/internal/provider"
	"hireguard.io/atssync/internal/usecase"
)

type linkTokenRequest struct {
	OrganizationID   string `json:"organization_id" binding:"required"`
	OrganizationName string `json:"organization_name" binding:"required"`
	Email            string `json:"email" binding:"required"`
	Integration      string `json:"integration"`
}

type linkIntegrationRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
	PublicToken    string `json:"public_token" binding:"required"`
}

type backfillRequest struct {
	Since *time.Time `json:"since"`
}

type backfillAccepted struct {
	IntegrationID string `json:"integration_id"`
	JobID         int64  `json:"job_id"`
	Duplicate     bool   `json:"duplicate"`
}

// CreateLinkToken handles POST /api/v1/integrations/link-token.
func (s *Server) CreateLinkToken(c *gin.Context) {
	var req linkTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "invalid request body"))
		return
	}
	ctx := c.Request.Context()
	if err := middleware.AuthorizeOrganization(ctx, req.OrganizationID); err != nil {
		_ = c.Error(err)
		return
	}

	tok, err := s.accounts("").CreateLinkToken(ctx, provider.LinkTokenRequest{
		EndUserOriginID:         req.OrganizationID,
		EndUserOrganizationName: req.OrganizationName,
		EndUserEmailAddress:     req.Email,
		Integration:             req.Integration,
	})
	if err != nil {
		_ = c.Error(upstreamError(err, apperrors.CodeAccountLinkFailed, "link token request failed"))
		return
	}
	c.JSON(http.StatusOK, tok)
}

// LinkIntegration handles POST /api/v1/integrations. It exchanges the
// public token from the linking flow and creates, or reconnects, the
// organization's integration for that ATS.
func (s *Server) LinkIntegration(c *gin.Context) {
	var req linkIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "invalid request body"))
		return
	}
	ctx := c.Request.Context()
	if err := middleware.AuthorizeOrganization(ctx, req.OrganizationID); err != nil {
		_ = c.Error(err)
		return
	}

	account, err := s.accounts("").ExchangePublicToken(ctx, req.PublicToken)
	if err != nil {
		_ = c.Error(upstreamError(err, apperrors.CodeAccountLinkFailed, "public token exchange failed"))
		return
	}
	slug := strings.TrimSpace(account.Integration.Slug)
	if slug == "" || account.AccountToken == "" {
		_ = c.Error(apperrors.BadGateway(apperrors.CodeAccountLinkFailed, "provider returned an incomplete account token"))
		return
	}

	integ := &domain.Integration{
		OrganizationID:  req.OrganizationID,
		ProviderSlug:    slug,
		LinkedAccountID: account.ID,
		AccountToken:    account.AccountToken,
		Status:          domain.IntegrationConnected,
	}
	reconnected, err := s.store.CreateIntegration(ctx, integ)
	if err != nil {
		_ = c.Error(fmt.Errorf("create integration: %w", err))
		return
	}

	s.recordAudit(ctx, audit.IntegrationLinked(integ, reconnected, s.auditMeta(ctx)))
	logger.Info("Integration linked",
		zap.String("request_id", middleware.GetRequestID(ctx)),
		zap.String("org_id", integ.OrganizationID),
		zap.String("integration_id", integ.ID),
		zap.String("provider_slug", integ.ProviderSlug),
		zap.Bool("reconnected", reconnected),
	)

	status := http.StatusCreated
	if reconnected {
		status = http.StatusOK
	}
	c.JSON(status, integ)
}

// GetIntegration handles GET /api/v1/integrations/:integration_id.
func (s *Server) GetIntegration(c *gin.Context) {
	integ, ok := s.loadIntegration(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, integ)
}

// GetLinkedAccount handles GET /api/v1/integrations/:integration_id/account.
func (s *Server) GetLinkedAccount(c *gin.Context) {
	integ, ok := s.loadIntegration(c)
	if !ok {
		return
	}
	details, err := s.accounts(integ.AccountToken).GetAccountDetails(c.Request.Context())
	if err != nil {
		_ = c.Error(upstreamError(err, apperrors.CodeUpstreamRequestFailed, "account details request failed"))
		return
	}
	c.JSON(http.StatusOK, details)
}

// DisconnectIntegration handles DELETE /api/v1/integrations/:integration_id.
// The linked account is deleted upstream and the integration marked
// disconnected; synced records and audit history are kept. Repeating the
// call on a disconnected integration is a no-op.
func (s *Server) DisconnectIntegration(c *gin.Context) {
	integ, ok := s.loadIntegration(c)
	if !ok {
		return
	}
	if !integ.Connected() {
		c.JSON(http.StatusOK, integ)
		return
	}

	ctx := c.Request.Context()
	if err := s.accounts(integ.AccountToken).DeleteAccount(ctx); err != nil && !provider.IsNotFound(err) {
		_ = c.Error(upstreamError(err, apperrors.CodeUpstreamRequestFailed, "linked account deletion failed"))
		return
	}
	if err := s.pipeline.Disconnect(ctx, integ, domain.AuditSourceAPI); err != nil {
		_ = c.Error(fmt.Errorf("disconnect integration: %w", err))
		return
	}
	c.JSON(http.StatusOK, integ)
}

// StartBackfill handles POST /api/v1/integrations/:integration_id/backfill.
// With a job queue configured the backfill is queued (202); otherwise it
// runs inline and the report is returned (200).
func (s *Server) StartBackfill(c *gin.Context) {
	var req backfillRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "invalid request body"))
			return
		}
	}

	integ, ok := s.loadIntegration(c)
	if !ok {
		return
	}
	if !integ.Connected() {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeIntegrationInactive, "integration is disconnected").
			WithParams(map[string]interface{}{"integration_id": integ.ID}))
		return
	}

	ctx := c.Request.Context()
	if s.backfills != nil {
		jobID, duplicate, err := s.backfills.EnqueueBackfill(ctx, integ.ID, req.Since)
		if err != nil {
			_ = c.Error(fmt.Errorf("enqueue backfill: %w", err))
			return
		}
		logger.Info("Backfill queued",
			zap.String("request_id", middleware.GetRequestID(ctx)),
			zap.String("org_id", integ.OrganizationID),
			zap.String("integration_id", integ.ID),
			zap.Int64("job_id", jobID),
			zap.Bool("duplicate", duplicate),
		)
		c.JSON(http.StatusAccepted, backfillAccepted{IntegrationID: integ.ID, JobID: jobID, Duplicate: duplicate})
		return
	}

	report, err := s.pipeline.Backfill(ctx, integ.ID, usecase.BackfillOptions{
		Since:    req.Since,
		PoolSize: s.backfillPool,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// loadIntegration resolves :integration_id and checks the caller may see
// it. On failure the error is attached and ok is false.
func (s *Server) loadIntegration(c *gin.Context) (*domain.Integration, bool) {
	id := c.Param("integration_id")
	ctx := c.Request.Context()
	integ, err := s.store.GetIntegration(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			_ = c.Error(apperrors.NotFound(apperrors.CodeIntegrationNotFound, "integration not found").
				WithParams(map[string]interface{}{"integration_id": id}))
			return nil, false
		}
		_ = c.Error(fmt.Errorf("get integration %s: %w", id, err))
		return nil, false
	}
	if err := middleware.AuthorizeOrganization(ctx, integ.OrganizationID); err != nil {
		// Foreign integrations are reported as missing.
		_ = c.Error(apperrors.NotFound(apperrors.CodeIntegrationNotFound, "integration not found").
			WithParams(map[string]interface{}{"integration_id": id}))
		return nil, false
	}
	return integ, true
}

// upstreamError maps a provider failure to an API error. Upstream bodies
// are logged, never returned.
func upstreamError(err error, code, message string) error {
	fields := []zap.Field{zap.Error(err)}
	if status := provider.StatusCode(err); status != 0 {
		fields = append(fields, zap.Int("status", status))
	}
	logger.Warn("Upstream account call failed", append(fields, zap.String("code", code))...)

	if provider.IsNotFound(err) {
		return apperrors.Wrap(err, apperrors.CodeUpstreamNotFound, message, http.StatusNotFound)
	}
	return apperrors.Wrap(err, code, message, http.StatusBadGateway)
}

func (s *Server) auditMeta(ctx context.Context) audit.Meta {
	return audit.MetaFromContext(ctx, domain.AuditSourceAPI, s.now())
}

// recordAudit writes ev; a failed write is logged by the audit logger and
// does not fail the request.
func (s *Server) recordAudit(ctx context.Context, ev domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	_, _ = s.audit.Record(ctx, ev)
}
