package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hireguard.io/atssync/internal/api/middleware"
	"hireguard.io/atssync/internal/domain"
	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/pkg/logger"
)

type complianceProfileInput struct {
	Jurisdictions           []string `json:"jurisdictions" binding:"required"`
	AIDisclosureOnFile      bool     `json:"ai_disclosure_on_file"`
	HumanReviewPolicyOnFile bool     `json:"human_review_policy_on_file"`
}

// GetComplianceProfile handles GET
// /api/v1/organizations/:organization_id/compliance-profile. An organization
// without a stored profile gets the empty one the rule engine uses.
func (s *Server) GetComplianceProfile(c *gin.Context) {
	orgID := c.Param("organization_id")
	ctx := c.Request.Context()
	if err := middleware.AuthorizeOrganization(ctx, orgID); err != nil {
		_ = c.Error(err)
		return
	}

	p, err := s.store.GetComplianceProfile(ctx, orgID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			_ = c.Error(fmt.Errorf("get compliance profile: %w", err))
			return
		}
		p = &domain.ComplianceProfile{OrganizationID: orgID}
	}
	if p.Jurisdictions == nil {
		p.Jurisdictions = []string{}
	}
	c.JSON(http.StatusOK, p)
}

// PutComplianceProfile handles PUT
// /api/v1/organizations/:organization_id/compliance-profile. Jurisdiction
// codes must exist in the loaded catalog.
func (s *Server) PutComplianceProfile(c *gin.Context) {
	orgID := c.Param("organization_id")
	ctx := c.Request.Context()
	if err := middleware.AuthorizeOrganization(ctx, orgID); err != nil {
		_ = c.Error(err)
		return
	}

	var in complianceProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "invalid request body"))
		return
	}

	codes := make([]string, 0, len(in.Jurisdictions))
	seen := make(map[string]bool, len(in.Jurisdictions))
	var unknown []string
	for _, code := range in.Jurisdictions {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		if s.catalog != nil {
			if _, ok := s.catalog.Lookup(code); !ok {
				unknown = append(unknown, code)
				continue
			}
		}
		codes = append(codes, code)
	}
	if len(unknown) > 0 {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "unknown jurisdiction codes").
			WithParams(map[string]interface{}{"unknown": unknown}))
		return
	}

	p := &domain.ComplianceProfile{
		OrganizationID:          orgID,
		Jurisdictions:           codes,
		AIDisclosureOnFile:      in.AIDisclosureOnFile,
		HumanReviewPolicyOnFile: in.HumanReviewPolicyOnFile,
	}
	if err := s.store.UpsertComplianceProfile(ctx, p); err != nil {
		_ = c.Error(fmt.Errorf("upsert compliance profile: %w", err))
		return
	}

	logger.Info("Compliance profile updated",
		zap.String("request_id", middleware.GetRequestID(ctx)),
		zap.String("org_id", orgID),
		zap.Strings("jurisdictions", codes),
	)
	c.JSON(http.StatusOK, p)
}
