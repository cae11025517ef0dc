package errors

import "net/http"

// Webhook ingress codes.
const (
	CodeWebhookSignatureInvalid = "WEBHOOK_SIGNATURE_INVALID"
	CodeWebhookEnvelopeInvalid  = "WEBHOOK_ENVELOPE_INVALID"
	CodeWebhookBodyTooLarge     = "WEBHOOK_BODY_TOO_LARGE"
)

// Integration codes.
const (
	CodeIntegrationNotFound = "INTEGRATION_NOT_FOUND"
	CodeAccountLinkFailed   = "ACCOUNT_LINK_FAILED"
	CodeIntegrationInactive = "INTEGRATION_DISCONNECTED"
)

// Upstream provider codes.
const (
	CodeUpstreamRequestFailed = "UPSTREAM_REQUEST_FAILED"
	CodeUpstreamNotFound      = "UPSTREAM_NOT_FOUND"
)

// Sync codes.
const (
	CodeCandidateNotSynced = "CANDIDATE_NOT_SYNCED"
	CodeAuditChainBroken   = "AUDIT_CHAIN_BROKEN"
)

// Validation codes.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternal       = "INTERNAL_ERROR"
)

// Caller authorization codes.
const (
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeOrganizationScope = "ORGANIZATION_SCOPE_DENIED"
)

// ErrIntegrationNotFoundf reports that no Integration matches the linked
// account referenced by a webhook or API call.
func ErrIntegrationNotFoundf(ref string) *AppError {
	return (&AppError{
		Code:       CodeIntegrationNotFound,
		Message:    "no integration matches the linked account",
		HTTPStatus: http.StatusNotFound,
		Err:        ErrNotFound,
	}).WithParams(map[string]interface{}{"ref": ref})
}

// ErrSignatureInvalid is returned by webhook verification.
func ErrSignatureInvalid() *AppError {
	return Unauthorized(CodeWebhookSignatureInvalid, "webhook signature verification failed")
}

// ErrEnvelopeInvalidf wraps a webhook parse failure.
func ErrEnvelopeInvalidf(err error) *AppError {
	return Wrap(err, CodeWebhookEnvelopeInvalid, "webhook envelope could not be parsed", http.StatusInternalServerError)
}
