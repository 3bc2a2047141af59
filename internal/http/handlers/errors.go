// Package handlers defines HTTP-layer error codes used across all API
// endpoints.
//
// These symbolic constants are mapped to HTTP responses via the `fail()`
// helper and give clients a stable, machine-readable error taxonomy that
// supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless noted.
//   - Generic codes (bad_request, not_found, conflict, ...) mirror common
//     HTTP status semantics.
//   - Domain-specific codes name the orchestration condition that cannot be
//     conveyed by status alone (classification_failed, fee_tier_required, ...).
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeClassificationFailed = "classification_failed"
	ErrCodePreparationFailed    = "preparation_failed"
	ErrCodeExecutionFailed      = "execution_failed"
	ErrCodeWorkflowBusy         = "workflow_busy"
	ErrCodeFeeTierRequired      = "fee_tier_required"
	ErrCodeClaimFailed          = "claim_failed"
	ErrCodeRefundFailed         = "refund_failed"
	ErrCodeRefreshFailed        = "refresh_failed"
	ErrCodeMethodNotAllowed     = "method_not_allowed"
)
