// Package services implements the orchestration core: input classification,
// the send workflow state machine, the deposit claim/refund coordinator, and
// the session-scoped event reconciliation dispatcher. This file centralizes
// the service-level error values so that they can be consistently returned
// by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Classification errors (recoverable, workflow stays in the Input step).
var (
	// ErrEmptyInput is returned for blank or whitespace-only input.
	ErrEmptyInput = errors.New("input is empty")

	// ErrUnrecognizedInput is returned when the runtime cannot classify the
	// input as any supported payment rail.
	ErrUnrecognizedInput = errors.New("input is not a recognized payment destination")
)

// Send workflow errors.
var (
	// ErrNoWorkflow indicates no send workflow is active for the user.
	ErrNoWorkflow = errors.New("no active send workflow")

	// ErrWorkflowBusy indicates a runtime call for this workflow is still in
	// flight; the state cannot advance until it settles.
	ErrWorkflowBusy = errors.New("workflow operation in progress")

	// ErrInvalidStep indicates the requested action is not legal in the
	// workflow's current step.
	ErrInvalidStep = errors.New("action not allowed in current workflow step")

	// ErrInvalidAmount is returned for amounts that are not positive
	// integers, or that violate the rail's sendable bounds.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrCommentTooLong is returned when an LNURL comment exceeds the
	// rail-reported allowance.
	ErrCommentTooLong = errors.New("comment exceeds allowed length")

	// ErrFeeTierRequired indicates confirmation was attempted before a fee
	// tier was selected for an on-chain send.
	ErrFeeTierRequired = errors.New("fee tier must be selected")

	// ErrInvalidFeeTier is returned for unknown tier levels.
	ErrInvalidFeeTier = errors.New("invalid fee tier")
)

// Deposit / refund errors.
var (
	// ErrDepositNotFound indicates the (txid, vout) pair is not in the
	// current unclaimed-deposit snapshot.
	ErrDepositNotFound = errors.New("deposit not found")

	// ErrDepositNotActionable indicates the deposit carries no approvable
	// claim error (it will be claimed automatically, or is already
	// refund-broadcasting).
	ErrDepositNotActionable = errors.New("deposit is not actionable")

	// ErrNoRefundFlow indicates no refund flow is active for the user.
	ErrNoRefundFlow = errors.New("no active refund flow")

	// ErrNotRefundEligible indicates the deposit is not both unclaimed and
	// rejected, so the refund flow cannot start for it.
	ErrNotRefundEligible = errors.New("deposit is not refund-eligible")

	// ErrDestinationRequired indicates the refund destination is missing.
	ErrDestinationRequired = errors.New("destination address required")
)

// Session errors.
var (
	// ErrNotConnected indicates an operation that needs a connected wallet
	// session was called without one.
	ErrNotConnected = errors.New("wallet session not connected")
)
