// Send workflow HTTP handlers.
//
// This file exposes REST endpoints driving the five-step send workflow:
//   - POST   /send           (submit raw destination, starts the workflow)
//   - GET    /send           (current workflow state)
//   - POST   /send/amount    (submit amount, runs preparation)
//   - POST   /send/fee       (select fee tier, on-chain only)
//   - POST   /send/lnurl     (LNURL amount/comment, rail-specific prepare)
//   - POST   /send/confirm   (execute; honors Idempotency-Key)
//   - POST   /send/back      (step back)
//   - DELETE /send           (close, discard transient state)
//
// Handlers are transport-thin: they validate input, call the orchestration
// services, and translate results (including the service sentinel errors)
// into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/avlonitis/go-wallet-backend/internal/domain"
	"github.com/avlonitis/go-wallet-backend/internal/http/middleware"
	"github.com/avlonitis/go-wallet-backend/internal/notify"
	"github.com/avlonitis/go-wallet-backend/internal/repo"
	"github.com/avlonitis/go-wallet-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// SendService defines the send workflow operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context for cancellation.
type SendService interface {
	// State returns the user's current workflow snapshot.
	State(userID string) (*services.SendState, error)
	// SubmitInput starts/advances the workflow from a raw destination string.
	SubmitInput(ctx context.Context, userID, raw string) (*services.SendState, error)
	// SubmitAmount submits a sat amount and runs the generic preparation.
	SubmitAmount(ctx context.Context, userID string, amountSats uint64) (*services.SendState, error)
	// SelectFeeTier picks a quoted speed tier for an on-chain send.
	SelectFeeTier(userID string, level domain.FeeTierLevel) (*services.SendState, error)
	// SubmitLnurl runs the rail-specific LNURL prepare.
	SubmitLnurl(ctx context.Context, userID string, amountSats uint64, comment string) (*services.SendState, error)
	// Confirm executes the payment.
	Confirm(ctx context.Context, userID string) (*services.SendState, error)
	// Back steps the workflow back one step.
	Back(userID string) (*services.SendState, error)
	// Close exits the workflow and discards transient state.
	Close(userID string)
}

// DepositService defines the deposit/refund operations consumed by HTTP
// handlers.
type DepositService interface {
	Refresh(ctx context.Context) error
	Listing(ctx context.Context) (*services.DepositListing, error)
	Approve(ctx context.Context, txid string, vout uint32) error
	Reject(ctx context.Context, txid string, vout uint32) error
	StartRefund(ctx context.Context, userID, txid string, vout uint32) (*services.RefundState, error)
	RefundState(userID string) (*services.RefundState, error)
	SetRefundDestination(userID, address string) (*services.RefundState, error)
	SetRefundTier(userID string, level domain.FeeTierLevel) (*services.RefundState, error)
	ConfirmRefund(ctx context.Context, userID string) (*services.RefundState, error)
	RefundBack(userID string) (*services.RefundState, error)
	CloseRefund(userID string)
}

// SessionService defines the session lifecycle operations consumed by HTTP
// handlers.
type SessionService interface {
	Connect(ctx context.Context, restoring bool) (*services.SessionState, error)
	Disconnect(ctx context.Context) error
	State() services.SessionState
	SetDepositFocus(focused bool)
}

// WalletService exposes the wallet summary snapshot.
type WalletService interface {
	Refresh(ctx context.Context, background bool) error
	Snapshot() services.WalletSnapshot
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the wallet backend. It depends on
// abstract service interfaces to keep transport concerns separate from
// orchestration logic.
type Handlers struct {
	sendSvc    SendService
	depositSvc DepositService
	sessionSvc SessionService
	walletSvc  WalletService
	sink       *notify.MemorySink

	// db backs idempotency record creation for payment execution.
	db             *gorm.DB
	idempotencyTTL time.Duration
}

// New constructs a Handlers instance bound to the given collaborators.
func New(send SendService, deposits DepositService, session SessionService, wallet WalletService, sink *notify.MemorySink, db *gorm.DB, idemTTL time.Duration) *Handlers {
	return &Handlers{
		sendSvc:        send,
		depositSvc:     deposits,
		sessionSvc:     session,
		walletSvc:      wallet,
		sink:           sink,
		db:             db,
		idempotencyTTL: idemTTL,
	}
}

// userID extracts the authenticated user id from Gin context (set by
// upstream middleware). If absent, it falls back to "X-User-ID" header
// (tests use it), and finally to "demo-user".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// SubmitInputRequest is the JSON payload that starts a send workflow.
type SubmitInputRequest struct {
	// Input is the raw destination string (invoice, address, LNURL, ...).
	Input string `json:"input" binding:"required" example:"lnbc20m1pv..."`
}

// SubmitAmountRequest is the JSON payload for the Amount step.
type SubmitAmountRequest struct {
	AmountSats uint64 `json:"amount_sats" binding:"required,gt=0" example:"50000"`
}

// SelectFeeTierRequest picks one of the quoted speed tiers.
type SelectFeeTierRequest struct {
	Tier string `json:"tier" binding:"required,oneof=slow medium fast" example:"medium"`
}

// SubmitLnurlRequest carries the LNURL sub-flow parameters.
type SubmitLnurlRequest struct {
	AmountSats uint64 `json:"amount_sats" binding:"required,gt=0" example:"2500"`
	Comment    string `json:"comment,omitempty" example:"thanks!"`
}

//
// Error translation
//

// sendStatus maps a service error to (HTTP status, error code).
func sendStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrNoWorkflow):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrWorkflowBusy):
		return http.StatusConflict, ErrCodeWorkflowBusy
	case errors.Is(err, services.ErrInvalidStep):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, services.ErrEmptyInput),
		errors.Is(err, services.ErrUnrecognizedInput):
		return http.StatusUnprocessableEntity, ErrCodeClassificationFailed
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrCommentTooLong),
		errors.Is(err, services.ErrInvalidFeeTier):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, services.ErrFeeTierRequired):
		return http.StatusBadRequest, ErrCodeFeeTierRequired
	}
	return http.StatusBadGateway, ErrCodePreparationFailed
}

//
// Handlers
//

// SubmitInput godoc
// @ID          submitSendInput
// @Summary     Start a send workflow
// @Description Classifies the raw destination string and advances the workflow per rail.
// @Tags        Send
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"
// @Param       body       body    handlers.SubmitInputRequest  true  "Raw destination"
// @Success     200  {object}  services.SendState
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse "Unclassifiable input"
// @Router      /send [post]
func (h *Handlers) SubmitInput(c *gin.Context) {
	var req SubmitInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	st, err := h.sendSvc.SubmitInput(c.Request.Context(), userID(c), req.Input)
	if err != nil {
		status, code := sendStatus(err)
		if st != nil {
			// Recoverable: the workflow holds the surfaced error; return the
			// state alongside the error status so the client can re-render.
			c.JSON(status, gin.H{"state": st, "code": code, "message": err.Error()})
			return
		}
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// State godoc
// @ID          sendState
// @Summary     Current send workflow state
// @Tags        Send
// @Produce     json
// @Success     200  {object}  services.SendState
// @Failure     404  {object}  handlers.ErrorResponse "No active workflow"
// @Router      /send [get]
func (h *Handlers) State(c *gin.Context) {
	st, err := h.sendSvc.State(userID(c))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// SubmitAmount godoc
// @ID          submitSendAmount
// @Summary     Submit the send amount
// @Description Runs the generic preparation; on failure the workflow stays in the Amount step.
// @Tags        Send
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SubmitAmountRequest  true  "Amount"
// @Success     200  {object}  services.SendState
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /send/amount [post]
func (h *Handlers) SubmitAmount(c *gin.Context) {
	var req SubmitAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "amount_sats must be a positive integer")
		return
	}

	st, err := h.sendSvc.SubmitAmount(c.Request.Context(), userID(c), req.AmountSats)
	if err != nil {
		status, code := sendStatus(err)
		if st != nil {
			c.JSON(status, gin.H{"state": st, "code": code, "message": err.Error()})
			return
		}
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// SelectFeeTier godoc
// @ID          selectSendFeeTier
// @Summary     Select an on-chain fee tier
// @Tags        Send
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SelectFeeTierRequest  true  "Tier"
// @Success     200  {object}  services.SendState
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse "Not an on-chain workflow step"
// @Router      /send/fee [post]
func (h *Handlers) SelectFeeTier(c *gin.Context) {
	var req SelectFeeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tier must be one of slow, medium, fast")
		return
	}

	st, err := h.sendSvc.SelectFeeTier(userID(c), domain.FeeTierLevel(req.Tier))
	if err != nil {
		status, code := sendStatus(err)
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// SubmitLnurl godoc
// @ID          submitSendLnurl
// @Summary     Submit LNURL amount and comment
// @Description Validates the rail's sendable bounds and comment allowance, then runs the rail-specific prepare.
// @Tags        Send
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SubmitLnurlRequest  true  "LNURL parameters"
// @Success     200  {object}  services.SendState
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /send/lnurl [post]
func (h *Handlers) SubmitLnurl(c *gin.Context) {
	var req SubmitLnurlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "amount_sats must be a positive integer")
		return
	}

	st, err := h.sendSvc.SubmitLnurl(c.Request.Context(), userID(c), req.AmountSats, req.Comment)
	if err != nil {
		status, code := sendStatus(err)
		if st != nil {
			c.JSON(status, gin.H{"state": st, "code": code, "message": err.Error()})
			return
		}
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// Confirm godoc
// @ID          confirmSend
// @Summary     Execute the payment
// @Description Enters the non-cancellable Processing step and executes. Honors Idempotency-Key: a replayed key returns the recorded outcome without executing again.
// @Tags        Send
// @Produce     json
// @Param       Idempotency-Key  header  string  false "Idempotency key"
// @Success     200  {object}  services.SendState
// @Failure     400  {object}  handlers.ErrorResponse "Fee tier required"
// @Failure     409  {object}  handlers.ErrorResponse "Wrong step / busy"
// @Router      /send/confirm [post]
func (h *Handlers) Confirm(c *gin.Context) {
	uid := userID(c)

	// Replay: the execution already happened for this key; serve the
	// workflow state without executing again.
	if middleware.IsReplay(c) {
		st, err := h.sendSvc.State(uid)
		if err != nil {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		ok(c, http.StatusOK, st)
		return
	}

	// Execution failures are not errors here: the workflow lands in the
	// Result step carrying the failure, and the response is still 200.
	st, err := h.sendSvc.Confirm(c.Request.Context(), uid)
	if err != nil {
		status, code := sendStatus(err)
		fail(c, status, code, err.Error())
		return
	}

	paymentID := ""
	if st.Result != nil && st.Result.Outcome != nil {
		paymentID = st.Result.Outcome.PaymentID
	}
	if st.Result != nil {
		rail := ""
		if st.Destination != nil {
			rail = string(st.Destination.Rail)
		}
		middleware.ObservePayment(rail, st.Result.Success)
	}
	h.recordIdempotency(c, uid, paymentID, http.StatusOK)
	ok(c, http.StatusOK, st)
}

// recordIdempotency persists the idempotency record for a settled execution,
// when the client supplied a key. Failures are logged, not surfaced: the
// payment already settled.
func (h *Handlers) recordIdempotency(c *gin.Context, uid, paymentID string, status int) {
	key, present := middleware.GetIdempotencyKey(c)
	if !present || h.db == nil {
		return
	}
	scope := c.Request.Method + " " + c.FullPath()
	if _, err := repo.CreateIdempotency(c.Request.Context(), h.db, uid, scope, key, paymentID, status, h.idempotencyTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record insert failed")
	}
}

// Back godoc
// @ID          sendBack
// @Summary     Step the workflow back
// @Tags        Send
// @Produce     json
// @Success     200  {object}  services.SendState
// @Failure     409  {object}  handlers.ErrorResponse "Cannot go back from this step"
// @Router      /send/back [post]
func (h *Handlers) Back(c *gin.Context) {
	st, err := h.sendSvc.Back(userID(c))
	if err != nil {
		status, code := sendStatus(err)
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// Close godoc
// @ID          closeSend
// @Summary     Exit the workflow
// @Description Discards all transient workflow state (destination, prepared payment, selections).
// @Tags        Send
// @Success     204  {string}  string "No Content"
// @Router      /send [delete]
func (h *Handlers) Close(c *gin.Context) {
	h.sendSvc.Close(userID(c))
	noContent(c)
}
