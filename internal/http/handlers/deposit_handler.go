// Deposit and refund HTTP handlers.
//
// Exposes the claim lifecycle:
//   - GET    /deposits               (partitioned listing)
//   - POST   /deposits/refresh       (re-query the runtime)
//   - POST   /deposits/claim         (approve a fee-exceeded deposit)
//   - POST   /deposits/reject        (record a rejection)
//
// and the refund sub-flow for rejected deposits:
//   - POST   /deposits/refund          (start)
//   - GET    /deposits/refund          (state)
//   - PUT    /deposits/refund/destination
//   - PUT    /deposits/refund/fee
//   - POST   /deposits/refund/confirm
//   - POST   /deposits/refund/back
//   - DELETE /deposits/refund
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avlonitis/go-wallet-backend/internal/domain"
	"github.com/avlonitis/go-wallet-backend/internal/http/middleware"
	"github.com/avlonitis/go-wallet-backend/internal/services"
)

//
// DTOs
//

// OutpointRequest identifies a deposit by its funding outpoint.
type OutpointRequest struct {
	Txid string `json:"txid" binding:"required" example:"f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16"`
	Vout uint32 `json:"vout" example:"0"`
}

// RefundDestinationRequest sets the payout address for a refund flow.
type RefundDestinationRequest struct {
	Address string `json:"address" binding:"required" example:"bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"`
}

// RefundTierRequest picks the flat broadcast-speed fee for a refund flow.
type RefundTierRequest struct {
	Tier string `json:"tier" binding:"required,oneof=slow medium fast" example:"slow"`
}

// depositStatus maps a deposit service error to (HTTP status, error code).
func depositStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrDepositNotFound),
		errors.Is(err, services.ErrNoRefundFlow):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrWorkflowBusy):
		return http.StatusConflict, ErrCodeWorkflowBusy
	case errors.Is(err, services.ErrDepositNotActionable),
		errors.Is(err, services.ErrNotRefundEligible),
		errors.Is(err, services.ErrInvalidStep):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, services.ErrDestinationRequired),
		errors.Is(err, services.ErrInvalidFeeTier),
		errors.Is(err, services.ErrInvalidAmount):
		return http.StatusBadRequest, ErrCodeBadRequest
	}
	return http.StatusBadGateway, ErrCodeClaimFailed
}

//
// Claim lifecycle
//

// ListDeposits godoc
// @ID          listDeposits
// @Summary     List unclaimed deposits
// @Description Returns deposits partitioned by actionability: auto-claim, fee-exceeded (approve/reject), failed (reject only), and refundable (rejected, awaiting refund).
// @Tags        Deposits
// @Produce     json
// @Success     200  {object}  services.DepositListing
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /deposits [get]
func (h *Handlers) ListDeposits(c *gin.Context) {
	listing, err := h.depositSvc.Listing(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeRefreshFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, listing)
}

// RefreshDeposits godoc
// @ID          refreshDeposits
// @Summary     Re-query unclaimed deposits from the wallet runtime
// @Tags        Deposits
// @Produce     json
// @Success     200  {object}  services.DepositListing
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /deposits/refresh [post]
func (h *Handlers) RefreshDeposits(c *gin.Context) {
	if err := h.depositSvc.Refresh(c.Request.Context()); err != nil {
		fail(c, http.StatusBadGateway, ErrCodeRefreshFailed, err.Error())
		return
	}
	listing, err := h.depositSvc.Listing(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeRefreshFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, listing)
}

// ApproveDeposit godoc
// @ID          approveDeposit
// @Summary     Approve a fee-exceeded deposit claim
// @Description Claims the deposit at its proposed (required) fee and clears any standing rejection for the outpoint.
// @Tags        Deposits
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.OutpointRequest  true  "Deposit outpoint"
// @Success     200  {object}  services.DepositListing
// @Failure     404  {object}  handlers.ErrorResponse "Unknown outpoint"
// @Failure     409  {object}  handlers.ErrorResponse "Deposit is not approvable"
// @Router      /deposits/claim [post]
func (h *Handlers) ApproveDeposit(c *gin.Context) {
	var req OutpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "txid is required")
		return
	}

	if err := h.depositSvc.Approve(c.Request.Context(), req.Txid, req.Vout); err != nil {
		middleware.ObserveDepositOp("claim", false)
		status, code := depositStatus(err)
		fail(c, status, code, err.Error())
		return
	}
	middleware.ObserveDepositOp("claim", true)
	listing, err := h.depositSvc.Listing(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeRefreshFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, listing)
}

// RejectDeposit godoc
// @ID          rejectDeposit
// @Summary     Reject a deposit claim
// @Description Records a persistent rejection for the outpoint. Rejected funds stay on the origin chain until refunded or re-approved.
// @Tags        Deposits
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.OutpointRequest  true  "Deposit outpoint"
// @Success     200  {object}  services.DepositListing
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /deposits/reject [post]
func (h *Handlers) RejectDeposit(c *gin.Context) {
	var req OutpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "txid is required")
		return
	}

	if err := h.depositSvc.Reject(c.Request.Context(), req.Txid, req.Vout); err != nil {
		status, code := depositStatus(err)
		fail(c, status, code, err.Error())
		return
	}
	listing, err := h.depositSvc.Listing(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeRefreshFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, listing)
}

//
// Refund sub-flow
//

// StartRefund godoc
// @ID          startRefund
// @Summary     Start a refund flow for a rejected deposit
// @Tags        Refund
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.OutpointRequest  true  "Rejected deposit outpoint"
// @Success     200  {object}  services.RefundState
// @Failure     409  {object}  handlers.ErrorResponse "Deposit is not refund-eligible"
// @Router      /deposits/refund [post]
func (h *Handlers) StartRefund(c *gin.Context) {
	var req OutpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "txid is required")
		return
	}

	st, err := h.depositSvc.StartRefund(c.Request.Context(), userID(c), req.Txid, req.Vout)
	if err != nil {
		status, code := depositStatus(err)
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// RefundFlowState godoc
// @ID          refundState
// @Summary     Current refund flow state
// @Tags        Refund
// @Produce     json
// @Success     200  {object}  services.RefundState
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /deposits/refund [get]
func (h *Handlers) RefundFlowState(c *gin.Context) {
	st, err := h.depositSvc.RefundState(userID(c))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// SetRefundDestination godoc
// @ID          setRefundDestination
// @Summary     Set the refund payout address
// @Tags        Refund
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RefundDestinationRequest  true  "Payout address"
// @Success     200  {object}  services.RefundState
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /deposits/refund/destination [put]
func (h *Handlers) SetRefundDestination(c *gin.Context) {
	var req RefundDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "address is required")
		return
	}

	st, err := h.depositSvc.SetRefundDestination(userID(c), req.Address)
	if err != nil {
		status, code := depositStatus(err)
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// SetRefundTier godoc
// @ID          setRefundTier
// @Summary     Pick the refund broadcast-speed tier
// @Description The refund fee is a flat per-tier amount, independent of the claim quote. The payout shown is amount minus fee.
// @Tags        Refund
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RefundTierRequest  true  "Tier"
// @Success     200  {object}  services.RefundState
// @Failure     400  {object}  handlers.ErrorResponse "Fee meets or exceeds deposit amount"
// @Router      /deposits/refund/fee [put]
func (h *Handlers) SetRefundTier(c *gin.Context) {
	var req RefundTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tier must be one of slow, medium, fast")
		return
	}

	st, err := h.depositSvc.SetRefundTier(userID(c), domain.FeeTierLevel(req.Tier))
	if err != nil {
		status, code := depositStatus(err)
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// ConfirmRefund godoc
// @ID          confirmRefund
// @Summary     Broadcast the refund transaction
// @Description On success the rejection record is cleared and the flow shows the refund transaction id. On failure the flow returns to the confirmation step carrying the error.
// @Tags        Refund
// @Produce     json
// @Success     200  {object}  services.RefundState
// @Failure     409  {object}  handlers.ErrorResponse "Wrong step"
// @Router      /deposits/refund/confirm [post]
func (h *Handlers) ConfirmRefund(c *gin.Context) {
	st, err := h.depositSvc.ConfirmRefund(c.Request.Context(), userID(c))
	if err != nil {
		middleware.ObserveDepositOp("refund", false)
		if st != nil {
			// Broadcast failed; the flow is back on the confirmation step with
			// the error attached.
			status, code := http.StatusBadGateway, ErrCodeRefundFailed
			c.JSON(status, gin.H{"state": st, "code": code, "message": err.Error()})
			return
		}
		status, code := depositStatus(err)
		fail(c, status, code, err.Error())
		return
	}
	middleware.ObserveDepositOp("refund", true)
	ok(c, http.StatusOK, st)
}

// RefundBack godoc
// @ID          refundBack
// @Summary     Step the refund flow back
// @Tags        Refund
// @Produce     json
// @Success     200  {object}  services.RefundState
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /deposits/refund/back [post]
func (h *Handlers) RefundBack(c *gin.Context) {
	st, err := h.depositSvc.RefundBack(userID(c))
	if err != nil {
		status, code := depositStatus(err)
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// CloseRefund godoc
// @ID          closeRefund
// @Summary     Exit the refund flow
// @Tags        Refund
// @Success     204  {string}  string "No Content"
// @Router      /deposits/refund [delete]
func (h *Handlers) CloseRefund(c *gin.Context) {
	h.depositSvc.CloseRefund(userID(c))
	noContent(c)
}
