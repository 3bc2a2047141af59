// Session, wallet snapshot, and notification HTTP handlers.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avlonitis/go-wallet-backend/internal/services"
	"github.com/avlonitis/go-wallet-backend/internal/utils"
)

// ConnectRequest opens the wallet session.
type ConnectRequest struct {
	// Restoring marks a restore-from-backup connect; the session reports a
	// restoring state until the first sync completes.
	Restoring bool `json:"restoring,omitempty"`
}

// FocusRequest reports whether the deposit screen is in the foreground.
// While focused, deposit-claim notifications are suppressed (the screen
// itself shows the outcome).
type FocusRequest struct {
	Focused bool `json:"focused"`
}

// Connect godoc
// @ID          sessionConnect
// @Summary     Open the wallet session
// @Description Connects the wallet runtime and subscribes to push events. A failed subscription does not fail the connect; it is reported in the session state.
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ConnectRequest  false  "Connect options"
// @Success     200  {object}  services.SessionState
// @Failure     502  {object}  handlers.ErrorResponse "Runtime connect failed"
// @Router      /session/connect [post]
func (h *Handlers) Connect(c *gin.Context) {
	var req ConnectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	st, err := h.sessionSvc.Connect(c.Request.Context(), req.Restoring)
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// Disconnect godoc
// @ID          sessionDisconnect
// @Summary     Close the wallet session
// @Description Unsubscribes from push events before tearing the session down.
// @Tags        Session
// @Success     204  {string}  string "No Content"
// @Failure     409  {object}  handlers.ErrorResponse "No open session"
// @Router      /session/disconnect [post]
func (h *Handlers) Disconnect(c *gin.Context) {
	if err := h.sessionSvc.Disconnect(c.Request.Context()); err != nil {
		if errors.Is(err, services.ErrNotConnected) {
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
			return
		}
		fail(c, http.StatusBadGateway, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// SessionState godoc
// @ID          sessionState
// @Summary     Current session state
// @Tags        Session
// @Produce     json
// @Success     200  {object}  services.SessionState
// @Router      /session [get]
func (h *Handlers) SessionState(c *gin.Context) {
	st := h.sessionSvc.State()
	ok(c, http.StatusOK, st)
}

// SetFocus godoc
// @ID          sessionSetFocus
// @Summary     Report deposit screen focus
// @Tags        Session
// @Accept      json
// @Success     204  {string}  string "No Content"
// @Router      /session/focus [put]
func (h *Handlers) SetFocus(c *gin.Context) {
	var req FocusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.sessionSvc.SetDepositFocus(req.Focused)
	noContent(c)
}

// WalletSnapshot godoc
// @ID          walletSnapshot
// @Summary     Wallet summary and payment history
// @Tags        Wallet
// @Produce     json
// @Success     200  {object}  services.WalletSnapshot
// @Router      /wallet [get]
func (h *Handlers) WalletSnapshot(c *gin.Context) {
	ok(c, http.StatusOK, h.walletSvc.Snapshot())
}

// RefreshWallet godoc
// @ID          refreshWallet
// @Summary     Re-query the wallet summary and history
// @Tags        Wallet
// @Produce     json
// @Success     200  {object}  services.WalletSnapshot
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /wallet/refresh [post]
func (h *Handlers) RefreshWallet(c *gin.Context) {
	if err := h.walletSvc.Refresh(c.Request.Context(), false); err != nil {
		fail(c, http.StatusBadGateway, ErrCodeRefreshFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, h.walletSvc.Snapshot())
}

// DrainNotifications godoc
// @ID          drainNotifications
// @Summary     Drain pending notifications
// @Description Returns and clears the buffered notifications, oldest first. An optional max query parameter caps how many are returned; the rest are discarded with the drain.
// @Tags        Notifications
// @Produce     json
// @Param       max  query  int  false  "Cap on returned notifications"
// @Success     200  {object}  map[string]interface{}
// @Router      /notifications [get]
func (h *Handlers) DrainNotifications(c *gin.Context) {
	ns := h.sink.Drain()
	if max := utils.AtoiDefault(c.Query("max"), 0); max > 0 && max < len(ns) {
		ns = ns[:max]
	}
	ok(c, http.StatusOK, gin.H{"notifications": ns})
}
