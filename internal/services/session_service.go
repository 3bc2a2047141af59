// Package services – SessionService
//
// This file implements the wallet session and its event reconciliation
// dispatcher. The session owns the one push-event subscription that exists
// per connected session: Connect is idempotent (a second call while
// connected is a no-op), and Disconnect unsubscribes before tearing the
// session down so no event can be delivered against a stale session.
//
// Inbound events are handled independently and may trigger several
// downstream effects: background refreshes of the wallet and deposit
// snapshots, and de-duplicated user-facing notifications. Background refresh
// failures are logged, never surfaced as blocking UI errors — they are
// best-effort reconciliation.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avlonitis/go-wallet-backend/internal/domain"
	"github.com/avlonitis/go-wallet-backend/internal/notify"
	"github.com/avlonitis/go-wallet-backend/internal/wallet"
)

// dedupWindow suppresses repeated payment-succeeded notifications carrying
// the same payment id within this window.
const dedupWindow = 30 * time.Second

// SessionState is the externally visible session snapshot.
type SessionState struct {
	Connected bool `json:"connected"`
	// Restoring is true from a restore-from-backup connect until the first
	// sync completes.
	Restoring bool `json:"restoring"`
	// SubscriptionError carries a failed subscription attempt; send/claim
	// still operate without live updates until a manual refresh.
	SubscriptionError string `json:"subscription_error,omitempty"`
}

// SessionService owns the connected wallet session and fans push events out
// to the wallet and deposit services and the notification sink.
type SessionService struct {
	Runtime  wallet.Runtime
	Wallet   *WalletService
	Deposits *DepositService
	Sink     notify.Sink

	// Log is used for background reconciliation failures; defaults to the
	// global logger.
	Log *zerolog.Logger

	// DedupWindow overrides the payment notification dedup window when > 0.
	DedupWindow time.Duration

	mu             sync.Mutex
	connected      bool
	restoring      bool
	subID          string
	subErr         string
	depositFocused bool
	dedup          *notify.DedupCache
}

// NewSessionService constructs a SessionService wired to the given
// collaborators.
func NewSessionService(rt wallet.Runtime, ws *WalletService, ds *DepositService, sink notify.Sink) *SessionService {
	return &SessionService{
		Runtime:  rt,
		Wallet:   ws,
		Deposits: ds,
		Sink:     sink,
	}
}

// Connect establishes the wallet session and the single event subscription.
// Calling Connect while already connected is a no-op. restoring marks a
// restore-from-backup connection; the flag clears on the first sync event.
//
// A subscription failure does not fail the connect: the session comes up
// without live updates and the error is surfaced once in the session state.
func (s *SessionService) Connect(ctx context.Context, restoring bool) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		st := s.stateLocked()
		return &st, nil
	}

	s.connected = true
	s.restoring = restoring
	s.subErr = ""
	window := s.DedupWindow
	if window <= 0 {
		window = dedupWindow
	}
	s.dedup = notify.NewDedupCache(window)

	id, err := s.Runtime.Subscribe(s.handleEvent)
	if err != nil {
		s.subErr = err.Error()
		s.logger().Warn().Err(err).Msg("event subscription failed; continuing without live updates")
	} else {
		s.subID = id
	}

	st := s.stateLocked()
	return &st, nil
}

// Disconnect cancels the subscription first, then tears the session down.
func (s *SessionService) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	if s.subID != "" {
		if err := s.Runtime.Unsubscribe(s.subID); err != nil {
			s.logger().Warn().Err(err).Msg("unsubscribe failed during disconnect")
		}
		s.subID = ""
	}
	s.connected = false
	s.restoring = false
	s.dedup = nil
	return nil
}

// State returns the current session snapshot.
func (s *SessionService) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// SetDepositFocus records whether the presentation layer currently shows the
// deposit/refund screen; deposit-claim notifications are suppressed while it
// does, to avoid redundant feedback.
func (s *SessionService) SetDepositFocus(focused bool) {
	s.mu.Lock()
	s.depositFocused = focused
	s.mu.Unlock()
}

func (s *SessionService) stateLocked() SessionState {
	return SessionState{
		Connected:         s.connected,
		Restoring:         s.restoring,
		SubscriptionError: s.subErr,
	}
}

func (s *SessionService) logger() *zerolog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return &log.Logger
}

// handleEvent is the push-event entry point. It runs on the runtime's
// delivery goroutine; refreshes are dispatched as background work so the
// handler never blocks delivery.
func (s *SessionService) handleEvent(ev domain.WalletEvent) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	dedup := s.dedup
	suppressed := s.depositFocused
	firstSync := s.restoring && ev.Type == domain.EventSynced
	if firstSync {
		s.restoring = false
	}
	s.mu.Unlock()

	switch ev.Type {
	case domain.EventSynced:
		go s.backgroundRefresh(true, true)

	case domain.EventPaymentSucceeded:
		if ev.Payment != nil && dedup != nil && dedup.Insert(ev.Payment.ID) {
			s.Sink.Publish(paymentNotification(*ev.Payment))
		}
		// Wallet data refreshes regardless of the dedup outcome.
		go s.backgroundRefresh(true, false)

	case domain.EventDepositsClaimed:
		if !suppressed {
			s.Sink.Publish(notify.Notification{
				Kind:  notify.KindSuccess,
				Title: "Deposit claimed",
				Body:  claimedBody(ev.Deposits),
			})
		}
		claimed := ev.Deposits
		go func() {
			// A successful claim clears any rejection record for the pair so
			// the ledger tracks server-reported deposit state.
			if err := s.Deposits.ClearClaimed(context.Background(), claimed); err != nil {
				s.logger().Warn().Err(err).Msg("rejection ledger cleanup failed")
			}
			s.backgroundRefresh(true, true)
		}()

	case domain.EventDepositsClaimFailed:
		if !suppressed {
			body := "A deposit claim attempt failed."
			if ev.Err != "" {
				body = ev.Err
			}
			s.Sink.Publish(notify.Notification{
				Kind:  notify.KindError,
				Title: "Deposit claim failed",
				Body:  body,
			})
		}
		go s.backgroundRefresh(false, true)
	}
}

// backgroundRefresh reconciles local snapshots after an event. Failures are
// logged only.
func (s *SessionService) backgroundRefresh(walletData, deposits bool) {
	ctx := context.Background()
	if walletData {
		if err := s.Wallet.Refresh(ctx, true); err != nil {
			s.logger().Warn().Err(err).Msg("background wallet refresh failed")
		}
	}
	if deposits {
		if err := s.Deposits.Refresh(ctx); err != nil {
			s.logger().Warn().Err(err).Msg("background deposit refresh failed")
		}
	}
}

// paymentNotification renders the single notification a completed payment
// produces: a celebration for received funds, a lightweight acknowledgement
// for sent funds.
func paymentNotification(p domain.PaymentRecord) notify.Notification {
	if p.Direction == domain.DirectionReceive {
		return notify.Notification{
			Kind:  notify.KindCelebration,
			Title: "Payment received",
			Body:  "You received " + notify.FormatSats(p.AmountSats) + ".",
		}
	}
	return notify.Notification{
		Kind:  notify.KindInfo,
		Title: "Payment sent",
		Body:  "You sent " + notify.FormatSats(p.AmountSats) + ".",
	}
}

// claimedBody summarizes the claimed deposits for the notification body.
func claimedBody(deposits []domain.Deposit) string {
	var total uint64
	for _, d := range deposits {
		total += d.AmountSats
	}
	if total == 0 {
		return "Funds were moved to your spendable balance."
	}
	return notify.FormatSats(total) + " moved to your spendable balance."
}
