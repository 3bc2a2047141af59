// Package services – DepositService
//
// This file implements the deposit lifecycle coordinator. It maintains the
// unclaimed-deposit snapshot (replaced wholesale on every refresh), drives
// explicit claim approval and rejection, and owns the four-step refund
// sub-flow (destination → fee tier → confirmation → execution) for deposits
// the user has rejected.
//
// Refund eligibility is the intersection of two sources that can drift
// independently: the runtime's unclaimed set and the locally persisted
// rejection ledger. The coordinator keeps them consistent by removing the
// ledger record whenever a claim or refund for the pair succeeds.
package services

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/avlonitis/go-wallet-backend/internal/domain"
	"github.com/avlonitis/go-wallet-backend/internal/repo"
	"github.com/avlonitis/go-wallet-backend/internal/utils"
	"github.com/avlonitis/go-wallet-backend/internal/wallet"
)

// RefundStep identifies the refund sub-flow's current step.
type RefundStep string

const (
	RefundStepDestination RefundStep = "destination"
	RefundStepFee         RefundStep = "fee"
	RefundStepConfirm     RefundStep = "confirm"
	RefundStepResult      RefundStep = "result"
)

// RefundState is the externally visible snapshot of one refund flow.
type RefundState struct {
	Step        RefundStep          `json:"step"`
	Txid        string              `json:"txid"`
	Vout        uint32              `json:"vout"`
	AmountSats  uint64              `json:"amount_sats"`
	Destination string              `json:"destination,omitempty"`
	Tier        domain.FeeTierLevel `json:"tier,omitempty"`
	FeeSats     uint64              `json:"fee_sats,omitempty"`
	// PayoutSats is amount minus fee, shown on the confirmation step;
	// PayoutBTC is its fixed 8-decimal rendering.
	PayoutSats uint64 `json:"payout_sats,omitempty"`
	PayoutBTC  string `json:"payout_btc,omitempty"`
	// Error retains the last execution failure; the flow returns to the
	// confirmation step with it.
	Error      string `json:"error,omitempty"`
	RefundTxID string `json:"refund_tx_id,omitempty"`
}

// FeeExceededDeposit augments a deposit with the net amount the user would
// receive by approving the claim at the runtime-proposed fee, so the
// presentation layer can render "You receive: N sats" without recomputing.
type FeeExceededDeposit struct {
	domain.Deposit
	NetClaimSats uint64 `json:"net_claim_sats"`
}

// DepositListing is the partitioned snapshot exposed to the presentation
// layer. Slices are never nil so the JSON shape is stable.
type DepositListing struct {
	// AutoClaim are deposits with no claim error; the runtime will claim
	// them without user involvement.
	AutoClaim []domain.Deposit `json:"auto_claim"`
	// FeeExceeded are deposits actionable via approve (at the proposed fee)
	// or reject.
	FeeExceeded []FeeExceededDeposit `json:"fee_exceeded"`
	// Failed are deposits with an unspecified claim error; reject only.
	Failed []domain.Deposit `json:"failed"`
	// Refundable are unclaimed deposits with a matching rejection record.
	// Entries with a RefundTxID are broadcasting and not re-actionable.
	Refundable []domain.Deposit `json:"refundable"`
}

// refundFlow is the mutable per-user refund flow instance. busy is held for
// the duration of a runtime call so a concurrent confirm cannot broadcast
// the same refund twice.
type refundFlow struct {
	state RefundState
	busy  bool
}

// DepositService coordinates deposit claim/refund lifecycles.
type DepositService struct {
	Runtime wallet.Runtime
	DB      *gorm.DB

	mu       sync.Mutex
	snapshot []domain.Deposit
	refunds  map[string]*refundFlow // one active refund flow per user
	// claiming tracks outpoints with a claim call in flight.
	claiming map[string]struct{}
}

// NewDepositService constructs a DepositService.
func NewDepositService(rt wallet.Runtime, db *gorm.DB) *DepositService {
	return &DepositService{
		Runtime:  rt,
		DB:       db,
		refunds:  make(map[string]*refundFlow),
		claiming: make(map[string]struct{}),
	}
}

// Refresh fetches the full unclaimed-deposit snapshot from the runtime and
// replaces the held one atomically. Used by both foreground actions and
// background event reconciliation; last refresh wins.
func (s *DepositService) Refresh(ctx context.Context) error {
	tr := otel.Tracer("services/DepositService")
	ctx, span := tr.Start(ctx, "Refresh")
	defer span.End()

	deposits, err := s.Runtime.ListUnclaimedDeposits(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot = deposits
	s.mu.Unlock()
	return nil
}

// Listing partitions the current snapshot and joins it with the rejection
// ledger to produce the refund view.
func (s *DepositService) Listing(ctx context.Context) (*DepositListing, error) {
	s.mu.Lock()
	snapshot := s.snapshot
	s.mu.Unlock()

	out := &DepositListing{
		AutoClaim:   []domain.Deposit{},
		FeeExceeded: []FeeExceededDeposit{},
		Failed:      []domain.Deposit{},
		Refundable:  []domain.Deposit{},
	}
	for _, d := range snapshot {
		switch {
		case d.ClaimErr == nil:
			out.AutoClaim = append(out.AutoClaim, d)
		case d.FeeExceeded():
			out.FeeExceeded = append(out.FeeExceeded, FeeExceededDeposit{
				Deposit:      d,
				NetClaimSats: d.NetClaimSats(),
			})
		default:
			out.Failed = append(out.Failed, d)
		}

		rejected, err := repo.IsRejected(ctx, s.DB, d.Txid, d.Vout)
		if err != nil {
			return nil, err
		}
		if rejected {
			out.Refundable = append(out.Refundable, d)
		}
	}
	return out, nil
}

// Approve claims the deposit at the runtime-proposed fee. On success the
// matching rejection record (if any) is removed and the listing refreshed;
// on failure the deposit stays actionable and the error is returned.
func (s *DepositService) Approve(ctx context.Context, txid string, vout uint32) error {
	tr := otel.Tracer("services/DepositService")
	ctx, span := tr.Start(ctx, "Approve",
		trace.WithAttributes(attribute.String("deposit.txid", txid)),
	)
	defer span.End()

	dep, ok := s.find(txid, vout)
	if !ok {
		return ErrDepositNotFound
	}
	if !dep.FeeExceeded() {
		return ErrDepositNotActionable
	}

	// One claim call per outpoint at a time; a second approve while the
	// first is in flight would double-claim.
	key := outpointKey(txid, vout)
	s.mu.Lock()
	if _, inflight := s.claiming[key]; inflight {
		s.mu.Unlock()
		return ErrWorkflowBusy
	}
	s.claiming[key] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.claiming, key)
		s.mu.Unlock()
	}()

	if err := s.Runtime.ClaimDeposit(ctx, txid, vout, dep.ClaimErr.RequiredFeeSats); err != nil {
		return err
	}
	if err := repo.RemoveRejected(ctx, s.DB, txid, vout); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Reject writes an idempotent rejection record for the deposit and refreshes
// the listing. It never calls the runtime.
func (s *DepositService) Reject(ctx context.Context, txid string, vout uint32) error {
	tr := otel.Tracer("services/DepositService")
	ctx, span := tr.Start(ctx, "Reject",
		trace.WithAttributes(attribute.String("deposit.txid", txid)),
	)
	defer span.End()

	if _, ok := s.find(txid, vout); !ok {
		return ErrDepositNotFound
	}
	if err := repo.RejectDeposit(ctx, s.DB, txid, vout); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// ClearClaimed removes rejection records for deposits the runtime reports as
// claimed, keeping the ledger consistent with server-reported state.
func (s *DepositService) ClearClaimed(ctx context.Context, claimed []domain.Deposit) error {
	for _, d := range claimed {
		if err := repo.RemoveRejected(ctx, s.DB, d.Txid, d.Vout); err != nil {
			return err
		}
	}
	return nil
}

//
// Refund sub-flow
//

// StartRefund opens the refund flow for a refund-eligible deposit: one that
// is still unclaimed, carries a rejection record, and is not already
// broadcasting a refund.
func (s *DepositService) StartRefund(ctx context.Context, userID, txid string, vout uint32) (*RefundState, error) {
	dep, ok := s.find(txid, vout)
	if !ok {
		return nil, ErrDepositNotFound
	}
	rejected, err := repo.IsRejected(ctx, s.DB, txid, vout)
	if err != nil {
		return nil, err
	}
	if !rejected || dep.RefundTxID != "" {
		return nil, ErrNotRefundEligible
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.refunds[userID]; ok && f.busy {
		return nil, ErrWorkflowBusy
	}
	f := &refundFlow{state: RefundState{
		Step:       RefundStepDestination,
		Txid:       txid,
		Vout:       vout,
		AmountSats: dep.AmountSats,
	}}
	s.refunds[userID] = f
	out := f.state
	return &out, nil
}

// RefundState returns a copy of the user's refund flow, or ErrNoRefundFlow.
func (s *DepositService) RefundState(userID string) (*RefundState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.refunds[userID]
	if !ok {
		return nil, ErrNoRefundFlow
	}
	out := f.state
	return &out, nil
}

// SetRefundDestination records the payout address and advances to the fee
// step. An empty destination blocks advancement.
func (s *DepositService) SetRefundDestination(userID, address string) (*RefundState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.refunds[userID]
	if !ok {
		return nil, ErrNoRefundFlow
	}
	if f.busy {
		return nil, ErrWorkflowBusy
	}
	if f.state.Step != RefundStepDestination {
		return nil, ErrInvalidStep
	}
	if address == "" {
		return nil, ErrDestinationRequired
	}
	f.state.Destination = address
	f.state.Step = RefundStepFee
	out := f.state
	return &out, nil
}

// SetRefundTier picks one of the three flat refund fee tiers and advances to
// confirmation, computing the net payout.
func (s *DepositService) SetRefundTier(userID string, level domain.FeeTierLevel) (*RefundState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.refunds[userID]
	if !ok {
		return nil, ErrNoRefundFlow
	}
	if f.busy {
		return nil, ErrWorkflowBusy
	}
	if f.state.Step != RefundStepFee {
		return nil, ErrInvalidStep
	}
	fee, ok := domain.RefundFeeSats[level]
	if !ok {
		return nil, ErrInvalidFeeTier
	}
	if fee >= f.state.AmountSats {
		return nil, ErrInvalidAmount
	}
	f.state.Tier = level
	f.state.FeeSats = fee
	f.state.PayoutSats = f.state.AmountSats - fee
	f.state.PayoutBTC = utils.FormatBTC(f.state.PayoutSats)
	f.state.Step = RefundStepConfirm
	out := f.state
	return &out, nil
}

// ConfirmRefund executes the refund. On success the rejection record is
// removed and the listing refreshed; on failure the flow returns to the
// confirmation step with the error retained.
func (s *DepositService) ConfirmRefund(ctx context.Context, userID string) (*RefundState, error) {
	tr := otel.Tracer("services/DepositService")
	ctx, span := tr.Start(ctx, "ConfirmRefund",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	s.mu.Lock()
	f, ok := s.refunds[userID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoRefundFlow
	}
	if f.busy {
		s.mu.Unlock()
		return nil, ErrWorkflowBusy
	}
	if f.state.Step != RefundStepConfirm {
		s.mu.Unlock()
		return nil, ErrInvalidStep
	}
	f.busy = true
	txid, vout, dest, fee := f.state.Txid, f.state.Vout, f.state.Destination, f.state.FeeSats
	s.mu.Unlock()

	refundTxID, err := s.Runtime.RefundDeposit(ctx, txid, vout, dest, fee)

	s.mu.Lock()
	defer s.mu.Unlock()
	f.busy = false

	// The flow may have been closed (or replaced) while the broadcast was in
	// flight. The outcome is still reported to the caller, but only the live
	// flow is updated in place.
	st := &f.state
	if cur, live := s.refunds[userID]; !live || cur != f {
		detached := f.state
		st = &detached
	}

	if err != nil {
		st.Error = err.Error()
		st.Step = RefundStepConfirm
		out := *st
		return &out, err
	}
	if rerr := repo.RemoveRejected(ctx, s.DB, txid, vout); rerr != nil {
		// The refund is already broadcast; a stale ledger row is repaired on
		// the next successful claim/refresh, so only report it.
		st.Error = rerr.Error()
	} else {
		st.Error = ""
	}
	st.RefundTxID = refundTxID
	st.Step = RefundStepResult
	out := *st

	go func() {
		// Snapshot refresh is best effort after the terminal transition.
		_ = s.Refresh(context.WithoutCancel(ctx))
	}()
	return &out, nil
}

// RefundBack steps the flow back one step, discarding the selection of the
// step being left.
func (s *DepositService) RefundBack(userID string) (*RefundState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.refunds[userID]
	if !ok {
		return nil, ErrNoRefundFlow
	}
	if f.busy {
		return nil, ErrWorkflowBusy
	}
	switch f.state.Step {
	case RefundStepFee:
		f.state.Destination = ""
		f.state.Step = RefundStepDestination
	case RefundStepConfirm:
		f.state.Tier = ""
		f.state.FeeSats = 0
		f.state.PayoutSats = 0
		f.state.PayoutBTC = ""
		f.state.Step = RefundStepFee
	default:
		return nil, ErrInvalidStep
	}
	out := f.state
	return &out, nil
}

// CloseRefund discards the user's refund flow.
func (s *DepositService) CloseRefund(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refunds, userID)
}

// outpointKey renders the (txid, vout) pair as a map key.
func outpointKey(txid string, vout uint32) string {
	return fmt.Sprintf("%s:%d", txid, vout)
}

// find looks the deposit up in the current snapshot.
func (s *DepositService) find(txid string, vout uint32) (domain.Deposit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.snapshot {
		if d.Txid == txid && d.Vout == vout {
			return d, true
		}
	}
	return domain.Deposit{}, false
}
