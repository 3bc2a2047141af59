// Package services – SendService
//
// This file implements the send orchestrator: a five-step workflow
// (Input → Amount → Workflow → Processing → Result) that classifies a raw
// destination, drives the rail-specific preparation and fee negotiation,
// and executes the payment through the wallet runtime.
//
// The workflow state is an explicit value owned by this service, advanced
// only through the guarded transition methods below, so illegal state
// combinations (e.g. a fee tier selected with no prepared payment) cannot
// be produced. Runtime calls are made with the workflow marked busy and the
// service lock released; a second user action during an in-flight call is
// rejected with ErrWorkflowBusy rather than queued.
package services

import (
	"context"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/avlonitis/go-wallet-backend/internal/domain"
	"github.com/avlonitis/go-wallet-backend/internal/utils"
	"github.com/avlonitis/go-wallet-backend/internal/wallet"
)

// SendStep identifies the workflow's current step.
type SendStep string

const (
	StepInput      SendStep = "input"
	StepAmount     SendStep = "amount"
	StepWorkflow   SendStep = "workflow"
	StepProcessing SendStep = "processing"
	StepResult     SendStep = "result"
)

// SendResult is the terminal outcome of one workflow instance.
type SendResult struct {
	Success bool                `json:"success"`
	Outcome *domain.SendOutcome `json:"outcome,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// SendState is the externally visible snapshot of one workflow. All
// transient data (destination, prepared payment, selections) dies with the
// workflow on Close.
type SendState struct {
	Step        SendStep                   `json:"step"`
	Destination *domain.PaymentDestination `json:"destination,omitempty"`
	AmountSats  uint64                     `json:"amount_sats,omitempty"`
	Prepared    *domain.PreparedPayment    `json:"prepared,omitempty"`

	// SelectedTier is set only for on-chain sends, after the user picks one
	// of the quoted tiers.
	SelectedTier domain.FeeTierLevel `json:"selected_tier,omitempty"`

	// Lnurl sub-flow data.
	LnurlPrepared *domain.LnurlPayPrepared `json:"lnurl_prepared,omitempty"`

	// TotalSats is the confirmation total (amount + fee) once computable;
	// TotalBTC is its fixed 8-decimal rendering.
	TotalSats uint64 `json:"total_sats,omitempty"`
	TotalBTC  string `json:"total_btc,omitempty"`

	// Error is the last recoverable error surfaced in the current step.
	Error string `json:"error,omitempty"`

	Result *SendResult `json:"result,omitempty"`
}

// sendWorkflow is the mutable per-user workflow instance.
type sendWorkflow struct {
	state SendState
	// amountSkipped records that the Amount step was never shown (invoice
	// with embedded amount), so Back from the Workflow step returns to Input.
	amountSkipped bool
	busy          bool
}

// SendService drives one send workflow per user.
type SendService struct {
	Runtime    wallet.Runtime
	Classifier *Classifier

	mu    sync.Mutex
	flows map[string]*sendWorkflow
}

// NewSendService constructs a SendService bound to the given runtime.
func NewSendService(rt wallet.Runtime) *SendService {
	return &SendService{
		Runtime:    rt,
		Classifier: &Classifier{Runtime: rt},
		flows:      make(map[string]*sendWorkflow),
	}
}

// State returns a copy of the user's current workflow state, or ErrNoWorkflow.
func (s *SendService) State(userID string) (*SendState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.flows[userID]
	if !ok {
		return nil, ErrNoWorkflow
	}
	st := wf.state
	return &st, nil
}

// SubmitInput starts (or restarts) the workflow from the Input step with a
// raw destination string. On classification failure the workflow remains in
// Input and the error is surfaced; on success it advances per rail:
//
//   - invoice with embedded amount: prepare immediately, go to Workflow
//   - bitcoin/spark address (and amountless invoice): go to Amount
//   - LNURL / lightning address: go to Workflow (the rail sub-flow collects
//     the amount)
func (s *SendService) SubmitInput(ctx context.Context, userID, raw string) (*SendState, error) {
	tr := otel.Tracer("services/SendService")
	ctx, span := tr.Start(ctx, "SubmitInput",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	s.mu.Lock()
	wf, ok := s.flows[userID]
	if !ok {
		wf = &sendWorkflow{state: SendState{Step: StepInput}}
		s.flows[userID] = wf
	}
	if wf.busy {
		s.mu.Unlock()
		return nil, ErrWorkflowBusy
	}
	if wf.state.Step != StepInput {
		s.mu.Unlock()
		return nil, ErrInvalidStep
	}
	wf.busy = true
	s.mu.Unlock()

	cls, err := s.Classifier.Classify(ctx, raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	wf.busy = false

	if err != nil {
		// Recoverable: stay in Input and surface the classification error.
		wf.state.Error = err.Error()
		st := wf.state
		return &st, err
	}

	wf.state.Error = ""
	wf.state.Destination = cls.Destination

	switch {
	case cls.SkipAmount:
		// Embedded amount: prepare right away and jump to Workflow.
		wf.state.AmountSats = cls.AmountSats
		wf.amountSkipped = true
		return s.prepareLocked(ctx, wf)
	case cls.Destination.IsLnurl():
		// Amount collected by the rail-specific sub-flow.
		wf.amountSkipped = true
		wf.state.Step = StepWorkflow
	default:
		wf.state.Step = StepAmount
	}
	st := wf.state
	return &st, nil
}

// SubmitAmount submits a positive sat amount from the Amount step and runs
// the generic preparation. On preparation failure the workflow remains in
// Amount with the error surfaced.
func (s *SendService) SubmitAmount(ctx context.Context, userID string, amountSats uint64) (*SendState, error) {
	tr := otel.Tracer("services/SendService")
	ctx, span := tr.Start(ctx, "SubmitAmount",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("amount_sats", int64(amountSats)),
		),
	)
	defer span.End()

	s.mu.Lock()
	wf, ok := s.flows[userID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoWorkflow
	}
	if wf.busy {
		s.mu.Unlock()
		return nil, ErrWorkflowBusy
	}
	if wf.state.Step != StepAmount {
		s.mu.Unlock()
		return nil, ErrInvalidStep
	}
	if amountSats == 0 {
		wf.state.Error = ErrInvalidAmount.Error()
		st := wf.state
		s.mu.Unlock()
		return &st, ErrInvalidAmount
	}
	wf.state.AmountSats = amountSats
	defer s.mu.Unlock()
	return s.prepareLocked(ctx, wf)
}

// prepareLocked runs the generic prepare call for the staged destination and
// amount. The caller must hold s.mu; the lock is released for the runtime
// call and re-acquired to apply the result.
func (s *SendService) prepareLocked(ctx context.Context, wf *sendWorkflow) (*SendState, error) {
	wf.busy = true
	dest := wf.state.Destination
	amount := wf.state.AmountSats
	s.mu.Unlock()

	prepared, err := s.Runtime.PrepareSend(ctx, dest, amount)

	s.mu.Lock()
	wf.busy = false
	if err != nil {
		// Recoverable: remain in the step the user is in.
		wf.state.Error = err.Error()
		st := wf.state
		return &st, err
	}
	wf.state.Error = ""
	wf.state.Prepared = prepared
	wf.state.SelectedTier = ""
	wf.state.Step = StepWorkflow
	s.updateTotalLocked(wf)
	st := wf.state
	return &st, nil
}

// SelectFeeTier picks one of the quoted speed tiers. Only legal in the
// Workflow step of an on-chain send that carries a fee quote.
func (s *SendService) SelectFeeTier(userID string, level domain.FeeTierLevel) (*SendState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.flows[userID]
	if !ok {
		return nil, ErrNoWorkflow
	}
	if wf.busy {
		return nil, ErrWorkflowBusy
	}
	if wf.state.Step != StepWorkflow || wf.state.Prepared == nil || wf.state.Prepared.FeeQuote == nil {
		return nil, ErrInvalidStep
	}
	if !level.Valid() {
		return nil, ErrInvalidFeeTier
	}
	wf.state.SelectedTier = level
	wf.state.Error = ""
	s.updateTotalLocked(wf)
	st := wf.state
	return &st, nil
}

// SubmitLnurl runs the rail-specific LNURL prepare with the amount and
// optional comment. The amount must satisfy the destination's sendable
// bounds and the comment its length allowance; violations surface a
// field-level error without leaving the Workflow step.
func (s *SendService) SubmitLnurl(ctx context.Context, userID string, amountSats uint64, comment string) (*SendState, error) {
	tr := otel.Tracer("services/SendService")
	ctx, span := tr.Start(ctx, "SubmitLnurl",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	s.mu.Lock()
	wf, ok := s.flows[userID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoWorkflow
	}
	if wf.busy {
		s.mu.Unlock()
		return nil, ErrWorkflowBusy
	}
	dest := wf.state.Destination
	if wf.state.Step != StepWorkflow || dest == nil || !dest.IsLnurl() {
		s.mu.Unlock()
		return nil, ErrInvalidStep
	}

	if err := validateLnurlParams(dest.Lnurl, amountSats, comment); err != nil {
		wf.state.Error = err.Error()
		st := wf.state
		s.mu.Unlock()
		return &st, err
	}

	wf.busy = true
	s.mu.Unlock()

	prepared, err := s.Runtime.PrepareLnurlPay(ctx, dest, amountSats, comment)

	s.mu.Lock()
	defer s.mu.Unlock()
	wf.busy = false
	if err != nil {
		wf.state.Error = err.Error()
		st := wf.state
		return &st, err
	}
	wf.state.Error = ""
	wf.state.AmountSats = amountSats
	wf.state.LnurlPrepared = prepared
	s.updateTotalLocked(wf)
	st := wf.state
	return &st, nil
}

// Confirm executes the payment. Guards: an on-chain send requires a selected
// tier; an LNURL send requires a completed rail prepare. The workflow enters
// Processing (not cancellable) for the duration of the runtime call and ends
// in Result either way.
func (s *SendService) Confirm(ctx context.Context, userID string) (*SendState, error) {
	tr := otel.Tracer("services/SendService")
	ctx, span := tr.Start(ctx, "Confirm",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	s.mu.Lock()
	wf, ok := s.flows[userID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoWorkflow
	}
	if wf.busy {
		s.mu.Unlock()
		return nil, ErrWorkflowBusy
	}
	if wf.state.Step != StepWorkflow {
		s.mu.Unlock()
		return nil, ErrInvalidStep
	}

	dest := wf.state.Destination
	lnurl := dest != nil && dest.IsLnurl()
	if lnurl {
		if wf.state.LnurlPrepared == nil {
			s.mu.Unlock()
			return nil, ErrInvalidStep
		}
	} else {
		if wf.state.Prepared == nil {
			s.mu.Unlock()
			return nil, ErrInvalidStep
		}
		if wf.state.Prepared.FeeQuote != nil && wf.state.SelectedTier == "" {
			s.mu.Unlock()
			return nil, ErrFeeTierRequired
		}
	}

	wf.state.Step = StepProcessing
	wf.state.Error = ""
	wf.busy = true
	prepared := wf.state.Prepared
	lnurlPrepared := wf.state.LnurlPrepared
	tier := wf.state.SelectedTier
	s.mu.Unlock()

	var outcome *domain.SendOutcome
	var err error
	if lnurl {
		outcome, err = s.Runtime.LnurlPay(ctx, dest, lnurlPrepared)
	} else {
		outcome, err = s.Runtime.Send(ctx, prepared, wallet.SendOptions{FeeTier: tier})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wf.busy = false
	wf.state.Step = StepResult
	if err != nil {
		wf.state.Result = &SendResult{Success: false, Error: err.Error()}
	} else {
		wf.state.Result = &SendResult{Success: true, Outcome: outcome}
	}
	st := wf.state
	return &st, nil
}

// Back returns to the previous step, discarding the fee/amount selections of
// the step being left. Processing and Result cannot be backed out of.
func (s *SendService) Back(userID string) (*SendState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.flows[userID]
	if !ok {
		return nil, ErrNoWorkflow
	}
	if wf.busy {
		return nil, ErrWorkflowBusy
	}

	switch wf.state.Step {
	case StepAmount:
		wf.state = SendState{Step: StepInput, Destination: wf.state.Destination}
	case StepWorkflow:
		// Discard everything negotiated in the Workflow step; re-entry must
		// go through preparation again.
		dest := wf.state.Destination
		amount := wf.state.AmountSats
		wf.state = SendState{Destination: dest}
		if wf.amountSkipped {
			wf.state.Step = StepInput
		} else {
			wf.state.Step = StepAmount
			wf.state.AmountSats = amount
		}
	default:
		return nil, ErrInvalidStep
	}
	st := wf.state
	return &st, nil
}

// Close exits the workflow and discards all transient state.
func (s *SendService) Close(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, userID)
}

// updateTotalLocked recomputes the confirmation total for the staged
// selections. Caller must hold s.mu.
func (s *SendService) updateTotalLocked(wf *sendWorkflow) {
	st := &wf.state
	st.TotalSats = 0
	switch {
	case st.LnurlPrepared != nil:
		st.TotalSats = st.LnurlPrepared.AmountSats + st.LnurlPrepared.FeeSats
	case st.Prepared != nil && st.Prepared.FeeQuote != nil:
		if tier, ok := st.Prepared.FeeQuote.Tier(st.SelectedTier); ok {
			st.TotalSats = st.Prepared.AmountSats + tier.TotalSats()
		}
	case st.Prepared != nil:
		st.TotalSats = st.Prepared.AmountSats + st.Prepared.FixedFeeSats
	}
	st.TotalBTC = ""
	if st.TotalSats > 0 {
		st.TotalBTC = utils.FormatBTC(st.TotalSats)
	}
}

// validateLnurlParams checks an LNURL amount/comment pair against the
// destination's constraints.
func validateLnurlParams(d *domain.LnurlPayDetails, amountSats uint64, comment string) error {
	if amountSats == 0 {
		return ErrInvalidAmount
	}
	if d != nil {
		if min := d.MinSendableSats(); min > 0 && amountSats < min {
			return ErrInvalidAmount
		}
		if max := d.MaxSendableSats(); max > 0 && amountSats > max {
			return ErrInvalidAmount
		}
		if comment != "" && utf8.RuneCountInString(comment) > d.CommentAllowed {
			return ErrCommentTooLong
		}
	}
	return nil
}
