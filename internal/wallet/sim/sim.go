// Package sim provides an in-process wallet runtime for local development
// and end-to-end exercising of the HTTP API. It classifies destinations with
// the same surface heuristics a real runtime's decoder front-end applies,
// settles every payment instantly, and delivers the corresponding push
// events on a background goroutine.
//
// It is not a wallet: nothing is signed, no peers are contacted, and fee
// quotes are synthesized from the amount. Production deployments replace it
// with a client for the real runtime behind the same wallet.Runtime
// interface.
package sim

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avlonitis/go-wallet-backend/internal/domain"
	"github.com/avlonitis/go-wallet-backend/internal/wallet"
)

// Runtime is a deterministic, thread-safe wallet.Runtime implementation.
type Runtime struct {
	network string

	mu       sync.Mutex
	balance  uint64
	payments []domain.PaymentRecord
	deposits []domain.Deposit
	handlers map[string]wallet.EventHandler
}

var _ wallet.Runtime = (*Runtime)(nil)

// New constructs a simulated runtime for the given network with a starting
// balance and a pair of seed deposits (one fee-exceeded, one failed) so the
// deposit screens have something to show.
func New(network string) *Runtime {
	return &Runtime{
		network: network,
		balance: 250_000,
		deposits: []domain.Deposit{
			{
				Txid:       "9b0fc92b0e03e2ad0d6731c1a3b7f67c223b1ff9c4ee9f0af1ab0c5d0a1e44b0",
				Vout:       0,
				AmountSats: 120_000,
				ClaimErr: &domain.ClaimError{
					Type:            domain.ClaimErrorFeeExceeded,
					RequiredFeeSats: 6_200,
					Message:         "required fee exceeds the configured claim maximum",
				},
			},
			{
				Txid:       "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b",
				Vout:       1,
				AmountSats: 30_000,
				ClaimErr: &domain.ClaimError{
					Type:    domain.ClaimErrorGeneric,
					Message: "utxo conflicts with a pending transaction",
				},
			},
		},
		handlers: make(map[string]wallet.EventHandler),
	}
}

//
// Classification
//

// ParseInput classifies the raw string by its well-known prefixes. The
// heuristics mirror what payment decoders accept on their outer surface;
// anything else is ErrUnrecognizedInput.
func (r *Runtime) ParseInput(ctx context.Context, raw string) (*domain.PaymentDestination, error) {
	s := domain.NormalizeInput(raw)
	lower := strings.ToLower(s)

	switch {
	case strings.HasPrefix(lower, "lnbc"), strings.HasPrefix(lower, "lntb"), strings.HasPrefix(lower, "lnbcrt"):
		return &domain.PaymentDestination{
			Rail: domain.RailBolt11,
			Raw:  s,
			Invoice: &domain.InvoiceDetails{
				PaymentRequest: s,
				AmountMsat:     invoiceAmountMsat(lower),
			},
		}, nil

	case strings.HasPrefix(lower, "lnurl"):
		return &domain.PaymentDestination{
			Rail: domain.RailLnurlPay,
			Raw:  s,
			Lnurl: &domain.LnurlPayDetails{
				Callback:        "https://pay.example.org/lnurlp/callback",
				MinSendableMsat: 1_000,
				MaxSendableMsat: 500_000_000,
				CommentAllowed:  120,
			},
		}, nil

	case strings.HasPrefix(lower, "sp1"), strings.HasPrefix(lower, "sprt1"):
		return &domain.PaymentDestination{
			Rail:  domain.RailSparkAddress,
			Raw:   s,
			Spark: &domain.SparkDetails{Address: s},
		}, nil

	case strings.HasPrefix(lower, "bc1"), strings.HasPrefix(lower, "tb1"),
		strings.HasPrefix(lower, "bcrt1"), strings.HasPrefix(lower, "1"),
		strings.HasPrefix(lower, "3"):
		return &domain.PaymentDestination{
			Rail:    domain.RailBitcoinAddress,
			Raw:     s,
			Bitcoin: &domain.OnchainDetails{Address: s, Network: r.network},
		}, nil

	case isLightningAddress(s):
		return &domain.PaymentDestination{
			Rail: domain.RailLightningAddress,
			Raw:  s,
			Lnurl: &domain.LnurlPayDetails{
				Callback:         "https://" + strings.SplitN(s, "@", 2)[1] + "/.well-known/lnurlp/" + strings.SplitN(s, "@", 2)[0],
				MinSendableMsat:  1_000,
				MaxSendableMsat:  100_000_000,
				CommentAllowed:   64,
				LightningAddress: s,
			},
		}, nil
	}
	return nil, wallet.ErrUnrecognizedInput
}

// invoiceAmountMsat gives stable pseudo-decoded amounts: invoices containing
// the marker "amt" embed 25 000 sats, others are amountless.
func invoiceAmountMsat(lower string) uint64 {
	if strings.Contains(lower, "amt") {
		return 25_000_000
	}
	return 0
}

// isLightningAddress applies the minimal user@domain shape check.
func isLightningAddress(s string) bool {
	at := strings.Count(s, "@")
	if at != 1 {
		return false
	}
	parts := strings.SplitN(s, "@", 2)
	return parts[0] != "" && strings.Contains(parts[1], ".")
}

//
// Send path
//

// PrepareSend synthesizes a prepared payment: on-chain destinations get a
// three-tier quote scaled by amount, bolt11 and spark get small fixed fees.
func (r *Runtime) PrepareSend(ctx context.Context, dest *domain.PaymentDestination, amountSats uint64) (*domain.PreparedPayment, error) {
	if dest == nil {
		return nil, wallet.ErrInvalidDestination
	}
	if err := r.checkFunds(amountSats); err != nil {
		return nil, err
	}

	p := &domain.PreparedPayment{Rail: dest.Rail, AmountSats: amountSats}
	switch dest.Rail {
	case domain.RailBitcoinAddress:
		base := amountSats/200 + 300 // ~0.5% + floor, in sats
		p.FeeQuote = &domain.FeeQuote{
			Slow:   domain.FeeTier{BroadcastFeeSats: base, UserFeeSats: 100},
			Medium: domain.FeeTier{BroadcastFeeSats: base * 2, UserFeeSats: 100},
			Fast:   domain.FeeTier{BroadcastFeeSats: base * 4, UserFeeSats: 100},
		}
	case domain.RailBolt11:
		p.FixedFeeSats = amountSats/1000 + 1 // ~0.1% routing budget
	case domain.RailSparkAddress:
		p.FixedFeeSats = 0 // ledger-internal transfer
	default:
		return nil, wallet.ErrInvalidDestination
	}
	return p, nil
}

// Send settles the prepared payment immediately, debits the balance, records
// history, and emits a payment_succeeded event.
func (r *Runtime) Send(ctx context.Context, prepared *domain.PreparedPayment, opts wallet.SendOptions) (*domain.SendOutcome, error) {
	if prepared == nil {
		return nil, wallet.ErrInvalidDestination
	}
	fee := prepared.FixedFeeSats
	if prepared.FeeQuote != nil {
		tier, ok := prepared.FeeQuote.Tier(opts.FeeTier)
		if !ok {
			return nil, wallet.ErrInvalidDestination
		}
		fee = tier.TotalSats()
	}
	return r.settle(prepared.AmountSats, fee)
}

// PrepareLnurlPay resolves the LNURL fee for the amount.
func (r *Runtime) PrepareLnurlPay(ctx context.Context, dest *domain.PaymentDestination, amountSats uint64, comment string) (*domain.LnurlPayPrepared, error) {
	if dest == nil || !dest.IsLnurl() {
		return nil, wallet.ErrInvalidDestination
	}
	if err := r.checkFunds(amountSats); err != nil {
		return nil, err
	}
	return &domain.LnurlPayPrepared{
		AmountSats: amountSats,
		FeeSats:    amountSats/1000 + 1,
		Comment:    comment,
	}, nil
}

// LnurlPay settles a prepared LNURL payment.
func (r *Runtime) LnurlPay(ctx context.Context, dest *domain.PaymentDestination, prepared *domain.LnurlPayPrepared) (*domain.SendOutcome, error) {
	if dest == nil || !dest.IsLnurl() || prepared == nil {
		return nil, wallet.ErrInvalidDestination
	}
	return r.settle(prepared.AmountSats, prepared.FeeSats)
}

// settle applies the debit, records history, and notifies subscribers.
func (r *Runtime) settle(amountSats, feeSats uint64) (*domain.SendOutcome, error) {
	r.mu.Lock()
	total := amountSats + feeSats
	if total > r.balance {
		r.mu.Unlock()
		return nil, wallet.ErrInsufficientFunds
	}
	r.balance -= total
	rec := domain.PaymentRecord{
		ID:         uuid.NewString(),
		Direction:  domain.DirectionSend,
		AmountSats: amountSats,
		FeeSats:    feeSats,
		Status:     "complete",
		Timestamp:  time.Now().UTC(),
	}
	r.payments = append([]domain.PaymentRecord{rec}, r.payments...)
	r.mu.Unlock()

	r.emit(domain.WalletEvent{Type: domain.EventPaymentSucceeded, Payment: &rec})
	return &domain.SendOutcome{PaymentID: rec.ID, AmountSats: amountSats, FeeSats: feeSats}, nil
}

func (r *Runtime) checkFunds(amountSats uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if amountSats > r.balance {
		return wallet.ErrInsufficientFunds
	}
	return nil
}

//
// Deposits
//

// ListUnclaimedDeposits returns a copy of the current deposit snapshot.
func (r *Runtime) ListUnclaimedDeposits(ctx context.Context) ([]domain.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Deposit, len(r.deposits))
	copy(out, r.deposits)
	return out, nil
}

// ClaimDeposit credits the deposit minus the fee and emits deposits_claimed.
func (r *Runtime) ClaimDeposit(ctx context.Context, txid string, vout uint32, feeSats uint64) error {
	r.mu.Lock()
	idx := r.depositIndexLocked(txid, vout)
	if idx < 0 {
		r.mu.Unlock()
		return wallet.ErrDepositNotFound
	}
	d := r.deposits[idx]
	r.deposits = append(r.deposits[:idx], r.deposits[idx+1:]...)
	if d.AmountSats > feeSats {
		r.balance += d.AmountSats - feeSats
	}
	rec := domain.PaymentRecord{
		ID:         uuid.NewString(),
		Direction:  domain.DirectionReceive,
		AmountSats: d.AmountSats,
		FeeSats:    feeSats,
		Status:     "complete",
		Timestamp:  time.Now().UTC(),
	}
	r.payments = append([]domain.PaymentRecord{rec}, r.payments...)
	r.mu.Unlock()

	r.emit(domain.WalletEvent{Type: domain.EventDepositsClaimed, Deposits: []domain.Deposit{d}})
	return nil
}

// RefundDeposit marks the deposit as broadcasting a refund and returns the
// synthesized refund transaction id. The deposit stays listed (with
// RefundTxID set) until the refund confirms, matching how runtimes report
// in-flight refunds.
func (r *Runtime) RefundDeposit(ctx context.Context, txid string, vout uint32, destination string, feeSats uint64) (string, error) {
	if strings.TrimSpace(destination) == "" {
		return "", wallet.ErrInvalidDestination
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.depositIndexLocked(txid, vout)
	if idx < 0 {
		return "", wallet.ErrDepositNotFound
	}
	refundTx := uuid.NewString()
	r.deposits[idx].RefundTxID = refundTx
	return refundTx, nil
}

func (r *Runtime) depositIndexLocked(txid string, vout uint32) int {
	for i, d := range r.deposits {
		if d.Txid == txid && d.Vout == vout {
			return i
		}
	}
	return -1
}

//
// Snapshot
//

// Info reports the simulated balance.
func (r *Runtime) Info(ctx context.Context) (*domain.WalletSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending uint64
	for _, d := range r.deposits {
		pending += d.AmountSats
	}
	return &domain.WalletSummary{
		BalanceSats:        r.balance,
		PendingReceiveSats: pending,
	}, nil
}

// ListPayments pages the history, newest first.
func (r *Runtime) ListPayments(ctx context.Context, offset, limit int) ([]domain.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset < 0 || offset >= len(r.payments) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(r.payments) {
		end = len(r.payments)
	}
	out := make([]domain.PaymentRecord, end-offset)
	copy(out, r.payments[offset:end])
	return out, nil
}

//
// Events
//

// Subscribe registers the handler and immediately schedules a synced event
// so a fresh session converges without waiting for activity.
func (r *Runtime) Subscribe(handler wallet.EventHandler) (string, error) {
	id := uuid.NewString()
	r.mu.Lock()
	r.handlers[id] = handler
	r.mu.Unlock()

	go handler(domain.WalletEvent{Type: domain.EventSynced})
	return id, nil
}

// Unsubscribe removes the handler; no events are delivered after return.
func (r *Runtime) Unsubscribe(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, id)
	return nil
}

// emit delivers the event to every subscriber on a fresh goroutine.
func (r *Runtime) emit(ev domain.WalletEvent) {
	r.mu.Lock()
	hs := make([]wallet.EventHandler, 0, len(r.handlers))
	for _, h := range r.handlers {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	for _, h := range hs {
		go h(ev)
	}
}
