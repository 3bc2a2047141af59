// Package wallet defines the contract of the external wallet runtime: the
// component that owns payment protocols, signing, peer connections, and fee
// markets. The orchestration services in this repository talk to the runtime
// exclusively through the Runtime interface, which keeps them testable with
// in-memory fakes and keeps all chain interaction out of scope here.
package wallet

import (
	"context"

	"github.com/avlonitis/go-wallet-backend/internal/domain"
)

// SendOptions carries the user's choices for executing a prepared payment.
type SendOptions struct {
	// FeeTier selects the speed tier for on-chain sends; ignored by rails
	// without tier selection.
	FeeTier domain.FeeTierLevel
}

// EventHandler receives push events from the runtime. Handlers must not
// block; long work should be dispatched to the caller's own goroutine.
type EventHandler func(domain.WalletEvent)

// Runtime is the client surface of the external wallet runtime. All calls
// block until the runtime settles the operation; callers decide how long a
// user-facing "in progress" indicator stays up by awaiting the return.
type Runtime interface {
	// ParseInput classifies a raw destination string into a typed payment
	// destination. Returns ErrUnrecognizedInput when the string matches no
	// supported rail.
	ParseInput(ctx context.Context, raw string) (*domain.PaymentDestination, error)

	// PrepareSend resolves a destination and amount into a prepared payment,
	// including the on-chain fee quote where applicable.
	PrepareSend(ctx context.Context, dest *domain.PaymentDestination, amountSats uint64) (*domain.PreparedPayment, error)

	// Send executes a prepared payment. Terminal for the workflow attempt.
	Send(ctx context.Context, prepared *domain.PreparedPayment, opts SendOptions) (*domain.SendOutcome, error)

	// PrepareLnurlPay performs the rail-specific prepare call for LNURL-pay
	// and lightning-address destinations, resolving the fee for the amount.
	PrepareLnurlPay(ctx context.Context, dest *domain.PaymentDestination, amountSats uint64, comment string) (*domain.LnurlPayPrepared, error)

	// LnurlPay executes a previously prepared LNURL payment.
	LnurlPay(ctx context.Context, dest *domain.PaymentDestination, prepared *domain.LnurlPayPrepared) (*domain.SendOutcome, error)

	// ListUnclaimedDeposits returns the full unclaimed-deposit snapshot.
	ListUnclaimedDeposits(ctx context.Context) ([]domain.Deposit, error)

	// ClaimDeposit claims a deposit into spendable balance at the given fee.
	ClaimDeposit(ctx context.Context, txid string, vout uint32, feeSats uint64) error

	// RefundDeposit sends a deposit's value back out to an external address
	// and returns the refund transaction id.
	RefundDeposit(ctx context.Context, txid string, vout uint32, destination string, feeSats uint64) (string, error)

	// Info returns the wallet balance summary.
	Info(ctx context.Context) (*domain.WalletSummary, error)

	// ListPayments returns a page of the wallet's payment history, newest
	// first.
	ListPayments(ctx context.Context, offset, limit int) ([]domain.PaymentRecord, error)

	// Subscribe registers a push-event handler and returns a subscription id.
	Subscribe(handler EventHandler) (string, error)

	// Unsubscribe tears down the subscription. Events must stop being
	// delivered before Unsubscribe returns.
	Unsubscribe(id string) error
}
