package domain

// WalletEventType discriminates the push events delivered by the runtime.
type WalletEventType string

const (
	// EventSynced fires when the runtime finishes syncing wallet state.
	EventSynced WalletEventType = "synced"
	// EventPaymentSucceeded fires when a send or receive completes. The same
	// payment id may be reported more than once.
	EventPaymentSucceeded WalletEventType = "payment_succeeded"
	// EventDepositsClaimed fires when one or more deposits were claimed into
	// spendable balance.
	EventDepositsClaimed WalletEventType = "deposits_claimed"
	// EventDepositsClaimFailed fires when a claim attempt failed and the
	// deposits remain unclaimed.
	EventDepositsClaimFailed WalletEventType = "deposits_claim_failed"
)

// WalletEvent is one event from the runtime's push channel. Payment is set
// for EventPaymentSucceeded; Deposits for the two deposit events; Err for
// EventDepositsClaimFailed.
type WalletEvent struct {
	Type     WalletEventType `json:"type"`
	Payment  *PaymentRecord  `json:"payment,omitempty"`
	Deposits []Deposit       `json:"deposits,omitempty"`
	Err      string          `json:"error,omitempty"`
}
