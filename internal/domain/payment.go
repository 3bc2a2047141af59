package domain

import "time"

// FeeTierLevel selects one of the three broadcast speed tiers of a fee quote.
type FeeTierLevel string

const (
	FeeTierSlow   FeeTierLevel = "slow"
	FeeTierMedium FeeTierLevel = "medium"
	FeeTierFast   FeeTierLevel = "fast"
)

// Valid reports whether the level is one of the three known tiers.
func (l FeeTierLevel) Valid() bool {
	switch l {
	case FeeTierSlow, FeeTierMedium, FeeTierFast:
		return true
	}
	return false
}

// FeeTier is a single speed tier of an on-chain fee quote. The user-facing
// fee for the tier is the broadcast fee plus the user-side component.
type FeeTier struct {
	BroadcastFeeSats uint64 `json:"broadcast_fee_sats"`
	UserFeeSats      uint64 `json:"user_fee_sats"`
}

// TotalSats returns the full fee the user pays at this tier.
func (t FeeTier) TotalSats() uint64 { return t.BroadcastFeeSats + t.UserFeeSats }

// FeeQuote offers the three speed tiers quoted by the runtime for an
// on-chain send. Quotes are valid for the lifetime of one prepared payment.
type FeeQuote struct {
	Slow   FeeTier `json:"slow"`
	Medium FeeTier `json:"medium"`
	Fast   FeeTier `json:"fast"`
}

// Tier returns the tier for the given level; ok is false for unknown levels.
func (q *FeeQuote) Tier(level FeeTierLevel) (FeeTier, bool) {
	if q == nil {
		return FeeTier{}, false
	}
	switch level {
	case FeeTierSlow:
		return q.Slow, true
	case FeeTierMedium:
		return q.Medium, true
	case FeeTierFast:
		return q.Fast, true
	}
	return FeeTier{}, false
}

// PreparedPayment is the result of the runtime's prepare operation. It is
// owned by a single send workflow instance and discarded when the workflow
// completes or is cancelled.
type PreparedPayment struct {
	Rail       Rail   `json:"rail"`
	AmountSats uint64 `json:"amount_sats"`

	// FeeQuote is set for on-chain sends only; the user picks a tier.
	FeeQuote *FeeQuote `json:"fee_quote,omitempty"`

	// FixedFeeSats is the non-negotiable fee for rails without tier
	// selection (bolt11, spark). Zero when the rail has no fee.
	FixedFeeSats uint64 `json:"fixed_fee_sats,omitempty"`
}

// LnurlPayPrepared is the result of the rail-specific LNURL prepare call:
// the resolved fee for the requested amount plus the echo of the request.
type LnurlPayPrepared struct {
	AmountSats uint64 `json:"amount_sats"`
	FeeSats    uint64 `json:"fee_sats"`
	Comment    string `json:"comment,omitempty"`
}

// PaymentDirection distinguishes sent from received payments.
type PaymentDirection string

const (
	DirectionSend    PaymentDirection = "send"
	DirectionReceive PaymentDirection = "receive"
)

// PaymentRecord is one entry of the wallet's transaction history as reported
// by the runtime. Records are replaced wholesale on every refresh.
type PaymentRecord struct {
	ID         string           `json:"id"`
	Direction  PaymentDirection `json:"direction"`
	AmountSats uint64           `json:"amount_sats"`
	FeeSats    uint64           `json:"fee_sats"`
	Status     string           `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
}

// WalletSummary is the balance snapshot reported by the runtime.
type WalletSummary struct {
	BalanceSats        uint64 `json:"balance_sats"`
	PendingReceiveSats uint64 `json:"pending_receive_sats"`
	PendingSendSats    uint64 `json:"pending_send_sats"`
}

// SendOutcome is the terminal result of an executed send.
type SendOutcome struct {
	PaymentID  string `json:"payment_id"`
	AmountSats uint64 `json:"amount_sats"`
	FeeSats    uint64 `json:"fee_sats"`
}
