package domain

import "time"

// ClaimErrorType discriminates the claim failure reported on a deposit.
type ClaimErrorType string

const (
	// ClaimErrorFeeExceeded means the runtime refused to auto-claim because
	// the required fee exceeds the configured maximum. The deposit becomes
	// actionable: the user may approve the claim at the proposed fee, or
	// reject the deposit.
	ClaimErrorFeeExceeded ClaimErrorType = "max_deposit_claim_fee_exceeded"
	// ClaimErrorGeneric is any other claim failure; only reject is offered.
	ClaimErrorGeneric ClaimErrorType = "generic"
)

// ClaimError describes why a deposit was not claimed automatically.
type ClaimError struct {
	Type ClaimErrorType `json:"type"`
	// RequiredFeeSats is the runtime-proposed fee; set only for
	// ClaimErrorFeeExceeded.
	RequiredFeeSats uint64 `json:"required_fee_sats,omitempty"`
	Message         string `json:"message,omitempty"`
}

// Deposit is an on-chain payment received into the wallet that has not yet
// been claimed into spendable balance. Snapshots are replaced wholesale on
// every refresh; a Deposit value is never mutated in place.
type Deposit struct {
	Txid       string      `json:"txid"`
	Vout       uint32      `json:"vout"`
	AmountSats uint64      `json:"amount_sats"`
	ClaimErr   *ClaimError `json:"claim_error,omitempty"`

	// RefundTxID is set once the runtime has broadcast a refund for this
	// deposit; such deposits are shown as "broadcasting" and are not
	// re-actionable.
	RefundTxID string `json:"refund_tx_id,omitempty"`
}

// Actionable reports whether the deposit requires a user decision
// (approve at the proposed fee and/or reject).
func (d Deposit) Actionable() bool { return d.ClaimErr != nil }

// FeeExceeded reports whether the deposit failed auto-claim on the fee cap.
func (d Deposit) FeeExceeded() bool {
	return d.ClaimErr != nil && d.ClaimErr.Type == ClaimErrorFeeExceeded
}

// NetClaimSats returns the amount the user receives when approving the claim
// at the runtime-proposed fee. Zero when the fee would consume the deposit.
func (d Deposit) NetClaimSats() uint64 {
	if !d.FeeExceeded() || d.ClaimErr.RequiredFeeSats >= d.AmountSats {
		return 0
	}
	return d.AmountSats - d.ClaimErr.RequiredFeeSats
}

// RefundFeeSats are the three flat fee tiers offered in the refund sub-flow,
// indexed by FeeTierLevel. These are deliberately NOT derived from the
// runtime fee quote used for outbound on-chain sends; refunds skip the quote
// round trip and charge a flat amount per tier. Keep the two tables separate
// (see DESIGN.md, Open Question decisions).
var RefundFeeSats = map[FeeTierLevel]uint64{
	FeeTierSlow:   500,
	FeeTierMedium: 1000,
	FeeTierFast:   2000,
}

// RejectedDeposit is the persisted rejection-ledger row. A (txid, vout) pair
// appears at most once; the row is removed when a claim or refund for the
// pair succeeds, or on explicit reset.
type RejectedDeposit struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey" json:"-"`
	Txid       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_rejected_outpoint,priority:1" json:"txid"`
	Vout       uint32    `gorm:"type:INTEGER NOT NULL;uniqueIndex:ux_rejected_outpoint,priority:2" json:"vout"`
	RejectedAt time.Time `gorm:"type:DATETIME NOT NULL" json:"rejected_at"`
}

// TableName implements the GORM tabler interface.
func (RejectedDeposit) TableName() string { return "rejected_deposits" }
