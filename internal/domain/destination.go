// Package domain defines the core types of the wallet backend: payment
// destinations, prepared payments and fee quotes, on-chain deposits, wallet
// events, and the persistence models mapped with GORM (rejection ledger,
// idempotency records).
package domain

import "strings"

// Rail identifies the payment method variant a destination resolves to.
type Rail string

const (
	// RailBolt11 is a Lightning protocol invoice (may embed an amount).
	RailBolt11 Rail = "bolt11_invoice"
	// RailBitcoinAddress is an on-chain bitcoin address.
	RailBitcoinAddress Rail = "bitcoin_address"
	// RailSparkAddress is a native Spark ledger address.
	RailSparkAddress Rail = "spark_address"
	// RailLnurlPay is an LNURL-pay endpoint.
	RailLnurlPay Rail = "lnurl_pay"
	// RailLightningAddress is a user@domain lightning address, which resolves
	// to the same pay flow as LNURL-pay.
	RailLightningAddress Rail = "lightning_address"
)

// PaymentDestination is a discriminated union over the supported rails.
// Exactly one of the detail pointers matching Rail is non-nil. A destination
// is immutable once classified; a changed input string must be re-classified.
type PaymentDestination struct {
	Rail Rail   `json:"rail"`
	Raw  string `json:"raw"`

	Invoice *InvoiceDetails  `json:"invoice,omitempty"`
	Bitcoin *OnchainDetails  `json:"bitcoin,omitempty"`
	Spark   *SparkDetails    `json:"spark,omitempty"`
	Lnurl   *LnurlPayDetails `json:"lnurl,omitempty"`
}

// InvoiceDetails carries the decoded bolt11 fields the orchestrator needs.
type InvoiceDetails struct {
	PaymentRequest string `json:"payment_request"`
	// AmountMsat is the invoice-embedded amount in millisatoshi; zero for
	// amountless invoices.
	AmountMsat  uint64 `json:"amount_msat"`
	Description string `json:"description,omitempty"`
	PaymentHash string `json:"payment_hash,omitempty"`
}

// HasAmount reports whether the invoice embeds a payable amount.
func (d *InvoiceDetails) HasAmount() bool { return d != nil && d.AmountMsat > 0 }

// AmountSats converts the embedded millisatoshi amount to whole sats,
// truncating any sub-sat remainder.
func (d *InvoiceDetails) AmountSats() uint64 {
	if d == nil {
		return 0
	}
	return d.AmountMsat / 1000
}

// OnchainDetails describes an on-chain bitcoin address destination.
type OnchainDetails struct {
	Address string `json:"address"`
	Network string `json:"network,omitempty"` // mainnet, testnet, regtest
}

// SparkDetails describes a native Spark ledger address destination.
type SparkDetails struct {
	Address string `json:"address"`
}

// LnurlPayDetails carries the pay-request parameters returned by an
// LNURL-pay service: the sendable range and the optional comment length
// allowance the rail enforces on execution.
type LnurlPayDetails struct {
	Callback        string `json:"callback"`
	MinSendableMsat uint64 `json:"min_sendable_msat"`
	MaxSendableMsat uint64 `json:"max_sendable_msat"`
	// CommentAllowed is the maximum comment length in characters; zero means
	// the service accepts no comment.
	CommentAllowed int `json:"comment_allowed"`
	// LightningAddress is set when the destination was entered as
	// user@domain rather than a bech32 LNURL.
	LightningAddress string `json:"lightning_address,omitempty"`
}

// MinSendableSats returns the lower sendable bound in whole sats, rounding
// up so that a sat amount at the bound always satisfies the msat minimum.
func (d *LnurlPayDetails) MinSendableSats() uint64 {
	if d == nil {
		return 0
	}
	return (d.MinSendableMsat + 999) / 1000
}

// MaxSendableSats returns the upper sendable bound in whole sats.
func (d *LnurlPayDetails) MaxSendableSats() uint64 {
	if d == nil {
		return 0
	}
	return d.MaxSendableMsat / 1000
}

// IsLnurl reports whether the destination pays through the LNURL sub-flow
// (either an LNURL-pay endpoint or a lightning address).
func (p *PaymentDestination) IsLnurl() bool {
	return p != nil && (p.Rail == RailLnurlPay || p.Rail == RailLightningAddress)
}

// NeedsAmountStep reports whether the generic Amount step must collect an
// amount before preparation. LNURL destinations collect their amount in the
// rail-specific sub-flow instead, and invoices with an embedded amount skip
// amount entry entirely.
func (p *PaymentDestination) NeedsAmountStep() bool {
	if p == nil || p.IsLnurl() {
		return false
	}
	if p.Rail == RailBolt11 {
		return !p.Invoice.HasAmount()
	}
	return true
}

// Summary returns a short display form of the destination for logs and
// confirmation screens (never the full raw input, which may be long).
func (p *PaymentDestination) Summary() string {
	if p == nil {
		return ""
	}
	var s string
	switch p.Rail {
	case RailBolt11:
		if p.Invoice != nil {
			s = p.Invoice.PaymentRequest
		}
	case RailBitcoinAddress:
		if p.Bitcoin != nil {
			s = p.Bitcoin.Address
		}
	case RailSparkAddress:
		if p.Spark != nil {
			s = p.Spark.Address
		}
	case RailLnurlPay, RailLightningAddress:
		if p.Lnurl != nil {
			if p.Lnurl.LightningAddress != "" {
				return p.Lnurl.LightningAddress
			}
			s = p.Lnurl.Callback
		}
	}
	if s == "" {
		s = p.Raw
	}
	return truncateMiddle(s, 24)
}

// truncateMiddle shortens long identifiers keeping both ends visible.
func truncateMiddle(s string, max int) string {
	if len(s) <= max || max < 8 {
		return s
	}
	keep := (max - 1) / 2
	return s[:keep] + "…" + s[len(s)-keep:]
}

// NormalizeInput trims the surrounding whitespace and common URI prefixes
// user agents attach to scanned/pasted payment strings.
func NormalizeInput(raw string) string {
	s := strings.TrimSpace(raw)
	for _, prefix := range []string{"lightning:", "LIGHTNING:", "bitcoin:", "BITCOIN:"} {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(s)
}
