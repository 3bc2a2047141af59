// Package services – input classification.
//
// This file implements the input classifier: the single entry point that
// turns a raw destination string of unknown shape into a typed
// PaymentDestination, plus the routing hint the send workflow needs (whether
// the Amount step can be skipped because the invoice embeds an amount).
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"

	"github.com/avlonitis/go-wallet-backend/internal/domain"
	"github.com/avlonitis/go-wallet-backend/internal/wallet"
)

// Classification is the classifier's result: the typed destination and the
// amount pre-fill derived from it.
type Classification struct {
	Destination *domain.PaymentDestination

	// SkipAmount is true when the destination embeds a non-zero amount and
	// the Amount step must not be shown.
	SkipAmount bool

	// AmountSats is the pre-filled amount in whole sats; set only when
	// SkipAmount is true.
	AmountSats uint64
}

// Classifier maps raw input strings to classified payment destinations.
type Classifier struct {
	Runtime wallet.Runtime
}

// Classify trims and normalizes the input, delegates classification to the
// runtime, and derives the amount pre-fill for invoice destinations.
//
// Errors:
//   - ErrEmptyInput for blank/whitespace-only input.
//   - ErrUnrecognizedInput when the runtime cannot classify the string.
//   - The underlying runtime error for unexpected failures.
func (c *Classifier) Classify(ctx context.Context, raw string) (*Classification, error) {
	tr := otel.Tracer("services/Classifier")
	ctx, span := tr.Start(ctx, "Classify")
	defer span.End()

	input := domain.NormalizeInput(raw)
	if input == "" {
		return nil, ErrEmptyInput
	}

	dest, err := c.Runtime.ParseInput(ctx, input)
	if err != nil {
		if errors.Is(err, wallet.ErrUnrecognizedInput) {
			return nil, ErrUnrecognizedInput
		}
		return nil, err
	}

	out := &Classification{Destination: dest}

	// Only the invoice rail pre-fills an amount; the embedded msat value is
	// converted to whole sats.
	if dest.Rail == domain.RailBolt11 && dest.Invoice.HasAmount() {
		out.SkipAmount = true
		out.AmountSats = dest.Invoice.AmountSats()
	}
	return out, nil
}
