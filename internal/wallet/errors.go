// Sentinel errors reported by wallet runtime implementations. The service
// layer branches on these to pick the recoverable/terminal handling path;
// anything else is treated as an opaque runtime failure.
package wallet

import "errors"

var (
	// ErrUnrecognizedInput indicates the raw string matches no supported
	// payment rail.
	ErrUnrecognizedInput = errors.New("unrecognized payment input")

	// ErrInsufficientFunds indicates the wallet balance cannot cover the
	// requested amount plus fees.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidDestination indicates the destination failed runtime-side
	// validation during preparation (e.g. wrong network address).
	ErrInvalidDestination = errors.New("invalid destination")

	// ErrAmountOutOfBounds indicates the amount violates a runtime-enforced
	// bound for the rail.
	ErrAmountOutOfBounds = errors.New("amount out of bounds")

	// ErrDepositNotFound indicates the (txid, vout) pair is not among the
	// runtime's unclaimed deposits.
	ErrDepositNotFound = errors.New("deposit not found")
)
