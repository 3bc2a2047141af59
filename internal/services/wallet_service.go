// Package services – WalletService
//
// This file implements the wallet summary holder: the balance and recent
// payment history snapshot that both foreground actions and background event
// reconciliation refresh. Two suspension families exist: foreground
// refreshes (direct user action) raise the Loading flag for their duration;
// background refreshes triggered by the event dispatcher never do, so an
// unrelated in-progress user action is not visually interrupted. Concurrent
// refreshes are not merged — the newest snapshot wins by atomic replacement.
package services

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/avlonitis/go-wallet-backend/internal/domain"
	"github.com/avlonitis/go-wallet-backend/internal/wallet"
)

// defaultHistoryPage bounds the payment history kept in the snapshot.
const defaultHistoryPage = 50

// WalletSnapshot is the externally visible wallet state.
type WalletSnapshot struct {
	Summary  *domain.WalletSummary  `json:"summary,omitempty"`
	Payments []domain.PaymentRecord `json:"payments"`
	// Loading is true while a foreground refresh is in flight.
	Loading bool `json:"loading"`
}

// WalletService holds the wallet summary and payment history snapshot.
type WalletService struct {
	Runtime wallet.Runtime

	// HistoryPage overrides the history page size when > 0.
	HistoryPage int

	mu       sync.Mutex
	summary  *domain.WalletSummary
	payments []domain.PaymentRecord
	loading  bool
}

// NewWalletService constructs a WalletService.
func NewWalletService(rt wallet.Runtime) *WalletService {
	return &WalletService{Runtime: rt}
}

// Refresh fetches the summary and recent payments. Foreground calls
// (background=false) raise the Loading flag for their duration; background
// calls never touch it.
func (s *WalletService) Refresh(ctx context.Context, background bool) error {
	tr := otel.Tracer("services/WalletService")
	ctx, span := tr.Start(ctx, "Refresh",
		trace.WithAttributes(attribute.Bool("background", background)),
	)
	defer span.End()

	if !background {
		s.mu.Lock()
		s.loading = true
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.loading = false
			s.mu.Unlock()
		}()
	}

	summary, err := s.Runtime.Info(ctx)
	if err != nil {
		return err
	}
	page := s.HistoryPage
	if page <= 0 {
		page = defaultHistoryPage
	}
	payments, err := s.Runtime.ListPayments(ctx, 0, page)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.summary = summary
	s.payments = payments
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current wallet state.
func (s *WalletService) Snapshot() WalletSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := WalletSnapshot{
		Summary: s.summary,
		Loading: s.loading,
	}
	out.Payments = append([]domain.PaymentRecord{}, s.payments...)
	return out
}
