package services

import (
	"context"
	"errors"
	"testing"

	"github.com/avlonitis/go-wallet-backend/internal/domain"
	"github.com/avlonitis/go-wallet-backend/internal/wallet"
)

// ----- Fake runtime (shared by the service tests in this package) -----

type fakeRuntime struct {
	// capture args
	parseRaw      string
	prepareDest   *domain.PaymentDestination
	prepareAmount uint64
	sendPrepared  *domain.PreparedPayment
	sendOpts      wallet.SendOptions
	lnurlAmount   uint64
	lnurlComment  string
	claimTxid     string
	claimVout     uint32
	claimFee      uint64
	refundDest    string
	refundFee     uint64

	// programmable behavior; nil hooks fall back to benign defaults
	parseFn        func(raw string) (*domain.PaymentDestination, error)
	prepareFn      func(dest *domain.PaymentDestination, amountSats uint64) (*domain.PreparedPayment, error)
	sendFn         func(prepared *domain.PreparedPayment, opts wallet.SendOptions) (*domain.SendOutcome, error)
	prepareLnurlFn func(amountSats uint64, comment string) (*domain.LnurlPayPrepared, error)
	lnurlPayFn     func(prepared *domain.LnurlPayPrepared) (*domain.SendOutcome, error)
	depositsFn     func() ([]domain.Deposit, error)
	claimFn        func(txid string, vout uint32, feeSats uint64) error
	refundFn       func(txid string, vout uint32, destination string, feeSats uint64) (string, error)
	infoFn         func() (*domain.WalletSummary, error)
	paymentsFn     func(offset, limit int) ([]domain.PaymentRecord, error)
	subscribeFn    func(handler wallet.EventHandler) (string, error)
	unsubscribeFn  func(id string) error

	unsubscribed []string
}

func (f *fakeRuntime) ParseInput(ctx context.Context, raw string) (*domain.PaymentDestination, error) {
	f.parseRaw = raw
	if f.parseFn != nil {
		return f.parseFn(raw)
	}
	return nil, wallet.ErrUnrecognizedInput
}

func (f *fakeRuntime) PrepareSend(ctx context.Context, dest *domain.PaymentDestination, amountSats uint64) (*domain.PreparedPayment, error) {
	f.prepareDest, f.prepareAmount = dest, amountSats
	if f.prepareFn != nil {
		return f.prepareFn(dest, amountSats)
	}
	return &domain.PreparedPayment{Rail: dest.Rail, AmountSats: amountSats}, nil
}

func (f *fakeRuntime) Send(ctx context.Context, prepared *domain.PreparedPayment, opts wallet.SendOptions) (*domain.SendOutcome, error) {
	f.sendPrepared, f.sendOpts = prepared, opts
	if f.sendFn != nil {
		return f.sendFn(prepared, opts)
	}
	return &domain.SendOutcome{PaymentID: "pay-1", AmountSats: prepared.AmountSats}, nil
}

func (f *fakeRuntime) PrepareLnurlPay(ctx context.Context, dest *domain.PaymentDestination, amountSats uint64, comment string) (*domain.LnurlPayPrepared, error) {
	f.lnurlAmount, f.lnurlComment = amountSats, comment
	if f.prepareLnurlFn != nil {
		return f.prepareLnurlFn(amountSats, comment)
	}
	return &domain.LnurlPayPrepared{AmountSats: amountSats, FeeSats: 2, Comment: comment}, nil
}

func (f *fakeRuntime) LnurlPay(ctx context.Context, dest *domain.PaymentDestination, prepared *domain.LnurlPayPrepared) (*domain.SendOutcome, error) {
	if f.lnurlPayFn != nil {
		return f.lnurlPayFn(prepared)
	}
	return &domain.SendOutcome{PaymentID: "pay-lnurl", AmountSats: prepared.AmountSats, FeeSats: prepared.FeeSats}, nil
}

func (f *fakeRuntime) ListUnclaimedDeposits(ctx context.Context) ([]domain.Deposit, error) {
	if f.depositsFn != nil {
		return f.depositsFn()
	}
	return nil, nil
}

func (f *fakeRuntime) ClaimDeposit(ctx context.Context, txid string, vout uint32, feeSats uint64) error {
	f.claimTxid, f.claimVout, f.claimFee = txid, vout, feeSats
	if f.claimFn != nil {
		return f.claimFn(txid, vout, feeSats)
	}
	return nil
}

func (f *fakeRuntime) RefundDeposit(ctx context.Context, txid string, vout uint32, destination string, feeSats uint64) (string, error) {
	f.refundDest, f.refundFee = destination, feeSats
	if f.refundFn != nil {
		return f.refundFn(txid, vout, destination, feeSats)
	}
	return "refund-tx-1", nil
}

func (f *fakeRuntime) Info(ctx context.Context) (*domain.WalletSummary, error) {
	if f.infoFn != nil {
		return f.infoFn()
	}
	return &domain.WalletSummary{BalanceSats: 1000}, nil
}

func (f *fakeRuntime) ListPayments(ctx context.Context, offset, limit int) ([]domain.PaymentRecord, error) {
	if f.paymentsFn != nil {
		return f.paymentsFn(offset, limit)
	}
	return nil, nil
}

func (f *fakeRuntime) Subscribe(handler wallet.EventHandler) (string, error) {
	if f.subscribeFn != nil {
		return f.subscribeFn(handler)
	}
	return "sub-1", nil
}

func (f *fakeRuntime) Unsubscribe(id string) error {
	f.unsubscribed = append(f.unsubscribed, id)
	if f.unsubscribeFn != nil {
		return f.unsubscribeFn(id)
	}
	return nil
}

// ----- Destination builders -----

func bolt11Dest(amountMsat uint64) *domain.PaymentDestination {
	return &domain.PaymentDestination{
		Rail:    domain.RailBolt11,
		Raw:     "lnbc1abc",
		Invoice: &domain.InvoiceDetails{PaymentRequest: "lnbc1abc", AmountMsat: amountMsat},
	}
}

func onchainDest() *domain.PaymentDestination {
	return &domain.PaymentDestination{
		Rail:    domain.RailBitcoinAddress,
		Raw:     "bc1qexample",
		Bitcoin: &domain.OnchainDetails{Address: "bc1qexample"},
	}
}

func lnurlDest(minMsat, maxMsat uint64, commentAllowed int) *domain.PaymentDestination {
	return &domain.PaymentDestination{
		Rail: domain.RailLnurlPay,
		Raw:  "lnurl1abc",
		Lnurl: &domain.LnurlPayDetails{
			Callback:        "https://example.org/cb",
			MinSendableMsat: minMsat,
			MaxSendableMsat: maxMsat,
			CommentAllowed:  commentAllowed,
		},
	}
}

// ----- Tests -----

func TestClassify_EmptyInput(t *testing.T) {
	c := &Classifier{Runtime: &fakeRuntime{}}
	for _, raw := range []string{"", "   ", "lightning:", "\tbitcoin: "} {
		if _, err := c.Classify(context.Background(), raw); err != ErrEmptyInput {
			t.Fatalf("Classify(%q): err = %v, want ErrEmptyInput", raw, err)
		}
	}
}

func TestClassify_NormalizesBeforeParsing(t *testing.T) {
	rt := &fakeRuntime{parseFn: func(raw string) (*domain.PaymentDestination, error) {
		return onchainDest(), nil
	}}
	c := &Classifier{Runtime: rt}

	if _, err := c.Classify(context.Background(), "  bitcoin:bc1qexample  "); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if rt.parseRaw != "bc1qexample" {
		t.Fatalf("parsed raw = %q, want prefix stripped", rt.parseRaw)
	}
}

func TestClassify_UnrecognizedMapsToSentinel(t *testing.T) {
	c := &Classifier{Runtime: &fakeRuntime{}} // default parse returns ErrUnrecognizedInput
	if _, err := c.Classify(context.Background(), "what is this"); err != ErrUnrecognizedInput {
		t.Fatalf("err = %v, want ErrUnrecognizedInput", err)
	}
}

func TestClassify_RuntimeErrorPassesThrough(t *testing.T) {
	boom := errors.New("decoder crashed")
	rt := &fakeRuntime{parseFn: func(string) (*domain.PaymentDestination, error) { return nil, boom }}
	c := &Classifier{Runtime: rt}

	if _, err := c.Classify(context.Background(), "lnbc1"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want passthrough of runtime error", err)
	}
}

func TestClassify_InvoiceWithAmountSkipsAmountStep(t *testing.T) {
	rt := &fakeRuntime{parseFn: func(string) (*domain.PaymentDestination, error) {
		return bolt11Dest(21_000_500), nil // 21,000.5 sats → truncated
	}}
	c := &Classifier{Runtime: rt}

	cls, err := c.Classify(context.Background(), "lnbc1abc")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !cls.SkipAmount {
		t.Fatalf("SkipAmount = false, want true for amount-carrying invoice")
	}
	if cls.AmountSats != 21_000 {
		t.Fatalf("AmountSats = %d, want 21000 (msat truncated)", cls.AmountSats)
	}
}

func TestClassify_AmountlessInvoiceGoesThroughAmountStep(t *testing.T) {
	rt := &fakeRuntime{parseFn: func(string) (*domain.PaymentDestination, error) {
		return bolt11Dest(0), nil
	}}
	c := &Classifier{Runtime: rt}

	cls, err := c.Classify(context.Background(), "lnbc1abc")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cls.SkipAmount || cls.AmountSats != 0 {
		t.Fatalf("amountless invoice must not pre-fill: %+v", cls)
	}
}
