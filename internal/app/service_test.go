package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/andeanpay/ledger-service/internal/domain"
	"github.com/andeanpay/ledger-service/internal/store"
)

func money(t *testing.T, s string) domain.Money {
	t.Helper()
	m, err := domain.NewMoneyFromString(s)
	if err != nil {
		t.Fatalf("parse money %q: %v", s, err)
	}
	return m
}

func newTestService(t *testing.T) (*Service, *store.MemoryRepository, *capturingPublisher) {
	t.Helper()
	repo := store.NewMemoryRepository()
	events := &capturingPublisher{}
	return NewService(repo, events, "ledger.events"), repo, events
}

func seedAccount(t *testing.T, repo *store.MemoryRepository, currency domain.Currency, balance string) *domain.Account {
	t.Helper()
	account, err := repo.CreateAccount(context.Background(), &domain.Account{
		ID:            uuid.New(),
		AccountNumber: "ACC-test",
		Type:          domain.AccountTypeSavings,
		Currency:      currency,
		Balance:       money(t, balance),
		OwnerID:       uuid.New(),
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return account
}

func balanceOf(t *testing.T, repo *store.MemoryRepository, accountID uuid.UUID) string {
	t.Helper()
	account, err := repo.FindAccountByID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("find account %s: %v", accountID, err)
	}
	return account.Balance.String()
}

// capturingPublisher records published events so tests can assert on them.
// Publish is called from concurrent transfers, hence the mutex.
type capturingPublisher struct {
	mu        sync.Mutex
	published []capturedEvent
}

type capturedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (p *capturingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, capturedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *capturingPublisher) Close() {}

// touchTrackingRepo records whether the service reached the repository at all.
type touchTrackingRepo struct {
	store.Repository
	touched bool
}

func (r *touchTrackingRepo) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	r.touched = true
	return r.Repository.FindAccountByID(ctx, accountID)
}

func (r *touchTrackingRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.LedgerTx) error) error {
	r.touched = true
	return r.Repository.InTransaction(ctx, fn)
}

// stubRateLimiter returns a canned count so tests can force rejections.
type stubRateLimiter struct {
	count      int
	retryAfter int
	err        error
}

func (l *stubRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return l.count, l.retryAfter, l.err
}

func TestTransfer_MovesFundsAndAppendsLedgerEntry(t *testing.T) {
	svc, repo, events := newTestService(t)
	from := seedAccount(t, repo, domain.CurrencyUSD, "100.00")
	to := seedAccount(t, repo, domain.CurrencyUSD, "10.00")

	entry, err := svc.Transfer(context.Background(), from.ID, to.ID, money(t, "40.00"), nil)
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}

	if got := balanceOf(t, repo, from.ID); got != "60.00" {
		t.Fatalf("source balance = %s, want 60.00", got)
	}
	if got := balanceOf(t, repo, to.ID); got != "50.00" {
		t.Fatalf("destination balance = %s, want 50.00", got)
	}

	if entry.Type != domain.TransactionTypeTransfer {
		t.Fatalf("entry type = %s, want TRANSFER", entry.Type)
	}
	if entry.Status != domain.TransactionStatusCompleted {
		t.Fatalf("entry status = %s, want COMPLETED", entry.Status)
	}
	if entry.FromAccountID == nil || *entry.FromAccountID != from.ID {
		t.Fatalf("entry from account = %v, want %s", entry.FromAccountID, from.ID)
	}
	if entry.ToAccountID == nil || *entry.ToAccountID != to.ID {
		t.Fatalf("entry to account = %v, want %s", entry.ToAccountID, to.ID)
	}
	if entry.Amount.String() != "40.00" {
		t.Fatalf("entry amount = %s, want 40.00", entry.Amount)
	}
	if entry.Currency != domain.CurrencyUSD {
		t.Fatalf("entry currency = %s, want USD", entry.Currency)
	}

	if len(events.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(events.published))
	}
	if events.published[0].routingKey != "ledger.transaction.completed" {
		t.Fatalf("routing key = %s", events.published[0].routingKey)
	}
	if events.published[0].exchange != "ledger.events" {
		t.Fatalf("exchange = %s", events.published[0].exchange)
	}
}

func TestTransfer_InsufficientFundsLeavesEverythingUntouched(t *testing.T) {
	svc, repo, events := newTestService(t)
	from := seedAccount(t, repo, domain.CurrencyUSD, "30.00")
	to := seedAccount(t, repo, domain.CurrencyUSD, "10.00")

	_, err := svc.Transfer(context.Background(), from.ID, to.ID, money(t, "30.01"), nil)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if got := balanceOf(t, repo, from.ID); got != "30.00" {
		t.Fatalf("source balance changed: %s", got)
	}
	if got := balanceOf(t, repo, to.ID); got != "10.00" {
		t.Fatalf("destination balance changed: %s", got)
	}
	entries, err := repo.FindTransactionsByAccount(context.Background(), from.ID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger after rejected transfer, got %d entries", len(entries))
	}
	if len(events.published) != 0 {
		t.Fatalf("expected no events after rejected transfer, got %d", len(events.published))
	}
}

func TestTransfer_ExactBalanceSucceeds(t *testing.T) {
	svc, repo, _ := newTestService(t)
	from := seedAccount(t, repo, domain.CurrencyUSD, "30.00")
	to := seedAccount(t, repo, domain.CurrencyUSD, "0.00")

	if _, err := svc.Transfer(context.Background(), from.ID, to.ID, money(t, "30.00"), nil); err != nil {
		t.Fatalf("transfer of the full balance returned error: %v", err)
	}
	if got := balanceOf(t, repo, from.ID); got != "0.00" {
		t.Fatalf("source balance = %s, want 0.00", got)
	}
	if got := balanceOf(t, repo, to.ID); got != "30.00" {
		t.Fatalf("destination balance = %s, want 30.00", got)
	}
}

func TestTransfer_SameAccountRejectedBeforeAnyLookup(t *testing.T) {
	repo := &touchTrackingRepo{Repository: store.NewMemoryRepository()}
	svc := NewService(repo, nil, "ledger.events")
	accountID := uuid.New()

	_, err := svc.Transfer(context.Background(), accountID, accountID, money(t, "1.00"), nil)
	if !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
	if repo.touched {
		t.Fatalf("same-account transfer reached the repository")
	}
}

func TestTransfer_NonPositiveAmountRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	from := seedAccount(t, repo, domain.CurrencyUSD, "100.00")
	to := seedAccount(t, repo, domain.CurrencyUSD, "10.00")

	for _, amount := range []string{"0", "-5.00"} {
		_, err := svc.Transfer(context.Background(), from.ID, to.ID, money(t, amount), nil)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestTransfer_UnknownAccountNamesTheMissingID(t *testing.T) {
	svc, repo, _ := newTestService(t)
	from := seedAccount(t, repo, domain.CurrencyUSD, "100.00")
	missing := uuid.New()

	_, err := svc.Transfer(context.Background(), from.ID, missing, money(t, "1.00"), nil)
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), missing.String()) {
		t.Fatalf("error %q does not name the missing account id", err)
	}
	if got := balanceOf(t, repo, from.ID); got != "100.00" {
		t.Fatalf("source balance changed: %s", got)
	}
}

func TestTransfer_CurrencyMismatchRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	from := seedAccount(t, repo, domain.CurrencyPEN, "100.00")
	to := seedAccount(t, repo, domain.CurrencyUSD, "10.00")

	_, err := svc.Transfer(context.Background(), from.ID, to.ID, money(t, "1.00"), nil)
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
	if got := balanceOf(t, repo, from.ID); got != "100.00" {
		t.Fatalf("source balance changed: %s", got)
	}
	if got := balanceOf(t, repo, to.ID); got != "10.00" {
		t.Fatalf("destination balance changed: %s", got)
	}
}

func TestTransfer_RateLimited(t *testing.T) {
	svc, repo, _ := newTestService(t)
	from := seedAccount(t, repo, domain.CurrencyUSD, "100.00")
	to := seedAccount(t, repo, domain.CurrencyUSD, "10.00")

	svc.SetTransferRateLimiter(&stubRateLimiter{count: 11, retryAfter: 30}, 10)
	_, err := svc.Transfer(context.Background(), from.ID, to.ID, money(t, "1.00"), nil)
	if !errors.Is(err, ErrTransferRateLimited) {
		t.Fatalf("expected ErrTransferRateLimited, got %v", err)
	}
	if got := balanceOf(t, repo, from.ID); got != "100.00" {
		t.Fatalf("source balance changed: %s", got)
	}
}

func TestTransfer_RateLimiterOutageFailsOpen(t *testing.T) {
	svc, repo, _ := newTestService(t)
	from := seedAccount(t, repo, domain.CurrencyUSD, "100.00")
	to := seedAccount(t, repo, domain.CurrencyUSD, "10.00")

	svc.SetTransferRateLimiter(&stubRateLimiter{err: errors.New("redis down")}, 10)
	if _, err := svc.Transfer(context.Background(), from.ID, to.ID, money(t, "1.00"), nil); err != nil {
		t.Fatalf("expected limiter outage to fail open, got %v", err)
	}
	if got := balanceOf(t, repo, from.ID); got != "99.00" {
		t.Fatalf("source balance = %s, want 99.00", got)
	}
}

func TestDeposit_CreditsAccountAndAppendsEntryWithoutFromAccount(t *testing.T) {
	svc, repo, events := newTestService(t)
	account := seedAccount(t, repo, domain.CurrencyUSD, "10.00")
	desc := "payroll"

	entry, err := svc.Deposit(context.Background(), account.ID, money(t, "25.50"), &desc)
	if err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}

	if got := balanceOf(t, repo, account.ID); got != "35.50" {
		t.Fatalf("balance = %s, want 35.50", got)
	}
	if entry.Type != domain.TransactionTypeDeposit {
		t.Fatalf("entry type = %s, want DEPOSIT", entry.Type)
	}
	if entry.Status != domain.TransactionStatusCompleted {
		t.Fatalf("entry status = %s, want COMPLETED", entry.Status)
	}
	if entry.FromAccountID != nil {
		t.Fatalf("deposit entry carries a from account: %s", entry.FromAccountID)
	}
	if entry.ToAccountID == nil || *entry.ToAccountID != account.ID {
		t.Fatalf("entry to account = %v, want %s", entry.ToAccountID, account.ID)
	}
	if entry.Description == nil || *entry.Description != "payroll" {
		t.Fatalf("entry description = %v, want payroll", entry.Description)
	}
	if len(events.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(events.published))
	}
}

func TestDeposit_UnknownAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	missing := uuid.New()

	_, err := svc.Deposit(context.Background(), missing, money(t, "1.00"), nil)
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), missing.String()) {
		t.Fatalf("error %q does not name the missing account id", err)
	}
}

func TestDeposit_NonPositiveAmountRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	account := seedAccount(t, repo, domain.CurrencyUSD, "10.00")

	_, err := svc.Deposit(context.Background(), account.ID, money(t, "0"), nil)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if got := balanceOf(t, repo, account.ID); got != "10.00" {
		t.Fatalf("balance changed: %s", got)
	}
}

func TestListTransactionsByAccount_MostRecentFirstMatchingEitherSide(t *testing.T) {
	svc, repo, _ := newTestService(t)
	a := seedAccount(t, repo, domain.CurrencyUSD, "100.00")
	b := seedAccount(t, repo, domain.CurrencyUSD, "100.00")

	first, err := svc.Deposit(context.Background(), a.ID, money(t, "5.00"), nil)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	second, err := svc.Transfer(context.Background(), a.ID, b.ID, money(t, "10.00"), nil)
	if err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	third, err := svc.Transfer(context.Background(), b.ID, a.ID, money(t, "2.00"), nil)
	if err != nil {
		t.Fatalf("transfer in: %v", err)
	}

	entries, err := svc.ListTransactionsByAccount(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ID != third.ID || entries[1].ID != second.ID || entries[2].ID != first.ID {
		t.Fatalf("entries not ordered most recent first: %s, %s, %s", entries[0].ID, entries[1].ID, entries[2].ID)
	}

	// The account on the receiving side of the outbound transfer sees it too.
	bEntries, err := svc.ListTransactionsByAccount(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if len(bEntries) != 2 {
		t.Fatalf("expected 2 entries for counterpart account, got %d", len(bEntries))
	}
}

func TestOpenAccount_UnknownOwnerRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	missing := uuid.New()

	_, err := svc.OpenAccount(context.Background(), missing, domain.AccountTypeSavings, domain.CurrencyUSD, nil)
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), missing.String()) {
		t.Fatalf("error %q does not name the missing owner id", err)
	}
}

func TestOpenAccount_CreatesZeroBalanceAccountWithGeneratedNumber(t *testing.T) {
	svc, repo, events := newTestService(t)
	owner := domain.User{ID: uuid.New(), FullName: "Maria Flores", Email: "maria@example.com"}
	repo.AddUser(owner)

	account, err := svc.OpenAccount(context.Background(), owner.ID, domain.AccountTypeChecking, domain.CurrencyPEN, nil)
	if err != nil {
		t.Fatalf("OpenAccount returned error: %v", err)
	}

	if !account.Balance.Equal(domain.ZeroMoney()) {
		t.Fatalf("new account balance = %s, want 0.00", account.Balance)
	}
	if account.OwnerID != owner.ID {
		t.Fatalf("owner id = %s, want %s", account.OwnerID, owner.ID)
	}
	if !strings.HasPrefix(account.AccountNumber, "ACC-") {
		t.Fatalf("account number %q missing ACC- prefix", account.AccountNumber)
	}
	if len(events.published) != 1 || events.published[0].routingKey != "ledger.account.opened" {
		t.Fatalf("expected one account opened event, got %+v", events.published)
	}

	other, err := svc.OpenAccount(context.Background(), owner.ID, domain.AccountTypeSavings, domain.CurrencyUSD, nil)
	if err != nil {
		t.Fatalf("OpenAccount returned error: %v", err)
	}
	if other.AccountNumber == account.AccountNumber {
		t.Fatalf("two accounts share account number %q", account.AccountNumber)
	}
}

func TestOpenAccount_InvalidTypeAndCurrencyRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	owner := domain.User{ID: uuid.New(), FullName: "Maria Flores", Email: "maria@example.com"}
	repo.AddUser(owner)

	if _, err := svc.OpenAccount(context.Background(), owner.ID, "CURRENT", domain.CurrencyUSD, nil); !errors.Is(err, ErrInvalidAccountType) {
		t.Fatalf("expected ErrInvalidAccountType, got %v", err)
	}
	if _, err := svc.OpenAccount(context.Background(), owner.ID, domain.AccountTypeSavings, "EUR", nil); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestGetAccount_UnknownAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	missing := uuid.New()

	_, err := svc.GetAccount(context.Background(), missing)
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
