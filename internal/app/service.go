/**
 * @description
 * This file contains the core business logic of the ledger service: the
 * transfer and deposit engines and the account lifecycle. It orchestrates
 * operations by coordinating the repository (inside explicit transaction
 * boundaries) and the event producer.
 *
 * @notes
 * - Every mutating operation is all-or-nothing: validation failures abort
 *   the transaction boundary before any write, so a rejected transfer or
 *   deposit leaves balances and the ledger untouched.
 * - Transfers lock both account rows in ascending UUID order so two
 *   concurrent opposite-direction transfers cannot deadlock.
 * - Events are published strictly after commit and never affect the outcome
 *   of an operation.
 */
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/andeanpay/ledger-service/internal/domain"
	"github.com/andeanpay/ledger-service/internal/store"
	"github.com/andeanpay/ledger-service/pkg/rabbitmq"
)

var (
	ErrSameAccount         = errors.New("cannot transfer to the same account")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrCurrencyMismatch    = errors.New("currency mismatch between accounts")
	ErrInvalidAccountType  = errors.New("invalid account type")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrTransferRateLimited = errors.New("transfer rate limit exceeded")
)

const (
	routingKeyTransactionCompleted = "ledger.transaction.completed"
	routingKeyAccountOpened        = "ledger.account.opened"
)

// RateLimiter is the contract for the optional distributed transfer limiter.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the ledger engine operations: opening accounts, deposits,
// transfers and ledger queries.
type Service struct {
	repo          store.Repository
	events        rabbitmq.Publisher
	eventExchange string

	transferLimiter        RateLimiter
	transferLimitPerMinute int
}

// NewService creates a new instance of Service. The publisher may be nil when
// event publishing is disabled.
func NewService(repo store.Repository, events rabbitmq.Publisher, eventExchange string) *Service {
	return &Service{
		repo:          repo,
		events:        events,
		eventExchange: eventExchange,
	}
}

// SetTransferRateLimiter enables per-owner rate limiting on transfers.
func (s *Service) SetTransferRateLimiter(limiter RateLimiter, limitPerMinute int) {
	s.transferLimiter = limiter
	s.transferLimitPerMinute = limitPerMinute
}

// OpenAccount creates a new account for an existing owner with a generated
// account number and a zero starting balance.
func (s *Service) OpenAccount(ctx context.Context, ownerID uuid.UUID, accountType domain.AccountType, currency domain.Currency, alias *string) (*domain.Account, error) {
	if !accountType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccountType, accountType)
	}
	if !currency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	if _, err := s.repo.FindUserByID(ctx, ownerID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("owner %s: %w", ownerID, store.ErrUserNotFound)
		}
		return nil, err
	}

	account := &domain.Account{
		ID:            uuid.New(),
		AccountNumber: generateAccountNumber(),
		Alias:         alias,
		Type:          accountType,
		Currency:      currency,
		Balance:       domain.ZeroMoney(),
		OwnerID:       ownerID,
	}
	created, err := s.repo.CreateAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, routingKeyAccountOpened, domain.AccountOpenedEvent{
		AccountID:     created.ID,
		OwnerID:       created.OwnerID,
		AccountNumber: created.AccountNumber,
		Type:          string(created.Type),
		Currency:      string(created.Currency),
		Timestamp:     time.Now(),
	})
	return created, nil
}

// GetAccount retrieves one account by id.
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, fmt.Errorf("account %s: %w", accountID, store.ErrAccountNotFound)
		}
		return nil, err
	}
	return account, nil
}

// ListAccountsByOwner retrieves all accounts owned by a user.
func (s *Service) ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	return s.repo.FindAccountsByOwner(ctx, ownerID)
}

// ListTransactionsByAccount retrieves the ledger entries involving an
// account, most recent first.
func (s *Service) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	return s.repo.FindTransactionsByAccount(ctx, accountID)
}

// Deposit credits an account and appends one COMPLETED DEPOSIT ledger entry,
// as one atomic unit.
func (s *Service) Deposit(ctx context.Context, toAccountID uuid.UUID, amount domain.Money, description *string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var entry *domain.Transaction
	err := s.repo.InTransaction(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		account, err := tx.LockAccount(ctx, toAccountID)
		if err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				return fmt.Errorf("account %s: %w", toAccountID, store.ErrAccountNotFound)
			}
			return err
		}

		newBalance := account.Balance.Add(amount)
		if err := tx.UpdateBalances(ctx, []store.BalanceUpdate{
			{AccountID: account.ID, NewBalance: newBalance},
		}); err != nil {
			return err
		}

		entry = &domain.Transaction{
			ID:          uuid.New(),
			ToAccountID: &account.ID,
			Type:        domain.TransactionTypeDeposit,
			Status:      domain.TransactionStatusCompleted,
			Amount:      amount,
			Currency:    account.Currency,
			Description: description,
		}
		return tx.AppendTransaction(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.publishTransactionCompleted(ctx, entry)
	return entry, nil
}

// Transfer moves funds between two distinct accounts of matching currency and
// appends one COMPLETED TRANSFER ledger entry, as one atomic unit. Validation
// order: same account, amount, existence, currency, funds — first failure
// wins and nothing is persisted.
func (s *Service) Transfer(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount domain.Money, description *string) (*domain.Transaction, error) {
	if fromAccountID == toAccountID {
		return nil, ErrSameAccount
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := s.consumeTransferRateLimit(ctx, fromAccountID); err != nil {
		return nil, err
	}

	var entry *domain.Transaction
	err := s.repo.InTransaction(ctx, func(ctx context.Context, tx store.LedgerTx) error {
		accounts := make(map[uuid.UUID]*domain.Account, 2)
		for _, id := range lockOrder(fromAccountID, toAccountID) {
			account, err := tx.LockAccount(ctx, id)
			if err != nil {
				if errors.Is(err, store.ErrAccountNotFound) {
					return fmt.Errorf("account %s: %w", id, store.ErrAccountNotFound)
				}
				return err
			}
			accounts[id] = account
		}

		from := accounts[fromAccountID]
		to := accounts[toAccountID]
		if from.Currency != to.Currency {
			return ErrCurrencyMismatch
		}
		if from.Balance.Cmp(amount) < 0 {
			return store.ErrInsufficientFunds
		}

		if err := tx.UpdateBalances(ctx, []store.BalanceUpdate{
			{AccountID: from.ID, NewBalance: from.Balance.Sub(amount)},
			{AccountID: to.ID, NewBalance: to.Balance.Add(amount)},
		}); err != nil {
			return err
		}

		entry = &domain.Transaction{
			ID:            uuid.New(),
			FromAccountID: &from.ID,
			ToAccountID:   &to.ID,
			Type:          domain.TransactionTypeTransfer,
			Status:        domain.TransactionStatusCompleted,
			Amount:        amount,
			Currency:      from.Currency,
			Description:   description,
		}
		return tx.AppendTransaction(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.publishTransactionCompleted(ctx, entry)
	return entry, nil
}

// lockOrder returns the two account ids in ascending UUID order. Locking in a
// fixed global order prevents deadlocks between concurrent transfers.
func lockOrder(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() < b.String() {
		return [2]uuid.UUID{a, b}
	}
	return [2]uuid.UUID{b, a}
}

func (s *Service) consumeTransferRateLimit(ctx context.Context, subject uuid.UUID) error {
	if s.transferLimiter == nil || s.transferLimitPerMinute <= 0 {
		return nil
	}
	count, retryAfter, err := s.transferLimiter.ConsumeRateLimit(ctx, "transfer", subject.String(), s.transferLimitPerMinute, time.Minute)
	if err != nil {
		// Fail open: a limiter outage must not block transfers.
		log.Printf("level=warn component=app msg=\"transfer rate limiter unavailable\" err=%v", err)
		return nil
	}
	if count > s.transferLimitPerMinute {
		return fmt.Errorf("%w: retry in %ds", ErrTransferRateLimited, retryAfter)
	}
	return nil
}

func (s *Service) publishTransactionCompleted(ctx context.Context, entry *domain.Transaction) {
	s.publish(ctx, routingKeyTransactionCompleted, domain.TransactionCompletedEvent{
		TransactionID: entry.ID,
		Type:          string(entry.Type),
		FromAccountID: entry.FromAccountID,
		ToAccountID:   entry.ToAccountID,
		Amount:        entry.Amount.String(),
		Currency:      string(entry.Currency),
		Timestamp:     time.Now(),
	})
}

func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, s.eventExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// generateAccountNumber composes a nanosecond timestamp with a random
// six-digit suffix. Uniqueness is additionally enforced by the unique index
// on accounts.account_number.
func generateAccountNumber() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		// crypto/rand failures are not recoverable at this level; fall back
		// to the timestamp alone rather than aborting account creation.
		return fmt.Sprintf("ACC-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("ACC-%d-%06d", time.Now().UnixNano(), n.Int64())
}
