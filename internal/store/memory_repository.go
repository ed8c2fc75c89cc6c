/**
 * @description
 * This file provides an in-memory implementation of the `Repository`
 * interface. It honors the same atomicity contract as the PostgreSQL
 * implementation: writes performed through a LedgerTx become visible only
 * when the callback returns nil, and a transaction holds exclusive access to
 * the store for its whole lifetime. The engines are tested against it,
 * including their concurrency properties.
 */

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andeanpay/ledger-service/internal/domain"
)

// MemoryRepository is a mutex-guarded, map-backed Repository.
type MemoryRepository struct {
	mu           sync.Mutex
	users        map[uuid.UUID]domain.User
	accounts     map[uuid.UUID]domain.Account
	transactions []memoryEntry
	seq          uint64
}

// memoryEntry pairs a ledger entry with an insertion sequence so that
// most-recent-first ordering is stable even when timestamps collide.
type memoryEntry struct {
	tx  domain.Transaction
	seq uint64
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[uuid.UUID]domain.User),
		accounts: make(map[uuid.UUID]domain.Account),
	}
}

// AddUser seeds a user row. Intended for tests and local bootstrapping.
func (r *MemoryRepository) AddUser(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.users[user.ID] = user
}

func (r *MemoryRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = *account
	created := *account
	return &created, nil
}

func (r *MemoryRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (r *MemoryRepository) FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var accounts []domain.Account
	for _, account := range r.accounts {
		if account.OwnerID == ownerID {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (r *MemoryRepository) FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []memoryEntry
	for _, entry := range r.transactions {
		from := entry.tx.FromAccountID
		to := entry.tx.ToAccountID
		if (from != nil && *from == accountID) || (to != nil && *to == accountID) {
			matched = append(matched, entry)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].seq > matched[j].seq
	})
	transactions := make([]domain.Transaction, 0, len(matched))
	for _, entry := range matched {
		transactions = append(transactions, entry.tx)
	}
	return transactions, nil
}

// InTransaction holds the store lock for the whole callback, which gives a
// transaction exclusive access to every account row, and stages writes so
// they become visible only on commit.
func (r *MemoryRepository) InTransaction(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memoryLedgerTx{
		repo:     r,
		balances: make(map[uuid.UUID]domain.Money),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	// Commit: apply staged balances and pending entries.
	now := time.Now()
	for accountID, balance := range tx.balances {
		account := r.accounts[accountID]
		account.Balance = balance
		account.UpdatedAt = now
		r.accounts[accountID] = account
	}
	for _, pending := range tx.pending {
		r.seq++
		r.transactions = append(r.transactions, memoryEntry{tx: pending, seq: r.seq})
	}
	return nil
}

// memoryLedgerTx stages writes against a MemoryRepository. The repository
// lock is already held by InTransaction.
type memoryLedgerTx struct {
	repo     *MemoryRepository
	balances map[uuid.UUID]domain.Money
	pending  []domain.Transaction
}

func (t *memoryLedgerTx) LockAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, ok := t.repo.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if staged, ok := t.balances[accountID]; ok {
		account.Balance = staged
	}
	return &account, nil
}

func (t *memoryLedgerTx) UpdateBalances(ctx context.Context, updates []BalanceUpdate) error {
	for _, update := range updates {
		if _, ok := t.repo.accounts[update.AccountID]; !ok {
			return ErrAccountNotFound
		}
	}
	for _, update := range updates {
		t.balances[update.AccountID] = update.NewBalance
	}
	return nil
}

func (t *memoryLedgerTx) AppendTransaction(ctx context.Context, entry *domain.Transaction) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	t.pending = append(t.pending, *entry)
	return nil
}
