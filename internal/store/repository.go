/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the ledger service performs, and the `LedgerTx` interface, which is
 * the explicit transaction boundary the engines run their mutations inside.
 * Decoupling the engines from the concrete database lets them be tested
 * against an in-memory store that honors the same atomicity contract.
 *
 * @notes
 * - Every mutating engine operation (transfer, deposit) happens inside
 *   `InTransaction`: all reads feeding the decision and all resulting writes
 *   commit or abort together. `LockAccount` must hold an exclusive lock on
 *   the account row until the transaction ends.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For identifier handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/andeanpay/ledger-service/internal/domain"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// BalanceUpdate is one account balance write inside a transaction boundary.
type BalanceUpdate struct {
	AccountID  uuid.UUID
	NewBalance domain.Money
}

// LedgerTx is the transaction boundary handed to engine callbacks. All of its
// operations are part of one atomic unit: if the callback returns an error,
// none of them are persisted.
type LedgerTx interface {
	// LockAccount reads an account and holds an exclusive row lock on it for
	// the remainder of the transaction. Returns ErrAccountNotFound if absent.
	LockAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)

	// UpdateBalances applies every balance write or none of them.
	UpdateBalances(ctx context.Context, updates []BalanceUpdate) error

	// AppendTransaction inserts one immutable ledger entry and fills in its
	// database-assigned creation timestamp.
	AppendTransaction(ctx context.Context, tx *domain.Transaction) error
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Owner and account lookups
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error)

	// Ledger queries
	// FindTransactionsByAccount returns entries where the account is either
	// side of the movement, most recent first.
	FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)

	// InTransaction runs fn inside one atomic transaction boundary. The
	// transaction commits only if fn returns nil; any error (or panic) rolls
	// back every write performed through the LedgerTx.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}
