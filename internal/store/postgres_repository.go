/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL against the `users`, `accounts` and
 * `transactions` tables, including the row-locked reads and atomic writes the
 * transfer and deposit engines rely on.
 *
 * @notes
 * - `InTransaction` wraps the engine callback in a single database
 *   transaction; `LockAccount` uses SELECT ... FOR UPDATE so two concurrent
 *   transfers touching the same account serialize instead of both reading a
 *   stale balance.
 * - Expected schema: accounts(id uuid pk, account_number text unique, alias
 *   text null, type text, currency text, balance numeric(18,2), user_id uuid
 *   fk, created_at, updated_at); transactions(id uuid pk, from_account uuid
 *   null fk, to_account uuid null fk, type text, status text, amount
 *   numeric(18,2), currency text, description text null, created_at).
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andeanpay/ledger-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, full_name, email, created_at FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.FullName, &user.Email, &user.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateAccount inserts a new account row and returns it with its
// database-assigned timestamps.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (id, account_number, alias, type, currency, balance, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		account.ID,
		account.AccountNumber,
		account.Alias,
		account.Type,
		account.Currency,
		account.Balance,
		account.OwnerID,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return account, nil
}

const accountColumns = `id, account_number, alias, type, currency, balance, user_id, created_at, updated_at`

func scanAccount(row pgx.Row, account *domain.Account) error {
	return row.Scan(
		&account.ID,
		&account.AccountNumber,
		&account.Alias,
		&account.Type,
		&account.Currency,
		&account.Balance,
		&account.OwnerID,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
}

// FindAccountByID retrieves one account by its ID.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	if err := scanAccount(r.db.QueryRow(ctx, query, accountID), &account); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindAccountsByOwner retrieves all accounts owned by a user.
func (r *PostgresRepository) FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE user_id = $1 ORDER BY created_at DESC`, accountColumns)
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var account domain.Account
		if err := scanAccount(rows, &account); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// FindTransactionsByAccount retrieves all ledger entries involving an account
// (as sender or recipient), most recent first.
func (r *PostgresRepository) FindTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	query := `
		SELECT id, from_account, to_account, type, status, amount, currency, description, created_at
		FROM transactions
		WHERE from_account = $1 OR to_account = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(
			&tx.ID, &tx.FromAccountID, &tx.ToAccountID, &tx.Type, &tx.Status,
			&tx.Amount, &tx.Currency, &tx.Description, &tx.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// InTransaction runs fn inside a single database transaction. The transaction
// commits only when fn returns nil; the deferred rollback is a no-op after a
// successful commit.
func (r *PostgresRepository) InTransaction(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &postgresLedgerTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// postgresLedgerTx implements LedgerTx on top of one pgx transaction.
type postgresLedgerTx struct {
	tx pgx.Tx
}

// LockAccount reads an account under FOR UPDATE. The row stays locked until
// the surrounding transaction commits or rolls back.
func (t *postgresLedgerTx) LockAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1 FOR UPDATE`, accountColumns)
	if err := scanAccount(t.tx.QueryRow(ctx, query, accountID), &account); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// UpdateBalances writes every new balance inside the transaction. A missing
// row means the caller skipped LockAccount; surfaced as ErrAccountNotFound.
func (t *postgresLedgerTx) UpdateBalances(ctx context.Context, updates []BalanceUpdate) error {
	query := `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`
	for _, update := range updates {
		result, err := t.tx.Exec(ctx, query, update.NewBalance, update.AccountID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, update.AccountID)
		}
	}
	return nil
}

// AppendTransaction inserts one immutable ledger entry.
func (t *postgresLedgerTx) AppendTransaction(ctx context.Context, entry *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, from_account, to_account, type, status, amount, currency, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	return t.tx.QueryRow(ctx, query,
		entry.ID,
		entry.FromAccountID,
		entry.ToAccountID,
		entry.Type,
		entry.Status,
		entry.Amount,
		entry.Currency,
		entry.Description,
	).Scan(&entry.CreatedAt)
}
