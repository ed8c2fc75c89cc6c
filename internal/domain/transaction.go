/**
 * @description
 * This file defines the ledger-side domain models: the Transaction entity
 * (one immutable row per completed monetary movement) together with its type
 * and status enumerations, and the transfer/deposit request DTOs.
 *
 * @notes
 * - Ledger entries are append-only. A TRANSFER entry carries both account
 *   ids; a DEPOSIT entry has no from-account. The engines only ever persist
 *   COMPLETED entries — a failed operation aborts before any row is written,
 *   so PENDING and FAILED exist in the enum but are never produced.
 * - WITHDRAWAL is declared for schema compatibility; no current operation
 *   creates one.
 *
 * @dependencies
 * - github.com/google/uuid: Primary identifiers.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType is the kind of monetary movement a ledger entry records.
type TransactionType string

const (
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction represents one immutable ledger entry. This struct maps
// directly to the `transactions` table.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	FromAccountID *uuid.UUID        `json:"from_account_id,omitempty"`
	ToAccountID   *uuid.UUID        `json:"to_account_id,omitempty"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Amount        Money             `json:"amount"`
	Currency      Currency          `json:"currency"`
	Description   *string           `json:"description,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TransferRequest is the DTO for incoming transfer API requests. The amount
// is a decimal string ("40.00") and is parsed into Money at the API boundary.
type TransferRequest struct {
	FromAccountID uuid.UUID `json:"from_account_id"`
	ToAccountID   uuid.UUID `json:"to_account_id"`
	Amount        string    `json:"amount"`
	Description   *string   `json:"description,omitempty"`
}

// DepositRequest is the DTO for incoming deposit API requests.
type DepositRequest struct {
	ToAccountID uuid.UUID `json:"to_account_id"`
	Amount      string    `json:"amount"`
	Description *string   `json:"description,omitempty"`
}
