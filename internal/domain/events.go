/**
 * @description
 * Event payloads published to RabbitMQ after a ledger operation commits.
 * Downstream consumers (notifications, analytics) receive these; the engine
 * never depends on them being delivered.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionCompletedEvent is published after a transfer or deposit commits.
type TransactionCompletedEvent struct {
	TransactionID uuid.UUID  `json:"transaction_id"`
	Type          string     `json:"type"`
	FromAccountID *uuid.UUID `json:"from_account_id,omitempty"`
	ToAccountID   *uuid.UUID `json:"to_account_id,omitempty"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Timestamp     time.Time  `json:"timestamp"`
}

// AccountOpenedEvent is published after a new account is persisted.
type AccountOpenedEvent struct {
	AccountID     uuid.UUID `json:"account_id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	AccountNumber string    `json:"account_number"`
	Type          string    `json:"type"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
}
