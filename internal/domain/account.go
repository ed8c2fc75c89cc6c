/**
 * @description
 * This file defines the account-side domain models: the Account entity, the
 * owning User, and the closed account type / currency enumerations. These
 * structs map directly to the `accounts` and `users` tables.
 *
 * @notes
 * - Balances are Money (fixed-point, scale 2) and are only ever mutated by
 *   the transfer and deposit engines inside a storage transaction; the rest
 *   of the service treats Account as read-only data.
 *
 * @dependencies
 * - github.com/google/uuid: Primary identifiers.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountType is the kind of account, fixed at creation.
type AccountType string

const (
	AccountTypeSavings  AccountType = "SAVINGS"
	AccountTypeChecking AccountType = "CHECKING"
)

// Valid reports whether t is one of the declared account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeSavings, AccountTypeChecking:
		return true
	}
	return false
}

// Currency is the account currency, fixed at creation.
type Currency string

const (
	CurrencyPEN Currency = "PEN"
	CurrencyUSD Currency = "USD"
)

// Valid reports whether c is one of the declared currencies.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyPEN, CurrencyUSD:
		return true
	}
	return false
}

// Account represents a user's monetary account. This struct maps directly to
// the `accounts` table.
type Account struct {
	ID            uuid.UUID   `json:"id"`
	AccountNumber string      `json:"account_number"`
	Alias         *string     `json:"alias,omitempty"`
	Type          AccountType `json:"type"`
	Currency      Currency    `json:"currency"`
	Balance       Money       `json:"balance"`
	OwnerID       uuid.UUID   `json:"owner_id"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// User is the simplified view of a registered user that the ledger service
// needs: just enough to verify that an account owner exists.
type User struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// OpenAccountRequest is the DTO for incoming account-opening API requests.
type OpenAccountRequest struct {
	Type     string  `json:"type"`
	Currency string  `json:"currency"`
	Alias    *string `json:"alias,omitempty"`
}
