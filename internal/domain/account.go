// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrRecipientNotFound indicates that the transfer recipient identifier does not resolve.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrDuplicateIdentifier indicates that the account identifier is already taken.
	ErrDuplicateIdentifier = errors.New("identifier already exists")
	// ErrInsufficientBalance indicates that the account does not have sufficient balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,64}$`)

// IsValidIdentifier returns true if s can name an account.
func IsValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Account holds the wallet balance owned by a single identifier.
// Balance is a non-negative decimal string.
type Account struct {
	ID         int32     `json:"id"`
	Identifier string    `json:"identifier"`
	Balance    string    `json:"balance"`
	CreatedAt  time.Time `json:"created_at"`
}
