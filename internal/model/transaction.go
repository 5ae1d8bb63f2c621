// Package model defines the domain types shared across the application.
package model

import (
	"crypto/sha256"
	"fmt"
)

// Booking statuses reported by the bank.
const (
	BookingStatusBooked  = "BOOKED"
	BookingStatusPending = "PENDING"
)

// Transaction represents a single bank transaction.
type Transaction struct {
	ID                  string  `json:"id"`
	NonUniqueID         string  `json:"non_unique_id,omitempty"`
	Description         string  `json:"description,omitempty"`
	CleanedDescription  string  `json:"cleaned_description,omitempty"`
	Amount              float64 `json:"amount"`
	Date                int64   `json:"date"` // epoch milliseconds
	TypeCode            string  `json:"type_code"`
	TypeText            string  `json:"type_text,omitempty"`
	CurrencyCode        string  `json:"currency_code,omitempty"`
	BookingStatus       string  `json:"booking_status"`
	AccountName         string  `json:"account_name,omitempty"`
	AccountKey          string  `json:"account_key"`
	RemoteAccountNumber string  `json:"remote_account_number,omitempty"`
	RemoteAccountName   string  `json:"remote_account_name,omitempty"`
	KidOrMessage        string  `json:"kid_or_message,omitempty"`
}

// DisplayDescription returns the cleaned description when the bank provides
// one, falling back to the raw description.
func (t *Transaction) DisplayDescription() string {
	if t.CleanedDescription != "" {
		return t.CleanedDescription
	}
	return t.Description
}

// Settled reports whether the transaction has settled.
func (t *Transaction) Settled() bool {
	return t.BookingStatus == BookingStatusBooked
}

// Fingerprint creates a deterministic digest of the fields that carry
// business meaning, used to detect when a transaction's content has changed.
// Dates and remote account metadata are deliberately excluded so that the
// dedup key stays stable across cosmetic updates.
func (t *Transaction) Fingerprint() string {
	data := fmt.Sprintf("%s|%s|%.2f|%s|%s",
		t.ID,
		t.DisplayDescription(),
		t.Amount,
		t.TypeCode,
		t.BookingStatus)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// TransactionResponse is the bank's transaction listing payload.
type TransactionResponse struct {
	Transactions []Transaction `json:"transactions"`
	Errors       []APIError    `json:"errors"`
}
