// Package ledger appends immutable party ledger entries and folds them into balances.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PartyType discriminates the counterparty of an entry.
type PartyType string

const (
	PartyCustomer PartyType = "customer"
	PartySupplier PartyType = "supplier"
)

// Valid reports whether p is a known party type.
func (p PartyType) Valid() bool {
	return p == PartyCustomer || p == PartySupplier
}

// EntryType names the financial event behind an entry.
type EntryType string

const (
	EntryInvoice    EntryType = "invoice"
	EntryPayment    EntryType = "payment"
	EntryPurchase   EntryType = "purchase"
	EntryRefund     EntryType = "refund"
	EntryAdjustment EntryType = "adjustment"
)

// Valid reports whether e is a known entry type.
func (e EntryType) Valid() bool {
	switch e {
	case EntryInvoice, EntryPayment, EntryPurchase, EntryRefund, EntryAdjustment:
		return true
	}
	return false
}

// ReferenceType tags the document an entry originates from.
type ReferenceType string

const (
	RefPurchaseBill ReferenceType = "purchaseBill"
	RefInvoice      ReferenceType = "invoice"
	RefShipment     ReferenceType = "shipment"
	RefClearingJob  ReferenceType = "clearingJob"
	RefManual       ReferenceType = "manual"
)

// Scope is the denormalised country/branch owner of an entry.
type Scope struct {
	CountryID int64 `json:"country_id"`
	BranchID  int64 `json:"branch_id"`
}

// Entry is an append-only ledger record. Amounts are in local currency.
type Entry struct {
	ID            uuid.UUID       `json:"id"`
	PartyType     PartyType       `json:"party_type"`
	PartyID       int64           `json:"party_id"`
	EntryType     EntryType       `json:"entry_type"`
	Debit         decimal.Decimal `json:"debit_amount"`
	Credit        decimal.Decimal `json:"credit_amount"`
	Currency      string          `json:"currency"`
	AmountUSD     decimal.Decimal `json:"amount_usd"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate_used"`
	Scope         Scope           `json:"scope"`
	ReferenceType ReferenceType   `json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID      `json:"reference_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Party is the ledger view of a customer or supplier.
type Party struct {
	Type           PartyType
	ID             int64
	Name           string
	Scope          Scope
	OpeningBalance decimal.Decimal
}

// PostInput describes an explicit debit/credit posting.
type PostInput struct {
	PartyType     PartyType
	PartyID       int64
	EntryType     EntryType
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Scope         Scope
	ReferenceType ReferenceType
	ReferenceID   *uuid.UUID
	Description   string
	CreatedBy     int64
}

// AmountInput describes a posting whose side is derived from party and entry type.
type AmountInput struct {
	PartyType     PartyType
	PartyID       int64
	EntryType     EntryType
	Amount        decimal.Decimal
	ReferenceType ReferenceType
	ReferenceID   *uuid.UUID
	Description   string
	CreatedBy     int64
}

// StatementLine pairs an entry with the running balance after it.
type StatementLine struct {
	Entry
	Balance decimal.Decimal `json:"balance"`
}

// Statement is a party's full ledger.
type Statement struct {
	PartyType      PartyType       `json:"party_type"`
	PartyID        int64           `json:"party_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Entries        []StatementLine `json:"entries"`
	Balance        decimal.Decimal `json:"balance"`
}

// PartyTotal is the per-party sum of debits and credits.
type PartyTotal struct {
	PartyID int64
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// Outstanding is one row of the outstanding balances view.
type Outstanding struct {
	PartyID     int64           `json:"party_id"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Outstanding decimal.Decimal `json:"outstanding"`
}
