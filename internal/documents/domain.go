// Package documents models the workflow-bearing financial documents and their storage.
package documents

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/fincore/internal/ledger"
	"github.com/odyssey-erp/fincore/internal/shared"
	"github.com/odyssey-erp/fincore/internal/workflow"
)

// Kind discriminates the four document types sharing the workflow.
type Kind string

const (
	KindPurchaseBill Kind = "purchaseBill"
	KindInvoice      Kind = "invoice"
	KindShipment     Kind = "shipment"
	KindClearingJob  Kind = "clearingJob"
)

type kindInfo struct {
	prefix        string
	table         string
	party         ledger.PartyType
	financial     bool
	initialStatus string
}

var kinds = map[Kind]kindInfo{
	KindPurchaseBill: {prefix: "BILL", table: "purchase_bills", party: ledger.PartySupplier, financial: true, initialStatus: StatusUnpaid},
	KindInvoice:      {prefix: "INV", table: "invoices", party: ledger.PartyCustomer, financial: true, initialStatus: StatusUnpaid},
	KindShipment:     {prefix: "SHP", table: "shipments", party: ledger.PartyCustomer, initialStatus: StatusPending},
	KindClearingJob:  {prefix: "CLR", table: "clearing_jobs", party: ledger.PartyCustomer, initialStatus: StatusOpen},
}

// Domain statuses. Workflow never replaces these.
const (
	StatusUnpaid        = "unpaid"
	StatusPartiallyPaid = "partially_paid"
	StatusPaid          = "paid"
	StatusPending       = "pending"
	StatusOpen          = "open"
)

// ParseKind validates a kind name.
func ParseKind(raw string) (Kind, error) {
	k := Kind(raw)
	if _, ok := kinds[k]; !ok {
		return "", shared.Validationf("unknown document kind %q", raw)
	}
	return k, nil
}

// Kinds lists every document kind.
func Kinds() []Kind {
	return []Kind{KindPurchaseBill, KindInvoice, KindShipment, KindClearingJob}
}

// Prefix is the document number prefix.
func (k Kind) Prefix() string { return kinds[k].prefix }

// Table is the storage table for the kind.
func (k Kind) Table() string { return kinds[k].table }

// PartyType is the counterparty type of the kind.
func (k Kind) PartyType() ledger.PartyType { return kinds[k].party }

// Financial reports whether documents of the kind post to the ledger and accept payments.
func (k Kind) Financial() bool { return kinds[k].financial }

// InitialStatus is the domain status assigned at creation.
func (k Kind) InitialStatus() string { return kinds[k].initialStatus }

// ReferenceType maps the kind onto the ledger reference tag.
func (k Kind) ReferenceType() ledger.ReferenceType {
	switch k {
	case KindPurchaseBill:
		return ledger.RefPurchaseBill
	case KindInvoice:
		return ledger.RefInvoice
	case KindShipment:
		return ledger.RefShipment
	default:
		return ledger.RefClearingJob
	}
}

// Line is a priced line item. TaxRate is a percentage.
type Line struct {
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TaxRate     decimal.Decimal `json:"taxRate"`
}

// Totals are derived from the lines and never accepted from input.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"taxAmount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Document is the shared shape of every workflow-bearing document.
type Document struct {
	Totals
	ID              uuid.UUID        `json:"id"`
	Kind            Kind             `json:"kind"`
	Number          string           `json:"number"`
	PartyType       ledger.PartyType `json:"partyType"`
	PartyID         int64            `json:"partyId"`
	Lines           []Line           `json:"lines"`
	Currency        string           `json:"currency"`
	CurrencySymbol  string           `json:"currencySymbol"`
	ExchangeRate    decimal.Decimal  `json:"exchangeRateUsed"`
	TotalUSD        decimal.Decimal  `json:"priceUSD"`
	Status          string           `json:"status"`
	TransactionDate time.Time        `json:"transactionDate"`
	DueDate         *time.Time       `json:"dueDate,omitempty"`
	Reference       string           `json:"reference,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	Attributes      map[string]any   `json:"attributes,omitempty"`
	Workflow        workflow.State   `json:"workflow"`
	CountryID       int64            `json:"countryId"`
	BranchID        int64            `json:"branchId"`
	CreatedBy       int64            `json:"createdBy"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	Version         int64            `json:"version"`
}

// Branch is the numbering and scope view of a branch.
type Branch struct {
	ID        int64
	CountryID int64
	Code      string
}
