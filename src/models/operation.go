package models

import (
	"fmt"
	"time"

	"github.com/username/bankfolio/backend/src/fingerprint"
)

type OperationState string

const (
	StateOK            OperationState = "ok"
	StatePendingTriage OperationState = "pending_triage"
)

// Operation is one bank-account transaction. Identity fields (date, type,
// display label, details, amount) are set at import time and only change
// through an explicit edit, after which RecomputeHash must run. The hash is
// the duplicate-detection key; two operations in the same account never share
// one unless they are the same real-world transaction or flagged for triage.
type Operation struct {
	ID                int64          `json:"id"`
	OperationDate     string         `json:"operation_date"` // canonical YYYY-MM-DD
	OpType            string         `json:"op_type"`
	TypeDisplay       string         `json:"type_display"`
	Details           string         `json:"details"`
	AmountInCents     int64          `json:"amount_in_cents"`
	Amount            float64        `json:"amount"` // derived, display only, never hashed
	Hash              string         `json:"hash"`
	State             OperationState `json:"state"`
	IgnoredFromCharts bool           `json:"ignored_from_charts"`
	BankAccount       *BankAccount   `json:"bank_account,omitempty"`
	Tags              []Tag          `json:"tags"`
}

// NewOperation builds an operation from normalized fields and computes its
// fingerprint immediately. The initial state is decided by the importer.
func NewOperation(account *BankAccount, operationDate, opType, typeDisplay, details string, amountInCents int64, state OperationState) *Operation {
	op := &Operation{
		OperationDate: operationDate,
		OpType:        opType,
		TypeDisplay:   typeDisplay,
		Details:       details,
		AmountInCents: amountInCents,
		Amount:        float64(amountInCents) / 100,
		State:         state,
		BankAccount:   account,
	}
	op.RecomputeHash()
	return op
}

// RecomputeHash overwrites the fingerprint from the operation's current field
// values. It must be called after any in-place edit of a contributing field.
// Idempotent; callers must not read the hash concurrently with a recompute on
// the same operation.
func (o *Operation) RecomputeHash() {
	o.Hash = fingerprint.Compute(
		o.OpType,
		o.BankAccount.Slug,
		o.TypeDisplay,
		o.Details,
		o.OperationDate,
		o.AmountInCents,
	)
}

// Sync refreshes derived state after an edit: the display amount and the
// fingerprint.
func (o *Operation) Sync() {
	o.Amount = float64(o.AmountInCents) / 100
	o.RecomputeHash()
}

// DateDisplay renders the stored canonical date for the UI. Display values
// never participate in fingerprinting.
func (o *Operation) DateDisplay() string {
	t, err := time.Parse("2006-01-02", o.OperationDate)
	if err != nil {
		return o.OperationDate
	}
	return t.Format("02/01/2006")
}

// AmountDisplay renders the major-unit amount with the account currency.
func (o *Operation) AmountDisplay() string {
	currency := ""
	if o.BankAccount != nil {
		currency = o.BankAccount.Currency
	}
	return fmt.Sprintf("%.2f %s", o.Amount, currency)
}
