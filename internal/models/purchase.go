// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// PurchaseStatus is the server-authoritative status of a ledger entry.
// The client never invents a terminal state locally; it only reflects
// transitions pushed by the server.
type PurchaseStatus string

const (
	// PurchaseStatusConcluded marks a completed transaction.
	PurchaseStatusConcluded PurchaseStatus = "Concluído"
	// PurchaseStatusPending marks a transaction awaiting settlement.
	PurchaseStatusPending PurchaseStatus = "Pendente"
	// PurchaseStatusCancelled marks a cancelled transaction.
	PurchaseStatusCancelled PurchaseStatus = "Cancelado"
)

// PurchaseKind distinguishes the ledger entry types.
type PurchaseKind string

const (
	// PurchaseKindDiamonds is a diamond top-up purchase.
	PurchaseKindDiamonds PurchaseKind = "diamonds"
	// PurchaseKindWithdrawal is an earnings withdrawal request.
	PurchaseKindWithdrawal PurchaseKind = "withdrawal"
	// PurchaseKindFrame is an avatar frame purchase.
	PurchaseKindFrame PurchaseKind = "frame"
)

// PurchaseRecord is one append-or-update entry of the wallet ledger.
// Pushed updates either patch the record matching ID or prepend a new one.
type PurchaseRecord struct {
	ID        string         `json:"id"`
	Kind      PurchaseKind   `json:"kind"`
	Amount    int            `json:"amount"`
	Status    PurchaseStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}
