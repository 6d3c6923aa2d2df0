package services

import (
	"errors"
	"io"

	"github.com/username/bankfolio/backend/src/fingerprint"
)

var (
	ErrParsingFailed     = errors.New("parsing failed")
	ErrAccountNotFound   = errors.New("bank account not found")
	ErrOperationNotFound = errors.New("operation not found")
)

// RowError records one statement row that failed strict normalization. The
// message is the normalization error verbatim; it is written for end users.
type RowError struct {
	RowIndex int    `json:"row_index"`
	Details  string `json:"details"`
	Message  string `json:"message"`
}

type ImportOptions struct {
	UserID      int64
	AccountSlug string
	Source      string
	DateFormat  fingerprint.DateFormat
	// BestEffort imports rows that fail normalization anyway, with
	// best-effort field values and state pending_triage, instead of
	// rejecting them.
	BestEffort bool
}

// ImportResult summarizes one statement import. A failed row never aborts the
// batch; it lands in Rejected or Triaged depending on BestEffort.
type ImportResult struct {
	BatchID       string     `json:"batch_id"`
	Imported      int        `json:"imported"`
	Duplicates    int        `json:"duplicates"`
	PendingTriage int        `json:"pending_triage"`
	Rejected      []RowError `json:"rejected,omitempty"`
	Triaged       []RowError `json:"triaged,omitempty"`
}

// ImportService ingests statement exports idempotently: re-importing an
// overlapping file only creates operations for fingerprints not yet seen in
// the target account.
type ImportService interface {
	ProcessImport(fileReader io.Reader, opts ImportOptions) (*ImportResult, error)
}

// SyncResult mirrors what the sync endpoint reports: tag rules applied,
// fingerprints recomputed, and operations flagged as duplicate candidates.
type SyncResult struct {
	RulesApplied        int `json:"rules_applied"`
	HashesRecomputed    int `json:"hashes_recomputed"`
	DuplicatesRefreshed int `json:"duplicates_refreshed"`
}

type SyncService interface {
	Sync(userID int64) (*SyncResult, error)
	ResolveTriage(userID, operationID int64) error
}
