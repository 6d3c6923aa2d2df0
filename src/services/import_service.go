package services

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/bankfolio/backend/src/config"
	"github.com/username/bankfolio/backend/src/database"
	"github.com/username/bankfolio/backend/src/fingerprint"
	"github.com/username/bankfolio/backend/src/logger"
	"github.com/username/bankfolio/backend/src/models"
	"github.com/username/bankfolio/backend/src/parsers"
)

const (
	ckKnownHashes  = "known_hashes_account_%d"
	ckOperations   = "operations_user_%d"
	ckImportResult = "latest_import_result_user_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type importServiceImpl struct {
	reportCache  *cache.Cache
	emailService EmailService

	// accountLocks serializes the lookup/insert step per account. Hashing
	// is parallel across rows; deciding new-vs-duplicate against the store
	// must not race with a concurrent import into the same account.
	accountLocks sync.Map
}

func NewImportService(reportCache *cache.Cache, emailService EmailService) ImportService {
	return &importServiceImpl{
		reportCache:  reportCache,
		emailService: emailService,
	}
}

// rowOutcome is the result of normalizing and fingerprinting one raw row.
type rowOutcome struct {
	op       *models.Operation
	rejected *RowError
}

func (s *importServiceImpl) ProcessImport(fileReader io.Reader, opts ImportOptions) (*ImportResult, error) {
	start := time.Now()
	batchID := uuid.NewString()
	logger.L.Info("ProcessImport START", "userID", opts.UserID, "accountSlug", opts.AccountSlug, "source", opts.Source, "batchID", batchID)

	account, err := getAccountBySlug(opts.UserID, opts.AccountSlug)
	if err != nil {
		return nil, err
	}

	parser, err := parsers.GetParser(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	rows, err := parser.Parse(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	// Normalize and fingerprint every row concurrently. Each row writes
	// only its own slot, so no locking is needed here.
	outcomes := make([]rowOutcome, len(rows))
	var wg sync.WaitGroup
	for i, row := range rows {
		wg.Add(1)
		go func(i int, row models.RawOperationRow) {
			defer wg.Done()
			outcomes[i] = s.normalizeRow(account, row, i, opts)
		}(i, row)
	}
	wg.Wait()

	result := &ImportResult{BatchID: batchID}
	for _, out := range outcomes {
		if out.rejected != nil && out.op == nil {
			result.Rejected = append(result.Rejected, *out.rejected)
		}
	}

	// Serialize lookup/insert per account so two concurrent imports cannot
	// both treat the same new fingerprint as unseen.
	lock := s.lockForAccount(account.ID)
	lock.Lock()
	defer lock.Unlock()

	known, err := s.knownHashes(account.ID)
	if err != nil {
		return nil, err
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
		INSERT INTO operations (bank_account_id, operation_date, op_type, type_display, details, amount_in_cents, hash, state, import_batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, out := range outcomes {
		if out.op == nil {
			continue
		}
		op := out.op
		if _, seen := known[op.Hash]; seen {
			result.Duplicates++
			logger.L.Debug("Skipping duplicate operation on import", "accountID", account.ID, "hash", op.Hash)
			continue
		}
		if _, err := stmt.Exec(account.ID, op.OperationDate, op.OpType, op.TypeDisplay, op.Details, op.AmountInCents, op.Hash, op.State, batchID); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				result.Duplicates++
				continue
			}
			return nil, fmt.Errorf("error inserting operation (row details: %s): %w", op.Details, err)
		}
		known[op.Hash] = struct{}{}
		result.Imported++
		if op.State == models.StatePendingTriage {
			result.PendingTriage++
			if out.rejected != nil {
				result.Triaged = append(result.Triaged, *out.rejected)
			}
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing operations: %w", err)
	}

	s.reportCache.Set(fmt.Sprintf(ckKnownHashes, account.ID), known, DefaultCacheExpiration)
	s.reportCache.Delete(fmt.Sprintf(ckOperations, opts.UserID))
	s.reportCache.Set(fmt.Sprintf(ckImportResult, opts.UserID), result, DefaultCacheExpiration)

	s.notifyTriage(result)

	logger.L.Info("ProcessImport END",
		"userID", opts.UserID,
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"pendingTriage", result.PendingTriage,
		"rejected", len(result.Rejected),
		"duration", time.Since(start))
	return result, nil
}

// normalizeRow converts one raw row into an operation, or a rejection. In
// best-effort mode a row that fails normalization is still imported, with the
// raw date text and a zero amount, flagged pending_triage for human review.
func (s *importServiceImpl) normalizeRow(account *models.BankAccount, row models.RawOperationRow, idx int, opts ImportOptions) rowOutcome {
	var rowErr *RowError

	amountInCents, err := fingerprint.NormalizeAmount(row.AmountText)
	if err != nil {
		rowErr = &RowError{RowIndex: idx, Details: row.Details, Message: err.Error()}
	}

	operationDate := row.DateText
	if rowErr == nil {
		date, err := fingerprint.NormalizeDate(row.DateText, opts.DateFormat)
		if err != nil {
			rowErr = &RowError{RowIndex: idx, Details: row.Details, Message: err.Error()}
		} else {
			operationDate = date.ISO()
		}
	}

	if rowErr != nil {
		if !opts.BestEffort {
			return rowOutcome{rejected: rowErr}
		}
		op := models.NewOperation(account, operationDate, row.OpType, row.TypeDisplay, row.Details, amountInCents, models.StatePendingTriage)
		return rowOutcome{op: op, rejected: rowErr}
	}

	op := models.NewOperation(account, operationDate, row.OpType, row.TypeDisplay, row.Details, amountInCents, models.StateOK)
	return rowOutcome{op: op}
}

func (s *importServiceImpl) lockForAccount(accountID int64) *sync.Mutex {
	lock, _ := s.accountLocks.LoadOrStore(accountID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// knownHashes returns the set of fingerprints already stored for an account,
// from cache when warm.
func (s *importServiceImpl) knownHashes(accountID int64) (map[string]struct{}, error) {
	key := fmt.Sprintf(ckKnownHashes, accountID)
	if cached, found := s.reportCache.Get(key); found {
		if known, ok := cached.(map[string]struct{}); ok {
			return known, nil
		}
	}

	rows, err := database.DB.Query(`SELECT hash FROM operations WHERE bank_account_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("error loading known hashes for account %d: %w", accountID, err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("error scanning hash: %w", err)
		}
		known[h] = struct{}{}
	}
	return known, rows.Err()
}

func (s *importServiceImpl) notifyTriage(result *ImportResult) {
	if result.PendingTriage == 0 || s.emailService == nil {
		return
	}
	if config.Cfg == nil || config.Cfg.TriageNotifyEmail == "" {
		return
	}
	if err := s.emailService.SendTriageDigest(config.Cfg.TriageNotifyEmail, result.PendingTriage, result.BatchID); err != nil {
		logger.L.Warn("Failed to send triage digest email", "error", err, "batchID", result.BatchID)
	}
}

func getAccountBySlug(userID int64, slug string) (*models.BankAccount, error) {
	account := &models.BankAccount{}
	err := database.DB.QueryRow(`
		SELECT id, slug, name, currency FROM bank_accounts WHERE user_id = ? AND slug = ?`, userID, slug).
		Scan(&account.ID, &account.Slug, &account.Name, &account.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, slug)
	}
	return account, nil
}
