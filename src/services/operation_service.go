package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/username/bankfolio/backend/src/database"
	"github.com/username/bankfolio/backend/src/fingerprint"
	"github.com/username/bankfolio/backend/src/logger"
	"github.com/username/bankfolio/backend/src/models"
)

// ErrDuplicateEdit is returned when an edit would make an operation identical
// to another one already stored in the same account.
var ErrDuplicateEdit = errors.New("an identical operation already exists in this account")

// OperationUpdate carries the editable fields. Nil pointers mean "unchanged".
// Amount and date arrive as source text and are re-normalized, so the edit
// path enforces the same rules as import.
type OperationUpdate struct {
	OpType            *string                `json:"op_type"`
	TypeDisplay       *string                `json:"type_display"`
	Details           *string                `json:"details"`
	AmountText        *string                `json:"amount_text"`
	DateText          *string                `json:"date_text"`
	DateFormat        fingerprint.DateFormat `json:"date_format"`
	IgnoredFromCharts *bool                  `json:"ignored_from_charts"`
}

type OperationService interface {
	ListOperations(userID int64) ([]models.Operation, error)
	UpdateOperation(userID, operationID int64, upd OperationUpdate) (*models.Operation, error)
	DeleteOperation(userID, operationID int64) error
}

type operationServiceImpl struct {
	reportCache *cache.Cache
}

func NewOperationService(reportCache *cache.Cache) OperationService {
	return &operationServiceImpl{reportCache: reportCache}
}

func (s *operationServiceImpl) ListOperations(userID int64) ([]models.Operation, error) {
	key := fmt.Sprintf(ckOperations, userID)
	if cached, found := s.reportCache.Get(key); found {
		if ops, ok := cached.([]models.Operation); ok {
			return ops, nil
		}
	}

	rows, err := database.DB.Query(`
		SELECT o.id, o.operation_date, o.op_type, o.type_display, o.details, o.amount_in_cents,
			o.hash, o.state, o.ignored_from_charts,
			a.id, a.slug, a.name, a.currency
		FROM operations o
		JOIN bank_accounts a ON a.id = o.bank_account_id
		WHERE a.user_id = ?
		ORDER BY o.operation_date DESC, o.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying operations for user %d: %w", userID, err)
	}
	defer rows.Close()

	var ops []models.Operation
	for rows.Next() {
		var op models.Operation
		var account models.BankAccount
		if err := rows.Scan(
			&op.ID, &op.OperationDate, &op.OpType, &op.TypeDisplay, &op.Details, &op.AmountInCents,
			&op.Hash, &op.State, &op.IgnoredFromCharts,
			&account.ID, &account.Slug, &account.Name, &account.Currency); err != nil {
			return nil, fmt.Errorf("error scanning operation: %w", err)
		}
		op.Amount = float64(op.AmountInCents) / 100
		op.BankAccount = &account
		if op.Tags, err = loadOperationTags(op.ID); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.reportCache.Set(key, ops, DefaultCacheExpiration)
	return ops, nil
}

// UpdateOperation applies an in-place edit and resyncs the fingerprint. The
// edited fields and the recomputed hash are written in a single UPDATE, so a
// reader never observes edited fields with a stale fingerprint.
func (s *operationServiceImpl) UpdateOperation(userID, operationID int64, upd OperationUpdate) (*models.Operation, error) {
	op, err := getOperationForUser(userID, operationID)
	if err != nil {
		return nil, err
	}

	if upd.OpType != nil {
		op.OpType = *upd.OpType
	}
	if upd.TypeDisplay != nil {
		op.TypeDisplay = *upd.TypeDisplay
	}
	if upd.Details != nil {
		op.Details = *upd.Details
	}
	if upd.AmountText != nil {
		cents, err := fingerprint.NormalizeAmount(*upd.AmountText)
		if err != nil {
			return nil, err
		}
		op.AmountInCents = cents
	}
	if upd.DateText != nil {
		format := upd.DateFormat
		if format == "" {
			format = fingerprint.FormatYMDDash
		}
		date, err := fingerprint.NormalizeDate(*upd.DateText, format)
		if err != nil {
			return nil, err
		}
		op.OperationDate = date.ISO()
	}
	if upd.IgnoredFromCharts != nil {
		op.IgnoredFromCharts = *upd.IgnoredFromCharts
	}

	op.Sync()

	_, err = database.DB.Exec(`
		UPDATE operations
		SET operation_date = ?, op_type = ?, type_display = ?, details = ?, amount_in_cents = ?, hash = ?, ignored_from_charts = ?
		WHERE id = ?`,
		op.OperationDate, op.OpType, op.TypeDisplay, op.Details, op.AmountInCents, op.Hash, op.IgnoredFromCharts, op.ID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
			return nil, ErrDuplicateEdit
		}
		return nil, fmt.Errorf("error updating operation %d: %w", operationID, err)
	}

	s.invalidate(userID, op.BankAccount.ID)
	logger.L.Info("Operation updated and resynced", "operationID", op.ID, "hash", op.Hash)
	return op, nil
}

func (s *operationServiceImpl) DeleteOperation(userID, operationID int64) error {
	op, err := getOperationForUser(userID, operationID)
	if err != nil {
		return err
	}
	if _, err := database.DB.Exec(`DELETE FROM operations WHERE id = ?`, operationID); err != nil {
		return fmt.Errorf("error deleting operation %d: %w", operationID, err)
	}
	s.invalidate(userID, op.BankAccount.ID)
	return nil
}

func (s *operationServiceImpl) invalidate(userID, accountID int64) {
	s.reportCache.Delete(fmt.Sprintf(ckOperations, userID))
	s.reportCache.Delete(fmt.Sprintf(ckKnownHashes, accountID))
}

func getOperationForUser(userID, operationID int64) (*models.Operation, error) {
	var op models.Operation
	var account models.BankAccount
	err := database.DB.QueryRow(`
		SELECT o.id, o.operation_date, o.op_type, o.type_display, o.details, o.amount_in_cents,
			o.hash, o.state, o.ignored_from_charts,
			a.id, a.slug, a.name, a.currency
		FROM operations o
		JOIN bank_accounts a ON a.id = o.bank_account_id
		WHERE o.id = ? AND a.user_id = ?`, operationID, userID).
		Scan(&op.ID, &op.OperationDate, &op.OpType, &op.TypeDisplay, &op.Details, &op.AmountInCents,
			&op.Hash, &op.State, &op.IgnoredFromCharts,
			&account.ID, &account.Slug, &account.Name, &account.Currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrOperationNotFound, operationID)
		}
		return nil, fmt.Errorf("error loading operation %d: %w", operationID, err)
	}
	op.Amount = float64(op.AmountInCents) / 100
	op.BankAccount = &account
	return &op, nil
}

func loadOperationTags(operationID int64) ([]models.Tag, error) {
	rows, err := database.DB.Query(`
		SELECT t.id, t.name
		FROM tags t
		JOIN operation_tag ot ON ot.tag_id = t.id
		WHERE ot.operation_id = ?
		ORDER BY t.name`, operationID)
	if err != nil {
		return nil, fmt.Errorf("error loading tags for operation %d: %w", operationID, err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("error scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
