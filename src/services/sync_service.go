package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/bankfolio/backend/src/database"
	"github.com/username/bankfolio/backend/src/fingerprint"
	"github.com/username/bankfolio/backend/src/logger"
	"github.com/username/bankfolio/backend/src/models"
)

type syncServiceImpl struct {
	reportCache *cache.Cache
}

func NewSyncService(reportCache *cache.Cache) SyncService {
	return &syncServiceImpl{reportCache: reportCache}
}

// Sync runs the maintenance pass over a user's operations: apply tag rules,
// recompute every fingerprint from current field values, and flag operations
// that now share a fingerprint within one account as duplicate candidates.
func (s *syncServiceImpl) Sync(userID int64) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{}

	rulesApplied, err := s.applyTagRules(userID)
	if err != nil {
		return nil, err
	}
	result.RulesApplied = rulesApplied

	recomputed, refreshed, err := s.refreshHashes(userID)
	if err != nil {
		return nil, err
	}
	result.HashesRecomputed = recomputed
	result.DuplicatesRefreshed = refreshed

	s.reportCache.Delete(fmt.Sprintf(ckOperations, userID))
	s.reportCache.Flush() // account hash sets may be stale after rehash

	logger.L.Info("Sync completed",
		"userID", userID,
		"rulesApplied", result.RulesApplied,
		"hashesRecomputed", result.HashesRecomputed,
		"duplicatesRefreshed", result.DuplicatesRefreshed,
		"duration", time.Since(start))
	return result, nil
}

// applyTagRules attaches tags to operations whose details match a rule.
// Existing associations are preserved; only new attachments are counted.
func (s *syncServiceImpl) applyTagRules(userID int64) (int, error) {
	rules, err := loadTagRules(userID)
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, nil
	}

	rows, err := database.DB.Query(`
		SELECT o.id, o.details
		FROM operations o
		JOIN bank_accounts a ON a.id = o.bank_account_id
		WHERE a.user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("error loading operations for tag rules: %w", err)
	}
	defer rows.Close()

	type opRow struct {
		id      int64
		details string
	}
	var ops []opRow
	for rows.Next() {
		var r opRow
		if err := rows.Scan(&r.id, &r.details); err != nil {
			return 0, fmt.Errorf("error scanning operation: %w", err)
		}
		ops = append(ops, r)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	applied := 0
	for _, rule := range rules {
		for _, op := range ops {
			if !rule.Matches(op.details) {
				continue
			}
			for _, tagID := range rule.TagIDs {
				res, err := database.DB.Exec(`
					INSERT OR IGNORE INTO operation_tag (operation_id, tag_id) VALUES (?, ?)`, op.id, tagID)
				if err != nil {
					return applied, fmt.Errorf("error applying tag rule %d: %w", rule.ID, err)
				}
				if n, _ := res.RowsAffected(); n > 0 {
					applied++
				}
			}
		}
	}
	return applied, nil
}

type syncOp struct {
	id            int64
	accountID     int64
	accountSlug   string
	operationDate string
	opType        string
	typeDisplay   string
	details       string
	amountInCents int64
	hash          string
}

// refreshHashes recomputes every operation fingerprint from current field
// values. Singleton fingerprints are written back when they changed; groups
// that collapse onto one fingerprint within an account hold exactly one copy
// of it, and every member but the oldest is flagged pending_triage for human
// review. All writes happen in one transaction, in two phases: changing rows
// are first moved to per-row placeholder hashes, then given their final
// values. Two rows whose stale stored hashes are each other's recomputed
// fingerprints would otherwise trip UNIQUE(bank_account_id, hash) mid-pass,
// leaving the table half rewritten and every retry failing the same way.
func (s *syncServiceImpl) refreshHashes(userID int64) (recomputed, refreshed int, err error) {
	rows, err := database.DB.Query(`
		SELECT o.id, o.bank_account_id, a.slug, o.operation_date, o.op_type, o.type_display, o.details, o.amount_in_cents, o.hash
		FROM operations o
		JOIN bank_accounts a ON a.id = o.bank_account_id
		WHERE a.user_id = ?`, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("error loading operations for rehash: %w", err)
	}
	defer rows.Close()

	var ops []syncOp
	for rows.Next() {
		var o syncOp
		if err := rows.Scan(&o.id, &o.accountID, &o.accountSlug, &o.operationDate, &o.opType, &o.typeDisplay, &o.details, &o.amountInCents, &o.hash); err != nil {
			return 0, 0, fmt.Errorf("error scanning operation: %w", err)
		}
		ops = append(ops, o)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	type groupKey struct {
		accountID int64
		hash      string
	}
	groups := make(map[groupKey][]syncOp)
	newHashes := make(map[int64]string, len(ops))
	for _, o := range ops {
		h := fingerprint.Compute(o.opType, o.accountSlug, o.typeDisplay, o.details, o.operationDate, o.amountInCents)
		newHashes[o.id] = h
		groups[groupKey{o.accountID, h}] = append(groups[groupKey{o.accountID, h}], o)
	}

	// Plan all writes before touching the table. kept records every (account,
	// hash) pair that stays stored on a row this pass does not rewrite; a
	// planned final value must never land on one of those.
	type hashUpdate struct {
		id        int64
		accountID int64
		hash      string
	}
	var updates []hashUpdate
	var toFlag []int64
	kept := make(map[groupKey]bool)

	for key, members := range groups {
		sort.Slice(members, func(i, j int) bool { return members[i].id < members[j].id })

		if len(members) == 1 {
			o := members[0]
			if newHashes[o.id] != o.hash {
				updates = append(updates, hashUpdate{o.id, o.accountID, newHashes[o.id]})
			} else {
				kept[key] = true
			}
			continue
		}

		// Exactly one member of a collapsed group may store the shared
		// fingerprint: the member that already does when there is one, the
		// oldest otherwise. The rest keep their stored hashes. The oldest
		// member stays ok regardless; the others are duplicate candidates.
		holder := -1
		for i, m := range members {
			if m.hash == key.hash {
				holder = i
				break
			}
		}
		if holder == -1 {
			holder = 0
			updates = append(updates, hashUpdate{members[0].id, key.accountID, key.hash})
		} else {
			kept[key] = true
		}
		for i, m := range members {
			if i != holder {
				kept[groupKey{m.accountID, m.hash}] = true
			}
			if i > 0 {
				toFlag = append(toFlag, m.id)
			}
		}
		logger.L.Debug("Fingerprint collision group flagged for triage",
			"accountID", key.accountID, "members", len(members))
	}

	// A final value already stored on a row that keeps its hash would violate
	// the unique index no matter the write order. Leave such rows stale; a
	// later pass picks them up once the conflicting row is resolved.
	applicable := updates[:0]
	for _, u := range updates {
		if kept[groupKey{u.accountID, u.hash}] {
			logger.L.Warn("Deferring hash refresh, target fingerprint still stored on another operation",
				"operationID", u.id, "accountID", u.accountID)
			continue
		}
		applicable = append(applicable, u)
	}

	tx, err := database.DB.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("error beginning rehash transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range applicable {
		placeholder := "rehash:" + strconv.FormatInt(u.id, 10)
		if _, err := tx.Exec(`UPDATE operations SET hash = ? WHERE id = ?`, placeholder, u.id); err != nil {
			return 0, 0, fmt.Errorf("error vacating hash for operation %d: %w", u.id, err)
		}
	}
	for _, u := range applicable {
		if _, err := tx.Exec(`UPDATE operations SET hash = ? WHERE id = ?`, u.hash, u.id); err != nil {
			return 0, 0, fmt.Errorf("error updating hash for operation %d: %w", u.id, err)
		}
		recomputed++
	}
	for _, id := range toFlag {
		res, err := tx.Exec(`
			UPDATE operations SET state = ? WHERE id = ? AND state != ?`,
			models.StatePendingTriage, id, models.StatePendingTriage)
		if err != nil {
			return 0, 0, fmt.Errorf("error flagging duplicate operation %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			refreshed++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("error committing rehash: %w", err)
	}
	return recomputed, refreshed, nil
}

// ResolveTriage moves one operation from pending_triage back to ok once a
// human (or an automated rule) has resolved the ambiguity.
func (s *syncServiceImpl) ResolveTriage(userID, operationID int64) error {
	res, err := database.DB.Exec(`
		UPDATE operations SET state = ?
		WHERE id = ? AND state = ?
		  AND bank_account_id IN (SELECT id FROM bank_accounts WHERE user_id = ?)`,
		models.StateOK, operationID, models.StatePendingTriage, userID)
	if err != nil {
		return fmt.Errorf("error resolving triage for operation %d: %w", operationID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", ErrOperationNotFound, operationID)
	}
	s.reportCache.Delete(fmt.Sprintf(ckOperations, userID))
	return nil
}

func loadTagRules(userID int64) ([]models.TagRule, error) {
	rows, err := database.DB.Query(`
		SELECT r.id, r.matching_pattern, r.is_regex,
			IFNULL((SELECT GROUP_CONCAT(tag_id) FROM tag_rule_tag WHERE tag_rule_id = r.id), '')
		FROM tag_rules r
		WHERE r.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading tag rules: %w", err)
	}
	defer rows.Close()

	var rules []models.TagRule
	for rows.Next() {
		var rule models.TagRule
		var tagIDs string
		if err := rows.Scan(&rule.ID, &rule.MatchingPattern, &rule.IsRegex, &tagIDs); err != nil {
			return nil, fmt.Errorf("error scanning tag rule: %w", err)
		}
		rule.TagIDs = parseIDList(tagIDs)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// parseIDList splits a GROUP_CONCAT id list, ignoring anything non-numeric.
func parseIDList(s string) []int64 {
	if s == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
