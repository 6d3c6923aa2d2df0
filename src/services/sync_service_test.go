package services

import (
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/bankfolio/backend/src/database"
	"github.com/username/bankfolio/backend/src/fingerprint"
	"github.com/username/bankfolio/backend/src/models"
)

func newTestSyncService() SyncService {
	return NewSyncService(cache.New(time.Minute, time.Minute))
}

func insertOperation(t *testing.T, details string, cents int64, date string) int64 {
	t.Helper()
	hash := fingerprint.Compute("debit", "acct1", "Misc", details, date, cents)
	res, err := database.DB.Exec(`
		INSERT INTO operations (bank_account_id, operation_date, op_type, type_display, details, amount_in_cents, hash, state)
		VALUES (1, ?, 'debit', 'Misc', ?, ?, ?, 'ok')`, date, details, cents, hash)
	if err != nil {
		t.Fatalf("insert operation: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func TestSync_AppliesTagRules(t *testing.T) {
	setupTestDB(t)
	svc := newTestSyncService()

	insertOperation(t, "SUPERMARKET PARIS", 4530, "2024-03-12")
	insertOperation(t, "WIRE TRANSFER", 10000, "2024-03-13")

	if _, err := database.DB.Exec(`INSERT INTO tags (id, user_id, name) VALUES (1, 1, 'food')`); err != nil {
		t.Fatal(err)
	}
	if _, err := database.DB.Exec(`
		INSERT INTO tag_rules (id, user_id, matching_pattern, is_regex) VALUES (1, 1, 'supermarket', 0)`); err != nil {
		t.Fatal(err)
	}
	if _, err := database.DB.Exec(`INSERT INTO tag_rule_tag (tag_rule_id, tag_id) VALUES (1, 1)`); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Sync(1)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.RulesApplied != 1 {
		t.Errorf("RulesApplied = %d, want 1", result.RulesApplied)
	}

	// Second sync is idempotent: the association already exists.
	result, err = svc.Sync(1)
	if err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}
	if result.RulesApplied != 0 {
		t.Errorf("second Sync RulesApplied = %d, want 0", result.RulesApplied)
	}
}

func TestSync_RecomputesEditedHashes(t *testing.T) {
	setupTestDB(t)
	svc := newTestSyncService()

	id := insertOperation(t, "SUPERMARKET", 4530, "2024-03-12")

	// Simulate an edit that bypassed resync, leaving a stale fingerprint.
	if _, err := database.DB.Exec(`UPDATE operations SET details = 'SUPERMARKET PARIS' WHERE id = ?`, id); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Sync(1)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.HashesRecomputed != 1 {
		t.Errorf("HashesRecomputed = %d, want 1", result.HashesRecomputed)
	}

	var hash string
	if err := database.DB.QueryRow(`SELECT hash FROM operations WHERE id = ?`, id).Scan(&hash); err != nil {
		t.Fatal(err)
	}
	want := fingerprint.Compute("debit", "acct1", "Misc", "SUPERMARKET PARIS", "2024-03-12", 4530)
	if hash != want {
		t.Errorf("stored hash was not refreshed from current fields")
	}
}

func TestSync_RecomputesSwappedStaleHashes(t *testing.T) {
	setupTestDB(t)
	svc := newTestSyncService()

	a := insertOperation(t, "COFFEE", 300, "2024-03-12")
	b := insertOperation(t, "BOOKS", 1200, "2024-03-12")
	hashA := fingerprint.Compute("debit", "acct1", "Misc", "COFFEE", "2024-03-12", 300)
	hashB := fingerprint.Compute("debit", "acct1", "Misc", "BOOKS", "2024-03-12", 1200)

	// Two stale edits left each row storing the other's fingerprint. Naive
	// one-at-a-time rewrites can never repair this: either update collides
	// with the hash still stored on the other row.
	if _, err := database.DB.Exec(`UPDATE operations SET hash = 'stale' WHERE id = ?`, a); err != nil {
		t.Fatal(err)
	}
	if _, err := database.DB.Exec(`UPDATE operations SET hash = ? WHERE id = ?`, hashA, b); err != nil {
		t.Fatal(err)
	}
	if _, err := database.DB.Exec(`UPDATE operations SET hash = ? WHERE id = ?`, hashB, a); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Sync(1)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.HashesRecomputed != 2 {
		t.Errorf("HashesRecomputed = %d, want 2", result.HashesRecomputed)
	}

	var got string
	if err := database.DB.QueryRow(`SELECT hash FROM operations WHERE id = ?`, a).Scan(&got); err != nil {
		t.Fatal(err)
	}
	if got != hashA {
		t.Errorf("operation %d hash = %q, want its own fingerprint", a, got)
	}
	if err := database.DB.QueryRow(`SELECT hash FROM operations WHERE id = ?`, b).Scan(&got); err != nil {
		t.Fatal(err)
	}
	if got != hashB {
		t.Errorf("operation %d hash = %q, want its own fingerprint", b, got)
	}
}

func TestSync_FlagsCollapsedDuplicates(t *testing.T) {
	setupTestDB(t)
	svc := newTestSyncService()

	first := insertOperation(t, "SUPERMARKET", 4530, "2024-03-12")
	second := insertOperation(t, "SUPERMARKET X", 4530, "2024-03-12")

	// An edit makes the second operation field-identical to the first; its
	// stored hash is now stale and would collide on recompute.
	if _, err := database.DB.Exec(`UPDATE operations SET details = 'SUPERMARKET' WHERE id = ?`, second); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Sync(1)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.DuplicatesRefreshed != 1 {
		t.Errorf("DuplicatesRefreshed = %d, want 1", result.DuplicatesRefreshed)
	}

	var state string
	if err := database.DB.QueryRow(`SELECT state FROM operations WHERE id = ?`, second).Scan(&state); err != nil {
		t.Fatal(err)
	}
	if models.OperationState(state) != models.StatePendingTriage {
		t.Errorf("duplicate candidate state = %q, want pending_triage", state)
	}

	// The oldest member stays authoritative.
	if err := database.DB.QueryRow(`SELECT state FROM operations WHERE id = ?`, first).Scan(&state); err != nil {
		t.Fatal(err)
	}
	if models.OperationState(state) != models.StateOK {
		t.Errorf("canonical operation state = %q, want ok", state)
	}
}

func TestResolveTriage(t *testing.T) {
	setupTestDB(t)
	svc := newTestSyncService()

	id := insertOperation(t, "NEEDS REVIEW", 100, "2024-03-12")
	if _, err := database.DB.Exec(`UPDATE operations SET state = 'pending_triage' WHERE id = ?`, id); err != nil {
		t.Fatal(err)
	}

	if err := svc.ResolveTriage(1, id); err != nil {
		t.Fatalf("ResolveTriage failed: %v", err)
	}

	var state string
	if err := database.DB.QueryRow(`SELECT state FROM operations WHERE id = ?`, id).Scan(&state); err != nil {
		t.Fatal(err)
	}
	if models.OperationState(state) != models.StateOK {
		t.Errorf("state = %q, want ok", state)
	}

	// Resolving an already-ok operation reports not found.
	if err := svc.ResolveTriage(1, id); err == nil {
		t.Error("expected error resolving an operation that is not pending")
	}

	// A different user cannot resolve someone else's operation.
	if _, err := database.DB.Exec(`UPDATE operations SET state = 'pending_triage' WHERE id = ?`, id); err != nil {
		t.Fatal(err)
	}
	if err := svc.ResolveTriage(2, id); err == nil {
		t.Error("expected error resolving another user's operation")
	}
}
