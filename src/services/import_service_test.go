package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/bankfolio/backend/src/config"
	"github.com/username/bankfolio/backend/src/database"
	"github.com/username/bankfolio/backend/src/fingerprint"
	"github.com/username/bankfolio/backend/src/logger"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	logger.InitLogger("error")
	// A named shared-cache in-memory database keeps the schema visible
	// across the connection pool for the duration of one test.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	database.InitDB(dsn)
	t.Cleanup(func() { database.DB.Close() })

	if _, err := database.DB.Exec(`INSERT INTO users (id, username, password) VALUES (1, 'tester', 'x')`); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := database.DB.Exec(`
		INSERT INTO bank_accounts (id, user_id, slug, name, currency)
		VALUES (1, 1, 'acct1', 'Checking', 'EUR')`); err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func newTestImportService() (ImportService, *MockEmailService, *cache.Cache) {
	c := cache.New(time.Minute, time.Minute)
	email := &MockEmailService{}
	return NewImportService(c, email), email, c
}

const statementA = `Date,Type,Label,Description,Amount
12/03/2024,debit,Groceries,SUPERMARKET,45.30
13/03/2024,credit,Salary,ACME CORP,2500.00
`

func TestProcessImport_Idempotent(t *testing.T) {
	setupTestDB(t)
	svc, _, _ := newTestImportService()

	opts := ImportOptions{
		UserID:      1,
		AccountSlug: "acct1",
		Source:      "generic",
		DateFormat:  fingerprint.FormatDMYSlash,
	}

	first, err := svc.ProcessImport(strings.NewReader(statementA), opts)
	if err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	if first.Imported != 2 || first.Duplicates != 0 {
		t.Fatalf("first import = %+v, want 2 imported, 0 duplicates", first)
	}

	// Re-importing the same statement, as exported a second time, must be
	// a no-op: every row is recognized by fingerprint.
	second, err := svc.ProcessImport(strings.NewReader(statementA), opts)
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if second.Imported != 0 || second.Duplicates != 2 {
		t.Fatalf("second import = %+v, want 0 imported, 2 duplicates", second)
	}

	var count int
	if err := database.DB.QueryRow(`SELECT COUNT(*) FROM operations`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("store holds %d operations, want 2", count)
	}
}

// The same real-world transactions re-exported with a different date format
// must still dedup, because the stored date is canonical.
func TestProcessImport_CrossFormatDedup(t *testing.T) {
	setupTestDB(t)
	svc, _, _ := newTestImportService()

	base := ImportOptions{UserID: 1, AccountSlug: "acct1", Source: "generic"}

	optsDMY := base
	optsDMY.DateFormat = fingerprint.FormatDMYSlash
	if _, err := svc.ProcessImport(strings.NewReader(statementA), optsDMY); err != nil {
		t.Fatalf("first import failed: %v", err)
	}

	reExport := `Date,Type,Label,Description,Amount
2024-03-12,debit,Groceries,SUPERMARKET,45.30
2024-03-13,credit,Salary,ACME CORP,2500.00
`
	optsYMD := base
	optsYMD.DateFormat = fingerprint.FormatYMDDash
	result, err := svc.ProcessImport(strings.NewReader(reExport), optsYMD)
	if err != nil {
		t.Fatalf("re-export import failed: %v", err)
	}
	if result.Imported != 0 || result.Duplicates != 2 {
		t.Errorf("re-export = %+v, want 0 imported, 2 duplicates", result)
	}
}

func TestProcessImport_RejectsBadRows(t *testing.T) {
	setupTestDB(t)
	svc, _, _ := newTestImportService()

	statement := `Date,Type,Label,Description,Amount
12/03/2024,debit,Groceries,SUPERMARKET,45.30
31/02/2024,debit,Groceries,IMPOSSIBLE DATE,10.00
14/03/2024,debit,Misc,BAD AMOUNT,abc
15/03/2024,debit,Misc,FINE,12.00
`
	result, err := svc.ProcessImport(strings.NewReader(statement), ImportOptions{
		UserID: 1, AccountSlug: "acct1", Source: "generic", DateFormat: fingerprint.FormatDMYSlash,
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("imported = %d, want 2 (bad rows must not abort the batch)", result.Imported)
	}
	if len(result.Rejected) != 2 {
		t.Fatalf("rejected = %d rows, want 2", len(result.Rejected))
	}
	for _, re := range result.Rejected {
		if re.Message == "" {
			t.Error("rejected row carries no message")
		}
	}
}

func TestProcessImport_BestEffortTriage(t *testing.T) {
	setupTestDB(t)
	svc, _, _ := newTestImportService()

	statement := `Date,Type,Label,Description,Amount
12/03/2024,debit,Groceries,SUPERMARKET,45.30
31/02/2024,debit,Groceries,IMPOSSIBLE DATE,10.00
`
	result, err := svc.ProcessImport(strings.NewReader(statement), ImportOptions{
		UserID: 1, AccountSlug: "acct1", Source: "generic",
		DateFormat: fingerprint.FormatDMYSlash, BestEffort: true,
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("imported = %d, want 2", result.Imported)
	}
	if result.PendingTriage != 1 {
		t.Errorf("pendingTriage = %d, want 1", result.PendingTriage)
	}
	if len(result.Rejected) != 0 {
		t.Errorf("rejected = %d, want 0 in best-effort mode", len(result.Rejected))
	}

	var state string
	if err := database.DB.QueryRow(`SELECT state FROM operations WHERE details = 'IMPOSSIBLE DATE'`).Scan(&state); err != nil {
		t.Fatal(err)
	}
	if state != "pending_triage" {
		t.Errorf("best-effort row state = %q, want pending_triage", state)
	}
}

func TestProcessImport_SendsTriageDigest(t *testing.T) {
	setupTestDB(t)
	svc, email, _ := newTestImportService()

	prev := config.Cfg
	config.Cfg = &config.AppConfig{TriageNotifyEmail: "ops@example.com"}
	t.Cleanup(func() { config.Cfg = prev })

	statement := `Date,Type,Label,Description,Amount
31/02/2024,debit,Groceries,IMPOSSIBLE DATE,10.00
`
	result, err := svc.ProcessImport(strings.NewReader(statement), ImportOptions{
		UserID: 1, AccountSlug: "acct1", Source: "generic",
		DateFormat: fingerprint.FormatDMYSlash, BestEffort: true,
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.PendingTriage != 1 {
		t.Fatalf("pendingTriage = %d, want 1", result.PendingTriage)
	}
	if len(email.Sent) != 1 || email.Sent[0] != "ops@example.com" {
		t.Errorf("digest recipients = %v, want [ops@example.com]", email.Sent)
	}
}

// An import with nothing pending must not email anyone.
func TestProcessImport_NoDigestWithoutTriage(t *testing.T) {
	setupTestDB(t)
	svc, email, _ := newTestImportService()

	prev := config.Cfg
	config.Cfg = &config.AppConfig{TriageNotifyEmail: "ops@example.com"}
	t.Cleanup(func() { config.Cfg = prev })

	if _, err := svc.ProcessImport(strings.NewReader(statementA), ImportOptions{
		UserID: 1, AccountSlug: "acct1", Source: "generic", DateFormat: fingerprint.FormatDMYSlash,
	}); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if len(email.Sent) != 0 {
		t.Errorf("digest recipients = %v, want none", email.Sent)
	}
}

func TestProcessImport_UnknownAccount(t *testing.T) {
	setupTestDB(t)
	svc, _, _ := newTestImportService()

	_, err := svc.ProcessImport(strings.NewReader(statementA), ImportOptions{
		UserID: 1, AccountSlug: "missing", Source: "generic", DateFormat: fingerprint.FormatDMYSlash,
	})
	if err == nil {
		t.Fatal("expected error for unknown account")
	}
}

func TestProcessImport_UnknownSource(t *testing.T) {
	setupTestDB(t)
	svc, _, _ := newTestImportService()

	_, err := svc.ProcessImport(strings.NewReader(statementA), ImportOptions{
		UserID: 1, AccountSlug: "acct1", Source: "nope", DateFormat: fingerprint.FormatDMYSlash,
	})
	if err == nil {
		t.Fatal("expected error for unknown source")
	}
}
