package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/bankfolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

// InitDB opens the sqlite database and ensures the schema exists.
//
// The UNIQUE(bank_account_id, hash) constraint on operations is the storage
// backstop for duplicate detection: even if two concurrent imports race past
// the in-memory fingerprint lookup, the second insert of the same fingerprint
// fails instead of creating a duplicate. Dedup never crosses accounts.
func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if _, err := DB.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		stdlog.Fatalf("failed to enable foreign keys: %v", err)
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS bank_accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		slug TEXT NOT NULL,
		name TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'EUR',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id),
		UNIQUE(user_id, slug)
	);

	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bank_account_id INTEGER NOT NULL,
		operation_date TEXT NOT NULL,
		op_type TEXT NOT NULL,
		type_display TEXT NOT NULL,
		details TEXT NOT NULL,
		amount_in_cents INTEGER NOT NULL,
		hash TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'ok',
		ignored_from_charts BOOLEAN DEFAULT FALSE,
		import_batch_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(bank_account_id) REFERENCES bank_accounts(id),
		UNIQUE(bank_account_id, hash)
	);

	CREATE INDEX IF NOT EXISTS idx_operations_account_date
		ON operations(bank_account_id, operation_date);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id),
		UNIQUE(user_id, name)
	);

	CREATE TABLE IF NOT EXISTS operation_tag (
		operation_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		PRIMARY KEY(operation_id, tag_id),
		FOREIGN KEY(operation_id) REFERENCES operations(id) ON DELETE CASCADE,
		FOREIGN KEY(tag_id) REFERENCES tags(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS tag_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		matching_pattern TEXT NOT NULL,
		is_regex BOOLEAN DEFAULT FALSE,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS tag_rule_tag (
		tag_rule_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		PRIMARY KEY(tag_rule_id, tag_id),
		FOREIGN KEY(tag_rule_id) REFERENCES tag_rules(id) ON DELETE CASCADE,
		FOREIGN KEY(tag_id) REFERENCES tags(id) ON DELETE CASCADE
	);
	`

	if _, err := DB.Exec(createTableStatement); err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}

	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.", "path", databasePath)
	} else {
		stdlog.Println("Database tables ensured/created:", databasePath)
	}
}
