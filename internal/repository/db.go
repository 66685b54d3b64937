package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: writers serialize anyway and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

// Timestamps are stored as fixed-width RFC3339 UTC text with nanoseconds so that string comparison orders
// them; money columns are NUMERIC.
func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS raw_transactions (
			transaction_id TEXT PRIMARY KEY,
			sender_phone TEXT,
			receiver_phone TEXT,
			transaction_type TEXT,
			amount DECIMAL(15,2),
			fee DECIMAL(10,2),
			transaction_date TEXT,
			location TEXT,
			currency TEXT,
			status TEXT,
			fraud_risk_score INTEGER,
			merchant_id TEXT,
			reference_number TEXT,
			channel TEXT,
			category TEXT,
			load_timestamp TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS transformed_transactions (
			transaction_key INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_id TEXT NOT NULL UNIQUE,
			sender_phone TEXT NOT NULL,
			receiver_phone TEXT NOT NULL,
			transaction_type TEXT NOT NULL,
			amount DECIMAL(15,2) NOT NULL,
			fee DECIMAL(10,2) NOT NULL,
			transaction_date TEXT NOT NULL,
			date_part_date TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			day_of_week INTEGER NOT NULL,
			hour_of_day INTEGER NOT NULL,
			location TEXT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			fraud_risk_score INTEGER NOT NULL,
			fraud_category TEXT NOT NULL,
			merchant_id TEXT NOT NULL,
			reference_number TEXT NOT NULL,
			channel TEXT NOT NULL,
			category TEXT NOT NULL,
			sender_region TEXT NOT NULL,
			receiver_region TEXT NOT NULL,
			transaction_volume_category TEXT NOT NULL,
			is_suspicious_velocity INTEGER NOT NULL,
			time_since_prev_transaction REAL,
			load_timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transformed_date ON transformed_transactions(date_part_date)`,
		`CREATE INDEX IF NOT EXISTS idx_transformed_sender ON transformed_transactions(sender_phone)`,
		`CREATE INDEX IF NOT EXISTS idx_transformed_load ON transformed_transactions(load_timestamp)`,

		`CREATE TABLE IF NOT EXISTS fraud_alerts (
			alert_id INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_id TEXT NOT NULL UNIQUE,
			alert_timestamp TEXT NOT NULL,
			risk_score INTEGER NOT NULL,
			alert_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN',
			analyst_assigned TEXT,
			resolution_notes TEXT,
			resolved_timestamp TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fraud_alerts_status ON fraud_alerts(status)`,

		`CREATE TABLE IF NOT EXISTS daily_transaction_summary (
			summary_date TEXT PRIMARY KEY,
			total_transactions INTEGER NOT NULL,
			total_amount DECIMAL(20,2) NOT NULL,
			total_fees DECIMAL(15,2) NOT NULL,
			avg_transaction_amount DECIMAL(15,2) NOT NULL,
			max_transaction_amount DECIMAL(15,2) NOT NULL,
			unique_users INTEGER NOT NULL,
			fraud_attempts INTEGER NOT NULL,
			successful_transactions INTEGER NOT NULL,
			failed_transactions INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}
