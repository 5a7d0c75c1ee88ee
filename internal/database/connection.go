package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the global database connection
var DB *sqlx.DB

// Queryer abstracts *sqlx.DB and *sqlx.Tx so repository methods can run
// either directly or inside a transaction.
type Queryer interface {
	sqlx.ExtContext
}

// Connect establishes a connection to the database. DB_TYPE selects the
// backend: "postgres" (DATABASE_URL) or "sqlite" (default, local file).
func Connect() error {
	dbType := os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}

	var db *sqlx.DB
	var err error

	switch dbType {
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set")
		}
		db, err = sqlx.Connect("postgres", dsn)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
	case "sqlite":
		dataDir := "data"
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		dbPath := filepath.Join(dataDir, "lexibot.db")
		db, err = sqlx.Connect("sqlite3", dbPath)
		if err != nil {
			return fmt.Errorf("failed to connect to sqlite: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		return fmt.Errorf("unknown DB_TYPE %q", dbType)
	}

	DB = db
	return initializeSchema()
}

// ConnectForTest opens an in-memory SQLite database. Intended for
// package tests only.
func ConnectForTest() error {
	db, err := sqlx.Connect("sqlite3", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open in-memory sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	DB = db
	return initializeSchema()
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on nil and rolling back
// on error or panic. Review-engine writes always go through here.
func WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// serialPK returns the dialect-appropriate auto-increment primary key type.
func serialPK() string {
	if DB.DriverName() == "postgres" {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema() error {
	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id %s,
			telegram_id BIGINT UNIQUE NOT NULL,
			username TEXT,
			first_name TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, serialPK()),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS collections (
			id %s,
			owner_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			is_public BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, serialPK()),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS words (
			id %s,
			word TEXT NOT NULL,
			definition TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, serialPK()),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS levels (
			id %s,
			collection_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			min_cards INTEGER DEFAULT 0,
			min_success_rate REAL DEFAULT 0,
			position INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (collection_id) REFERENCES collections(id)
		)`, serialPK()),
		`
		CREATE TABLE IF NOT EXISTS level_prereqs (
			level_id BIGINT NOT NULL,
			prereq_id BIGINT NOT NULL,
			PRIMARY KEY (level_id, prereq_id),
			FOREIGN KEY (level_id) REFERENCES levels(id),
			FOREIGN KEY (prereq_id) REFERENCES levels(id)
		)`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS flashcards (
			id %s,
			collection_id BIGINT NOT NULL,
			word_id BIGINT,
			front_text TEXT DEFAULT '',
			back_text TEXT DEFAULT '',
			direction TEXT NOT NULL,
			position INTEGER DEFAULT 0,
			auto_progress BOOLEAN DEFAULT FALSE,
			level_id BIGINT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (collection_id) REFERENCES collections(id),
			FOREIGN KEY (word_id) REFERENCES words(id),
			FOREIGN KEY (level_id) REFERENCES levels(id)
		)`, serialPK()),
		`
		CREATE TABLE IF NOT EXISTS level_items (
			level_id BIGINT NOT NULL,
			flashcard_id BIGINT NOT NULL,
			position INTEGER DEFAULT 0,
			PRIMARY KEY (level_id, flashcard_id),
			FOREIGN KEY (level_id) REFERENCES levels(id),
			FOREIGN KEY (flashcard_id) REFERENCES flashcards(id)
		)`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS progress (
			id %s,
			user_id BIGINT NOT NULL,
			flashcard_id BIGINT NOT NULL,
			side TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'new',
			stability REAL DEFAULT 0,
			difficulty REAL DEFAULT 0,
			interval_days INTEGER DEFAULT 0,
			review_count INTEGER DEFAULT 0,
			last_reviewed_at TIMESTAMP,
			next_review_at TIMESTAMP,
			archived BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (flashcard_id) REFERENCES flashcards(id)
		)`, serialPK()),
		`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_progress_active
			ON progress (user_id, flashcard_id, side) WHERE NOT archived`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS review_logs (
			id %s,
			progress_id BIGINT NOT NULL,
			rating INTEGER NOT NULL,
			elapsed_days INTEGER NOT NULL,
			scheduled_days INTEGER NOT NULL,
			stability REAL NOT NULL,
			difficulty REAL NOT NULL,
			status TEXT NOT NULL,
			duration_ms INTEGER,
			reviewed_at TIMESTAMP NOT NULL,
			FOREIGN KEY (progress_id) REFERENCES progress(id)
		)`, serialPK()),
		`
		CREATE TABLE IF NOT EXISTS quiz_options (
			flashcard_id BIGINT PRIMARY KEY,
			answer TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (flashcard_id) REFERENCES flashcards(id)
		)`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS quiz_answers (
			id %s,
			user_id BIGINT NOT NULL,
			flashcard_id BIGINT NOT NULL,
			selected TEXT NOT NULL,
			correct BOOLEAN NOT NULL,
			options_json TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (flashcard_id) REFERENCES flashcards(id)
		)`, serialPK()),
		`
		CREATE TABLE IF NOT EXISTS user_level_progress (
			user_id BIGINT NOT NULL,
			level_id BIGINT NOT NULL,
			cards_completed INTEGER DEFAULT 0,
			correct_answers INTEGER DEFAULT 0,
			total_answers INTEGER DEFAULT 0,
			unlocked_at TIMESTAMP,
			completed_at TIMESTAMP,
			last_activity_at TIMESTAMP,
			PRIMARY KEY (user_id, level_id),
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (level_id) REFERENCES levels(id)
		)`,
		`
		CREATE TABLE IF NOT EXISTS user_retention (
			user_id BIGINT PRIMARY KEY,
			retention REAL NOT NULL,
			computed_at TIMESTAMP NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
