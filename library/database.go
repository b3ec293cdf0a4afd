package library

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// DBTX is the subset of *sql.DB and *sql.Tx the accessors need, so the same
// code runs inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Database provides high-level helpers around a SQLite connection.
type Database struct {
	db *sql.DB

	addBookStmt   *sql.Stmt
	addMemberStmt *sql.Stmt
	addLoanStmt   *sql.Stmt
	addReturnStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open(driverName, dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	for _, stmt := range []*sql.Stmt{d.addBookStmt, d.addMemberStmt, d.addLoanStmt, d.addReturnStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return d.db.Close()
}

// DB exposes the underlying handle for read-only projections.
func (d *Database) DB() *sql.DB { return d.db }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            book_id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author TEXT NOT NULL DEFAULT '',
            publisher TEXT NOT NULL DEFAULT '',
            publication_year INTEGER NOT NULL DEFAULT 0,
            isbn TEXT NOT NULL UNIQUE,
            genre TEXT NOT NULL DEFAULT '',
            quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 0),
            available INTEGER NOT NULL DEFAULT 1,
            CHECK (available >= 0 AND available <= quantity)
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            member_id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            phone TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            registration_date TEXT NOT NULL,
            password_hash TEXT NOT NULL DEFAULT '',
            penalty_days INTEGER NOT NULL DEFAULT 0 CHECK (penalty_days >= 0),
            suspended_until TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            loan_id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id INTEGER NOT NULL REFERENCES books(book_id),
            member_id INTEGER NOT NULL REFERENCES members(member_id),
            loan_date TEXT NOT NULL,
            due_date TEXT NOT NULL,
            is_returned INTEGER NOT NULL DEFAULT 0 CHECK (is_returned IN (0, 1))
        );`,
		`CREATE TABLE IF NOT EXISTS returns (
            return_id INTEGER PRIMARY KEY AUTOINCREMENT,
            loan_id INTEGER NOT NULL UNIQUE REFERENCES loans(loan_id),
            return_date TEXT NOT NULL,
            overdue_days INTEGER NOT NULL DEFAULT 0 CHECK (overdue_days >= 0)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);`,
		`CREATE INDEX IF NOT EXISTS idx_books_author ON books(author);`,
		`CREATE INDEX IF NOT EXISTS idx_members_name ON members(name);`,
		`CREATE INDEX IF NOT EXISTS idx_loans_book_id ON loans(book_id);`,
		`CREATE INDEX IF NOT EXISTS idx_loans_member_id ON loans(member_id);`,
		`CREATE INDEX IF NOT EXISTS idx_loans_is_returned ON loans(is_returned);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addBookStmt, err = d.db.Prepare(`INSERT INTO books(title,author,publisher,publication_year,isbn,genre,quantity,available) VALUES(?,?,?,?,?,?,?,?)`); err != nil {
		return err
	}
	if d.addMemberStmt, err = d.db.Prepare(`INSERT INTO members(name,phone,address,registration_date,password_hash) VALUES(?,?,?,?,?)`); err != nil {
		return err
	}
	if d.addLoanStmt, err = d.db.Prepare(`INSERT INTO loans(book_id,member_id,loan_date,due_date,is_returned) VALUES(?,?,?,?,0)`); err != nil {
		return err
	}
	if d.addReturnStmt, err = d.db.Prepare(`INSERT INTO returns(loan_id,return_date,overdue_days) VALUES(?,?,?)`); err != nil {
		return err
	}
	return nil
}

// beginTx starts a write transaction. The DSN sets _txlock=immediate, so the
// write lock is taken here rather than at the first write.
func (d *Database) beginTx(ctx context.Context) (*sql.Tx, error) {
	return d.db.BeginTx(ctx, nil)
}
