package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	sqliteDriverName = "sqlite3"
	sqliteMemoryPath = ":memory:"

	booksTable   = "books"
	colID        = "id"
	colTitle     = "title"
	colAuthor    = "author"
	colYear      = "year"
	colCreatedAt = "created_at"
	colTitleKey  = "title_key"
	colAuthorKey = "author_key"
)

// booksSchema is applied on every startup. The unique index on the
// normalized keys enforces the title and author pair uniqueness.
const booksSchema = `
CREATE TABLE IF NOT EXISTS books (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT      NOT NULL,
	author     TEXT      NOT NULL,
	year       INTEGER   NULL,
	created_at TIMESTAMP NOT NULL,
	title_key  TEXT      NOT NULL,
	author_key TEXT      NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_books_title_author_key ON books (title_key, author_key);
CREATE INDEX IF NOT EXISTS idx_books_title ON books (title);
CREATE INDEX IF NOT EXISTS idx_books_author ON books (author);
`

var bookColumns = []interface{}{colID, colTitle, colAuthor, colYear, colCreatedAt, colTitleKey, colAuthorKey}

var _ BookStore = (*sqliteBookStore)(nil)

type sqliteBookStore struct {
	logger  *zap.Logger
	config  *SQLiteConfig
	client  *sqlx.DB
	dialect goqu.DialectWrapper
}

// BuildSQLiteDSN returns the connection string of the books database. Write
// transactions start with BEGIN IMMEDIATE so concurrent writers are serialized.
func BuildSQLiteDSN(config *SQLiteConfig) string {
	params := fmt.Sprintf("_busy_timeout=%d&_foreign_keys=on&_txlock=immediate", config.BusyTimeout.Milliseconds())
	if config.FilePath == sqliteMemoryPath {
		return "file::memory:?" + params
	}
	return "file:" + config.FilePath + "?" + params + "&_journal_mode=WAL&mode=rwc"
}

// GetSQLiteClient creates the database folder if missing then provides a ready to use client.
func GetSQLiteClient(config *Config) (*sqlx.DB, error) {
	cfg := &config.SQLite
	if cfg.FilePath != sqliteMemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database folder: %w", err)
		}
	}

	db, err := sqlx.Open(sqliteDriverName, BuildSQLiteDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open the database: %w", err)
	}

	if cfg.FilePath == sqliteMemoryPath {
		// each connection to an in-memory database gets its own content.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("test connection failed: %w", err)
	}
	return db, nil
}

// NewSQLiteBookStore provides an instance of sqlite-based book storage.
func NewSQLiteBookStore(logger *zap.Logger, config *SQLiteConfig, client *sqlx.DB) *sqliteBookStore {
	return &sqliteBookStore{
		logger:  logger,
		config:  config,
		client:  client,
		dialect: goqu.Dialect(sqliteDriverName),
	}
}

// EnsureSchema creates the books table and its indexes if absent.
func (ss *sqliteBookStore) EnsureSchema(ctx context.Context) error {
	if _, err := ss.client.ExecContext(ctx, booksSchema); err != nil {
		return &StorageError{Op: "ensure schema", Err: err}
	}
	return nil
}

// Ping checks the database is reachable.
func (ss *sqliteBookStore) Ping(ctx context.Context) error {
	if err := ss.client.PingContext(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// Close releases the connections pool.
func (ss *sqliteBookStore) Close() error {
	return ss.client.Close()
}

// WithSession runs fn inside a transaction. The transaction is committed
// when fn returns nil and rolled back on error or panic.
func (ss *sqliteBookStore) WithSession(ctx context.Context, fn func(BookSession) error) (err error) {
	tx, err := ss.client.BeginTxx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "begin session", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				ss.logger.Error("sqlite: failed to rollback session", zap.Error(rerr))
			}
		}
	}()

	if err = fn(&sqliteSession{tx: tx, dialect: ss.dialect}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return &StorageError{Op: "commit session", Err: err}
	}
	return nil
}

type sqliteSession struct {
	tx      *sqlx.Tx
	dialect goqu.DialectWrapper
}

func (s *sqliteSession) selectBooks() *goqu.SelectDataset {
	return s.dialect.From(booksTable).Prepared(true).Select(bookColumns...)
}

// FindByKey returns the book whose normalized title and author equal the given ones.
// A positive excludeID leaves that book out of the lookup.
func (s *sqliteSession) FindByKey(ctx context.Context, title, author string, excludeID int64) (Book, bool, error) {
	ds := s.selectBooks().
		Where(goqu.Ex{colTitleKey: NormalizeKey(title), colAuthorKey: NormalizeKey(author)}).
		Limit(1)
	if excludeID > 0 {
		ds = ds.Where(goqu.C(colID).Neq(excludeID))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return Book{}, false, &StorageError{Op: "build find query", Err: err}
	}

	var row bookRow
	err = s.tx.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, false, nil
	}
	if err != nil {
		return Book{}, false, &StorageError{Op: "find book", Err: err}
	}
	return row.toBook(), true, nil
}

// Insert stores a new book and returns it with its assigned id.
func (s *sqliteSession) Insert(ctx context.Context, book Book) (Book, error) {
	row := toBookRow(book)
	query, args, err := s.dialect.Insert(booksTable).Prepared(true).
		Rows(goqu.Record{
			colTitle:     row.Title,
			colAuthor:    row.Author,
			colYear:      row.Year,
			colCreatedAt: row.CreatedAt,
			colTitleKey:  row.TitleKey,
			colAuthorKey: row.AuthorKey,
		}).
		ToSQL()
	if err != nil {
		return book, &StorageError{Op: "build insert query", Err: err}
	}

	res, err := s.tx.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return book, &DuplicateError{Title: book.Title, Author: book.Author}
	}
	if err != nil {
		return book, &StorageError{Op: "insert book", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return book, &StorageError{Op: "insert book", Err: err}
	}
	book.ID = id
	book.CreatedAt = book.CreatedAt.UTC()
	return book, nil
}

// GetByID retrieves a book record based on its ID.
func (s *sqliteSession) GetByID(ctx context.Context, id int64) (Book, error) {
	query, args, err := s.selectBooks().Where(goqu.C(colID).Eq(id)).ToSQL()
	if err != nil {
		return Book{}, &StorageError{Op: "build get query", Err: err}
	}

	var row bookRow
	err = s.tx.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, &NotFoundError{ID: id}
	}
	if err != nil {
		return Book{}, &StorageError{Op: "get book", Err: err}
	}
	return row.toBook(), nil
}

// List returns at most limit books ordered by id after skipping the first skip ones.
func (s *sqliteSession) List(ctx context.Context, skip, limit int) ([]Book, error) {
	query, args, err := s.selectBooks().
		Order(goqu.C(colID).Asc()).
		Limit(uint(limit)).
		Offset(uint(skip)).
		ToSQL()
	if err != nil {
		return nil, &StorageError{Op: "build list query", Err: err}
	}
	return s.queryBooks(ctx, "list books", query, args)
}

// Count returns the total number of stored books.
func (s *sqliteSession) Count(ctx context.Context) (int, error) {
	query, args, err := s.dialect.From(booksTable).Prepared(true).Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return 0, &StorageError{Op: "build count query", Err: err}
	}
	var total int
	if err = s.tx.GetContext(ctx, &total, query, args...); err != nil {
		return 0, &StorageError{Op: "count books", Err: err}
	}
	return total, nil
}

// Update persists the mutable fields of an existing book.
func (s *sqliteSession) Update(ctx context.Context, book Book) error {
	row := toBookRow(book)
	query, args, err := s.dialect.Update(booksTable).Prepared(true).
		Set(goqu.Record{
			colTitle:     row.Title,
			colAuthor:    row.Author,
			colYear:      row.Year,
			colTitleKey:  row.TitleKey,
			colAuthorKey: row.AuthorKey,
		}).
		Where(goqu.C(colID).Eq(book.ID)).
		ToSQL()
	if err != nil {
		return &StorageError{Op: "build update query", Err: err}
	}

	res, err := s.tx.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return &DuplicateError{Title: book.Title, Author: book.Author}
	}
	if err != nil {
		return &StorageError{Op: "update book", Err: err}
	}
	return checkAffected(res, book.ID, "update book")
}

// Delete removes a book record based on its ID.
func (s *sqliteSession) Delete(ctx context.Context, id int64) error {
	query, args, err := s.dialect.Delete(booksTable).Prepared(true).Where(goqu.C(colID).Eq(id)).ToSQL()
	if err != nil {
		return &StorageError{Op: "build delete query", Err: err}
	}
	res, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return &StorageError{Op: "delete book", Err: err}
	}
	return checkAffected(res, id, "delete book")
}

// Search returns the books matching every supplied criterion ordered by id.
// Title and author match as case-insensitive substrings, year exactly.
func (s *sqliteSession) Search(ctx context.Context, filter BookFilter) ([]Book, error) {
	ds := s.selectBooks().Order(goqu.C(colID).Asc())
	if filter.Title != "" {
		ds = ds.Where(goqu.L("instr(?, ?) > 0", goqu.C(colTitleKey), strings.ToLower(filter.Title)))
	}
	if filter.Author != "" {
		ds = ds.Where(goqu.L("instr(?, ?) > 0", goqu.C(colAuthorKey), strings.ToLower(filter.Author)))
	}
	if filter.Year != nil {
		ds = ds.Where(goqu.C(colYear).Eq(*filter.Year))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, &StorageError{Op: "build search query", Err: err}
	}
	return s.queryBooks(ctx, "search books", query, args)
}

func (s *sqliteSession) queryBooks(ctx context.Context, op, query string, args []interface{}) ([]Book, error) {
	rows := []bookRow{}
	if err := s.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	books := make([]Book, 0, len(rows))
	for _, row := range rows {
		books = append(books, row.toBook())
	}
	return books, nil
}

func checkAffected(res sql.Result, id int64, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	if n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// isUniqueViolation reports whether err comes from a sqlite unique constraint.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
