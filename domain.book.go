package main

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Book represents a book entity. It is also the wire shape
// sent back to the api consumers.
type Book struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Year      *int      `json:"year"`
	CreatedAt time.Time `json:"created_at"`
}

// bookRow mirrors the layout of the books table. The key columns hold
// the case-normalized title and author used by the uniqueness index.
type bookRow struct {
	ID        int64         `db:"id"`
	Title     string        `db:"title"`
	Author    string        `db:"author"`
	Year      sql.NullInt64 `db:"year"`
	CreatedAt time.Time     `db:"created_at"`
	TitleKey  string        `db:"title_key"`
	AuthorKey string        `db:"author_key"`
}

// toBookRow converts a book into its storage representation.
func toBookRow(b Book) bookRow {
	row := bookRow{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		CreatedAt: b.CreatedAt.UTC(),
		TitleKey:  NormalizeKey(b.Title),
		AuthorKey: NormalizeKey(b.Author),
	}
	if b.Year != nil {
		row.Year = sql.NullInt64{Int64: int64(*b.Year), Valid: true}
	}
	return row
}

// toBook converts a storage row into a book entity.
func (r bookRow) toBook() Book {
	b := Book{
		ID:        r.ID,
		Title:     r.Title,
		Author:    r.Author,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.Year.Valid {
		year := int(r.Year.Int64)
		b.Year = &year
	}
	return b
}

// NormalizeKey returns the form of a title or author used
// for case-insensitive comparisons.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IntPtr is a small helper to build optional years.
func IntPtr(v int) *int {
	return &v
}

// Optional holds a patch value and whether the caller supplied it.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a supplied optional value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// CreateBookRequest is the validated input of a book creation.
type CreateBookRequest struct {
	Title  string
	Author string
	Year   *int
}

// Normalized returns the request with its text fields trimmed.
func (r CreateBookRequest) Normalized() CreateBookRequest {
	r.Title = strings.TrimSpace(r.Title)
	r.Author = strings.TrimSpace(r.Author)
	return r
}

// UpdateBookRequest is a partial update. Only supplied fields are
// applied. A supplied nil Year clears the stored year.
type UpdateBookRequest struct {
	Title  Optional[string]
	Author Optional[string]
	Year   Optional[*int]
}

// Normalized returns the request with its supplied text fields trimmed.
func (r UpdateBookRequest) Normalized() UpdateBookRequest {
	if r.Title.Set {
		r.Title.Value = strings.TrimSpace(r.Title.Value)
	}
	if r.Author.Set {
		r.Author.Value = strings.TrimSpace(r.Author.Value)
	}
	return r
}

// IsEmpty reports whether the request carries no field at all.
func (r UpdateBookRequest) IsEmpty() bool {
	return !r.Title.Set && !r.Author.Set && !r.Year.Set
}

// ApplyTo overlays the supplied fields onto the given book.
func (r UpdateBookRequest) ApplyTo(b Book) Book {
	if r.Title.Set {
		b.Title = r.Title.Value
	}
	if r.Author.Set {
		b.Author = r.Author.Value
	}
	if r.Year.Set {
		b.Year = r.Year.Value
	}
	return b
}

// PageRequest defines a window over the books ordered by id.
type PageRequest struct {
	Skip  int
	Limit int
}

// BookFilter holds the optional search criteria. Empty strings
// and a nil Year mean the criterion is not applied.
type BookFilter struct {
	Title  string
	Author string
	Year   *int
}

// IsEmpty reports whether no criterion is set.
func (f BookFilter) IsEmpty() bool {
	return f.Title == "" && f.Author == "" && f.Year == nil
}

// BookStore owns the persistent storage of books. Each call to
// WithSession runs fn inside a single unit of work which is
// committed when fn succeeds and rolled back otherwise.
type BookStore interface {
	WithSession(ctx context.Context, fn func(BookSession) error) error
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// BookSession defines possible operations on book entity
// within a unit of work.
type BookSession interface {
	FindByKey(ctx context.Context, title, author string, excludeID int64) (Book, bool, error)
	Insert(ctx context.Context, book Book) (Book, error)
	GetByID(ctx context.Context, id int64) (Book, error)
	List(ctx context.Context, skip, limit int) ([]Book, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, book Book) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, filter BookFilter) ([]Book, error)
}

// Book events kinds published on each successful mutation.
const (
	BookCreated = "book.created"
	BookUpdated = "book.updated"
	BookDeleted = "book.deleted"
)

// BookEvent describes a change applied to a book.
type BookEvent struct {
	Kind       string    `json:"kind"`
	BookID     int64     `json:"book_id"`
	Book       *Book     `json:"book,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
