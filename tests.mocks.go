package main

import (
	"context"
	"time"
)

// This file contains mocks definitions needed to perform unit tests.

// MockBookStore runs every session on the embedded MockBookSession
// unless WithSessionFunc is set.
type MockBookStore struct {
	Session          *MockBookSession
	WithSessionFunc  func(ctx context.Context, fn func(BookSession) error) error
	EnsureSchemaFunc func(ctx context.Context) error
	PingFunc         func(ctx context.Context) error
	CloseFunc        func() error
}

// WithSession mocks the unit of work by calling fn with the mocked session.
func (m *MockBookStore) WithSession(ctx context.Context, fn func(BookSession) error) error {
	if m.WithSessionFunc != nil {
		return m.WithSessionFunc(ctx, fn)
	}
	return fn(m.Session)
}

func (m *MockBookStore) EnsureSchema(ctx context.Context) error {
	return m.EnsureSchemaFunc(ctx)
}

func (m *MockBookStore) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

func (m *MockBookStore) Close() error {
	return m.CloseFunc()
}

type MockBookSession struct {
	FindByKeyFunc func(ctx context.Context, title, author string, excludeID int64) (Book, bool, error)
	InsertFunc    func(ctx context.Context, book Book) (Book, error)
	GetByIDFunc   func(ctx context.Context, id int64) (Book, error)
	ListFunc      func(ctx context.Context, skip, limit int) ([]Book, error)
	CountFunc     func(ctx context.Context) (int, error)
	UpdateFunc    func(ctx context.Context, book Book) error
	DeleteFunc    func(ctx context.Context, id int64) error
	SearchFunc    func(ctx context.Context, filter BookFilter) ([]Book, error)
}

// FindByKey mocks the duplicate lookup of the repository.
func (m *MockBookSession) FindByKey(ctx context.Context, title, author string, excludeID int64) (Book, bool, error) {
	return m.FindByKeyFunc(ctx, title, author, excludeID)
}

// Insert mocks the behavior of book creation by the repository.
func (m *MockBookSession) Insert(ctx context.Context, book Book) (Book, error) {
	return m.InsertFunc(ctx, book)
}

// GetByID mocks the behavior of retrieving a book by the repository.
func (m *MockBookSession) GetByID(ctx context.Context, id int64) (Book, error) {
	return m.GetByIDFunc(ctx, id)
}

// List mocks the behavior of retrieving a page of books by the repository.
func (m *MockBookSession) List(ctx context.Context, skip, limit int) ([]Book, error) {
	return m.ListFunc(ctx, skip, limit)
}

func (m *MockBookSession) Count(ctx context.Context) (int, error) {
	return m.CountFunc(ctx)
}

// Update mocks the behavior of updating a book by the repository.
func (m *MockBookSession) Update(ctx context.Context, book Book) error {
	return m.UpdateFunc(ctx, book)
}

// Delete mocks the behavior of deleting a book by the repository.
func (m *MockBookSession) Delete(ctx context.Context, id int64) error {
	return m.DeleteFunc(ctx, id)
}

func (m *MockBookSession) Search(ctx context.Context, filter BookFilter) ([]Book, error) {
	return m.SearchFunc(ctx, filter)
}

// MockQueuer implements a fake Queuer.
type MockQueuer struct {
	PushFunc func(ctx context.Context, qid string, event BookEvent) error
	PopFunc  func(ctx context.Context, qids ...string) (string, BookEvent, error)
}

func (mq *MockQueuer) Push(ctx context.Context, qid string, event BookEvent) error {
	return mq.PushFunc(ctx, qid, event)
}

func (mq *MockQueuer) Pop(ctx context.Context, qids ...string) (string, BookEvent, error) {
	return mq.PopFunc(ctx, qids...)
}

// MockBookJournal implements a fake BookJournal.
type MockBookJournal struct {
	AppendFunc func(ctx context.Context, event BookEvent) (uint64, error)
	ListFunc   func(ctx context.Context, after uint64, limit int) ([]JournalEntry, error)
	CloseFunc  func() error
}

func (mj *MockBookJournal) Append(ctx context.Context, event BookEvent) (uint64, error) {
	return mj.AppendFunc(ctx, event)
}

func (mj *MockBookJournal) List(ctx context.Context, after uint64, limit int) ([]JournalEntry, error) {
	return mj.ListFunc(ctx, after, limit)
}

func (mj *MockBookJournal) Close() error {
	return mj.CloseFunc()
}

// MockBookService implements a fake BookServiceProvider.
type MockBookService struct {
	CreateFunc func(ctx context.Context, req CreateBookRequest) (Book, error)
	ListFunc   func(ctx context.Context, page PageRequest) ([]Book, int, error)
	GetFunc    func(ctx context.Context, id int64) (Book, error)
	UpdateFunc func(ctx context.Context, id int64, req UpdateBookRequest) (Book, error)
	DeleteFunc func(ctx context.Context, id int64) error
	SearchFunc func(ctx context.Context, filter BookFilter) ([]Book, error)
}

func (ms *MockBookService) Create(ctx context.Context, req CreateBookRequest) (Book, error) {
	return ms.CreateFunc(ctx, req)
}

func (ms *MockBookService) List(ctx context.Context, page PageRequest) ([]Book, int, error) {
	return ms.ListFunc(ctx, page)
}

func (ms *MockBookService) Get(ctx context.Context, id int64) (Book, error) {
	return ms.GetFunc(ctx, id)
}

func (ms *MockBookService) Update(ctx context.Context, id int64, req UpdateBookRequest) (Book, error) {
	return ms.UpdateFunc(ctx, id, req)
}

func (ms *MockBookService) Delete(ctx context.Context, id int64) error {
	return ms.DeleteFunc(ctx, id)
}

func (ms *MockBookService) Search(ctx context.Context, filter BookFilter) ([]Book, error) {
	return ms.SearchFunc(ctx, filter)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
// equals to `2023-07-02 00:00:00 +0000 UTC` in String format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}
