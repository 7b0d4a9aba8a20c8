package main

import (
	"context"

	"go.uber.org/zap"
)

type BookServiceProvider interface {
	Create(ctx context.Context, req CreateBookRequest) (Book, error)
	List(ctx context.Context, page PageRequest) ([]Book, int, error)
	Get(ctx context.Context, id int64) (Book, error)
	Update(ctx context.Context, id int64, req UpdateBookRequest) (Book, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, filter BookFilter) ([]Book, error)
}

// BookService implements the book operations. Each call runs in a single
// unit of work and no state is kept between calls. Successful mutations
// are published on the queue for the journal.
type BookService struct {
	logger  *zap.Logger
	config  *Config
	clock   Clocker
	store   BookStore
	queue   Queuer
	metrics *Metrics
}

func NewBookService(logger *zap.Logger, config *Config, clock Clocker, store BookStore, queue Queuer, metrics *Metrics) BookServiceProvider {
	return &BookService{
		logger:  logger,
		config:  config,
		clock:   clock,
		store:   store,
		queue:   queue,
		metrics: metrics,
	}
}

// Create stores a new book unless one with the same title and author exists.
func (bs *BookService) Create(ctx context.Context, req CreateBookRequest) (book Book, err error) {
	defer func() { bs.metrics.RecordBookOperation("create", err) }()

	req = req.Normalized()
	if err = req.Validate(); err != nil {
		return Book{}, err
	}

	err = bs.store.WithSession(ctx, func(s BookSession) error {
		_, found, err := s.FindByKey(ctx, req.Title, req.Author, 0)
		if err != nil {
			return err
		}
		if found {
			return &DuplicateError{Title: req.Title, Author: req.Author}
		}
		book, err = s.Insert(ctx, Book{
			Title:     req.Title,
			Author:    req.Author,
			Year:      req.Year,
			CreatedAt: bs.clock.Now().UTC(),
		})
		return err
	})
	if err != nil {
		return Book{}, err
	}

	bs.publish(ctx, CreateQueue, BookCreated, book.ID, &book)
	return book, nil
}

// List returns a window of books ordered by id and the total number of books.
func (bs *BookService) List(ctx context.Context, page PageRequest) (books []Book, total int, err error) {
	defer func() { bs.metrics.RecordBookOperation("list", err) }()

	if err = page.Validate(); err != nil {
		return nil, 0, err
	}

	err = bs.store.WithSession(ctx, func(s BookSession) error {
		if books, err = s.List(ctx, page.Skip, page.Limit); err != nil {
			return err
		}
		total, err = s.Count(ctx)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// Get returns the book with the given id.
func (bs *BookService) Get(ctx context.Context, id int64) (book Book, err error) {
	defer func() { bs.metrics.RecordBookOperation("get", err) }()

	err = bs.store.WithSession(ctx, func(s BookSession) error {
		book, err = s.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// Update applies the supplied fields of req to the book. The resulting title
// and author pair must not belong to another book.
func (bs *BookService) Update(ctx context.Context, id int64, req UpdateBookRequest) (book Book, err error) {
	defer func() { bs.metrics.RecordBookOperation("update", err) }()

	req = req.Normalized()
	if err = req.Validate(); err != nil {
		return Book{}, err
	}

	err = bs.store.WithSession(ctx, func(s BookSession) error {
		existing, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.IsEmpty() {
			book = existing
			return nil
		}

		book = req.ApplyTo(existing)
		if req.Title.Set || req.Author.Set {
			_, found, err := s.FindByKey(ctx, book.Title, book.Author, id)
			if err != nil {
				return err
			}
			if found {
				return &DuplicateError{Title: book.Title, Author: book.Author}
			}
		}
		return s.Update(ctx, book)
	})
	if err != nil {
		return Book{}, err
	}

	if !req.IsEmpty() {
		bs.publish(ctx, UpdateQueue, BookUpdated, book.ID, &book)
	}
	return book, nil
}

// Delete removes the book permanently.
func (bs *BookService) Delete(ctx context.Context, id int64) (err error) {
	defer func() { bs.metrics.RecordBookOperation("delete", err) }()

	err = bs.store.WithSession(ctx, func(s BookSession) error {
		return s.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	bs.publish(ctx, DeleteQueue, BookDeleted, id, nil)
	return nil
}

// Search returns every book matching all the supplied criteria ordered by id.
func (bs *BookService) Search(ctx context.Context, filter BookFilter) (books []Book, err error) {
	defer func() { bs.metrics.RecordBookOperation("search", err) }()

	err = bs.store.WithSession(ctx, func(s BookSession) error {
		books, err = s.Search(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return books, nil
}

// publish pushes a change event. Failures are only logged since
// the change is already committed.
func (bs *BookService) publish(ctx context.Context, qid, kind string, id int64, book *Book) {
	if bs.queue == nil {
		return
	}
	event := BookEvent{
		Kind:       kind,
		BookID:     id,
		Book:       book,
		RequestID:  GetValueFromContext(ctx, RequestIDContextKey),
		OccurredAt: bs.clock.Now().UTC(),
	}
	if err := bs.queue.Push(context.WithoutCancel(ctx), qid, event); err != nil {
		bs.logger.Error("service: failed to push event to queue",
			zap.String("qid", qid),
			zap.Int64("book.id", id),
			zap.String("request.id", event.RequestID),
			zap.Error(err),
		)
	}
}
