package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// readBody reads the request payload up to the configured size.
func (api *APIHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	limit := api.config.Server.MaxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return nil, &ValidationError{Fields: []FieldError{{Field: "body", Message: "must not be larger than the allowed size"}}}
	}
	return body, err
}

// CreateBook godoc
// @Summary      Create a book
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        book  body      BookPayload  true  "book to create"
// @Success      201   {object}  APIResponse
// @Failure      400   {object}  APIError
// @Failure      409   {object}  APIError
// @Router       /v1/books [post]
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	body, err := api.readBody(w, r)
	if err != nil {
		api.writeServiceError(ctx, w, "read create book request", err)
		return
	}

	req, err := ParseCreateBookRequest(body)
	if err != nil {
		api.writeServiceError(ctx, w, "create book", err)
		return
	}

	book, err := api.bookService.Create(ctx, req)
	if err != nil {
		api.writeServiceError(ctx, w, "create book", err)
		return
	}
	api.GetLoggerFromContext(ctx).Info("success to create book", zap.Int64("book.id", book.ID), zap.String("request.id", requestID))
	api.writeSuccess(ctx, w, GenericResponse(requestID, http.StatusCreated, "Book created successfully.", nil, book))
}

// GetAllBooks godoc
// @Summary      List books ordered by id
// @Tags         books
// @Produce      json
// @Param        skip   query     int  false  "number of books to skip"  default(0)   minimum(0)
// @Param        limit  query     int  false  "max number of books"      default(100) minimum(1) maximum(500)
// @Success      200    {object}  APIResponse
// @Failure      400    {object}  APIError
// @Router       /v1/books [get]
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	page, err := ParsePageRequest(r.URL.Query())
	if err != nil {
		api.writeServiceError(ctx, w, "list books", err)
		return
	}

	books, total, err := api.bookService.List(ctx, page)
	if err != nil {
		api.writeServiceError(ctx, w, "list books", err)
		return
	}
	api.writeSuccess(ctx, w, GenericResponse(requestID, http.StatusOK, "Books fetched successfully.", &total, books))
}

// SearchBooks godoc
// @Summary      Search books
// @Description  Title and author match as case-insensitive substrings, year exactly. Criteria are combined.
// @Tags         books
// @Produce      json
// @Param        title   query     string  false  "part of the title"
// @Param        author  query     string  false  "part of the author"
// @Param        year    query     int     false  "publication year"
// @Success      200     {object}  APIResponse
// @Failure      400     {object}  APIError
// @Router       /v1/books/search [get]
func (api *APIHandler) SearchBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	filter, err := ParseSearchRequest(r.URL.Query())
	if err != nil {
		api.writeServiceError(ctx, w, "search books", err)
		return
	}

	books, err := api.bookService.Search(ctx, filter)
	if err != nil {
		api.writeServiceError(ctx, w, "search books", err)
		return
	}
	total := len(books)
	api.writeSuccess(ctx, w, GenericResponse(requestID, http.StatusOK, "Books searched successfully.", &total, books))
}

// GetOneBook godoc
// @Summary      Get a book
// @Tags         books
// @Produce      json
// @Param        id   path      int  true  "book id"
// @Success      200  {object}  APIResponse
// @Failure      400  {object}  APIError
// @Failure      404  {object}  APIError
// @Router       /v1/books/{id} [get]
func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	// the router cannot hold a static segment next to the id wildcard.
	if ps.ByName("id") == "search" {
		api.SearchBooks(w, r, ps)
		return
	}

	ctx := r.Context()
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	id, err := ParseBookID(ps.ByName("id"))
	if err != nil {
		api.writeServiceError(ctx, w, "get book", err)
		return
	}

	book, err := api.bookService.Get(ctx, id)
	if err != nil {
		api.writeServiceError(ctx, w, "get book", err)
		return
	}
	api.writeSuccess(ctx, w, GenericResponse(requestID, http.StatusOK, "Book fetched successfully.", nil, book))
}

// UpdateBook godoc
// @Summary      Update a book partially
// @Description  Only supplied fields are changed. A null year clears it.
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        id    path      int          true  "book id"
// @Param        book  body      BookPayload  true  "fields to change"
// @Success      200   {object}  APIResponse
// @Failure      400   {object}  APIError
// @Failure      404   {object}  APIError
// @Failure      409   {object}  APIError
// @Router       /v1/books/{id} [put]
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	id, err := ParseBookID(ps.ByName("id"))
	if err != nil {
		api.writeServiceError(ctx, w, "update book", err)
		return
	}

	body, err := api.readBody(w, r)
	if err != nil {
		api.writeServiceError(ctx, w, "read update book request", err)
		return
	}

	req, err := ParseUpdateBookRequest(body)
	if err != nil {
		api.writeServiceError(ctx, w, "update book", err)
		return
	}

	book, err := api.bookService.Update(ctx, id, req)
	if err != nil {
		api.writeServiceError(ctx, w, "update book", err)
		return
	}
	api.GetLoggerFromContext(ctx).Info("success to update book", zap.Int64("book.id", id), zap.String("request.id", requestID))
	api.writeSuccess(ctx, w, GenericResponse(requestID, http.StatusOK, "Book updated successfully.", nil, book))
}

// DeleteOneBook godoc
// @Summary      Delete a book
// @Tags         books
// @Param        id   path      int  true  "book id"
// @Success      204
// @Failure      400  {object}  APIError
// @Failure      404  {object}  APIError
// @Router       /v1/books/{id} [delete]
func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	id, err := ParseBookID(ps.ByName("id"))
	if err != nil {
		api.writeServiceError(ctx, w, "delete book", err)
		return
	}

	if err = api.bookService.Delete(ctx, id); err != nil {
		api.writeServiceError(ctx, w, "delete book", err)
		return
	}
	logger := api.GetLoggerFromContext(ctx)
	logger.Info("success to delete book", zap.Int64("book.id", id), zap.String("request.id", requestID))
	if err = WriteNoContent(ctx, w); err != nil {
		logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// BookPayload documents the body of creation and update requests.
type BookPayload struct {
	Title  string `json:"title" example:"1984"`
	Author string `json:"author" example:"George Orwell"`
	Year   *int   `json:"year" example:"1949"`
}
