package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreateBookRequest(t *testing.T) {
	t.Run("bounds are inclusive", func(t *testing.T) {
		payload := fmt.Sprintf(`{"title":%q, "author":%q, "year":2100}`, strings.Repeat("é", TitleMaxLength), strings.Repeat("a", AuthorMaxLength))
		req, err := ParseCreateBookRequest([]byte(payload))
		require.NoError(t, err)
		assert.Equal(t, 2100, *req.Year)
		assert.Equal(t, TitleMaxLength, len([]rune(req.Title)))
	})

	t.Run("null year is absent", func(t *testing.T) {
		req, err := ParseCreateBookRequest([]byte(`{"title":"Dune", "author":"Frank Herbert", "year":null}`))
		require.NoError(t, err)
		assert.Nil(t, req.Year)
	})

	t.Run("fractional year", func(t *testing.T) {
		_, err := ParseCreateBookRequest([]byte(`{"title":"Dune", "author":"Frank Herbert", "year":1965.5}`))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []FieldError{{Field: "year", Message: "must be an integer"}}, verr.Fields)
	})

	t.Run("null title", func(t *testing.T) {
		_, err := ParseCreateBookRequest([]byte(`{"title":null, "author":"Frank Herbert"}`))
		assert.EqualError(t, err, "invalid input: title must be provided")
	})
}

func TestParseUpdateBookRequest(t *testing.T) {
	testCases := []struct {
		name     string
		payload  string
		expected UpdateBookRequest
	}{
		{"empty object", `{}`, UpdateBookRequest{}},
		{"title only", `{"title":" Emma "}`, UpdateBookRequest{Title: Some("Emma")}},
		{"year cleared", `{"year":null}`, UpdateBookRequest{Year: Some[*int](nil)}},
		{"unknown fields ignored", `{"isbn":"123", "author":"Jane Austen"}`, UpdateBookRequest{Author: Some("Jane Austen")}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := ParseUpdateBookRequest([]byte(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, req)
		})
	}

	t.Run("all supplied fields are checked", func(t *testing.T) {
		_, err := ParseUpdateBookRequest([]byte(`{"title":"", "author":null, "year":3000}`))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []FieldError{
			{Field: "author", Message: "must not be null"},
			{Field: "title", Message: "must not be empty"},
			{Field: "year", Message: "must be between 1000 and 2100"},
		}, verr.Fields)
	})
}

func TestUpdateBookRequest_ApplyTo(t *testing.T) {
	book := testBook()
	assert.Equal(t, book, UpdateBookRequest{}.ApplyTo(book))

	got := UpdateBookRequest{Author: Some("Eric Blair"), Year: Some[*int](nil)}.ApplyTo(book)
	assert.Equal(t, "1984", got.Title)
	assert.Equal(t, "Eric Blair", got.Author)
	assert.Nil(t, got.Year)
	assert.Equal(t, 1949, *book.Year)
	assert.True(t, UpdateBookRequest{}.IsEmpty())
	assert.False(t, UpdateBookRequest{Year: Some[*int](nil)}.IsEmpty())
}

func TestParsePageRequest(t *testing.T) {
	testCases := []struct {
		query    string
		expected PageRequest
		param    string
	}{
		{"", PageRequest{Skip: 0, Limit: 100}, ""},
		{"skip=10&limit=500", PageRequest{Skip: 10, Limit: 500}, ""},
		{"limit=1", PageRequest{Skip: 0, Limit: 1}, ""},
		{"skip=-3", PageRequest{}, "skip"},
		{"limit=0", PageRequest{}, "limit"},
		{"limit=1000", PageRequest{}, "limit"},
		{"limit=ten", PageRequest{}, "limit"},
	}
	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			require.NoError(t, err)
			page, err := ParsePageRequest(q)
			if tc.param == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, page)
				return
			}
			var rerr *InvalidRangeError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tc.param, rerr.Param)
		})
	}
}

func TestParseSearchRequest(t *testing.T) {
	q := url.Values{"title": {"dune"}, "author": {""}, "year": {"1965"}}
	filter, err := ParseSearchRequest(q)
	require.NoError(t, err)
	assert.Equal(t, "dune", filter.Title)
	assert.Equal(t, "", filter.Author)
	assert.Equal(t, 1965, *filter.Year)
	assert.False(t, filter.IsEmpty())

	filter, err = ParseSearchRequest(url.Values{"year": {"0"}})
	require.NoError(t, err)
	assert.True(t, filter.IsEmpty())

	_, err = ParseSearchRequest(url.Values{"year": {"MCMLXV"}})
	assert.Error(t, err)
}

func TestParseBookID(t *testing.T) {
	id, err := ParseBookID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-1", "4x", "99999999999999999999"} {
		_, err := ParseBookID(raw)
		assert.Error(t, err, raw)
	}
}

func TestDomainErrors(t *testing.T) {
	testCases := []struct {
		err      error
		expected string
	}{
		{&NotFoundError{ID: 3}, "book with ID 3 not found"},
		{&DuplicateError{Title: "Dune", Author: "Frank Herbert"}, "book 'Dune' by Frank Herbert already exists"},
		{&InvalidRangeError{Param: "skip", Value: "-1", Min: 0}, `invalid skip value "-1": must be an integer greater than or equal to 0`},
		{&StorageError{Op: "count books", Err: errors.New("closed")}, "storage: count books: closed"},
		{&ValidationError{Fields: []FieldError{{"title", "must not be empty"}, {"year", "must be an integer"}}}, "invalid input: title must not be empty; year must be an integer"},
	}
	for _, tc := range testCases {
		assert.EqualError(t, tc.err, tc.expected)
	}

	wrapped := fmt.Errorf("get: %w", &NotFoundError{ID: 1})
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsNotFound(errors.New("other")))

	v := &ValidationError{}
	assert.NoError(t, v.Err())
	v.Add("title", "first")
	v.Add("title", "second")
	assert.Equal(t, []FieldError{{Field: "title", Message: "first"}}, v.Fields)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "george orwell", NormalizeKey("  George ORWELL "))
	assert.Equal(t, NormalizeKey("DUNE"), NormalizeKey("dune"))
}
