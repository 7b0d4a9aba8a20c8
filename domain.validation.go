package main

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

// Input bounds of a book record and of the listing window.
const (
	TitleMaxLength  = 200
	AuthorMaxLength = 100
	YearMin         = 1000
	YearMax         = 2100
	DefaultSkip     = 0
	DefaultLimit    = 100
	MaxLimit        = 500
)

type fieldState int

const (
	fieldAbsent fieldState = iota
	fieldNull
	fieldInvalid
	fieldSet
)

// ParseCreateBookRequest decodes a raw creation payload and validates it.
// Unknown fields are ignored. All violations are reported at once.
func ParseCreateBookRequest(body []byte) (CreateBookRequest, error) {
	var req CreateBookRequest
	fields, err := decodeFields(body)
	if err != nil {
		return req, err
	}

	v := &ValidationError{}
	title, state := stringField(v, fields, "title")
	if state == fieldAbsent || state == fieldNull {
		v.Add("title", "must be provided")
	}
	author, state := stringField(v, fields, "author")
	if state == fieldAbsent || state == fieldNull {
		v.Add("author", "must be provided")
	}
	year, _ := yearField(v, fields)

	req = CreateBookRequest{Title: title, Author: author, Year: year}
	req.check(v)
	return req, v.Err()
}

// ParseUpdateBookRequest decodes a raw partial update payload and validates
// the supplied fields. An explicit null year clears it.
func ParseUpdateBookRequest(body []byte) (UpdateBookRequest, error) {
	var req UpdateBookRequest
	fields, err := decodeFields(body)
	if err != nil {
		return req, err
	}

	v := &ValidationError{}
	if title, state := stringField(v, fields, "title"); state == fieldSet {
		req.Title = Some(title)
	} else if state == fieldNull {
		v.Add("title", "must not be null")
	}
	if author, state := stringField(v, fields, "author"); state == fieldSet {
		req.Author = Some(author)
	} else if state == fieldNull {
		v.Add("author", "must not be null")
	}
	if year, state := yearField(v, fields); state == fieldSet || state == fieldNull {
		req.Year = Some(year)
	}

	req.check(v)
	return req, v.Err()
}

// Validate checks the bounds of every field.
func (r CreateBookRequest) Validate() error {
	v := &ValidationError{}
	r.check(v)
	return v.Err()
}

func (r CreateBookRequest) check(v *ValidationError) {
	checkTitle(v, r.Title)
	checkAuthor(v, r.Author)
	checkYear(v, r.Year)
}

// Validate checks the bounds of the supplied fields only.
func (r UpdateBookRequest) Validate() error {
	v := &ValidationError{}
	r.check(v)
	return v.Err()
}

func (r UpdateBookRequest) check(v *ValidationError) {
	if r.Title.Set {
		checkTitle(v, r.Title.Value)
	}
	if r.Author.Set {
		checkAuthor(v, r.Author.Value)
	}
	if r.Year.Set {
		checkYear(v, r.Year.Value)
	}
}

func checkTitle(v *ValidationError, title string) {
	v.Check(title != "", "title", "must not be empty")
	v.Check(utf8.RuneCountInString(title) <= TitleMaxLength, "title", "must not be more than 200 characters long")
}

func checkAuthor(v *ValidationError, author string) {
	v.Check(author != "", "author", "must not be empty")
	v.Check(utf8.RuneCountInString(author) <= AuthorMaxLength, "author", "must not be more than 100 characters long")
}

func checkYear(v *ValidationError, year *int) {
	if year == nil {
		return
	}
	v.Check(*year >= YearMin && *year <= YearMax, "year", "must be between 1000 and 2100")
}

// decodeFields splits a JSON object into its raw members.
func decodeFields(body []byte) (map[string]jsoniter.RawMessage, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ValidationError{Fields: []FieldError{{Field: "body", Message: "must not be empty"}}}
	}
	fields := map[string]jsoniter.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "body", Message: "must be a valid JSON object"}}}
	}
	return fields, nil
}

func isNull(raw jsoniter.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// stringField reads and trims a text member. Type errors are recorded in v.
func stringField(v *ValidationError, fields map[string]jsoniter.RawMessage, name string) (string, fieldState) {
	raw, ok := fields[name]
	if !ok {
		return "", fieldAbsent
	}
	if isNull(raw) {
		return "", fieldNull
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		v.Add(name, "must be a string")
		return "", fieldInvalid
	}
	return strings.TrimSpace(s), fieldSet
}

// yearField reads the optional year member. Type errors are recorded in v.
func yearField(v *ValidationError, fields map[string]jsoniter.RawMessage) (*int, fieldState) {
	raw, ok := fields["year"]
	if !ok {
		return nil, fieldAbsent
	}
	if isNull(raw) {
		return nil, fieldNull
	}
	var year int
	if err := json.Unmarshal(raw, &year); err != nil {
		v.Add("year", "must be an integer")
		return nil, fieldInvalid
	}
	return &year, fieldSet
}

// ParsePageRequest reads the skip and limit query parameters.
func ParsePageRequest(q url.Values) (PageRequest, error) {
	page := PageRequest{Skip: DefaultSkip, Limit: DefaultLimit}
	if s := q.Get("skip"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return page, &InvalidRangeError{Param: "skip", Value: s, Min: 0}
		}
		page.Skip = n
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return page, &InvalidRangeError{Param: "limit", Value: s, Min: 1, Max: MaxLimit}
		}
		page.Limit = n
	}
	return page, page.Validate()
}

// Validate checks the window bounds.
func (p PageRequest) Validate() error {
	if p.Skip < 0 {
		return &InvalidRangeError{Param: "skip", Value: strconv.Itoa(p.Skip), Min: 0}
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return &InvalidRangeError{Param: "limit", Value: strconv.Itoa(p.Limit), Min: 1, Max: MaxLimit}
	}
	return nil
}

// ParseSearchRequest reads the optional search criteria. Empty values
// and a zero year are treated as not supplied.
func ParseSearchRequest(q url.Values) (BookFilter, error) {
	filter := BookFilter{
		Title:  q.Get("title"),
		Author: q.Get("author"),
	}
	if s := q.Get("year"); s != "" {
		year, err := strconv.Atoi(s)
		if err != nil {
			return filter, &ValidationError{Fields: []FieldError{{Field: "year", Message: "must be an integer"}}}
		}
		if year != 0 {
			filter.Year = &year
		}
	}
	return filter, nil
}

// ParseBookID converts a path parameter into a book id.
func ParseBookID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, &ValidationError{Fields: []FieldError{{Field: "id", Message: "must be a positive integer"}}}
	}
	return id, nil
}
