package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newNopMiddlewareMap returns chains without any middleware.
func newNopMiddlewareMap() *MiddlewareMap {
	return &MiddlewareMap{public: (&Middlewares{}).Chain, ops: (&Middlewares{}).Chain}
}

func newRouterTestBookService() *MockBookService {
	return &MockBookService{
		CreateFunc: func(ctx context.Context, req CreateBookRequest) (Book, error) {
			return testBook(), nil
		},
		ListFunc: func(ctx context.Context, page PageRequest) ([]Book, int, error) {
			return []Book{}, 0, nil
		},
		GetFunc: func(ctx context.Context, id int64) (Book, error) {
			return testBook(), nil
		},
		UpdateFunc: func(ctx context.Context, id int64, req UpdateBookRequest) (Book, error) {
			return testBook(), nil
		},
		DeleteFunc: func(ctx context.Context, id int64) error {
			return nil
		},
		SearchFunc: func(ctx context.Context, filter BookFilter) ([]Book, error) {
			return []Book{}, nil
		},
	}
}

// TestSetupBookRoutes ensures all expected book endpoints are implemented.
func TestSetupBookRoutes(t *testing.T) {
	testCases := []struct {
		name        string
		request     *http.Request
		implemented bool
	}{
		{
			"index endpoint",
			httptest.NewRequest(http.MethodGet, "/", nil),
			true,
		},
		{
			"health endpoint",
			httptest.NewRequest(http.MethodGet, "/health", nil),
			true,
		},
		{
			"create book endpoint",
			httptest.NewRequest(http.MethodPost, "/v1/books", nil),
			true,
		},
		{
			"fetch all books endpoint",
			httptest.NewRequest(http.MethodGet, "/v1/books", nil),
			true,
		},
		{
			"fetch all books endpoint with slash",
			httptest.NewRequest(http.MethodGet, "/v1/books/", nil),
			true,
		},
		{
			"search books endpoint",
			httptest.NewRequest(http.MethodGet, "/v1/books/search?title=dune", nil),
			true,
		},
		{
			"fetch single book endpoint",
			httptest.NewRequest(http.MethodGet, "/v1/books/1", nil),
			true,
		},
		{
			"update book endpoint",
			httptest.NewRequest(http.MethodPut, "/v1/books/1", nil),
			true,
		},
		{
			"delete book endpoint",
			httptest.NewRequest(http.MethodDelete, "/v1/books/1", nil),
			true,
		},
		{
			"invalid api endpoint",
			httptest.NewRequest(http.MethodGet, "/v1", nil),
			false,
		},
		{
			"invalid books endpoint",
			httptest.NewRequest(http.MethodGet, "/books", nil),
			false,
		},
		{
			"nested books endpoint",
			httptest.NewRequest(http.MethodGet, "/v1/books/1/reviews", nil),
			false,
		},
	}

	api := newTestAPIHandler(newRouterTestBookService())
	router := httprouter.New()
	api.SetupBookRoutes(router, newNopMiddlewareMap())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tc.request)
			if tc.implemented {
				assert.NotEqual(t, 404, w.Code)
			} else {
				assert.Equal(t, 404, w.Code)
			}
		})
	}
}

// TestSetupOpsRoutes ensures all expected operations endpoints are implemented.
func TestSetupOpsRoutes(t *testing.T) {
	testCases := []struct {
		name        string
		profiler    bool
		request     *http.Request
		implemented bool
	}{
		{"fetch configs endpoint", false, httptest.NewRequest(http.MethodGet, "/ops/configs", nil), true},
		{"fetch stats endpoint", false, httptest.NewRequest(http.MethodGet, "/ops/stats", nil), true},
		{"maintenance mode endpoint", false, httptest.NewRequest(http.MethodGet, "/ops/maintenance?status=disable", nil), true},
		{"metrics endpoint", false, httptest.NewRequest(http.MethodGet, "/ops/metrics", nil), true},
		{"journal endpoint", false, httptest.NewRequest(http.MethodGet, "/ops/journal", nil), true},
		{"readiness endpoint", false, httptest.NewRequest(http.MethodGet, "/ops/ready", nil), true},
		{"expvar endpoint", false, httptest.NewRequest(http.MethodGet, "/ops/debug/vars", nil), true},
		{"invalid ops endpoint", false, httptest.NewRequest(http.MethodGet, "/ops", nil), false},
		{"unknown ops endpoint", false, httptest.NewRequest(http.MethodGet, "/ops/unknown", nil), false},
		{"disabled profiler endpoint", false, httptest.NewRequest(http.MethodGet, "/ops/debug/pprof/", nil), false},
		{"enabled profiler endpoint", true, httptest.NewRequest(http.MethodGet, "/ops/debug/pprof/", nil), true},
		{"enabled profiler heap endpoint", true, httptest.NewRequest(http.MethodGet, "/ops/debug/pprof/heap", nil), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPIHandler(nil).WithMetrics(NewMetrics())
			api.config.ProfilerEnable = tc.profiler
			router := httprouter.New()
			api.SetupOpsRoutes(router, newNopMiddlewareMap())
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tc.request)
			if tc.implemented {
				assert.NotEqual(t, 404, w.Code)
			} else {
				assert.Equal(t, 404, w.Code)
			}
		})
	}
}

// TestSetupRoutes ensures all expected endpoints are implemented.
func TestSetupRoutes(t *testing.T) {
	testCases := []struct {
		name               string
		OpsEndpointsEnable bool
		request            *http.Request
		implemented        bool
	}{
		{
			"ops disable:fetch configs endpoint",
			false,
			httptest.NewRequest(http.MethodGet, "/ops/configs", nil),
			false,
		},
		{
			"ops enable:fetch configs endpoint",
			true,
			httptest.NewRequest(http.MethodGet, "/ops/configs", nil),
			true,
		},
		{
			"ops enable:disabled profiler endpoint",
			true,
			httptest.NewRequest(http.MethodGet, "/ops/debug/pprof/", nil),
			false,
		},
		{
			"ops disable:create book endpoint",
			false,
			httptest.NewRequest(http.MethodPost, "/v1/books", nil),
			true,
		},
		{
			"ops enable:create book endpoint",
			true,
			httptest.NewRequest(http.MethodPost, "/v1/books", nil),
			true,
		},
		{
			"swagger ui endpoint",
			false,
			httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil),
			true,
		},
		{
			"swagger document endpoint",
			false,
			httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil),
			true,
		},
		{
			"invalid ops endpoint",
			false,
			httptest.NewRequest(http.MethodGet, "/ops/", nil),
			false,
		},
		{
			"invalid book endpoint",
			false,
			httptest.NewRequest(http.MethodGet, "/books/", nil),
			false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPIHandler(newRouterTestBookService()).WithMetrics(NewMetrics())
			api.config.OpsEndpointsEnable = tc.OpsEndpointsEnable
			router := httprouter.New()
			api.SetupRoutes(router, newNopMiddlewareMap())
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tc.request)
			if tc.implemented {
				assert.NotEqual(t, 404, w.Code)
			} else {
				assert.Equal(t, 404, w.Code)
			}
		})
	}
}

// TestSetupRoutes_NotFound ensures exact status code and json response body when a user requests an inexistant route.
func TestSetupRoutes_NotFound(t *testing.T) {
	api := newTestAPIHandler(nil)
	router := httprouter.New()
	api.SetupRoutes(router, newNopMiddlewareMap())
	r := httptest.NewRequest(http.MethodGet, "/x/books/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "application/json; charset=UTF-8", res.Header.Get("Content-Type"))
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	expected := `{"requestid":"", "status":404, "message":"the requested resource could not be found", "data":{}}`
	assert.JSONEq(t, expected, string(data))
}

// TestSetupRoutes_MethodNotAllowed ensures a known path with an unsupported method gets 405.
func TestSetupRoutes_MethodNotAllowed(t *testing.T) {
	api := newTestAPIHandler(nil)
	router := httprouter.New()
	api.SetupRoutes(router, newNopMiddlewareMap())
	r := httptest.NewRequest(http.MethodPatch, "/v1/books", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	assert.Contains(t, res.Header.Get("Allow"), http.MethodPost)
	assert.Equal(t, "the PATCH method is not supported for this resource", decodeResponse(t, res)["message"])
}
