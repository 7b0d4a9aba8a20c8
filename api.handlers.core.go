package main

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// APIHandler defines the API handler.
type APIHandler struct {
	logger      *zap.Logger
	config      *Config
	stats       *Statistics
	mode        *Maintenance
	clock       Clocker
	idsHandler  UIDHandler
	metrics     *Metrics
	limiter     *IPRateLimiter
	journal     BookJournal
	pinger      Pinger
	bookService BookServiceProvider
}

// Pinger checks a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewAPIHandler provides a new instance of APIHandler.
func NewAPIHandler(logger *zap.Logger, config *Config, stats *Statistics, clock Clocker, idsHandler UIDHandler, bs BookServiceProvider) *APIHandler {
	m := &Maintenance{}
	m.enabled.Store(false)
	stats.status = make(map[int]uint64)
	stats.mu = &sync.RWMutex{}
	if config == nil {
		config = &Config{}
	}
	return &APIHandler{
		logger:      logger,
		config:      config,
		stats:       stats,
		mode:        m,
		clock:       clock,
		idsHandler:  idsHandler,
		bookService: bs,
	}
}

// WithMetrics attaches the prometheus collectors.
func (api *APIHandler) WithMetrics(m *Metrics) *APIHandler {
	api.metrics = m
	return api
}

// WithRateLimiter attaches the per-ip rate limiter.
func (api *APIHandler) WithRateLimiter(rl *IPRateLimiter) *APIHandler {
	api.limiter = rl
	return api
}

// WithJournal attaches the book changes journal served on ops routes.
func (api *APIHandler) WithJournal(j BookJournal) *APIHandler {
	api.journal = j
	return api
}

// WithPinger attaches the backend probed by the readiness endpoint.
func (api *APIHandler) WithPinger(p Pinger) *APIHandler {
	api.pinger = p
	return api
}

// mapServiceError converts a service error into the status code,
// the client message and the data of the error response.
func mapServiceError(err error) (int, string, interface{}) {
	var (
		verr *ValidationError
		rerr *InvalidRangeError
		nerr *NotFoundError
		derr *DuplicateError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error(), verr.Fields
	case errors.As(err, &rerr):
		return http.StatusBadRequest, rerr.Error(), EmptyData
	case errors.As(err, &nerr):
		return http.StatusNotFound, nerr.Error(), EmptyData
	case errors.As(err, &derr):
		return http.StatusConflict, derr.Error(), EmptyData
	default:
		return http.StatusInternalServerError, "failed to process the request. please try again later.", EmptyData
	}
}

// writeServiceError logs the failure of action then sends the mapped error response.
func (api *APIHandler) writeServiceError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	logger := api.GetLoggerFromContext(ctx)
	status, message, data := mapServiceError(err)
	if status == http.StatusInternalServerError {
		logger.Error("failed to "+action, zap.String("request.id", requestID), zap.Error(err))
	} else {
		logger.Info("failed to "+action, zap.String("request.id", requestID), zap.Int("status", status), zap.Error(err))
	}

	errResp := NewAPIError(requestID, status, message, data)
	if err = WriteErrorResponse(ctx, w, errResp); err != nil {
		logger.Error("failed to send error response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// writeSuccess sends a success envelope and logs any write failure.
func (api *APIHandler) writeSuccess(ctx context.Context, w http.ResponseWriter, resp *APIResponse) {
	if err := WriteResponse(ctx, w, resp); err != nil {
		api.GetLoggerFromContext(ctx).Error("failed to send response", zap.String("request.id", resp.RequestID), zap.Error(err))
	}
}

// NotFound replies to requests on unknown routes.
func (api *APIHandler) NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
		errResp := NewAPIError(requestID, http.StatusNotFound, "the requested resource could not be found", EmptyData)
		if err := WriteErrorResponse(r.Context(), w, errResp); err != nil {
			api.logger.Error("failed to send not found response", zap.Error(err))
		}
	})
}

// MethodNotAllowed replies to requests with an unsupported method on a known route.
func (api *APIHandler) MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
		errResp := NewAPIError(requestID, http.StatusMethodNotAllowed, "the "+r.Method+" method is not supported for this resource", EmptyData)
		if err := WriteErrorResponse(r.Context(), w, errResp); err != nil {
			api.logger.Error("failed to send method not allowed response", zap.Error(err))
		}
	})
}
