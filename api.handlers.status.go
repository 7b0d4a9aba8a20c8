package main

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const (
	ServiceName    = "book-collection-api"
	ServiceVersion = "1.0.0"
)

// Index godoc
// @Summary      Welcome message with the available endpoints
// @Tags         status
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       / [get]
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	err := WriteJSON(w, http.StatusOK, map[string]interface{}{
		"requestid":   requestID,
		"message":     "Welcome to the Book Collection API",
		"description": "Manage a personal book collection: create, list, search, update and delete books.",
		"version":     ServiceVersion,
		"endpoints": map[string]string{
			"create":  "POST /v1/books",
			"list":    "GET /v1/books?skip=0&limit=100",
			"search":  "GET /v1/books/search?title=&author=&year=",
			"get":     "GET /v1/books/{id}",
			"update":  "PUT /v1/books/{id}",
			"delete":  "DELETE /v1/books/{id}",
			"health":  "GET /health",
			"swagger": "GET /swagger/index.html",
		},
		"documentation": "/swagger/index.html",
	})
	if err != nil {
		api.logger.Error("failed to send index response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// Health godoc
// @Summary      Liveness probe
// @Tags         status
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (api *APIHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	err := WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   ServiceName,
		"timestamp": api.clock.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		api.logger.Error("failed to send health response", zap.String("request.id", requestID), zap.Error(err))
	}
}
