// Package api exposes the HTTP interface for the relay service:
// health and metrics endpoints plus request submission for front ends
// that speak HTTP instead of the bus protocol.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/metrics"
	"github.com/mediarelay/mediarelay/internal/relay"
)

// Server wires HTTP handlers to the bus and metadata store.
type Server struct {
	router  chi.Router
	bus     relay.Bus
	store   relay.MetadataStore
	idGen   relay.IDGenerator
	channel string
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	bus relay.Bus,
	store relay.MetadataStore,
	idGen relay.IDGenerator,
	channel string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		bus:     bus,
		store:   store,
		idGen:   idGen,
		channel: channel,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/requests", s.submitRequest)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store answers even for absent keys when the backend is up.
	_, err := s.store.Get(r.Context(), "readiness-probe")
	if err != nil && !errors.Is(err, relay.ErrKeyNotFound) {
		writeError(w, http.StatusServiceUnavailable, "metadata store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitRequestBody struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	URL       string `json:"url"`
}

func (s *Server) submitRequest(w http.ResponseWriter, r *http.Request) {
	var body submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}

	correlationID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate correlation id")
		return
	}
	req := relay.Request{
		CorrelationID: correlationID,
		ChatID:        body.ChatID,
		MessageID:     body.MessageID,
		URL:           body.URL,
	}

	publishCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.bus.Publish(publishCtx, s.channel, req); err != nil {
		s.logger.Error("publishing request failed",
			zap.String("correlation_id", correlationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "publish request")
		return
	}

	s.logger.Info("request accepted",
		zap.String("correlation_id", correlationID),
		zap.String("url", body.URL))
	writeJSON(w, http.StatusAccepted, map[string]string{"correlation_id": correlationID})
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, err := s.idGen.NewID()
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered in http handler", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		fmt.Fprintf(w, `{"error":"encode response"}`)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
