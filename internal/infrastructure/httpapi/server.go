// Package httpapi exposes a read-only query surface over the supervision
// state, plus the websocket push endpoint. It never mutates anything; all
// writes go through the poll loop.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"LineSupervisor/internal/ports"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	trailingLimit   = 100
)

// Server serves the supervision read API.
type Server struct {
	parts      ports.PartStore
	workorders ports.WorkorderStore
	anomalies  ports.AnomalyStore
	events     ports.EventStore
	ws         http.Handler
	logger     *slog.Logger

	srv *http.Server
}

// NewServer wires stores and the websocket handler into a router.
func NewServer(addr string, parts ports.PartStore, workorders ports.WorkorderStore,
	anomalies ports.AnomalyStore, events ports.EventStore, ws http.Handler, logger *slog.Logger) *Server {

	s := &Server{
		parts:      parts,
		workorders: workorders,
		anomalies:  anomalies,
		events:     events,
		ws:         ws,
		logger:     logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/anomalies", s.listAnomalies).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/parts", s.listParts).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/parts/{externalId}", s.partDetail).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/workorders", s.listWorkorders).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/workorders/{id:[0-9]+}", s.workorderDetail).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if ws != nil {
		r.Handle("/ws", ws)
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listAnomalies(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	anomalies, err := s.anomalies.List(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, "list anomalies", err)
		return
	}
	s.writeJSON(w, http.StatusOK, anomalies)
}

func (s *Server) listParts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	parts, err := s.parts.List(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, "list parts", err)
		return
	}
	s.writeJSON(w, http.StatusOK, parts)
}

func (s *Server) partDetail(w http.ResponseWriter, r *http.Request) {
	externalID := mux.Vars(r)["externalId"]

	part, err := s.parts.ByExternalID(r.Context(), externalID)
	if err != nil {
		s.fail(w, "load part", err)
		return
	}
	if part == nil {
		http.Error(w, "part not found", http.StatusNotFound)
		return
	}

	events, err := s.events.ListForPart(r.Context(), externalID, trailingLimit)
	if err != nil {
		s.fail(w, "load part events", err)
		return
	}
	anomalies, err := s.anomalies.ListForPart(r.Context(), externalID, trailingLimit)
	if err != nil {
		s.fail(w, "load part anomalies", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"part":      part,
		"events":    events,
		"anomalies": anomalies,
	})
}

func (s *Server) listWorkorders(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	orders, err := s.workorders.List(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, "list workorders", err)
		return
	}
	s.writeJSON(w, http.StatusOK, orders)
}

func (s *Server) workorderDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid workorder id", http.StatusBadRequest)
		return
	}

	wo, err := s.workorders.ByID(r.Context(), id)
	if err != nil {
		s.fail(w, "load workorder", err)
		return
	}
	if wo == nil {
		http.Error(w, "workorder not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, wo)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && s.logger != nil {
		s.logger.Debug("encode response", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	if s.logger != nil {
		s.logger.Error(op, "error", err)
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func pageParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
