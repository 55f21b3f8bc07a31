// Package gateway listens for asynchronous callbacks from the remote task
// system and republishes them as bus notifications.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/omax404/aiko/pkg/bus"
	"github.com/omax404/aiko/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP callback endpoint. The remote agent posts
// {task, message, status} when a delegated task finishes.
type Server struct {
	addr   string
	bus    *bus.MessageBus
	server *http.Server
}

func NewServer(host string, port int, messageBus *bus.MessageBus) *Server {
	s := &Server{
		addr: fmt.Sprintf("%s:%d", host, port),
		bus:  messageBus,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)
	mux.HandleFunc("/health", s.handleHealth)
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	logger.InfoCF("gateway", "Callback listener starting", map[string]any{"addr": s.addr})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway listen: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

type callbackPayload struct {
	Task    string `json:"task"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload callbackPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Task) == "" {
		http.Error(w, "task is required", http.StatusBadRequest)
		return
	}
	if payload.Status == "" {
		payload.Status = "completed"
	}

	logger.InfoCF("gateway", "Task callback received", map[string]any{
		"task":   payload.Task,
		"status": payload.Status,
	})
	s.bus.PublishNotification(bus.Notification{
		Task:    payload.Task,
		Message: payload.Message,
		Status:  payload.Status,
	})

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
