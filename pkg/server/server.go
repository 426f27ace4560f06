// Package server exposes the chat service over HTTP: a websocket chat
// endpoint per identity plus token login/logout endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adforge/adforge/pkg/adchat"
	"github.com/adforge/adforge/pkg/session"
)

// Server routes HTTP traffic into the chat hub.
type Server struct {
	hub      *adchat.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New wires the routes. The hub's session manager backs the auth
// endpoints.
func New(hub *adchat.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		hub:      hub,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/v1/auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /ws/{identity}", s.handleChannel)
	return s
}

// Handler returns the server's HTTP handler, for mounting or tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe blocks until ctx is done, then drains in-flight
// requests and closes the hub.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{Addr: addr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	s.logger.Info("server: listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := httpSrv.Shutdown(sctx)
	_ = s.hub.Close()
	return err
}

type authRequest struct {
	Token string `json:"token"`
}

type authUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Identity string `json:"identity"`
}

type loginResponse struct {
	Message string   `json:"message"`
	User    authUser `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "token is required"})
		return
	}

	rec, err := s.hub.Sessions().Login(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, session.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
			return
		}
		s.logger.Error("server: login failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "login failed"})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message: "success",
		User:    authUser{Name: rec.Name, Email: rec.Email, Identity: rec.Identity},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "token is required"})
		return
	}

	// Logging out an already-expired token still succeeds.
	if err := s.hub.Sessions().Logout(r.Context(), req.Token); err != nil {
		s.logger.Error("server: logout failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "logout failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "success"})
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")
	if identity == "" {
		http.Error(w, "identity required", http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server: websocket upgrade failed", "identity", identity, "err", err)
		return
	}

	conn := newWSConn(ws)
	if err := s.hub.ServeChannel(r.Context(), identity, conn); err != nil {
		if errors.Is(err, session.ErrUnauthorized) {
			s.logger.Info("server: channel rejected", "identity", identity)
			return
		}
		s.logger.Warn("server: channel ended", "identity", identity, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
