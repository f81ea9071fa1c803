package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/chatroomd/chatroomd/internal/auth"
	"github.com/chatroomd/chatroomd/internal/config"
	"github.com/chatroomd/chatroomd/internal/database"
	"github.com/chatroomd/chatroomd/internal/server"
	"github.com/chatroomd/chatroomd/internal/stats"
	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
)

type Server struct {
	log      *log.Logger
	db       database.Repository
	cs       *server.ChatServer
	auth     *auth.TokenAuthenticator
	upgrader websocket.Upgrader
	srv      *http.Server
}

func NewServer(logger *log.Logger, cs *server.ChatServer, db database.Repository, ta *auth.TokenAuthenticator, su *stats.StatsUpdater, cfg *config.Config) *Server {
	s := &Server{
		log:      logger,
		db:       db,
		cs:       cs,
		auth:     ta,
		upgrader: newUpgrader(cfg.AllowedOrigins),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.HandleFunc("GET /api/rooms", s.authMiddleware(s.getRoom))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))
	if su != nil {
		mux.Handle("GET /debug/vars", su.Handler())
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *Server) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
