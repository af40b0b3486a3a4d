// Package main our entry point.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kayelam/huddle/internal"
	"github.com/kayelam/huddle/internal/config"
	"github.com/kayelam/huddle/internal/handler"
	"github.com/kayelam/huddle/internal/ratelimit"
	"github.com/kayelam/huddle/internal/store"
	"github.com/kayelam/huddle/internal/ws"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	log.Println("Initializing database connection...")

	dbConn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("could not connect to the postgresql database: %v", err)
	}

	db := store.New(dbConn)

	// hub.Run is our central hub that is always listening for client
	// related events.
	hub := ws.NewHub(db, cfg.TypingQuiet, slog.Default())
	go hub.Run(ctx)

	authLimiter := ratelimit.NewIPRateLimiter(cfg.AuthRateRequests, cfg.AuthRateWindow,
		ratelimit.CleanupOpts{TTL: 10 * time.Minute, Interval: time.Minute})
	defer authLimiter.Cancel()

	authed := internal.Middleware(db, cfg.JWTSecret, cfg.JWTIssuer)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Route("/api/user", func(r chi.Router) {
		r.With(authLimiter.Middleware).Post("/", handler.Signup(db, cfg.JWTSecret, cfg.JWTIssuer))
		r.With(authLimiter.Middleware).Post("/login", handler.Login(db, cfg.JWTSecret, cfg.JWTIssuer))
		r.Post("/logout", handler.Logout(db))
		r.With(authed).Get("/", handler.SearchUsers(db))
	})

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(authed)
		r.Post("/", handler.AccessChat(db))
		r.Get("/", handler.FetchChats(db))
		r.Post("/group", handler.CreateGroup(db))
		r.Put("/rename", handler.RenameGroup(db))
		r.Put("/groupadd", handler.AddToGroup(db))
		r.Put("/groupremove", handler.RemoveFromGroup(db))
	})

	r.Route("/api/message", func(r chi.Router) {
		r.Use(authed)
		r.Post("/", handler.SendMessage(db))
		r.Get("/{chatID}", handler.AllMessages(db))
	})

	r.With(authed).Get("/ws", handler.ServeWs(hub))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := dbConn.Ping(r.Context()); err != nil {
			http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		log.Printf("Server starting at %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutdown signal received; shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println(err)
	}

	dbConn.Close()

	log.Println("Server stopped")
}
