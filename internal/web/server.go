package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/powerman/structlog"
	"github.com/rs/cors"

	"github.com/uidai-stress/internal/dataset"
	"github.com/uidai-stress/internal/store"
	"github.com/uidai-stress/internal/web/handlers"
	"github.com/uidai-stress/internal/web/middleware"
)

var log = structlog.New()

// Server represents the web server
type Server struct {
	config     *Config
	loader     *dataset.Loader
	store      *store.Store
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance
func NewServer(config *Config) (*Server, error) {
	server := &Server{
		config: config,
		loader: dataset.NewLoader(config.Data.OutputDir),
	}

	if config.Features.RunHistoryEnabled {
		st, err := store.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		if err := st.Migrate(context.Background()); err != nil {
			log.ErrIfFail(st.Close)
			return nil, fmt.Errorf("failed to migrate run store: %w", err)
		}
		server.store = st
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      server.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.config.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		MaxAge:         86400,
	})
	s.router.Use(corsHandler.Handler)
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestLogging())

	dataHandler := &handlers.DataHandler{Loader: s.loader}

	api := s.router.PathPrefix("/api").Subrouter()

	// Core dataset endpoints
	api.HandleFunc("/health", dataHandler.Health).Methods("GET")
	api.HandleFunc("/summary", dataHandler.GetSummary).Methods("GET")
	api.HandleFunc("/districts", dataHandler.ListDistricts).Methods("GET")
	api.HandleFunc("/districts/top", dataHandler.TopDistricts).Methods("GET")
	api.HandleFunc("/districts/least", dataHandler.LeastDistricts).Methods("GET")
	api.HandleFunc("/states", dataHandler.ListStates).Methods("GET")
	api.HandleFunc("/states/summary", dataHandler.StateSummaries).Methods("GET")
	api.HandleFunc("/states/{state}/districts", dataHandler.ListStateDistricts).Methods("GET")
	api.HandleFunc("/map", dataHandler.GetMapPoints).Methods("GET")
	api.HandleFunc("/refresh", dataHandler.Refresh).Methods("POST")

	// Run history endpoints
	if s.store != nil {
		runsHandler := &handlers.RunsHandler{Store: s.store}
		api.HandleFunc("/runs", runsHandler.ListRuns).Methods("GET")
		api.HandleFunc("/runs/latest", runsHandler.LatestRun).Methods("GET")
		api.HandleFunc("/runs/{id}/districts", runsHandler.RunProfiles).Methods("GET")
	}

	// Artefact downloads
	if s.config.Features.DownloadsEnabled {
		downloadHandler := &handlers.DownloadHandler{Dir: s.config.Data.OutputDir}
		api.HandleFunc("/downloads/{file}", downloadHandler.Download).Methods("GET")
	}

	if s.config.Auth.APIKey != "" {
		api.Use(middleware.Authentication(s.config.Auth.APIKey))
	}
}

// Start runs the server until SIGINT or SIGTERM, then shuts down
// gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.PrintErr(err)
		}
	}()

	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if s.store != nil {
		log.ErrIfFail(s.store.Close)
	}
	log.Info("server stopped")
	return nil
}
