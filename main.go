package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/averyholt/descentbackend/config"
	"github.com/averyholt/descentbackend/database"
	"github.com/averyholt/descentbackend/fallback"
	"github.com/averyholt/descentbackend/handlers"
	"github.com/averyholt/descentbackend/realtime"
	"github.com/averyholt/descentbackend/repository"
	"github.com/averyholt/descentbackend/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		logger.Fatalw("failed to initialize database", "path", cfg.DatabasePath, "error", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		logger.Fatalw("failed to migrate database", "error", err)
	}
	logger.Infow("database ready", "path", cfg.DatabasePath)

	sourceRepo := repository.NewSourceRepository(db)
	individualRepo := repository.NewIndividualRepository(db)
	unionRepo := repository.NewUnionRepository(db)
	flaggedRepo := repository.NewFlaggedLineRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	graphStore := repository.NewGraphStore(db)

	var resolver fallback.LineResolver
	if cfg.FallbackEnabled {
		resolver = fallback.NewOpenAIResolver(cfg.FallbackBaseURL, cfg.FallbackAPIKey, cfg.FallbackModel, cfg.FallbackTimeout, logger)
		logger.Infow("fallback resolver enabled", "model", cfg.FallbackModel)
	} else {
		logger.Info("no fallback resolver configured; unrecognized lines will be flagged")
	}

	hub := realtime.NewHub(logger)
	go hub.Run()

	parseWorker := workers.NewParseWorker(graphStore, resolver, hub, cfg.ParseQueueSize, cfg.NumParseWorkers, cfg.JobTTL, logger)
	defer parseWorker.Stop()

	sourceHandler := &handlers.SourceHandler{Repo: sourceRepo, Log: logger}
	parseHandler := &handlers.ParseHandler{Sources: sourceRepo, Worker: parseWorker, DefaultThreshold: cfg.ConfidenceThreshold, Log: logger}
	individualHandler := &handlers.IndividualHandler{Repo: individualRepo, Log: logger}
	unionHandler := &handlers.UnionHandler{Repo: unionRepo, Log: logger}
	flaggedHandler := &handlers.FlaggedHandler{Repo: flaggedRepo, Resolver: resolver, Log: logger}
	adminHandler := &handlers.AdminHandler{Repo: adminRepo, AdminKeyHash: cfg.AdminKeyHash, Log: logger}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Admin-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handlers.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sources", func(r chi.Router) {
			r.Post("/", sourceHandler.CreateSource)
			r.Get("/", sourceHandler.ListSources)
			r.Route("/{sourceID}", func(r chi.Router) {
				r.Get("/", sourceHandler.GetSource)
				r.Delete("/", sourceHandler.DeleteSource)
				r.Put("/pages", sourceHandler.PutPages)
				r.Get("/pages", sourceHandler.GetPages)
				r.Post("/parse", parseHandler.StartParse)
				r.Get("/individuals", individualHandler.SearchIndividuals)
				r.Get("/unions", unionHandler.ListUnions)
				r.Get("/flagged", flaggedHandler.ListFlagged)
				r.Get("/duplicates", individualHandler.ListDuplicates)
				r.Post("/merge", individualHandler.MergeIndividuals)
			})
		})

		r.Route("/parse/jobs/{jobID}", func(r chi.Router) {
			r.Get("/", parseHandler.GetJob)
			r.Delete("/", parseHandler.CancelJob)
			r.Post("/cancel", parseHandler.CancelJob)
		})

		r.Get("/individuals", individualHandler.SearchIndividuals)
		r.Route("/individuals/{individualID}", func(r chi.Router) {
			r.Get("/", individualHandler.GetIndividual)
			r.Patch("/", individualHandler.UpdateIndividual)
			r.Delete("/", individualHandler.DeleteIndividual)
		})

		r.Route("/unions/{unionID}", func(r chi.Router) {
			r.Get("/", unionHandler.GetUnion)
			r.Patch("/", unionHandler.UpdateUnion)
			r.Post("/reparent", unionHandler.ReparentChild)
		})

		r.Route("/flagged/{flaggedID}", func(r chi.Router) {
			r.Post("/resolve", flaggedHandler.ResolveFlagged)
			r.Post("/retry", flaggedHandler.RetryFlagged)
		})

		r.Delete("/admin/data", adminHandler.PurgeData)
	})

	r.Get("/ws", hub.ServeWS)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Infow("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server shutdown error", "error", err)
	}
}
