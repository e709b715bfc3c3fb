package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-hl7-service/internal/adapters"
	"github.com/otcheredev/ris-hl7-service/internal/cache"
	"github.com/otcheredev/ris-hl7-service/internal/config"
	"github.com/otcheredev/ris-hl7-service/internal/database"
	"github.com/otcheredev/ris-hl7-service/internal/dispatch"
	"github.com/otcheredev/ris-hl7-service/internal/handlers"
	"github.com/otcheredev/ris-hl7-service/internal/hl7"
	"github.com/otcheredev/ris-hl7-service/internal/middleware"
	"github.com/otcheredev/ris-hl7-service/internal/records"
	"github.com/otcheredev/ris-hl7-service/internal/scheduling"
	"github.com/otcheredev/ris-hl7-service/internal/services"
	"github.com/otcheredev/ris-hl7-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting HL7 service")

	// Load validation rule documents. A broken rule document is a
	// deployment fault, not a runtime condition.
	validator, err := hl7.LoadPatternValidator(cfg.HL7.MessageRules, cfg.HL7.SegmentRules)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load validation rules")
	}

	// Connect to database
	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	}

	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Initialize cache for booking holds
	var cacheImpl cache.Cache
	if cfg.Cache.Enabled && cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		cacheImpl, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Redis cache initialized")
	} else {
		cacheImpl = cache.NewMemoryCache()
		log.Info().Msg("Memory cache initialized")
	}

	// Initialize record store
	store := records.NewGormStore()

	// Initialize counterpart senders
	senderFactory := adapters.NewFactory(
		adapters.CounterpartConfig{
			Name:    cfg.HL7.HISName,
			Type:    adapters.SenderMLLP,
			Addr:    cfg.HL7.HISAddr,
			Timeout: cfg.HL7.OutboundTimeout,
		},
		adapters.CounterpartConfig{
			Name:    cfg.HL7.ModalityAET,
			Type:    adapters.SenderHTTP,
			Addr:    cfg.HL7.ModalityURL,
			Timeout: cfg.HL7.OutboundTimeout,
		},
	)
	defer senderFactory.CloseAll()

	// Initialize scheduler
	scheduler, err := scheduling.NewScheduler(store, cacheImpl, cfg.Scheduling.ShiftStart, cfg.Scheduling.ShiftEnd, cfg.Scheduling.DayRange)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}

	// Outbound identities per counterpart
	hisIdentity := hl7.Identity{
		Application:      cfg.HL7.Application,
		Facility:         cfg.HL7.Facility,
		Receiver:         cfg.HL7.HISName,
		ReceiverFacility: cfg.HL7.Facility,
	}
	modalityIdentity := hl7.Identity{
		Application:      cfg.HL7.Application,
		Facility:         cfg.HL7.Facility,
		Receiver:         cfg.HL7.ModalityAET,
		ReceiverFacility: cfg.HL7.Facility,
	}

	// Initialize services
	dispatcher := dispatch.New(store, cfg.HL7.Application)
	protocolService := services.NewProtocolService(store, validator, dispatcher, cfg.HL7.Facility, cfg.HL7.Application)
	scheduleService := services.NewScheduleService(store, scheduler, senderFactory, hisIdentity, cfg.HL7.HISName)
	worklistService := services.NewWorklistService(store, senderFactory, modalityIdentity, cfg.HL7.ModalityAET)
	annotator := services.NewAnnotationClient(cfg.Annotation.URL, &http.Client{Timeout: cfg.Annotation.Timeout})
	reportService := services.NewReportService(store, annotator, senderFactory, modalityIdentity, cfg.HL7.ModalityAET, hisIdentity, cfg.HL7.HISName)
	patientService := services.NewPatientService(store, senderFactory, hisIdentity, cfg.HL7.HISName)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	inboundHandler := handlers.NewInboundHandler(protocolService)
	notificationHandler := handlers.NewNotificationHandler(worklistService)
	staffHandler := handlers.NewStaffHandler(scheduleService, worklistService, reportService, patientService)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints (no authentication required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Interchange inbox for counterpart systems
	r.Post("/hl7", inboundHandler.Receive)

	// Study lifecycle callbacks from the modality service
	r.Route("/notifications", func(r chi.Router) {
		r.Post("/study-started", notificationHandler.StudyStarted)
		r.Post("/study-stabilized", notificationHandler.StudyStabilized)
	})

	// Staff API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.StaffAuth(cfg.Auth.JWTSecret))

		r.Get("/orders/{id}/slots", staffHandler.GetSlots)
		r.Post("/orders/{id}/schedule", staffHandler.Schedule)
		r.Post("/orders/{id}/worklist", staffHandler.GenerateWorklist)
		r.Post("/orders/{id}/report", staffHandler.CreateReport)
		r.Get("/orders/{id}/report", staffHandler.GetReport)

		r.Get("/patients/{id}", staffHandler.GetPatient)
		r.Put("/patients/{id}", staffHandler.UpdatePatient)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
