package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smartcycle/telemetry-server/internal/auth"
	"github.com/smartcycle/telemetry-server/internal/config"
	"github.com/smartcycle/telemetry-server/internal/handlers"
	"github.com/smartcycle/telemetry-server/internal/ingest"
	"github.com/smartcycle/telemetry-server/internal/middleware"
	"github.com/smartcycle/telemetry-server/internal/mqttbridge"
	"github.com/smartcycle/telemetry-server/internal/realtime"
	"github.com/smartcycle/telemetry-server/internal/store"
)

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.StorageBackend == "mongo" {
		client, err := store.ConnectMongo(cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		log.WithField("db", cfg.MongoDB).Info("Connected to MongoDB")
		return store.NewMongoStore(client.Database(cfg.MongoDB)), nil
	}
	return store.OpenFileStore(cfg.DataDir)
}

func main() {
	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}
	authMW := middleware.NewAuthMiddleware(authService)

	hub := realtime.NewHub(cfg.PingInterval, cfg.PongTimeout)
	ingestSvc := ingest.NewService(st, st, hub)

	telemetryHandler := handlers.NewTelemetryHandler(ingestSvc, st, st)
	authHandler := handlers.NewAuthHandler(authService, st)
	guardianHandler := handlers.NewGuardianHandler(st, st, st)
	healthHandler := handlers.NewHealthHandler(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/bike/data", telemetryHandler.ReceiveData)
	mux.HandleFunc("GET /api/bikes", telemetryHandler.ListBikes)
	mux.HandleFunc("GET /api/bikes/{bikeId}", telemetryHandler.GetBike)
	mux.HandleFunc("GET /api/bikes/{bikeId}/latest", telemetryHandler.GetLatest)
	mux.HandleFunc("GET /api/history", telemetryHandler.ListDates)
	mux.HandleFunc("GET /api/history/{date}", telemetryHandler.GetDay)
	mux.HandleFunc("POST /api/signup", authHandler.Signup)
	mux.HandleFunc("POST /api/login", authHandler.Login)
	mux.Handle("GET /api/me", authMW.Authenticate(http.HandlerFunc(authHandler.Me)))
	mux.Handle("GET /api/guardian/me", authMW.Authenticate(http.HandlerFunc(guardianHandler.Me)))
	mux.Handle("POST /api/guardian/wards", authMW.Authenticate(http.HandlerFunc(guardianHandler.AddWard)))
	mux.Handle("GET /api/guardian/wards", authMW.Authenticate(http.HandlerFunc(guardianHandler.ListWards)))
	mux.Handle("GET /api/guardian/bikes", authMW.Authenticate(http.HandlerFunc(guardianHandler.ListBikes)))
	mux.HandleFunc("GET /api/guardians", guardianHandler.ListGuardians)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("/ws", hub)

	var bridge *mqttbridge.Bridge
	if cfg.MQTTBroker != "" {
		bridge = mqttbridge.New(cfg.MQTTBroker, "smartcycle-server", cfg.MQTTTopic, ingestSvc)
		if err := bridge.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start MQTT bridge")
		}
	}

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: middleware.CORS(cfg.CORSOrigin)(mux),
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("Smart-Cycle server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down server")
	if bridge != nil {
		bridge.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Shutdown error")
	}
}
