package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/srwicak/unastelemed/docs" // Swagger docs

	"github.com/srwicak/unastelemed/internal/afpredict"
	"github.com/srwicak/unastelemed/internal/config"
	"github.com/srwicak/unastelemed/internal/live"
	"github.com/srwicak/unastelemed/internal/marker"
	"github.com/srwicak/unastelemed/internal/recording"
	"github.com/srwicak/unastelemed/internal/stale"
	"github.com/srwicak/unastelemed/internal/timeline"
)

// @title Unas Telemed Ingestion API
// @version 1.0
// @description API приема биопотенциалов ЭКГ с носимых регистраторов
// @description
// @description ## Описание
// @description Сервис принимает батчи сэмплов, управляет жизненным циклом записей,
// @description восстанавливает непрерывную шкалу сигнала для визуализации и
// @description интегрируется с внешним сервисом детекции фибрилляции предсердий.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http

func main() {
	log.Printf("[INFO] Starting ingestion server...")

	cfg := config.Load()
	log.Printf("[INFO] Configuration loaded: http_port=%s max_samples_per_batch=%d sweep_interval=%s",
		cfg.HTTPPort, cfg.MaxSamplesPerBatch, cfg.SweepInterval)

	// PostgreSQL
	repo, err := recording.NewPostgresRepositoryFromDSN(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[FATAL] Failed to connect to PostgreSQL: %v", err)
	}
	defer repo.Close()
	log.Printf("[INFO] Connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("[FATAL] Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Printf("[INFO] Connected to Redis at %s", cfg.RedisAddr)

	cache := recording.NewRedisStore(redisClient, cfg.RecordingCacheTTLSeconds)

	// Доменные сервисы
	batchStore := recording.NewBatchStore(repo, cache, cfg.MaxSamplesPerBatch)
	manager := recording.NewManager(cache, repo, batchStore, cfg.DefaultSampleRate, cfg.DefaultSamplesPerBatch)
	reconstructor := timeline.NewReconstructor(cfg.ChartTargetPoints)

	// Live-обновления по WebSocket
	hub := live.NewHub()
	go hub.Run()
	manager.SetProgressSink(hub)

	// Фоновая проверка зависших записей
	monitor := stale.NewMonitor(repo, cache, cfg.SweepInterval, cfg.StaleThreshold)
	monitor.Start()

	// Внешний сервис анализа фибрилляции
	afClient := afpredict.NewClient(cfg.AFPredictionURL, cfg.AFPredictionTimeout)

	// HTTP маршруты
	router := mux.NewRouter()

	recordingHandler := recording.NewHTTPHandler(manager, reconstructor)
	recordingHandler.RegisterRoutes(router)

	markerHandler := marker.NewHTTPHandler(marker.NewPostgresRepository(repo.DB()), manager)
	markerHandler.RegisterRoutes(router)

	afHandler := afpredict.NewHTTPHandler(afClient, afpredict.NewPostgresRepository(repo.DB()), manager)
	afHandler.RegisterRoutes(router)

	hub.RegisterRoutes(router)

	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
	))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      enableCORS(router),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("[INFO] HTTP server listening on :%s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrChan:
		log.Printf("[ERROR] Server error: %v", err)

	case sig := <-shutdownChan:
		log.Printf("[INFO] Received signal %v, starting graceful shutdown...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] Graceful shutdown timeout, forcing stop: %v", err)
		}

		monitor.Stop()
		hub.Stop()

		log.Printf("[INFO] Graceful shutdown completed")
	}

	log.Printf("[INFO] Server stopped")
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}
