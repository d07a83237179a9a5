package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"skagen-studio-server/modules/common/config"
	"skagen-studio-server/modules/common/gemini"
	"skagen-studio-server/modules/common/library"
	"skagen-studio-server/modules/common/logger"
	redisClient "skagen-studio-server/modules/common/redis"
	"skagen-studio-server/modules/common/storage"
	"skagen-studio-server/modules/common/thumbnail"
	"skagen-studio-server/modules/events"
	"skagen-studio-server/modules/studio"
	"skagen-studio-server/modules/worker"
)

var startTime = time.Now()

// CORS 미들웨어
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "skagen-studio",
	})
}

// 서버 메트릭 조회 엔드포인트
func metricsHandler(hub *events.Hub, thumbs *thumbnail.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"uptime":           time.Since(startTime).String(),
			"startTime":        startTime,
			"eventSubscribers": hub.Len(),
			"cachedThumbnails": thumbs.Len(),
		})
	}
}

func main() {
	baseLogger := logger.Setup(os.Getenv("APP_ENV"))

	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Gemini 클라이언트 초기화
	client, err := gemini.NewClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to create Gemini client")
	}

	hub := events.NewHub()
	lib := library.New(cfg.AssetsDir)
	thumbs := thumbnail.NewCache(cfg.ThumbnailCacheTTL)
	service := studio.NewService(cfg, client.Models, storage.NewResultStore(cfg.ResultsDir), hub)

	// 라우터 설정
	r := mux.NewRouter()
	r.Use(enableCORS)
	r.Use(logger.Middleware(baseLogger))

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/metrics", metricsHandler(hub, thumbs)).Methods("GET")
	r.HandleFunc("/ws", hub.ServeWS)

	studio.NewHandler(service, lib, thumbs, cfg.ThumbnailWidth).RegisterRoutes(r)

	// Redis Queue Worker 시작 (설정된 경우만)
	if cfg.RedisEnabled() {
		rdb, err := redisClient.Connect(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to connect to Redis")
		}
		defer rdb.Close()

		queue := worker.NewRedisQueue(rdb, cfg.JobTTL)
		worker.NewEnqueueHandler(queue, lib).RegisterRoutes(r)
		go worker.NewWorker(queue, service, hub).Run(ctx)
	} else {
		log.Info().Msg("⚠️  REDIS_HOST not set, job queue disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("model", cfg.Model()).Msg("🚀 Skagen Studio Server starting")
	log.Info().Msgf("📡 WebSocket endpoint: ws://localhost:%s/ws", cfg.Port)
	log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)

	// 서버 시작
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
	log.Info().Msg("👋 Server stopped")
}
