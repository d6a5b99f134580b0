package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yoockh/livecoach/config"
	"github.com/yoockh/livecoach/internal/api/handlers"
	"github.com/yoockh/livecoach/internal/api/middleware"
	"github.com/yoockh/livecoach/internal/api/routes"
	"github.com/yoockh/livecoach/internal/cache"
	"github.com/yoockh/livecoach/internal/events"
	"github.com/yoockh/livecoach/internal/live"
	"github.com/yoockh/livecoach/internal/logger"
	"github.com/yoockh/livecoach/internal/media"
	"github.com/yoockh/livecoach/internal/metrics"
	"github.com/yoockh/livecoach/internal/providers/llm"
	"github.com/yoockh/livecoach/internal/providers/stt"
	mongorepo "github.com/yoockh/livecoach/internal/repositories/mongo"
	pgrepo "github.com/yoockh/livecoach/internal/repositories/postgres"
	"github.com/yoockh/livecoach/internal/services"
	"github.com/yoockh/livecoach/internal/storage"
	"github.com/yoockh/livecoach/internal/workers"
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "livecoach",
		Short:         "Live presentation coaching backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create database schema and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), cfg)
		},
	})
	return root
}

func migrate(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.New(cfg.Log.Level)

	pg, err := config.NewPostgres(cfg.Postgres, log)
	if err != nil {
		return err
	}
	if err := pgrepo.Migrate(ctx, pg); err != nil {
		return err
	}
	log.Info("postgres schema migrated")

	mc, err := config.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer mc.Disconnect(context.Background())
	if err := config.EnsureMongoIndexes(ctx, mc.Database(cfg.Mongo.Database)); err != nil {
		return err
	}
	log.Info("mongo indexes ensured")
	return nil
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(cfg.Log.Level)

	// Storage
	mc, err := config.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	defer mc.Disconnect(context.Background())
	mdb := mc.Database(cfg.Mongo.Database)
	if err := config.EnsureMongoIndexes(ctx, mdb); err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	log.Info("mongo connected")

	pg, err := config.NewPostgres(cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	log.Info("postgres connected")

	rdb, err := config.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Google clients
	uploader, err := storage.NewGCSUploader(ctx, cfg.Google.Bucket)
	if err != nil {
		return fmt.Errorf("gcs: %w", err)
	}
	defer uploader.Close()
	uploader.PublicRead = cfg.Google.PublicRead

	speech, err := stt.NewGoogleSpeech(ctx, cfg.Google.Language)
	if err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	defer speech.Close()

	gemini, err := llm.NewVertexGemini(ctx, cfg.Google.ProjectID, cfg.Google.Location, cfg.Google.GeminiModel)
	if err != nil {
		return fmt.Errorf("vertex: %w", err)
	}
	defer gemini.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Services
	sessions := services.NewSessionService(
		mongorepo.NewSessionRepo(mdb),
		cache.NewRedisCache(rdb, "livecoach:"),
		cfg.Redis.CacheTTL,
	)
	chunks := services.NewChunkService(mongorepo.NewChunkRepo(mdb), sessions)
	analyses := services.NewAnalysisService(pgrepo.NewAnalysisRepo(pg))

	// Background tasks outlive a shutdown signal; the drain bounds them.
	mgr, err := live.NewManager(context.WithoutCancel(ctx), liveConfig(cfg), live.Dependencies{
		Media:       media.NewFFmpeg(cfg.Media.FFmpegPath, workers.NewPool(cfg.Media.Concurrency)),
		Transcriber: speech,
		Analyzer:    gemini,
		Uploader:    uploader,
		Chunks:      chunks,
		Analyses:    analyses,
		Events:      events.NewRedisPublisher(rdb),
		Metrics:     m,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	// HTTP
	if logger.ParseLevel(cfg.Log.Level) < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		WS:      handlers.NewWSHandler(ctx, mgr, log, cfg.Live.MaxMessageBytes, cfg.Server.AllowedOrigins),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	grace := cfg.Live.DrainTimeout + 5*time.Second
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}

	// websocket connections are hijacked and not tracked by Shutdown
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for mgr.Active() > 0 {
		select {
		case <-sctx.Done():
			log.WithField("active", mgr.Active()).Warn("live connections still draining at exit")
			return nil
		case <-tick.C:
		}
	}
	return nil
}

func liveConfig(cfg *config.Config) live.Config {
	return live.Config{
		Rooms:                cfg.Live.Rooms,
		WindowSize:           cfg.Live.WindowSize,
		Retention:            cfg.Live.Retention,
		ScratchDir:           cfg.Media.ScratchDir,
		ObjectPrefix:         cfg.Google.ObjectPrefix,
		EmotionBaseURL:       cfg.Google.EmotionBaseURL,
		EmotionVariations:    cfg.Live.EmotionVariations,
		DrainTimeout:         cfg.Live.DrainTimeout,
		EvictWait:            cfg.Live.EvictWait,
		SaveWait:             cfg.Live.SaveWait,
		TranscriptionTimeout: cfg.Live.TranscriptionTimeout,
		AnalysisTimeout:      cfg.Live.AnalysisTimeout,
		UploadTimeout:        cfg.Live.UploadTimeout,
		CleanupAttempts:      cfg.Live.CleanupAttempts,
		CleanupBackoff:       cfg.Live.CleanupBackoff,
	}
}
