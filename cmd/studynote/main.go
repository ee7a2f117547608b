package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/analysis"
	"github.com/xxxsen/studynote/internal/chunker"
	"github.com/xxxsen/studynote/internal/config"
	"github.com/xxxsen/studynote/internal/filestore"
	"github.com/xxxsen/studynote/internal/handler"
	"github.com/xxxsen/studynote/internal/job"
	"github.com/xxxsen/studynote/internal/media"
	"github.com/xxxsen/studynote/internal/middleware"
	"github.com/xxxsen/studynote/internal/repo"
	"github.com/xxxsen/studynote/internal/retrieval"
	"github.com/xxxsen/studynote/internal/schedule"
	"github.com/xxxsen/studynote/internal/service"
	"github.com/xxxsen/studynote/internal/store"
	"github.com/xxxsen/studynote/internal/vecindex"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "studynote",
		Short: "studynote knowledge service",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run studynote server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			db, err := repo.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildGenerator(cfg config.AIConfig) (ai.IGenerator, error) {
	entries := make([]ai.GeneratorEntry, 0, 1+len(cfg.Fallbacks))
	for _, pc := range append([]config.ProviderConfig{cfg.Generator}, cfg.Fallbacks...) {
		provider, err := ai.NewProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", pc.Provider, err)
		}
		entries = append(entries, ai.GeneratorEntry{Name: pc.Provider, Generator: ai.NewGenerator(provider, pc.Model)})
	}
	if len(entries) == 1 {
		return entries[0].Generator, nil
	}
	return ai.NewGroupGenerator(entries), nil
}

func buildEmbedder(cfg config.AIConfig) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, 1+len(cfg.EmbedFallbacks))
	for _, pc := range append([]config.ProviderConfig{cfg.Embedder}, cfg.EmbedFallbacks...) {
		provider, err := ai.NewEmbedProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", pc.Provider, err)
		}
		entries = append(entries, ai.EmbedderEntry{Name: pc.Provider, Embedder: ai.NewEmbedder(provider, pc.Model)})
	}
	if len(entries) == 1 {
		return entries[0].Embedder, nil
	}
	return ai.NewGroupEmbedder(entries), nil
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("index", cfg.Index.Type),
		zap.String("file_store", cfg.FileStore.Type),
	)

	generator, err := buildGenerator(cfg.AI)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(cfg.AI)
	if err != nil {
		return err
	}
	aiManager := ai.NewManager(generator, embedder, ai.ManagerConfig{
		Timeout:       cfg.AI.TimeoutSeconds,
		MaxInputChars: cfg.AI.MaxInputChars,
	})

	index, err := vecindex.New(cfg.Index.Type, cfg.Index.Data)
	if err != nil {
		return fmt.Errorf("init vector index: %w", err)
	}
	files, err := filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	chunks, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return fmt.Errorf("init chunker: %w", err)
	}

	pointerRepo := repo.NewPointerRepo(db)
	grace := time.Duration(cfg.Cleanup.GraceMinutes) * time.Minute
	storeManager := store.NewManager(pointerRepo, index, aiManager, grace)
	retriever := retrieval.NewEngine(storeManager, index, aiManager, cfg.Retrieval.TopK, cfg.Retrieval.ContextChars)
	analyzer := analysis.NewEngine(aiManager, aiManager, analysis.Config{
		Threshold:   cfg.Analysis.SimilarityThreshold,
		TopKeywords: cfg.Analysis.TopKeywords,
	})

	var proc *media.Processor
	if cfg.Media.Transcriber != "" {
		transcriber, err := media.NewTranscriber(cfg.Media.Transcriber, cfg.Media.Data)
		if err != nil {
			return fmt.Errorf("init transcriber: %w", err)
		}
		proc = media.NewProcessor(media.NewFFmpegExtractor(cfg.Media.FFmpegPath), transcriber, cfg.Media.WorkDir)
	}

	knowledge := service.NewKnowledge(chunks, storeManager, retriever, analyzer, aiManager, files, proc)

	deps := handler.RouterDeps{
		Uploads:   handler.NewUploadHandler(knowledge, cfg.Media.WorkDir, 0),
		Stores:    handler.NewStoreHandler(knowledge),
		Chat:      handler.NewChatHandler(knowledge),
		Analysis:  handler.NewAnalysisHandler(knowledge),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.New()
	if err := scheduler.AddJob(job.NewGenerationCleanup(storeManager, cfg.Cleanup.BatchSize), cfg.Cleanup.CronSpec); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
