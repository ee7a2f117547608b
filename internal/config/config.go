package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	DBPath        string           `json:"db_path"`
	JWTSecret     string           `json:"jwt_secret"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	LogConfig     logger.LogConfig `json:"log_config"`
	AI            AIConfig         `json:"ai"`
	Index         IndexConfig      `json:"index"`
	FileStore     FileStoreConfig  `json:"file_store"`
	Media         MediaConfig      `json:"media"`
	Chunking      ChunkingConfig   `json:"chunking"`
	Retrieval     RetrievalConfig  `json:"retrieval"`
	Analysis      AnalysisConfig   `json:"analysis"`
	Cleanup       CleanupConfig    `json:"cleanup"`
}

type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Generator      ProviderConfig   `json:"generator"`
	Embedder       ProviderConfig   `json:"embedder"`
	Fallbacks      []ProviderConfig `json:"fallbacks"`
	EmbedFallbacks []ProviderConfig `json:"embed_fallbacks"`
	TimeoutSeconds int              `json:"timeout_seconds"`
	MaxInputChars  int              `json:"max_input_chars"`
}

type IndexConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type MediaConfig struct {
	FFmpegPath  string      `json:"ffmpeg_path"`
	WorkDir     string      `json:"work_dir"`
	Transcriber string      `json:"transcriber"`
	Data        interface{} `json:"data"`
}

type ChunkingConfig struct {
	Size    int `json:"size"`
	Overlap int `json:"overlap"`
}

type RetrievalConfig struct {
	TopK         int `json:"top_k"`
	ContextChars int `json:"context_chars"`
}

type AnalysisConfig struct {
	SimilarityThreshold float64 `json:"similarity_threshold"`
	TopKeywords         int     `json:"top_keywords"`
	RoadmapRefChars     int     `json:"roadmap_ref_chars"`
}

type CleanupConfig struct {
	CronSpec     string `json:"cron_spec"`
	GraceMinutes int    `json:"grace_minutes"`
	BatchSize    int    `json:"batch_size"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Generator.Provider == "" {
		return nil, fmt.Errorf("ai.generator.provider is required")
	}
	if cfg.AI.Embedder.Provider == "" {
		return nil, fmt.Errorf("ai.embedder.provider is required")
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "local"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.Media.WorkDir == "" {
		cfg.Media.WorkDir = os.TempDir()
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 500
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 50
	}
	if cfg.Chunking.Overlap < 0 || cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return nil, fmt.Errorf("chunking.overlap must be in [0, chunking.size)")
	}
	if cfg.Analysis.SimilarityThreshold == 0 {
		cfg.Analysis.SimilarityThreshold = 0.7
	}
	if cfg.Analysis.TopKeywords == 0 {
		cfg.Analysis.TopKeywords = 5
	}
	if cfg.Cleanup.CronSpec == "" {
		cfg.Cleanup.CronSpec = "*/10 * * * *"
	}
	if cfg.Cleanup.GraceMinutes == 0 {
		cfg.Cleanup.GraceMinutes = 60
	}
	if cfg.Cleanup.BatchSize == 0 {
		cfg.Cleanup.BatchSize = 100
	}
	return &cfg, nil
}
