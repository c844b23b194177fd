// Package config provides application configuration with multi-source
// priority:
//
//  1. Environment variables (COPILOTO_ prefix, runtime override)
//  2. Config file (~/.copiloto/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Uses sentinel errors for Go-idiomatic checking with errors.Is; wrap with
// fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrConfigNil              = errors.New("configuration is nil")
	ErrInvalidChunkSize       = errors.New("invalid chunk size")
	ErrInvalidOverlap         = errors.New("invalid chunk overlap")
	ErrInvalidEmbedderModel   = errors.New("invalid embedder model")
	ErrInvalidCacheSize       = errors.New("invalid embedding cache size")
	ErrInvalidTopK            = errors.New("invalid top-k")
	ErrInvalidMinSimilarity   = errors.New("invalid minimum similarity")
	ErrInvalidMaxChunkChars   = errors.New("invalid max chunk characters")
	ErrInvalidGenerationModel = errors.New("invalid generation model")
	ErrInvalidDocumentsDir    = errors.New("invalid documents directory")
)

// Defaults.
const (
	// DefaultEmbedderModel outputs vectors truncated to the system's fixed
	// dimension via OutputDimensionality.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultGenerationModel is the structured-output generation model.
	DefaultGenerationModel = "googleai/gemini-2.0-flash"
)

// DocumentEntry is one knowledge-base manifest item.
type DocumentEntry struct {
	Filename string `mapstructure:"filename"`
	Category string `mapstructure:"category"`
}

// ChunkerConfig sizes text chunks.
type ChunkerConfig struct {
	MaxWordsPerChunk int `mapstructure:"max_words_per_chunk"`
	OverlapWords     int `mapstructure:"overlap_words"`
}

// EmbeddingConfig selects the embedder and bounds its cache and pacing.
type EmbeddingConfig struct {
	Model             string  `mapstructure:"model"`
	CacheSize         int     `mapstructure:"cache_size"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// SearchConfig tunes retrieval.
type SearchConfig struct {
	TopK          int     `mapstructure:"top_k"`
	MinSimilarity float64 `mapstructure:"min_similarity"`
	MaxChunkChars int     `mapstructure:"max_chunk_chars"`
}

// GenerationConfig selects the generation model.
type GenerationConfig struct {
	Model string `mapstructure:"model"`
}

// KnowledgeConfig locates the document corpus.
type KnowledgeConfig struct {
	DocumentsDir string          `mapstructure:"documents_dir"`
	Categories   []string        `mapstructure:"categories"`
	Documents    []DocumentEntry `mapstructure:"documents"`
}

// Config is the application configuration.
type Config struct {
	Chunker    ChunkerConfig    `mapstructure:"chunker"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Search     SearchConfig     `mapstructure:"search"`
	Generation GenerationConfig `mapstructure:"generation"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge"`
}

// Load reads configuration with env > file > defaults priority.
// A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COPILOTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir, err := configDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every range; the first violation is returned wrapped in
// its sentinel.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.Chunker.MaxWordsPerChunk <= 0 || c.Chunker.MaxWordsPerChunk > 10000 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.Chunker.MaxWordsPerChunk)
	}
	if c.Chunker.OverlapWords < 0 || c.Chunker.OverlapWords >= c.Chunker.MaxWordsPerChunk {
		return fmt.Errorf("%w: %d", ErrInvalidOverlap, c.Chunker.OverlapWords)
	}
	if strings.TrimSpace(c.Embedding.Model) == "" {
		return ErrInvalidEmbedderModel
	}
	if c.Embedding.CacheSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, c.Embedding.CacheSize)
	}
	if c.Search.TopK <= 0 || c.Search.TopK > 50 {
		return fmt.Errorf("%w: %d", ErrInvalidTopK, c.Search.TopK)
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("%w: %g (must be in [0,1])", ErrInvalidMinSimilarity, c.Search.MinSimilarity)
	}
	if c.Search.MaxChunkChars <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxChunkChars, c.Search.MaxChunkChars)
	}
	if strings.TrimSpace(c.Generation.Model) == "" {
		return ErrInvalidGenerationModel
	}
	if strings.TrimSpace(c.Knowledge.DocumentsDir) == "" {
		return ErrInvalidDocumentsDir
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chunker.max_words_per_chunk", 150)
	v.SetDefault("chunker.overlap_words", 25)

	v.SetDefault("embedding.model", DefaultEmbedderModel)
	v.SetDefault("embedding.cache_size", 100)
	v.SetDefault("embedding.requests_per_second", 5.0)
	v.SetDefault("embedding.burst", 10)

	v.SetDefault("search.top_k", 3)
	v.SetDefault("search.min_similarity", 0.6)
	v.SetDefault("search.max_chunk_chars", 900)

	v.SetDefault("generation.model", DefaultGenerationModel)

	v.SetDefault("knowledge.documents_dir", "knowledge-base")
	v.SetDefault("knowledge.categories",
		[]string{"roya", "nutricion", "cuidados", "tratamientos", "organizacion", "ciencia", "tecnologia", "general"})
}

// configDir returns ~/.copiloto, creating it with restrictive permissions.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".copiloto")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}
