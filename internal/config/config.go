package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
	"github.com/Aman-CERP/ragcontext/internal/corpus"
	"github.com/Aman-CERP/ragcontext/internal/embed"
	"github.com/Aman-CERP/ragcontext/internal/store"
)

// Project config file names, in lookup order.
var projectConfigNames = []string{".ragcontext.yaml", ".ragcontext.yml", ".ragcontext.toml"}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RAGCONTEXT_"

// Config represents the complete ragcontext configuration.
type Config struct {
	Version    int              `yaml:"version" toml:"version" json:"version"`
	DataDir    string           `yaml:"data_dir" toml:"data_dir" json:"data_dir"`
	Corpus     CorpusConfig     `yaml:"corpus" toml:"corpus" json:"corpus"`
	Chunking   ChunkingConfig   `yaml:"chunking" toml:"chunking" json:"chunking"`
	Lexical    LexicalConfig    `yaml:"lexical" toml:"lexical" json:"lexical"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" toml:"embeddings" json:"embeddings"`
	Search     SearchConfig     `yaml:"search" toml:"search" json:"search"`
	Server     ServerConfig     `yaml:"server" toml:"server" json:"server"`
	Watch      WatchConfig      `yaml:"watch" toml:"watch" json:"watch"`
	Warm       WarmConfig       `yaml:"warm" toml:"warm" json:"warm"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" toml:"telemetry" json:"telemetry"`
}

// CorpusConfig locates the corpus and the metadata applied to documents
// that omit a field.
type CorpusConfig struct {
	// Path is the corpus JSON file. Relative paths resolve against the
	// project directory.
	Path   string `yaml:"path" toml:"path" json:"path"`
	Author string `yaml:"author" toml:"author" json:"author"`
	Kind   string `yaml:"kind" toml:"kind" json:"kind"`
	Date   string `yaml:"date" toml:"date" json:"date"`
	Topic  string `yaml:"topic" toml:"topic" json:"topic"`
}

// ChunkingConfig controls cleaning, splitting and tokenization.
// Lengths are in characters.
type ChunkingConfig struct {
	MaxChars      int `yaml:"max_chars" toml:"max_chars" json:"max_chars"`
	MinChars      int `yaml:"min_chars" toml:"min_chars" json:"min_chars"`
	MinFinalChars int `yaml:"min_final_chars" toml:"min_final_chars" json:"min_final_chars"`
	// NoisePatterns are appended to the built-in boilerplate patterns.
	NoisePatterns []string `yaml:"noise_patterns" toml:"noise_patterns" json:"noise_patterns"`
	// StopWords replace the built-in Spanish list when set.
	StopWords []string `yaml:"stop_words" toml:"stop_words" json:"stop_words"`
}

// LexicalConfig selects and tunes the lexical index.
type LexicalConfig struct {
	// Backend is "memory" (exact BM25), "bleve" or "sqlite".
	Backend string  `yaml:"backend" toml:"backend" json:"backend"`
	K1      float64 `yaml:"k1" toml:"k1" json:"k1"`
	B       float64 `yaml:"b" toml:"b" json:"b"`
	// Persist keeps bleve and sqlite indexes on disk under data_dir instead
	// of in memory.
	Persist bool `yaml:"persist" toml:"persist" json:"persist"`
}

// EmbeddingsConfig configures the embedding provider and its cache.
type EmbeddingsConfig struct {
	// Provider is "openai" (default), "ollama", "static" or "none".
	Provider  string `yaml:"provider" toml:"provider" json:"provider"`
	Model     string `yaml:"model" toml:"model" json:"model"`
	BaseURL   string `yaml:"base_url" toml:"base_url" json:"base_url"`
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env" json:"api_key_env"`
	BatchSize int    `yaml:"batch_size" toml:"batch_size" json:"batch_size"`
	Timeout   string `yaml:"timeout" toml:"timeout" json:"timeout"`
	// MaxRetries of 0 disables retries.
	MaxRetries        int     `yaml:"max_retries" toml:"max_retries" json:"max_retries"`
	QueryCacheSize    int     `yaml:"query_cache_size" toml:"query_cache_size" json:"query_cache_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst" json:"burst"`
	// CachePath is the embedding cache file. Relative paths resolve against
	// the project directory.
	CachePath string `yaml:"cache_path" toml:"cache_path" json:"cache_path"`
}

// SearchConfig configures retrieval.
type SearchConfig struct {
	TopK         int     `yaml:"top_k" toml:"top_k" json:"top_k"`
	CandidateK   int     `yaml:"candidate_k" toml:"candidate_k" json:"candidate_k"`
	Lambda       float64 `yaml:"lambda" toml:"lambda" json:"lambda"`
	QueryTimeout string  `yaml:"query_timeout" toml:"query_timeout" json:"query_timeout"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" toml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" toml:"log_level" json:"log_level"`
}

// WatchConfig configures corpus file watching in serve mode.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Debounce string `yaml:"debounce" toml:"debounce" json:"debounce"`
}

// WarmConfig configures cache warm-up.
type WarmConfig struct {
	BatchSize int `yaml:"batch_size" toml:"batch_size" json:"batch_size"`
	Workers   int `yaml:"workers" toml:"workers" json:"workers"`
	// OnServe warms the cache in the background when serve starts.
	OnServe bool `yaml:"on_serve" toml:"on_serve" json:"on_serve"`
}

// TelemetryConfig configures query metrics persistence.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	FlushInterval string `yaml:"flush_interval" toml:"flush_interval" json:"flush_interval"`
	// Path is the metrics database. Empty places it under data_dir.
	Path string `yaml:"path" toml:"path" json:"path"`
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	meta := corpus.DefaultMetadata()
	bm25 := store.DefaultBM25Config()
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Corpus: CorpusConfig{
			Path:   filepath.Join("data", "peron_docs.json"),
			Author: meta.Author,
			Kind:   meta.Kind,
			Date:   meta.Date,
			Topic:  meta.Topic,
		},
		Chunking: ChunkingConfig{
			MaxChars:      chunk.DefaultMaxChars,
			MinChars:      chunk.DefaultMinChars,
			MinFinalChars: chunk.DefaultMinFinalChars,
		},
		Lexical: LexicalConfig{
			Backend: string(store.BM25BackendMemory),
			K1:      bm25.K1,
			B:       bm25.B,
		},
		Embeddings: EmbeddingsConfig{
			Provider:          string(embed.ProviderOpenAI),
			Model:             embed.DefaultOpenAIModel,
			APIKeyEnv:         embed.DefaultOpenAIKeyEnv,
			BatchSize:         embed.DefaultBatchSize,
			Timeout:           embed.DefaultTimeout.String(),
			MaxRetries:        2,
			QueryCacheSize:    embed.DefaultQueryCacheSize,
			RequestsPerSecond: 5,
			Burst:             2,
			CachePath:         filepath.Join("data", "peron_embeddings.json"),
		},
		Search: SearchConfig{
			TopK:         4,
			CandidateK:   40,
			Lambda:       0.75,
			QueryTimeout: "30s",
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: "500ms",
		},
		Warm: WarmConfig{
			BatchSize: embed.DefaultBatchSize,
			Workers:   min(runtime.NumCPU(), 4),
		},
		Telemetry: TelemetryConfig{
			Enabled:       true,
			FlushInterval: "1m",
		},
	}
}

// defaultDataDir returns ~/.ragcontext.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ragcontext")
	}
	return filepath.Join(home, ".ragcontext")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/ragcontext/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/ragcontext/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ragcontext", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "ragcontext", "config.yaml")
	}
	return filepath.Join(home, ".config", "ragcontext", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// ProjectConfigPath returns the project config file in dir, or "" when
// there is none.
func ProjectConfigPath(dir string) string {
	for _, name := range projectConfigNames {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p
		}
	}
	return ""
}

// Load loads configuration for the project in dir. Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/ragcontext/config.yaml)
//  3. Project config (.ragcontext.yaml, .ragcontext.yml or .ragcontext.toml)
//  4. Environment variables (RAGCONTEXT_*)
//
// Relative corpus and cache paths are resolved against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := ProjectConfigPath(dir); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.resolvePaths(dir)
	return cfg, nil
}

// loadFile parses a YAML or TOML file and merges its non-zero values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if strings.HasSuffix(path, ".toml") {
		err = toml.Unmarshal(data, &parsed)
	} else {
		err = yaml.Unmarshal(data, &parsed)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	setString(&c.DataDir, other.DataDir)

	// Corpus
	setString(&c.Corpus.Path, other.Corpus.Path)
	setString(&c.Corpus.Author, other.Corpus.Author)
	setString(&c.Corpus.Kind, other.Corpus.Kind)
	setString(&c.Corpus.Date, other.Corpus.Date)
	setString(&c.Corpus.Topic, other.Corpus.Topic)

	// Chunking
	setInt(&c.Chunking.MaxChars, other.Chunking.MaxChars)
	setInt(&c.Chunking.MinChars, other.Chunking.MinChars)
	setInt(&c.Chunking.MinFinalChars, other.Chunking.MinFinalChars)
	if len(other.Chunking.NoisePatterns) > 0 {
		c.Chunking.NoisePatterns = append(c.Chunking.NoisePatterns, other.Chunking.NoisePatterns...)
	}
	if len(other.Chunking.StopWords) > 0 {
		c.Chunking.StopWords = other.Chunking.StopWords
	}

	// Lexical
	setString(&c.Lexical.Backend, other.Lexical.Backend)
	setFloat(&c.Lexical.K1, other.Lexical.K1)
	setFloat(&c.Lexical.B, other.Lexical.B)
	if other.Lexical.Persist {
		c.Lexical.Persist = true
	}

	// Embeddings
	setString(&c.Embeddings.Provider, other.Embeddings.Provider)
	setString(&c.Embeddings.Model, other.Embeddings.Model)
	setString(&c.Embeddings.BaseURL, other.Embeddings.BaseURL)
	setString(&c.Embeddings.APIKeyEnv, other.Embeddings.APIKeyEnv)
	setInt(&c.Embeddings.BatchSize, other.Embeddings.BatchSize)
	setString(&c.Embeddings.Timeout, other.Embeddings.Timeout)
	setInt(&c.Embeddings.MaxRetries, other.Embeddings.MaxRetries)
	setInt(&c.Embeddings.QueryCacheSize, other.Embeddings.QueryCacheSize)
	setFloat(&c.Embeddings.RequestsPerSecond, other.Embeddings.RequestsPerSecond)
	setInt(&c.Embeddings.Burst, other.Embeddings.Burst)
	setString(&c.Embeddings.CachePath, other.Embeddings.CachePath)

	// Search
	setInt(&c.Search.TopK, other.Search.TopK)
	setInt(&c.Search.CandidateK, other.Search.CandidateK)
	setFloat(&c.Search.Lambda, other.Search.Lambda)
	setString(&c.Search.QueryTimeout, other.Search.QueryTimeout)

	// Server
	setString(&c.Server.Transport, other.Server.Transport)
	setString(&c.Server.LogLevel, other.Server.LogLevel)

	// Watch: enabling is explicit, and a file that sets a debounce also
	// decides enabled.
	if other.Watch.Enabled || other.Watch.Debounce != "" {
		c.Watch.Enabled = other.Watch.Enabled
	}
	setString(&c.Watch.Debounce, other.Watch.Debounce)

	// Warm
	setInt(&c.Warm.BatchSize, other.Warm.BatchSize)
	setInt(&c.Warm.Workers, other.Warm.Workers)
	if other.Warm.OnServe {
		c.Warm.OnServe = true
	}

	// Telemetry: same rule as watch, false only counts next to another field.
	if other.Telemetry.FlushInterval != "" || other.Telemetry.Path != "" {
		c.Telemetry.Enabled = other.Telemetry.Enabled
	}
	setString(&c.Telemetry.FlushInterval, other.Telemetry.FlushInterval)
	setString(&c.Telemetry.Path, other.Telemetry.Path)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies RAGCONTEXT_* environment variable overrides.
// OPENAI_EMBEDDING_MODEL and OPENAI_EMBEDDINGS_URL are honored for
// compatibility with existing deployments; the prefixed names win.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OPENAI_EMBEDDING_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("OPENAI_EMBEDDINGS_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}

	if v := os.Getenv(EnvPrefix + "DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvPrefix + "CORPUS"); v != "" {
		c.Corpus.Path = v
	}
	if v := os.Getenv(EnvPrefix + "LEXICAL_BACKEND"); v != "" {
		c.Lexical.Backend = v
	}
	if v := os.Getenv(embed.EnvProvider); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv(EnvPrefix + "EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv(EnvPrefix + "EMBEDDINGS_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "EMBEDDINGS_CACHE"); v != "" {
		c.Embeddings.CachePath = v
	}
	if v := os.Getenv(EnvPrefix + "TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.TopK = k
		}
	}
	if v := os.Getenv(EnvPrefix + "CANDIDATE_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.CandidateK = k
		}
	}
	if v := os.Getenv(EnvPrefix + "LAMBDA"); v != "" {
		if l, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && l > 0 && l <= 1 {
			c.Search.Lambda = l
		}
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "TELEMETRY"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "WATCH"); v != "" {
		c.Watch.Enabled = parseBool(v)
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// resolvePaths anchors relative corpus and cache paths at dir.
func (c *Config) resolvePaths(dir string) {
	if dir == "" {
		return
	}
	if c.Corpus.Path != "" && !filepath.IsAbs(c.Corpus.Path) {
		c.Corpus.Path = filepath.Join(dir, c.Corpus.Path)
	}
	if c.Embeddings.CachePath != "" && !filepath.IsAbs(c.Embeddings.CachePath) {
		c.Embeddings.CachePath = filepath.Join(dir, c.Embeddings.CachePath)
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Chunking.MaxChars <= 0 || c.Chunking.MinChars <= 0 || c.Chunking.MinFinalChars <= 0 {
		return fmt.Errorf("chunking lengths must be positive, got max=%d min=%d min_final=%d",
			c.Chunking.MaxChars, c.Chunking.MinChars, c.Chunking.MinFinalChars)
	}
	if c.Chunking.MinChars > c.Chunking.MaxChars {
		return fmt.Errorf("chunking.min_chars (%d) must not exceed chunking.max_chars (%d)",
			c.Chunking.MinChars, c.Chunking.MaxChars)
	}
	if _, err := chunk.NewCleaner(c.Chunking.NoisePatterns); err != nil {
		return fmt.Errorf("chunking.noise_patterns: %w", err)
	}

	if !contains(store.ValidBM25Backends(), strings.ToLower(c.Lexical.Backend)) {
		return fmt.Errorf("lexical.backend must be one of %s, got %s",
			strings.Join(store.ValidBM25Backends(), ", "), c.Lexical.Backend)
	}
	if c.Lexical.K1 < 0 {
		return fmt.Errorf("lexical.k1 must be non-negative, got %f", c.Lexical.K1)
	}
	if c.Lexical.B < 0 || c.Lexical.B > 1 {
		return fmt.Errorf("lexical.b must be between 0 and 1, got %f", c.Lexical.B)
	}

	if _, err := embed.ParseProvider(c.Embeddings.Provider); err != nil {
		return err
	}
	if c.Embeddings.BatchSize < 0 || c.Embeddings.BatchSize > embed.MaxBatchSize {
		return fmt.Errorf("embeddings.batch_size must be between 0 and %d, got %d",
			embed.MaxBatchSize, c.Embeddings.BatchSize)
	}
	if c.Embeddings.MaxRetries < 0 {
		return fmt.Errorf("embeddings.max_retries must be non-negative, got %d", c.Embeddings.MaxRetries)
	}
	if c.Embeddings.RequestsPerSecond < 0 {
		return fmt.Errorf("embeddings.requests_per_second must be non-negative, got %f",
			c.Embeddings.RequestsPerSecond)
	}

	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.CandidateK < c.Search.TopK {
		return fmt.Errorf("search.candidate_k (%d) must be at least search.top_k (%d)",
			c.Search.CandidateK, c.Search.TopK)
	}
	if c.Search.Lambda <= 0 || c.Search.Lambda > 1 {
		return fmt.Errorf("search.lambda must be in (0, 1], got %f", c.Search.Lambda)
	}

	durations := map[string]string{
		"embeddings.timeout":       c.Embeddings.Timeout,
		"search.query_timeout":     c.Search.QueryTimeout,
		"watch.debounce":           c.Watch.Debounce,
		"telemetry.flush_interval": c.Telemetry.FlushInterval,
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s must be a duration, got %q", name, v)
		}
	}

	if !contains([]string{"stdio"}, strings.ToLower(c.Server.Transport)) {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	if !contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Server.LogLevel)) {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Duration parses a validated duration field, returning def for "".
func Duration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Defaults returns the document metadata defaults.
func (c *Config) Defaults() chunk.Metadata {
	return chunk.Metadata{
		Author: c.Corpus.Author,
		Kind:   c.Corpus.Kind,
		Date:   c.Corpus.Date,
		Topic:  c.Corpus.Topic,
	}
}

// LogDir returns the directory for log files.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// LexicalBasePath returns the base path for persistent lexical indexes, or
// "" for in-memory operation.
func (c *Config) LexicalBasePath() string {
	if !c.Lexical.Persist {
		return ""
	}
	return store.DefaultBM25BasePath(c.DataDir)
}

// TelemetryPath returns the metrics database path.
func (c *Config) TelemetryPath() string {
	if c.Telemetry.Path != "" {
		return c.Telemetry.Path
	}
	return filepath.Join(c.DataDir, "telemetry.db")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// WriteTOML writes the configuration to a TOML file.
func (c *Config) WriteTOML(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
