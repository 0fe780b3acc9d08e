package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the runtime configuration. Defaults come from the constants in
// this package, then the optional YAML file, then the environment.
type Settings struct {
	ListenAddr string `yaml:"listen_addr"`
	DataDir    string `yaml:"data_dir"`

	Redis     RedisSettings     `yaml:"redis"`
	Source    SourceSettings    `yaml:"source"`
	Tracker   TrackerSettings   `yaml:"tracker"`
	Vector    VectorSettings    `yaml:"vector"`
	Embedding ProviderSettings  `yaml:"embedding"`
	LLM       LLMSettings       `yaml:"llm"`
	Ingest    IngestSettings    `yaml:"ingest"`
	Query     QuerySettings     `yaml:"query"`
	Scheduler SchedulerSettings `yaml:"scheduler"`
}

type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

type SourceSettings struct {
	BaseURL         string            `yaml:"base_url"`
	Categories      map[string]string `yaml:"categories"`
	UserAgent       string            `yaml:"user_agent"`
	MaxPages        int               `yaml:"max_pages"`
	Workers         int               `yaml:"workers"`
	RequestTimeout  time.Duration     `yaml:"request_timeout"`
	MaxAttempts     int               `yaml:"max_attempts"`
	BackoffBase     time.Duration     `yaml:"backoff_base"`
	RatePerSecond   float64           `yaml:"rate_per_second"`
	RevalidateAfter time.Duration     `yaml:"revalidate_after"`
	MaxDocumentSize int64             `yaml:"max_document_bytes"`
	IgnoredParams   []string          `yaml:"ignored_query_params"`
}

type TrackerSettings struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

type VectorSettings struct {
	Backend      string `yaml:"backend"`
	QdrantHost   string `yaml:"qdrant_host"`
	QdrantPort   int    `yaml:"qdrant_port"`
	QdrantAPIKey string `yaml:"qdrant_api_key"`
	QdrantTLS    bool   `yaml:"qdrant_tls"`
	Collection   string `yaml:"collection"`
	CacheName    string `yaml:"cache_collection"`
}

type ProviderSettings struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
}

type LLMSettings struct {
	ProviderSettings `yaml:",inline"`
	MaxTokens        int           `yaml:"max_tokens"`
	Temperature      float64       `yaml:"temperature"`
	MaxAttempts      int           `yaml:"max_attempts"`
	BackoffBase      time.Duration `yaml:"backoff_base"`
	SystemPrompt     string        `yaml:"system_prompt"`
}

type IngestSettings struct {
	ChunkSize    int           `yaml:"chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap"`
	MinPageChars int           `yaml:"min_page_chars"`
	BatchSize    int           `yaml:"batch_size"`
	Workers      int           `yaml:"workers"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BackoffBase  time.Duration `yaml:"backoff_base"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

type QuerySettings struct {
	TopK        int           `yaml:"top_k"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheAnswer bool          `yaml:"cache_answers"`
	CacheCutoff float32       `yaml:"cache_cutoff"`
}

type SchedulerSettings struct {
	Interval          time.Duration `yaml:"interval"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	InitialDelay      time.Duration `yaml:"initial_delay"`
	FailureRetryDelay time.Duration `yaml:"failure_retry_delay"`
	StateBackend      string        `yaml:"state_backend"`
	StatePath         string        `yaml:"state_path"`
}

func IsProd() bool {
	env := strings.ToLower(os.Getenv("APP_ENV"))
	return env == "production" || env == "prod"
}

func DefaultSettings() Settings {
	return Settings{
		ListenAddr: ServerListenAddr,
		DataDir:    DataDir,
		Redis:      RedisSettings{Addr: RedisAddr},
		Source: SourceSettings{
			BaseURL: SourceBaseURL,
			Categories: map[string]string{
				"regulation":   "/web/guest/regulations",
				"circular":     "/web/guest/circulars",
				"notification": "/web/guest/notifications",
				"guideline":    "/web/guest/guidelines",
			},
			UserAgent:       SourceUserAgent,
			MaxPages:        CrawlMaxPages,
			Workers:         CrawlWorkers,
			RequestTimeout:  CrawlRequestTimeout,
			MaxAttempts:     CrawlMaxAttempts,
			BackoffBase:     CrawlBackoffBase,
			RatePerSecond:   CrawlRatePerSecond,
			RevalidateAfter: CrawlRevalidate,
			MaxDocumentSize: MaxDocumentBytes,
			IgnoredParams:   []string{"t", "download", "utm_source", "utm_medium", "utm_campaign"},
		},
		Tracker: TrackerSettings{Backend: TrackerBackendSQLite},
		Vector: VectorSettings{
			Backend:    VectorBackendQdrant,
			QdrantHost: QdrantHost,
			QdrantPort: QdrantGrpcPort,
			QdrantTLS:  QdrantUseTLS,
			Collection: CollectionName,
			CacheName:  SemanticCacheName,
		},
		Embedding: ProviderSettings{
			Provider:  ProviderGemini,
			Model:     GoogleEmbeddingModel,
			Dimension: EmbeddingDimension,
			Timeout:   EmbeddingTimeout,
		},
		LLM: LLMSettings{
			ProviderSettings: ProviderSettings{
				Provider: ProviderGemini,
				Model:    GeminiModelName,
				Timeout:  LLMRequestTimeout,
			},
			MaxTokens:    LLMMaxTokens,
			Temperature:  LLMTemperature,
			MaxAttempts:  LLMMaxAttempts,
			BackoffBase:  LLMBackoffBase,
			SystemPrompt: ModelContext,
		},
		Ingest: IngestSettings{
			ChunkSize:    ChunkSize,
			ChunkOverlap: ChunkOverlap,
			MinPageChars: MinPageChars,
			BatchSize:    EmbedBatchSize,
			Workers:      IngestWorkers,
			MaxAttempts:  EmbedMaxAttempts,
			BackoffBase:  EmbedBackoffBase,
			LockTTL:      IngestLockTTL,
		},
		Query: QuerySettings{
			TopK:        QueryTopK,
			Timeout:     QueryTimeout,
			CacheCutoff: CacheSimilarityCutoff,
		},
		Scheduler: SchedulerSettings{
			Interval:          UpdateInterval,
			PollInterval:      SchedulerPollInterval,
			InitialDelay:      SchedulerInitialDelay,
			FailureRetryDelay: FailureRetryDelay,
			StateBackend:      StateBackendFile,
		},
	}
}

// Load builds Settings from defaults, an optional YAML file and the
// environment. A .env file in the working directory is loaded first and
// never overrides variables that are already set.
func Load(path string) (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("loading .env: %w", err)
	}

	settings := DefaultSettings()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if path == "" {
		path = "config.yaml"
	}
	if err := settings.mergeFile(path, explicit); err != nil {
		return Settings{}, err
	}
	if err := settings.applyEnv(); err != nil {
		return Settings{}, err
	}
	settings.fillPaths()
	return settings, nil
}

func (s *Settings) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (s *Settings) applyEnv() error {
	var errs []error

	setString(&s.ListenAddr, "LISTEN_ADDR")
	setString(&s.DataDir, "DATA_DIR")
	setString(&s.Redis.Addr, "REDIS_ADDR")
	setString(&s.Redis.Password, "REDIS_PASSWORD")

	setString(&s.Source.BaseURL, "SOURCE_BASE_URL")
	errs = append(errs, setInt(&s.Source.Workers, "CRAWL_WORKERS"))
	errs = append(errs, setInt(&s.Source.MaxPages, "CRAWL_MAX_PAGES"))

	setString(&s.Tracker.Backend, "TRACKER_BACKEND")
	setString(&s.Tracker.SQLitePath, "TRACKER_SQLITE_PATH")

	setString(&s.Vector.Backend, "VECTOR_BACKEND")
	setString(&s.Vector.QdrantHost, "QDRANT_HOST")
	errs = append(errs, setInt(&s.Vector.QdrantPort, "QDRANT_PORT"))
	setString(&s.Vector.QdrantAPIKey, "QDRANT_API_KEY")
	setString(&s.Vector.Collection, "QDRANT_COLLECTION")

	setString(&s.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&s.Embedding.Model, "EMBEDDING_MODEL")
	setString(&s.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	errs = append(errs, setInt(&s.Embedding.Dimension, "EMBEDDING_DIMENSION"))
	setString(&s.Embedding.APIKey, "EMBEDDING_API_KEY")
	if s.Embedding.APIKey == "" {
		s.Embedding.APIKey = providerKey(s.Embedding.Provider)
	}

	setString(&s.LLM.Provider, "LLM_PROVIDER")
	setString(&s.LLM.Model, "LLM_MODEL")
	setString(&s.LLM.BaseURL, "LLM_BASE_URL")
	setString(&s.LLM.APIKey, "LLM_API_KEY")
	if s.LLM.APIKey == "" {
		s.LLM.APIKey = providerKey(s.LLM.Provider)
	}

	errs = append(errs, setInt(&s.Query.TopK, "QUERY_TOP_K"))
	if v := os.Getenv("ANSWER_CACHE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ANSWER_CACHE: %w", err))
		}
		s.Query.CacheAnswer = b
	}

	if v := os.Getenv("UPDATE_INTERVAL"); v != "" {
		d, err := parseInterval(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("UPDATE_INTERVAL: %w", err))
		} else {
			s.Scheduler.Interval = d
		}
	}
	errs = append(errs, setDuration(&s.Scheduler.PollInterval, "SCHEDULER_POLL_INTERVAL"))
	setString(&s.Scheduler.StateBackend, "STATE_BACKEND")
	setString(&s.Scheduler.StatePath, "STATE_PATH")

	return errors.Join(errs...)
}

func (s *Settings) fillPaths() {
	if s.Tracker.SQLitePath == "" {
		s.Tracker.SQLitePath = filepath.Join(s.DataDir, TrackerSQLiteFile)
	}
	if s.Scheduler.StatePath == "" {
		s.Scheduler.StatePath = filepath.Join(s.DataDir, SchedulerStateFile)
	}
}

// DocumentsDir is where crawled and uploaded files are kept.
func (s Settings) DocumentsDir() string {
	return filepath.Join(s.DataDir, DocumentsSubDir)
}

// Validate reports every problem at once so the operator can fix them in one go.
func (s Settings) Validate() error {
	var errs []error

	if _, err := url.ParseRequestURI(s.Source.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("source base url %q is invalid", s.Source.BaseURL))
	}
	if len(s.Source.Categories) == 0 {
		errs = append(errs, errors.New("no source categories configured"))
	}
	if s.Embedding.APIKey == "" {
		errs = append(errs, fmt.Errorf("missing API key for embedding provider %q", s.Embedding.Provider))
	}
	if s.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("missing API key for llm provider %q", s.LLM.Provider))
	}
	if s.Embedding.Dimension <= 0 {
		errs = append(errs, errors.New("embedding dimension must be positive"))
	}
	if s.Ingest.ChunkOverlap >= s.Ingest.ChunkSize {
		errs = append(errs, errors.New("chunk overlap must be smaller than chunk size"))
	}
	if s.Query.TopK <= 0 {
		errs = append(errs, errors.New("query top_k must be positive"))
	}
	if s.Scheduler.Interval <= 0 || s.Scheduler.PollInterval <= 0 {
		errs = append(errs, errors.New("scheduler intervals must be positive"))
	}
	if s.Scheduler.PollInterval > s.Scheduler.Interval {
		errs = append(errs, errors.New("scheduler poll interval must not exceed the update interval"))
	}
	errs = append(errs, oneOf("tracker backend", s.Tracker.Backend, TrackerBackendSQLite, TrackerBackendRedis, TrackerBackendMemory))
	errs = append(errs, oneOf("vector backend", s.Vector.Backend, VectorBackendQdrant, VectorBackendMemory))
	errs = append(errs, oneOf("state backend", s.Scheduler.StateBackend, StateBackendFile, StateBackendRedis))
	errs = append(errs, oneOf("embedding provider", s.Embedding.Provider, ProviderGemini, ProviderOpenAI))
	errs = append(errs, oneOf("llm provider", s.LLM.Provider, ProviderGemini, ProviderOpenAI))

	return errors.Join(errs...)
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s %q is not one of %s", name, value, strings.Join(allowed, ", "))
}

func providerKey(provider string) string {
	switch provider {
	case ProviderGemini:
		return os.Getenv("GOOGLE_API_KEY")
	case ProviderOpenAI:
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("HF_TOKEN")
	}
	return ""
}

// parseInterval accepts a Go duration ("6h30m") or a bare number of hours ("12").
func parseInterval(v string) (time.Duration, error) {
	if hours, err := strconv.ParseFloat(v, 64); err == nil {
		if hours <= 0 {
			return 0, errors.New("must be positive")
		}
		return time.Duration(hours * float64(time.Hour)), nil
	}
	return time.ParseDuration(v)
}

func setString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setInt(target *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = n
	return nil
}

func setDuration(target *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = d
	return nil
}
