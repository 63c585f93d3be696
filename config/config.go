package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"verishield-pipeline/domain"
)

// Config holds the settings of every worker. Each worker validates only the
// fields it needs (see Validate).
type Config struct {
	AWSEndpointURL string `yaml:"awsEndpointURL"`
	AWSRegion      string `yaml:"awsRegion"`
	AWSAccessKeyID string `yaml:"-"`
	AWSSecretKey   string `yaml:"-"`

	InputQueueURL  string `yaml:"inputQueueURL"`
	OutputTopicARN string `yaml:"outputTopicARN"`

	RedditClientID        string        `yaml:"-"`
	RedditClientSecret    string        `yaml:"-"`
	RedditUserAgent       string        `yaml:"redditUserAgent"`
	RedditTokenURL        string        `yaml:"redditTokenURL"`
	RedditAPIBaseURL      string        `yaml:"redditAPIBaseURL"`
	RedditRequestInterval time.Duration `yaml:"redditRequestInterval"`
	PostsPerSubreddit     int           `yaml:"postsPerSubreddit"`

	OpenAIAPIKey  string `yaml:"-"`
	OpenAIBaseURL string `yaml:"openAIBaseURL"`
	OpenAIModel   string `yaml:"openAIModel"`

	FactCheckAPIKey   string `yaml:"-"`
	FactCheckURL      string `yaml:"factCheckURL"`
	FactCheckLanguage string `yaml:"factCheckLanguage"`

	NewsAPIKey     string `yaml:"-"`
	NewsAPIBaseURL string `yaml:"newsAPIBaseURL"`

	DatabaseURL string `yaml:"-"`
	DBBatchSize int    `yaml:"dbBatchSize"`

	RedisHost      string        `yaml:"redisHost"`
	RedisPort      string        `yaml:"redisPort"`
	IdempotencyTTL time.Duration `yaml:"idempotencyTTL"`

	ScanTable       string `yaml:"scanTable"`
	OpenSearchURL   string `yaml:"openSearchURL"`
	OpenSearchIndex string `yaml:"openSearchIndex"`

	MediaBucket         string `yaml:"mediaBucket"`
	MediaCaptureEnabled bool   `yaml:"mediaCaptureEnabled"`

	DefaultSubreddits []string `yaml:"defaultSubreddits"`
	MinSubscribers    int      `yaml:"minSubscribers"`

	HTTPAddress    string        `yaml:"httpAddress"`
	MetricsAddress string        `yaml:"metricsAddress"`
	ScanInterval   time.Duration `yaml:"scanInterval"`
	ScanBatchSize  int           `yaml:"scanBatchSize"`

	LogLevel string `yaml:"logLevel"`
	LogJSON  bool   `yaml:"logJSON"`
}

// Load builds the configuration from defaults, the optional YAML file named
// by PIPELINE_CONFIG_FILE, and finally environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("PIPELINE_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		AWSRegion:             "us-east-1",
		RedditUserAgent:       "verishield-scraper/1.0",
		RedditTokenURL:        "https://www.reddit.com/api/v1/access_token",
		RedditAPIBaseURL:      "https://oauth.reddit.com",
		RedditRequestInterval: time.Second,
		PostsPerSubreddit:     10,
		OpenAIBaseURL:         "https://api.openai.com/v1",
		OpenAIModel:           "gpt-3.5-turbo",
		FactCheckURL:          "https://factchecktools.googleapis.com/v1alpha1/claims:search",
		FactCheckLanguage:     "en",
		NewsAPIBaseURL:        "https://newsapi.org/v2",
		DBBatchSize:           25,
		RedisHost:             "localhost",
		RedisPort:             "6379",
		IdempotencyTTL:        24 * time.Hour,
		OpenSearchIndex:       "threats",
		MediaBucket:           "verishield-threat-media",
		DefaultSubreddits:     []string{"news", "worldnews", "politics", "technology", "science"},
		MinSubscribers:        10000,
		HTTPAddress:           ":8080",
		ScanInterval:          15 * time.Minute,
		ScanBatchSize:         1,
		LogLevel:              "info",
	}
}

func applyEnv(cfg *Config) {
	cfg.AWSEndpointURL = getEnv("AWS_ENDPOINT_URL", cfg.AWSEndpointURL)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.AWSAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", cfg.AWSAccessKeyID)
	cfg.AWSSecretKey = getEnv("AWS_SECRET_ACCESS_KEY", cfg.AWSSecretKey)
	cfg.InputQueueURL = getEnv("INPUT_QUEUE_URL", cfg.InputQueueURL)
	cfg.OutputTopicARN = getEnv("OUTPUT_TOPIC_ARN", cfg.OutputTopicARN)

	cfg.RedditClientID = getEnv("REDDIT_CLIENT_ID", cfg.RedditClientID)
	cfg.RedditClientSecret = getEnv("REDDIT_CLIENT_SECRET", cfg.RedditClientSecret)
	cfg.RedditUserAgent = getEnv("REDDIT_USER_AGENT", cfg.RedditUserAgent)
	cfg.RedditTokenURL = getEnv("REDDIT_TOKEN_URL", cfg.RedditTokenURL)
	cfg.RedditAPIBaseURL = getEnv("REDDIT_API_BASE_URL", cfg.RedditAPIBaseURL)
	cfg.RedditRequestInterval = getDuration("REDDIT_REQUEST_INTERVAL", cfg.RedditRequestInterval)
	cfg.PostsPerSubreddit = getInt("REDDIT_POSTS_PER_SUBREDDIT", cfg.PostsPerSubreddit)

	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", cfg.OpenAIModel)

	cfg.FactCheckAPIKey = getEnv("GOOGLE_FACT_CHECK_API_KEY", cfg.FactCheckAPIKey)
	cfg.FactCheckURL = getEnv("FACT_CHECK_URL", cfg.FactCheckURL)
	cfg.FactCheckLanguage = getEnv("FACT_CHECK_LANGUAGE", cfg.FactCheckLanguage)

	cfg.NewsAPIKey = getEnv("NEWS_API_KEY", cfg.NewsAPIKey)
	cfg.NewsAPIBaseURL = getEnv("NEWS_API_BASE_URL", cfg.NewsAPIBaseURL)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBBatchSize = getInt("DB_BATCH_SIZE", cfg.DBBatchSize)

	cfg.RedisHost = getEnv("REDIS_HOST", cfg.RedisHost)
	cfg.RedisPort = getEnv("REDIS_PORT", cfg.RedisPort)
	cfg.IdempotencyTTL = getDuration("IDEMPOTENCY_TTL", cfg.IdempotencyTTL)

	cfg.ScanTable = getEnv("SCAN_TABLE", cfg.ScanTable)
	cfg.OpenSearchURL = getEnv("OPENSEARCH_URL", cfg.OpenSearchURL)
	cfg.OpenSearchIndex = getEnv("OPENSEARCH_INDEX", cfg.OpenSearchIndex)

	cfg.MediaBucket = getEnv("MEDIA_BUCKET", cfg.MediaBucket)
	cfg.MediaCaptureEnabled = getBool("MEDIA_CAPTURE_ENABLED", cfg.MediaCaptureEnabled)

	if v := os.Getenv("DEFAULT_SUBREDDITS"); v != "" {
		cfg.DefaultSubreddits = domain.SplitKeywords(v)
	}
	cfg.MinSubscribers = getInt("MIN_SUBSCRIBERS", cfg.MinSubscribers)

	cfg.HTTPAddress = getEnv("HTTP_ADDRESS", cfg.HTTPAddress)
	cfg.MetricsAddress = getEnv("METRICS_ADDRESS", cfg.MetricsAddress)
	cfg.ScanInterval = getDuration("SCAN_INTERVAL", cfg.ScanInterval)
	cfg.ScanBatchSize = getInt("SCAN_BATCH_SIZE", cfg.ScanBatchSize)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogJSON = strings.EqualFold(v, "json")
	}
}

// Validate checks the settings required by the named stage.
func (c *Config) Validate(stage string) error {
	var required []string
	need := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			required = append(required, name)
		}
	}

	switch stage {
	case domain.StageScheduler:
		need("OUTPUT_TOPIC_ARN", c.OutputTopicARN)
		need("DATABASE_URL", c.DatabaseURL)
	case domain.StageDiscovery:
		need("INPUT_QUEUE_URL", c.InputQueueURL)
		need("OUTPUT_TOPIC_ARN", c.OutputTopicARN)
		need("REDDIT_CLIENT_ID", c.RedditClientID)
		need("REDDIT_CLIENT_SECRET", c.RedditClientSecret)
	case domain.StageScraper:
		need("INPUT_QUEUE_URL", c.InputQueueURL)
		need("OUTPUT_TOPIC_ARN", c.OutputTopicARN)
		need("REDDIT_CLIENT_ID", c.RedditClientID)
		need("REDDIT_CLIENT_SECRET", c.RedditClientSecret)
	case domain.StageNews:
		need("INPUT_QUEUE_URL", c.InputQueueURL)
		need("OUTPUT_TOPIC_ARN", c.OutputTopicARN)
		need("NEWS_API_KEY", c.NewsAPIKey)
	case domain.StageClaims:
		need("INPUT_QUEUE_URL", c.InputQueueURL)
		need("OUTPUT_TOPIC_ARN", c.OutputTopicARN)
		need("OPENAI_API_KEY", c.OpenAIAPIKey)
	case domain.StageFactCheck:
		need("INPUT_QUEUE_URL", c.InputQueueURL)
		need("OUTPUT_TOPIC_ARN", c.OutputTopicARN)
		need("GOOGLE_FACT_CHECK_API_KEY", c.FactCheckAPIKey)
	case domain.StageWriter:
		need("INPUT_QUEUE_URL", c.InputQueueURL)
		need("DATABASE_URL", c.DatabaseURL)
	case domain.StageResponder:
		need("DATABASE_URL", c.DatabaseURL)
		need("OPENAI_API_KEY", c.OpenAIAPIKey)
	default:
		return fmt.Errorf("unknown stage %q: %w", stage, domain.ErrConfiguration)
	}

	if len(required) > 0 {
		return fmt.Errorf("%s is required: %w", strings.Join(required, ", "), domain.ErrConfiguration)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}
