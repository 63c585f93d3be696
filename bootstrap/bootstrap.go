// Package bootstrap wires the shared infrastructure of every worker binary.
package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"verishield-pipeline/config"
	"verishield-pipeline/logging"
	"verishield-pipeline/metrics"
	"verishield-pipeline/repositories"
	"verishield-pipeline/services"
)

// Worker holds what every stage binary needs once configuration is loaded.
type Worker struct {
	Config *config.Config
	Logger *slog.Logger
	AWS    aws.Config
}

// New loads and validates configuration for stage, builds the logger and the
// AWS configuration, and starts the metrics endpoint when configured.
func New(ctx context.Context, stage string) (*Worker, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(stage); err != nil {
		return nil, err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogJSON)
	slog.SetDefault(logger)

	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	if cfg.MetricsAddress != "" {
		go ServeMetrics(ctx, cfg.MetricsAddress, logger)
	}

	return &Worker{Config: cfg, Logger: logger, AWS: awsCfg}, nil
}

// LoadAWSConfig resolves every AWS service to AWSEndpointURL when it is set,
// which is how the workers talk to LocalStack. Explicit keys take precedence
// over the default credential chain.
func LoadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSEndpointURL != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.AWSEndpointURL,
				SigningRegion:     cfg.AWSRegion,
				HostnameImmutable: true,
			}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return awsCfg, nil
}

// ServeMetrics exposes the default Prometheus registry until ctx is done.
func ServeMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}

// OpenDatabase connects gorm to Postgres.
func (w *Worker) OpenDatabase() (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(w.Config.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return db, nil
}

// OpenSearch returns a client for OpenSearchURL, or nil when unset.
func (w *Worker) OpenSearch() (*opensearch.Client, error) {
	if w.Config.OpenSearchURL == "" {
		return nil, nil
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		Addresses: []string{w.Config.OpenSearchURL},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating OpenSearch client: %w", err)
	}
	return client, nil
}

// Publisher returns the SNS publisher for this worker's output topic.
func (w *Worker) Publisher() *repositories.SNSPublisher {
	return repositories.NewSNSPublisher(sns.NewFromConfig(w.AWS))
}

// Credentials builds the Reddit OAuth credential store.
func (w *Worker) Credentials() *repositories.CredentialStore {
	c := w.Config
	return repositories.NewCredentialStore(c.RedditTokenURL, c.RedditClientID, c.RedditClientSecret, c.RedditUserAgent)
}

// Reddit builds a paced Reddit API client backed by tokens.
func (w *Worker) Reddit(tokens repositories.TokenSource) *repositories.RedditClient {
	c := w.Config
	return repositories.NewRedditClient(c.RedditAPIBaseURL, c.RedditUserAgent, tokens,
		repositories.WithPacer(repositories.NewPacer(c.RedditRequestInterval, 2)))
}

// Chat builds the chat completions client.
func (w *Worker) Chat() *repositories.ChatClient {
	c := w.Config
	return repositories.NewChatClient(c.OpenAIBaseURL, c.OpenAIAPIKey, c.OpenAIModel)
}

// RunStage consumes InputQueueURL with handler until ctx is cancelled,
// publishing to OutputTopicARN when set.
func (w *Worker) RunStage(ctx context.Context, name string, handler services.Handler) error {
	opts := []services.StageOption{services.WithStageLogger(w.Logger)}
	if w.Config.OutputTopicARN != "" {
		opts = append(opts, services.WithPublisher(w.Publisher(), w.Config.OutputTopicARN))
	}
	stage := services.NewStage(name, handler, opts...)
	consumer := repositories.NewSQSConsumer(sqs.NewFromConfig(w.AWS), w.Config.InputQueueURL)
	return services.NewRunner(consumer, stage, w.Logger).Run(ctx)
}

// Fatal logs err and exits. Used before the worker logger exists.
func Fatal(err error) {
	slog.Error("worker failed to start", "error", err)
	os.Exit(1)
}
