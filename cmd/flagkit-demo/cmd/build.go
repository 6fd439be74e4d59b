package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flagkit/core/internal/backgroundsync"
	"github.com/flagkit/core/internal/client"
	"github.com/flagkit/core/internal/config"
	"github.com/flagkit/core/internal/datasource/polling"
	"github.com/flagkit/core/internal/datasource/streaming"
	"github.com/flagkit/core/internal/events"
	"github.com/flagkit/core/internal/lazyload"
	"github.com/flagkit/core/internal/lazyload/redisreader"
	"github.com/flagkit/core/internal/lazyload/s3reader"
)

// buildClient constructs the data system cfg.DataSource.Mode names and
// wraps it in a client.Client, mirroring cmd/dorkly/main.go's
// env/flag-driven wiring of a reconciler against its AWS/S3 collaborators.
func buildClient(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*client.Client, error) {
	eventsCfg := events.Config{
		EventsURI:     cfg.Events.EventsURI,
		SDKKey:        cfg.SDKKey,
		FlushInterval: cfg.Events.FlushInterval,
		OutboxSize:    cfg.Events.OutboxSize,
		PoolSize:      cfg.Events.PoolSize,
		RetryDelay:    cfg.Events.RetryDelay,
		HTTPClient:    http.DefaultClient,
	}

	switch cfg.DataSource.Mode {
	case config.ModeStreaming:
		streamCfg := streaming.Config{
			StreamURI: cfg.DataSource.StreamURI,
		}
		bg := backgroundsync.NewStreamingSystem(streamCfg, logger)
		return client.NewWithBackgroundSync(bg, eventsCfg, logger), nil

	case config.ModePolling:
		pollCfg := polling.Config{
			PollURI:  cfg.DataSource.PollURI,
			Interval: cfg.DataSource.Interval,
		}
		bg := backgroundsync.NewPollingSystem(pollCfg, logger)
		return client.NewWithBackgroundSync(bg, eventsCfg, logger), nil

	case config.ModeLazyLoad:
		reader, err := buildLazyLoadReader(ctx, cfg.DataSource.LazyLoad)
		if err != nil {
			return nil, err
		}
		sys := lazyload.NewSystem(reader, cfg.DataSource.LazyLoad.RefreshTTL, logger)
		return client.NewWithLazyLoad(sys, eventsCfg, logger), nil

	default:
		return nil, fmt.Errorf("unsupported data source mode %q", cfg.DataSource.Mode)
	}
}

func buildLazyLoadReader(ctx context.Context, cfg config.LazyLoadConfig) (lazyload.SerializedDataReader, error) {
	switch cfg.Backend {
	case "s3":
		var awsOpts []func(*awsconfig.LoadOptions) error
		if cfg.S3.AccessKeyID != "" {
			awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading default AWS configuration: %w", err)
		}
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3.Region != "" {
				o.Region = cfg.S3.Region
			}
			if cfg.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
				o.UsePathStyle = true
			}
		})
		return s3reader.NewReader(s3Client, cfg.S3.Bucket, cfg.S3.Prefix), nil

	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisreader.NewReader(redisClient, cfg.Redis.Prefix), nil

	default:
		return nil, fmt.Errorf("unsupported lazy-load backend %q", cfg.Backend)
	}
}
