// Package lambdaboot provides shared cold-start bootstrap logic.
//
// Every entrypoint needs some subset of: AWS config, object storage,
// Bedrock clients, the DynamoDB job registry, EventBridge, an SSM parameter
// fetch, and startup logging. This package extracts the common init patterns
// so each main is a short composition of helpers.
package lambdaboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ad-compliance-analyzer/internal/config"
	"github.com/fpang/ad-compliance-analyzer/internal/events"
	"github.com/fpang/ad-compliance-analyzer/internal/inference"
	"github.com/fpang/ad-compliance-analyzer/internal/logging"
	"github.com/fpang/ad-compliance-analyzer/internal/resolver"
	"github.com/fpang/ad-compliance-analyzer/internal/storage"
	"github.com/fpang/ad-compliance-analyzer/internal/store"
)

// AWSClients holds the core AWS SDK clients used across entrypoints.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// StorageClients holds the object store and, for the S3 backend, the raw
// client and presigner.
type StorageClients struct {
	Objects   storage.ObjectStore
	S3        *s3.Client
	Presigner *s3.PresignClient
}

// App is everything an entrypoint needs to serve requests.
type App struct {
	Config   *config.Config
	AWS      AWSClients
	Storage  StorageClients
	Resolver *resolver.Resolver
	Jobs     *store.DynamoStore // nil when BATCH_JOBS_TABLE_NAME is unset
	Events   *events.Emitter    // nil when EVENT_BUS_NAME is unset
	Service  *inference.Service
}

// InitAWS loads the default AWS config and returns it along with common clients.
// A non-empty region overrides the one resolved from the environment.
func InitAWS(region string) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsLoadOptions(region)...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

func awsLoadOptions(region string) []func(*awsconfig.LoadOptions) error {
	if region == "" {
		return nil
	}
	return []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
}

// InitStorage creates the configured object store backend.
func InitStorage(cfg aws.Config, c *config.Config) StorageClients {
	if c.IsLocalStorage() {
		log.Info().Str("path", c.LocalStoragePath).Msg("Using local object storage")
		return StorageClients{Objects: storage.NewLocalStore(c.LocalStoragePath)}
	}
	client := s3.NewFromConfig(cfg)
	return StorageClients{
		Objects:   storage.NewS3Store(client),
		S3:        client,
		Presigner: s3.NewPresignClient(client),
	}
}

// InitJobStore creates the DynamoDB batch job registry if a table is configured.
// Returns nil (with a warning) if not configured.
func InitJobStore(cfg aws.Config, tableName string) *store.DynamoStore {
	if tableName == "" {
		log.Warn().Msg("BATCH_JOBS_TABLE_NAME not set, job registry disabled")
		return nil
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), tableName)
}

// InitEmitter creates the EventBridge emitter if a bus is configured.
func InitEmitter(cfg aws.Config, busName string) *events.Emitter {
	if busName == "" {
		log.Debug().Msg("EVENT_BUS_NAME not set, domain events disabled")
		return nil
	}
	return events.NewEmitter(eventbridge.NewFromConfig(cfg), busName)
}

// Bootstrap loads configuration and builds every client. Fatals on any
// configuration error.
func Bootstrap() *App {
	c, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logging.SetLevel(c.LogLevel)

	awsClients := InitAWS(c.AWSRegion)
	c.BatchRoleARN = LoadBatchRoleARN(context.Background(), awsClients.SSM, c.BatchRoleARN, c.SSMBatchRoleARNParam)

	app := &App{
		Config:  c,
		AWS:     awsClients,
		Storage: InitStorage(awsClients.Config, c),
		Jobs:    InitJobStore(awsClients.Config, c.BatchJobsTable),
		Events:  InitEmitter(awsClients.Config, c.EventBusName),
	}
	app.Resolver = resolver.New(app.Storage.Objects, c.GuidelinesBucket)

	opts := inference.Options{
		ModelID:          c.ModelID,
		BatchModelID:     c.BatchModelID,
		Bucket:           c.Bucket,
		BatchRoleARN:     c.BatchRoleARN,
		MetricsNamespace: c.MetricsNamespace,
	}
	// Optional hooks are only set when configured so the interfaces stay nil.
	if app.Jobs != nil {
		opts.Jobs = app.Jobs
	}
	if app.Events != nil {
		opts.Verdicts = app.Events
	}

	app.Service = inference.New(
		bedrockruntime.NewFromConfig(awsClients.Config),
		bedrock.NewFromConfig(awsClients.Config),
		app.Storage.Objects,
		app.Resolver,
		opts,
	)
	return app
}

// StartupLog is a convenience wrapper for the startup logger, pre-filled
// with the resources an App uses.
func (a *App) StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	sl := StartupLog(name, initStart).
		S3Bucket("staging", a.Config.Bucket).
		S3Bucket("guidelines", a.Config.GuidelinesBucket).
		Model("interactive", a.Config.ModelID).
		Model("batch", a.Config.BatchModelID).
		SSMParam("batchRoleArn", a.Config.SSMBatchRoleARNParam).
		Feature("jobRegistry", a.Jobs != nil).
		Feature("verdictEvents", a.Events != nil).
		Feature("batchRole", a.Config.BatchRoleARN != "").
		Config("storageBackend", a.Config.StorageBackend)
	if a.Config.BatchJobsTable != "" {
		sl.DynamoTable("batchJobs", a.Config.BatchJobsTable)
	}
	if a.Config.EventBusName != "" {
		sl.EventBus("domain", a.Config.EventBusName)
	}
	return sl
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
