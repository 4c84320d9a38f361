// Package di wires the application's dependencies. The graph is small
// enough to construct by hand, so providers are plain functions assembled
// in InitializeContainer.
package di

import (
	"context"

	"kynto-backend/application/generation"
	"kynto-backend/application/ports"
	appconfig "kynto-backend/infrastructure/config"
	"kynto-backend/infrastructure/llm"
	dynamorepo "kynto-backend/infrastructure/persistence/dynamodb"
	"kynto-backend/infrastructure/persistence/memory"
	"kynto-backend/pkg/auth"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *appconfig.Config
	Logger       *zap.Logger
	PlanRepo     ports.PlanRepository
	Completions  ports.CompletionClient
	Service      *generation.Service
	JWTValidator *auth.JWTValidator
}

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *appconfig.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}

	planRepo, err := ProvidePlanRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	validator, err := ProvideJWTValidator(cfg)
	if err != nil {
		return nil, err
	}

	completions := ProvideCompletionClient(cfg, logger)
	service := generation.NewService(completions, planRepo, generation.DefaultRetryPolicy(), logger)

	return &Container{
		Config:       cfg,
		Logger:       logger,
		PlanRepo:     planRepo,
		Completions:  completions,
		Service:      service,
		JWTValidator: validator,
	}, nil
}

// ProvideLogger creates the zap logger for the configured environment
func ProvideLogger(cfg *appconfig.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvidePlanRepository creates the configured plan repository
func ProvidePlanRepository(ctx context.Context, cfg *appconfig.Config, logger *zap.Logger) (ports.PlanRepository, error) {
	if cfg.PlanStore == "memory" {
		logger.Warn("Using in-memory plan store; saved plans will not survive restarts")
		return memory.NewPlanRepository(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	return dynamorepo.NewPlanRepository(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, logger), nil
}

// ProvideJWTValidator creates the token validator for the identity provider
func ProvideJWTValidator(cfg *appconfig.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = "development-secret-change-in-production"
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secret,
		Issuer:        cfg.JWTIssuer,
	})
}

// ProvideCompletionClient creates the Groq-backed completion client
func ProvideCompletionClient(cfg *appconfig.Config, logger *zap.Logger) ports.CompletionClient {
	llmConfig := llm.DefaultConfig(cfg.GroqAPIKey)
	if cfg.GroqBaseURL != "" {
		llmConfig.BaseURL = cfg.GroqBaseURL
	}
	if cfg.GroqModel != "" {
		llmConfig.Model = cfg.GroqModel
	}
	llmConfig.Timeout = cfg.ProviderTimeout

	return llm.NewGroqClient(llmConfig, logger)
}
