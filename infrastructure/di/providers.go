package di

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"nffg-orchestrator/application/orchestrator"
	"nffg-orchestrator/application/ports"
	"nffg-orchestrator/domain/validation"
	"nffg-orchestrator/infrastructure/config"
	"nffg-orchestrator/infrastructure/controller"
	"nffg-orchestrator/infrastructure/persistence/dynamodb"
	"nffg-orchestrator/infrastructure/persistence/memory"
	"nffg-orchestrator/interfaces/http/rest/handlers"
	"nffg-orchestrator/pkg/auth"
	"nffg-orchestrator/pkg/errors"
	"nffg-orchestrator/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideGraphStore selects the persistence backend from configuration
func ProvideGraphStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.GraphStore {
	if cfg.StoreBackend == "memory" {
		return memory.NewGraphStore()
	}
	return dynamodb.NewGraphStore(client, cfg.DynamoDBTable, cfg.GraphIndex, logger)
}

// ProvideControllerAdapter creates the southbound controller client
func ProvideControllerAdapter(cfg *config.Config, logger *zap.Logger) ports.ControllerAdapter {
	return controller.NewHTTPAdapter(controller.Config{
		Endpoint: cfg.ControllerEndpoint,
		Username: cfg.ControllerUsername,
		Password: cfg.ControllerPassword,
	}, &http.Client{Timeout: cfg.ControllerTimeout}, logger)
}

// ProvideValidator creates the graph validator
func ProvideValidator() *validation.Validator {
	return validation.NewValidator()
}

// ProvideMetrics creates the metrics recorder
func ProvideMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.DefaultRegisterer)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("nffg-orchestrator", cfg.EnableTracing)
}

// ProvideEngine creates the orchestration engine
func ProvideEngine(
	store ports.GraphStore,
	adapter ports.ControllerAdapter,
	validator *validation.Validator,
	cfg *config.Config,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *orchestrator.Engine {
	return orchestrator.NewEngine(store, adapter, validator, orchestrator.Config{
		AdapterTimeout:      cfg.ControllerTimeout,
		AdapterRetries:      cfg.ControllerRetries,
		AllowFailedResubmit: cfg.AllowFailedResubmit,
		StaleAfter:          cfg.StaleAfter,
		PurgeDeleted:        cfg.PurgeDeleted,
	}, logger, metrics, tracer)
}

// ProvideJWTValidator creates the token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
}

// ProvideJWTGenerator creates the token issuer
func ProvideJWTGenerator(cfg *config.Config) (*auth.JWTGenerator, error) {
	return auth.NewJWTGenerator(auth.JWTGeneratorConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		TTL:       cfg.TokenTTL,
	})
}

// ProvideTenantResolver maps configured users onto tenants
func ProvideTenantResolver(cfg *config.Config) auth.TenantResolver {
	users := make([]auth.User, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		users = append(users, auth.User{
			Username:  u.Username,
			Password:  u.Password,
			TenantID:  u.TenantID,
			Roles:     u.Roles,
			Resources: u.Resources,
		})
	}
	return auth.NewStaticResolver(users)
}

// ProvideErrorHandler creates the HTTP error translator
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *errors.ErrorHandler {
	return errors.NewErrorHandler(logger, cfg.Environment != "production")
}

// ProvideNFFGHandler creates the graph lifecycle handler
func ProvideNFFGHandler(engine *orchestrator.Engine, errorHandler *errors.ErrorHandler, logger *zap.Logger) *handlers.NFFGHandler {
	return handlers.NewNFFGHandler(engine, errorHandler, logger)
}

// ProvideAuthHandler creates the login handler
func ProvideAuthHandler(resolver auth.TenantResolver, generator *auth.JWTGenerator, errorHandler *errors.ErrorHandler, logger *zap.Logger) *handlers.AuthHandler {
	return handlers.NewAuthHandler(resolver, generator, errorHandler, logger)
}
