package di

import (
	"go.uber.org/zap"

	"nffg-orchestrator/application/orchestrator"
	"nffg-orchestrator/application/ports"
	"nffg-orchestrator/domain/validation"
	"nffg-orchestrator/infrastructure/config"
	"nffg-orchestrator/interfaces/http/rest/handlers"
	"nffg-orchestrator/pkg/auth"
	"nffg-orchestrator/pkg/errors"
	"nffg-orchestrator/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Store        ports.GraphStore
	Adapter      ports.ControllerAdapter
	Validator    *validation.Validator
	Engine       *orchestrator.Engine
	Metrics      *observability.Metrics
	Tracer       *observability.Tracer
	JWTValidator *auth.JWTValidator
	JWTGenerator *auth.JWTGenerator
	Resolver     auth.TenantResolver
	ErrorHandler *errors.ErrorHandler
	NFFGHandler  *handlers.NFFGHandler
	AuthHandler  *handlers.AuthHandler
}
