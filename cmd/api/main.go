package main

import (
	"context"
	"fmt"
	"log"

	common_api "go-edu/internal/common/api"
	"go-edu/internal/config"
	"go-edu/internal/database"
	"go-edu/internal/features/approval"
	"go-edu/internal/features/audit"
	"go-edu/internal/features/auth"
	"go-edu/internal/features/institution"
	"go-edu/internal/features/report"
	"go-edu/internal/features/sync"
	"go-edu/internal/features/system"
	"go-edu/internal/features/user"
	"go-edu/internal/features/workflow"
	"go-edu/internal/logger"
	"go-edu/internal/middleware"
	"go-edu/pkg/utils"

	_ "go-edu/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
	log.Printf("Registered %d routes\n", len(routes))
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	utils.SetSecret(cfg.JWTSecret)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// @title           Education Administration API
// @version         1.0
// @description     Institution hierarchy and hierarchical approval workflows.

// @host            localhost:8080
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			NewFiberServer,
			database.NewDatabase,

			user.NewUserRepository,
			audit.NewAuditRepository,
			institution.NewInstitutionRepository,
			workflow.NewWorkflowRepository,
			approval.NewApprovalRepository,
			sync.NewSyncLogRepository,

			audit.NewAuditService,
			auth.NewAuthService,
			institution.NewHierarchyService,
			workflow.NewWorkflowService,
			approval.NewHierarchyAuthorizer,
			approval.NewApprovalService,
			report.NewReportService,
			sync.NewSyncService,
			system.NewHub,

			// Interface adapters to satisfy Fx
			func(r user.UserRepository) audit.UserFinder { return r },
			func(h *system.Hub) approval.EventPublisher { return h },

			auth.NewAuthController,
			audit.NewAuditController,
			institution.NewHierarchyController,
			workflow.NewWorkflowController,
			approval.NewApprovalController,
			report.NewReportController,
			sync.NewSyncController,

			AsRoute(auth.NewAuthApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(institution.NewHierarchyApi),
			AsRoute(workflow.NewWorkflowApi),
			AsRoute(approval.NewApprovalApi),
			AsRoute(report.NewReportApi),
			AsRoute(sync.NewSyncApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
			AsRoute(system.NewWebSocketApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			StartServer,
			approval.NewSweeper,
		),
	)

	app.Run()
}
