package main

import (
	"context"

	common_models "go-edu/internal/common/models"
	"go-edu/internal/config"
	"go-edu/internal/database"
	"go-edu/internal/features/auth"
	"go-edu/internal/features/institution"
	"go-edu/internal/features/user"
	"go-edu/internal/features/workflow"
	"go-edu/internal/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

type seedUser struct {
	username string
	password string
	role     string
}

// Seed builds a small demo tree (ministry, region, sector, school), one
// account per level, and the default survey approval workflow.
func Seed(
	lc fx.Lifecycle,
	institutionRepo institution.InstitutionRepository,
	userRepo user.UserRepository,
	workflowRepo workflow.WorkflowRepository,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				logger.Info("Seeding demo data...")
				seedCtx := context.Background()

				tree := []struct {
					name     string
					instType string
					utisCode string
				}{
					{"Ministry of Education", institution.TypeMinistry, "M-001"},
					{"Baku Region", institution.TypeRegion, "R-001"},
					{"Yasamal Sector", institution.TypeSector, "S-001"},
					{"School 158", institution.TypeSchool, "SC-158"},
				}

				var parentID *primitive.ObjectID
				institutionIDs := make([]primitive.ObjectID, 0, len(tree))
				for i, node := range tree {
					inst := &institution.Institution{
						Name:     node.name,
						Type:     node.instType,
						ParentID: parentID,
						Level:    i + 1,
						UtisCode: node.utisCode,
						IsActive: true,
					}
					if err := institutionRepo.Create(seedCtx, inst); err != nil {
						logger.Error("Failed to seed institution", zap.String("name", node.name), zap.Error(err))
						return
					}
					institutionIDs = append(institutionIDs, inst.ID)
					parentID = &inst.ID
				}

				accounts := []seedUser{
					{"superadmin", "superadmin123", "superadmin"},
					{"regionadmin", "regionadmin123", "regionadmin"},
					{"sektoradmin", "sektoradmin123", "sektoradmin"},
					{"schooladmin", "schooladmin123", "schooladmin"},
				}
				for i, account := range accounts {
					hash, err := auth.HashPassword(account.password)
					if err != nil {
						logger.Error("Failed to hash password", zap.Error(err))
						return
					}
					instID := institutionIDs[i]
					if err := userRepo.Create(seedCtx, &common_models.User{
						Username:      account.username,
						Email:         account.username + "@edu.gov.az",
						PasswordHash:  hash,
						Roles:         []string{account.role},
						InstitutionID: &instID,
						IsActive:      true,
					}); err != nil {
						logger.Error("Failed to seed user", zap.String("username", account.username), zap.Error(err))
						return
					}
				}

				def := &workflow.WorkflowDefinition{
					Name:         "Survey Response Approval",
					WorkflowType: "survey_response",
					Status:       workflow.StatusActive,
					Version:      1,
					Chain: []workflow.ChainLevel{
						{Level: 1, Role: "schooladmin", Required: true, Title: "School approval"},
						{Level: 2, Role: "sektoradmin", Required: true, Title: "Sector approval"},
						{Level: 3, Role: "regionadmin", Required: false, Title: "Region review"},
					},
					Config: workflow.WorkflowConfig{
						AutoApproveAfter: "168h",
						RequireAllLevels: false,
						AllowDelegation:  true,
					},
					Description: "Default three-level chain for survey responses",
					CreatedBy:   "seed",
				}
				if err := workflowRepo.Create(seedCtx, def); err != nil {
					logger.Error("Failed to seed workflow", zap.Error(err))
					return
				}

				logger.Info("Seeding complete",
					zap.Int("institutions", len(institutionIDs)),
					zap.Int("users", len(accounts)),
					zap.String("workflow", def.Name))
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			user.NewUserRepository,
			institution.NewInstitutionRepository,
			workflow.NewWorkflowRepository,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}
