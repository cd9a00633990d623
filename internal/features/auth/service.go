package auth

import (
	"context"
	"errors"

	"go-edu/internal/common/models"
	"go-edu/internal/features/audit"
	"go-edu/internal/features/user"
	"go-edu/pkg/utils"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type AuthService interface {
	Login(ctx context.Context, username, password string) (string, error)
}

type AuthServiceImpl struct {
	UserRepo     user.UserRepository
	AuditService audit.AuditService
}

func NewAuthService(userRepo user.UserRepository, auditService audit.AuditService) AuthService {
	return &AuthServiceImpl{
		UserRepo:     userRepo,
		AuditService: auditService,
	}
}

func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, error) {
	account, err := s.UserRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !account.IsActive {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	institutionID := ""
	if account.InstitutionID != nil {
		institutionID = account.InstitutionID.Hex()
	}

	token, err := utils.GenerateToken(account.ID, account.Roles, institutionID)
	if err != nil {
		return "", err
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionLogin, "users", account.ID.Hex(), nil)
	return token, nil
}

// HashPassword is used by seeding and account provisioning.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
