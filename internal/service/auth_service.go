package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/YashBawari18/Online-TicketConsession/internal/gateway"
	"github.com/YashBawari18/Online-TicketConsession/internal/models"
	appErrors "github.com/YashBawari18/Online-TicketConsession/pkg/errors"
)

const auditResourceAuth = "auth"

type accountRepository interface {
	CreateStudent(ctx context.Context, student *models.Student) error
	FindStudentByEmail(ctx context.Context, email string) (*models.Student, error)
	FindStudentByID(ctx context.Context, id string) (*models.Student, error)
	CreateAdmin(ctx context.Context, admin *models.Admin) error
	FindAdminByUsername(ctx context.Context, username string) (*models.Admin, error)
	FindAdminByID(ctx context.Context, id string) (*models.Admin, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	BcryptCost        int
}

// AuthService authenticates students and administrators and issues access tokens.
type AuthService struct {
	repo      accountRepository
	validator *validator.Validate
	audit     auditRecorder
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo accountRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig, audit auditRecorder) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{repo: repo, validator: validate, audit: audit, logger: logger, config: config, now: time.Now}
}

// SignupStudent registers a student account and signs it in.
func (s *AuthService) SignupStudent(ctx context.Context, req models.StudentSignupRequest) (*models.LoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.RollNumber = strings.TrimSpace(req.RollNumber)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	student := &models.Student{
		RollNumber:   req.RollNumber,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateStudent(ctx, student); err != nil {
		if errors.Is(err, gateway.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email or roll number already exists")
		}
		return nil, storageFailure(err, "failed to create account")
	}

	s.record(ctx, models.AuditActionSignup, student.ID, "student")
	return s.issue(studentInfo(student))
}

// LoginStudent authenticates a student by email and password.
func (s *AuthService) LoginStudent(ctx context.Context, req models.StudentLoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	student, err := s.repo.FindStudentByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, storageFailure(err, "failed to fetch account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	s.record(ctx, models.AuditActionLogin, student.ID, "student")
	return s.issue(studentInfo(student))
}

// LoginAdmin authenticates an administrator by username and password.
func (s *AuthService) LoginAdmin(ctx context.Context, req models.AdminLoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	admin, err := s.repo.FindAdminByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
		}
		return nil, storageFailure(err, "failed to fetch account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}

	s.record(ctx, models.AuditActionLogin, admin.ID, "admin")
	return s.issue(adminInfo(admin))
}

// CreateAdmin provisions an administrator account. It is used by operator tooling only.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (*models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 8 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "username is required and password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	admin := &models.Admin{Username: username, PasswordHash: string(hash), CreatedAt: s.now().UTC()}
	if err := s.repo.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, gateway.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "admin username already exists")
		}
		return nil, storageFailure(err, "failed to create admin")
	}
	return admin, nil
}

// Me resolves the account behind claims.
func (s *AuthService) Me(ctx context.Context, claims *models.JWTClaims) (*models.UserInfo, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var info models.UserInfo
	switch claims.Role {
	case models.RoleStudent:
		student, err := s.repo.FindStudentByID(ctx, claims.UserID)
		if err != nil {
			return nil, s.accountLookupFailure(err)
		}
		info = studentInfo(student)
	case models.RoleAdmin:
		admin, err := s.repo.FindAdminByID(ctx, claims.UserID)
		if err != nil {
			return nil, s.accountLookupFailure(err)
		}
		info = adminInfo(admin)
	default:
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown role")
	}
	return &info, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) issue(info models.UserInfo) (*models.LoginResponse, error) {
	issuedAt := s.now().UTC()
	claims := &models.JWTClaims{
		UserID: info.ID,
		Role:   info.Role,
		Name:   info.Name,
		Email:  info.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   info.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	if info.Role == models.RoleAdmin {
		claims.Name = info.Username
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	return &models.LoginResponse{
		AccessToken: signed,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		User:        info,
		IssuedAt:    issuedAt,
	}, nil
}

func (s *AuthService) accountLookupFailure(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
	}
	return storageFailure(err, "failed to load account")
}

func (s *AuthService) record(ctx context.Context, action, accountID, kind string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"account": kind})
	s.audit.Record(ctx, models.AuditLog{
		ActorID:    &accountID,
		Action:     action,
		Resource:   auditResourceAuth,
		ResourceID: &accountID,
		Payload:    payload,
	})
}

func studentInfo(student *models.Student) models.UserInfo {
	return models.UserInfo{
		ID:         student.ID,
		Role:       models.RoleStudent,
		Name:       student.Name,
		Email:      student.Email,
		RollNumber: student.RollNumber,
	}
}

func adminInfo(admin *models.Admin) models.UserInfo {
	return models.UserInfo{ID: admin.ID, Role: models.RoleAdmin, Username: admin.Username}
}
