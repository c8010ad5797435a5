package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const MinPasswordLength = 8

var ErrInvalidCredentials = errors.New("invalid username or password")

// Registration is the sign-up form
type Registration struct {
	Username        string `json:"username" validate:"required,max=150,username"`
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	Password        string `json:"password" validate:"min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"eqfield=Password"`
}

var registrationMessages = map[string]string{
	"username":         "enter a valid username: letters, digits and @/./+/-/_ only",
	"username.max":     "username must be at most 150 characters",
	"email":            "enter a valid email address",
	"password":         fmt.Sprintf("password must contain at least %d characters", MinPasswordLength),
	"password_confirm": "the two password fields didn't match",
}

// HashPassword returns a bcrypt hash of password
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (r Registration) validate() *domain.ValidationError {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	var verr *domain.ValidationError
	if err := domain.ValidateStruct(r, registrationMessages); !errors.As(err, &verr) {
		return &domain.ValidationError{}
	}
	// a short password makes the confirmation moot
	if _, short := verr.Fields["password"]; short {
		delete(verr.Fields, "password_confirm")
	}
	return verr
}

// Register creates an active, non-staff user
func (s *Service) Register(ctx context.Context, r Registration) (*domain.User, error) {
	verr := r.validate()
	username := strings.TrimSpace(r.Username)
	if !verr.HasErrors() {
		var count int64
		if err := s.db.WithContext(ctx).Model(&domain.User{}).
			Where("LOWER(username) = ?", strings.ToLower(username)).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("query users: %w", err)
		}
		if count > 0 {
			verr.Add("username", "a user with that username already exists")
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	hashed, err := HashPassword(r.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:       common.UUIDint64(),
		Username: username,
		Email:    strings.TrimSpace(r.Email),
		Password: hashed,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.NewValidationError("username", "a user with that username already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	zap.L().Info("user registered", zap.String("namespace", "account"), zap.String("username", username))
	return user, nil
}

// Authenticate checks the credentials of an active user and stamps last_login
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if !user.IsActive || !CheckPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		zap.L().Warn("update last login failed", zap.String("namespace", "account"), zap.Error(err))
	}
	user.LastLogin = &now
	return &user, nil
}

func (s *Service) ByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}
