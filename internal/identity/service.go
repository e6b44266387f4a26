package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials is returned for both unknown email and wrong
	// password. Callers must not surface which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailExists is returned when an identity with the email already
	// exists. Creation handlers pre-check with EmailExists before calling
	// CreateUser so a conflict surfaces before anything is written.
	ErrEmailExists = errors.New("email already registered")

	// ErrNotFound is returned when an identity cannot be resolved by id.
	ErrNotFound = errors.New("identity not found")
)

// Service implements the identity-provider contract over the identities
// table. It is the first of the two stores the onboarding saga spans.
type Service struct {
	db *gorm.DB
}

// NewService returns an identity service backed by db.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// SignIn verifies credentials and returns the identity. It records the
// sign-in time on success.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	var ident Identity
	result := s.db.WithContext(ctx).Where("email = ?", normalize(email)).First(&ident)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, result.Error
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	ident.LastSignInAt = &now
	// Best effort; a failed timestamp update must not fail the sign-in.
	s.db.WithContext(ctx).Model(&ident).Update("last_sign_in_at", now)

	return &ident, nil
}

// SignUp creates an identity from self-service registration.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	return s.create(ctx, email, password, false)
}

// CreateUser creates an identity on behalf of an operator, with the email
// treated as confirmed. Used by the onboarding saga.
func (s *Service) CreateUser(ctx context.Context, email, password string, emailConfirmed bool) (*Identity, error) {
	return s.create(ctx, email, password, emailConfirmed)
}

func (s *Service) create(ctx context.Context, email, password string, confirmed bool) (*Identity, error) {
	email = normalize(email)

	exists, err := s.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	ident := Identity{
		Email:          email,
		PasswordHash:   string(hash),
		EmailConfirmed: confirmed,
	}
	if result := s.db.WithContext(ctx).Create(&ident); result.Error != nil {
		return nil, result.Error
	}
	return &ident, nil
}

// DeleteUser removes an identity. This is the compensation step of the
// onboarding saga; it hard-deletes so the email is immediately reusable.
func (s *Service) DeleteUser(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Unscoped().Delete(&Identity{}, id).Error
}

// GetByID resolves an identity by id.
func (s *Service) GetByID(ctx context.Context, id uint) (*Identity, error) {
	var ident Identity
	result := s.db.WithContext(ctx).First(&ident, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &ident, nil
}

// EmailExists reports whether an identity with the email exists, including
// soft-deleted rows, since those still block the unique index.
func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).Unscoped().Model(&Identity{}).
		Where("email = ?", normalize(email)).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// UpdatePassword replaces the password of an identity.
func (s *Service) UpdatePassword(ctx context.Context, id uint, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&Identity{}).Where("id = ?", id).
		Update("password_hash", string(hash))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// VerifyPassword checks a password against the stored hash without creating
// a session. Used by the change-password flow.
func (s *Service) VerifyPassword(ctx context.Context, id uint, password string) error {
	ident, err := s.GetByID(ctx, id)
	if err != nil {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
