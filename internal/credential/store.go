// Package credential реализует хранилище учётных записей и профилей больниц.
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/repository"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/validation"
)

// DefaultCost задаёт стоимость bcrypt, при которой хеширование занимает порядка 100 мс.
const DefaultCost = 10

// Repository описывает контракт доступа к пользователям и больницам.
type Repository interface {
	CreateUser(ctx context.Context, email string, passwordHash []byte) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateHospital(ctx context.Context, h model.Hospital) (int64, error)
	GetHospitalByUserID(ctx context.Context, userID int64) (*model.Hospital, error)
}

// Store хранит учётные записи с солёными хешами паролей и профили больниц.
type Store struct {
	repo   Repository
	cost   int
	logger *zap.Logger
	now    func() time.Time
}

// NewStore создаёт хранилище учётных данных. Нулевая стоимость заменяется на DefaultCost.
func NewStore(repo Repository, cost int, logger *zap.Logger) *Store {
	if cost == 0 {
		cost = DefaultCost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		repo:   repo,
		cost:   cost,
		logger: logger,
		now:    time.Now,
	}
}

// FindUserByEmail ищет пользователя по почте без учёта регистра. Возвращает nil, если пользователя нет.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// CreateUser регистрирует пользователя и возвращает его идентификатор.
// Уникальность почты проверяется повторно самим хранилищем, поэтому гонка двух регистраций
// всё равно завершится ошибкой repository.ErrDuplicateEmail.
func (s *Store) CreateUser(ctx context.Context, email, password string) (int64, error) {
	email = validation.NormalizeEmail(email)

	existing, err := s.FindUserByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, fmt.Errorf("%w: %s", repository.ErrDuplicateEmail, email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, email, hash)
	if err != nil {
		return 0, err
	}

	s.logger.Info("user created", zap.Int64("userID", id))
	return id, nil
}

// VerifyPassword сравнивает пароль с сохранённым хешем за постоянное время.
func (s *Store) VerifyPassword(user *model.User, password string) bool {
	if user == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) == nil
}

// GetHospitalByUserID возвращает профиль больницы пользователя или nil, если профиля нет.
func (s *Store) GetHospitalByUserID(ctx context.Context, userID int64) (*model.Hospital, error) {
	h, err := s.repo.GetHospitalByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrHospitalNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return h, nil
}

// CreateHospital сохраняет профиль больницы. Второй профиль для того же пользователя отклоняется.
func (s *Store) CreateHospital(ctx context.Context, h model.Hospital) (int64, error) {
	existing, err := s.GetHospitalByUserID(ctx, h.UserID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, fmt.Errorf("%w: user %d", repository.ErrUserAlreadyHasHospital, h.UserID)
	}

	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.now().UTC()
	}

	id, err := s.repo.CreateHospital(ctx, h)
	if err != nil {
		return 0, err
	}

	s.logger.Info("hospital created", zap.Int64("hospitalID", id), zap.Int64("userID", h.UserID))
	return id, nil
}
