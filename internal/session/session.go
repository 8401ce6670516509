// Package session реализует менеджер сессии: конечный автомат регистрации и входа
// с сохранением состояния в долговременном хранилище.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/repository"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/validation"
)

var (
	// ErrInvalidCredentials возвращается при неверной почте или пароле, без уточнения причины.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRegistrationFailed возвращается, если хранилище отклонило регистрацию.
	ErrRegistrationFailed = errors.New("registration failed")
	// ErrInvalidTransition возвращается, если операция недопустима в текущем состоянии.
	ErrInvalidTransition = errors.New("invalid session transition")
)

// State описывает состояние сессии.
type State string

const (
	StateAnonymous               State = "anonymous"
	StateEmailCaptured           State = "email_captured"
	StateAwaitingRegistration    State = "awaiting_registration"
	StateAwaitingHospitalProfile State = "awaiting_hospital_profile"
	StateAuthenticated           State = "authenticated"
)

func (s State) valid() bool {
	switch s {
	case StateAnonymous, StateEmailCaptured, StateAwaitingRegistration,
		StateAwaitingHospitalProfile, StateAuthenticated:
		return true
	}
	return false
}

// EmailStatus сообщает, зарегистрирована ли введённая почта.
type EmailStatus string

const (
	EmailNew      EmailStatus = "new"
	EmailExisting EmailStatus = "existing"
)

// CredentialStore описывает хранилище учётных данных, которым пользуется сессия.
type CredentialStore interface {
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, email, password string) (int64, error)
	VerifyPassword(user *model.User, password string) bool
	GetHospitalByUserID(ctx context.Context, userID int64) (*model.Hospital, error)
	CreateHospital(ctx context.Context, h model.Hospital) (int64, error)
}

// EmailInput содержит данные шага ввода почты.
type EmailInput struct {
	Email string `json:"email" validate:"required,email"`
}

// RegistrationInput содержит данные шага регистрации.
type RegistrationInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// HospitalProfileInput содержит данные шага заполнения профиля больницы.
type HospitalProfileInput struct {
	Name           string               `json:"name" validate:"required"`
	LicenseNumber  string               `json:"licenseNumber" validate:"required"`
	Address        model.Address        `json:"address"`
	Representative model.Representative `json:"representative"`
}

// LoginInput содержит данные шага входа.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Snapshot описывает сериализуемое состояние сессии.
type Snapshot struct {
	User            *model.User     `json:"user"`
	Hospital        *model.Hospital `json:"hospital"`
	IsAuthenticated bool            `json:"isAuthenticated"`
	State           State           `json:"state"`
	Email           string          `json:"email,omitempty"`
}

func anonymous() Snapshot {
	return Snapshot{State: StateAnonymous}
}

// Manager открывает сессии и восстанавливает их состояние из хранилища.
type Manager struct {
	creds   CredentialStore
	storage Storage
	logger  *zap.Logger
}

// NewManager создаёт менеджер сессий.
func NewManager(creds CredentialStore, storage Storage, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		creds:   creds,
		storage: storage,
		logger:  logger,
	}
}

// Open загружает сессию по ключу. Отсутствующее или повреждённое состояние даёт анонимную сессию.
func (m *Manager) Open(ctx context.Context, key string) (*Session, error) {
	s := &Session{m: m, key: key, snap: anonymous()}

	data, err := m.storage.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return s, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil || !snap.State.valid() {
		m.logger.Warn("discarding unreadable session state", zap.String("key", key), zap.Error(err))
		return s, nil
	}

	s.snap = snap
	return s, nil
}

// Session хранит состояние аутентификации одного клиента.
// Каждая успешная операция сохраняет новое состояние до того, как оно станет видимым.
type Session struct {
	m    *Manager
	key  string
	snap Snapshot
}

// Snapshot возвращает копию текущего состояния.
func (s *Session) Snapshot() Snapshot {
	return s.snap
}

// State возвращает текущее состояние автомата.
func (s *Session) State() State {
	return s.snap.State
}

// User возвращает вошедшего или зарегистрированного пользователя.
func (s *Session) User() *model.User {
	return s.snap.User
}

// Hospital возвращает профиль больницы аутентифицированного пользователя.
func (s *Session) Hospital() *model.Hospital {
	return s.snap.Hospital
}

// IsAuthenticated сообщает, есть ли у сессии и пользователь, и больница.
func (s *Session) IsAuthenticated() bool {
	return s.snap.IsAuthenticated
}

// CheckEmail фиксирует почту и определяет, зарегистрирована ли она.
// Для новой почты сессия переходит к регистрации, для существующей остаётся в ожидании входа.
func (s *Session) CheckEmail(ctx context.Context, in EmailInput) (EmailStatus, error) {
	if err := s.expect(StateAnonymous, StateEmailCaptured, StateAwaitingRegistration); err != nil {
		return "", err
	}
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return "", err
	}
	email := in.Email

	user, err := s.m.creds.FindUserByEmail(ctx, email)
	if err != nil {
		return "", s.fail(ctx, err, true)
	}

	next := Snapshot{State: StateEmailCaptured, Email: email}
	status := EmailExisting
	if user == nil {
		next.State = StateAwaitingRegistration
		status = EmailNew
	}

	if err := s.commit(ctx, next, true); err != nil {
		return "", err
	}
	return status, nil
}

// Register создаёт учётную запись и переводит сессию к заполнению профиля больницы.
func (s *Session) Register(ctx context.Context, in RegistrationInput) error {
	if err := s.expect(StateAwaitingRegistration); err != nil {
		return err
	}
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return err
	}
	email := in.Email

	if _, err := s.m.creds.CreateUser(ctx, email, in.Password); err != nil {
		if errors.Is(err, repository.ErrStorageUnavailable) {
			return s.fail(ctx, err, true)
		}
		return fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	user, err := s.m.creds.FindUserByEmail(ctx, email)
	if err != nil {
		return s.fail(ctx, err, true)
	}
	if user == nil {
		return fmt.Errorf("%w: user %s vanished after creation", ErrRegistrationFailed, email)
	}

	return s.commit(ctx, Snapshot{
		State: StateAwaitingHospitalProfile,
		User:  publicUser(user),
		Email: email,
	}, true)
}

// SubmitHospitalProfile сохраняет профиль больницы и завершает аутентификацию.
func (s *Session) SubmitHospitalProfile(ctx context.Context, in HospitalProfileInput) error {
	if err := s.expect(StateAwaitingHospitalProfile); err != nil {
		return err
	}
	if s.snap.User == nil {
		return fmt.Errorf("%w: no registered user", ErrInvalidTransition)
	}
	if err := validation.Struct(in); err != nil {
		return err
	}

	userID := s.snap.User.ID
	if _, err := s.m.creds.CreateHospital(ctx, model.Hospital{
		UserID:         userID,
		Name:           in.Name,
		LicenseNumber:  in.LicenseNumber,
		Address:        in.Address,
		Representative: in.Representative,
	}); err != nil {
		return s.fail(ctx, err, true)
	}

	hospital, err := s.m.creds.GetHospitalByUserID(ctx, userID)
	if err != nil {
		return s.fail(ctx, err, true)
	}
	if hospital == nil {
		return fmt.Errorf("%w: hospital of user %d vanished after creation", repository.ErrHospitalNotFound, userID)
	}

	s.m.logger.Info("hospital profile completed", zap.Int64("userID", userID), zap.Int64("hospitalID", hospital.ID))

	return s.commit(ctx, Snapshot{
		State:           StateAuthenticated,
		User:            s.snap.User,
		Hospital:        hospital,
		IsAuthenticated: true,
		Email:           s.snap.Email,
	}, true)
}

// Login проверяет учётные данные. Пользователь без профиля больницы возвращается к его заполнению.
func (s *Session) Login(ctx context.Context, in LoginInput) error {
	if s.snap.State == StateAuthenticated {
		return fmt.Errorf("%w: already authenticated", ErrInvalidTransition)
	}
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return err
	}

	user, err := s.m.creds.FindUserByEmail(ctx, in.Email)
	if err != nil {
		return err
	}
	if user == nil || !s.m.creds.VerifyPassword(user, in.Password) {
		s.m.logger.Info("login rejected")
		return ErrInvalidCredentials
	}

	hospital, err := s.m.creds.GetHospitalByUserID(ctx, user.ID)
	if err != nil {
		return err
	}

	next := Snapshot{
		State: StateAwaitingHospitalProfile,
		User:  publicUser(user),
		Email: user.Email,
	}
	if hospital != nil {
		next.State = StateAuthenticated
		next.Hospital = hospital
		next.IsAuthenticated = true
	}

	return s.commit(ctx, next, false)
}

// Logout сбрасывает сессию в анонимное состояние.
func (s *Session) Logout(ctx context.Context) error {
	return s.commit(ctx, anonymous(), false)
}

func (s *Session) expect(states ...State) error {
	for _, st := range states {
		if s.snap.State == st {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidTransition, s.snap.State)
}

// commit сохраняет next и только после этого делает его текущим.
// Если хранилище недоступно посреди мастера регистрации, сессия сбрасывается.
func (s *Session) commit(ctx context.Context, next Snapshot, wizard bool) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.m.storage.Save(ctx, s.key, data); err != nil {
		return s.fail(ctx, err, wizard)
	}

	s.snap = next
	return nil
}

// fail прерывает мастер регистрации при недоступности хранилища.
func (s *Session) fail(ctx context.Context, err error, wizard bool) error {
	if !wizard || !errors.Is(err, repository.ErrStorageUnavailable) {
		return err
	}

	s.m.logger.Warn("aborting registration flow", zap.String("key", s.key), zap.Error(err))
	s.snap = anonymous()
	if delErr := s.m.storage.Delete(ctx, s.key); delErr != nil {
		s.m.logger.Warn("failed to clear session state", zap.String("key", s.key), zap.Error(delErr))
	}
	return err
}

func publicUser(u *model.User) *model.User {
	return &model.User{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}
