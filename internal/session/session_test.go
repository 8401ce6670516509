package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/credential"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/repository"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/validation"
)

type testEnv struct {
	manager *Manager
	storage *FileStorage
	creds   *credential.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	repo, err := repository.NewSQLiteRepository(filepath.Join(dir, "medexchange.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	storage, err := NewFileStorage(filepath.Join(dir, "sessions"))
	require.NoError(t, err)

	creds := credential.NewStore(repo, bcrypt.MinCost, nil)
	return &testEnv{
		manager: NewManager(creds, storage, nil),
		storage: storage,
		creds:   creds,
	}
}

func cityMedProfile() HospitalProfileInput {
	return HospitalProfileInput{
		Name:          "City Med",
		LicenseNumber: "L1",
		Address: model.Address{
			Line1:   "1 Main St",
			City:    "X",
			State:   "Y",
			ZipCode: "00000",
		},
		Representative: model.Representative{
			Name:  "Jo",
			Title: "Admin",
			Email: "a@x.org",
			Phone: "555-0100",
		},
	}
}

func registerCityMed(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()

	status, err := s.CheckEmail(ctx, EmailInput{Email: "a@x.org"})
	require.NoError(t, err)
	require.Equal(t, EmailNew, status)
	require.Equal(t, StateAwaitingRegistration, s.State())

	require.NoError(t, s.Register(ctx, RegistrationInput{Email: "a@x.org", Password: "pw123456"}))
	require.Equal(t, StateAwaitingHospitalProfile, s.State())

	require.NoError(t, s.SubmitHospitalProfile(ctx, cityMedProfile()))
}

func TestSession_RegisterLogoutLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	key := KeyFor("client-1")

	s, err := env.manager.Open(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, s.State())

	registerCityMed(t, s)
	require.True(t, s.IsAuthenticated())
	require.NotNil(t, s.Hospital())
	assert.Equal(t, "City Med", s.Hospital().Name)
	assert.Nil(t, s.User().PasswordHash)

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, StateAnonymous, s.State())
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.Hospital())

	require.NoError(t, s.Login(ctx, LoginInput{Email: "a@x.org", Password: "pw123456"}))
	assert.Equal(t, StateAuthenticated, s.State())
	require.NotNil(t, s.Hospital())
	assert.Equal(t, "City Med", s.Hospital().Name)
	assert.Equal(t, "L1", s.Hospital().LicenseNumber)
}

func TestSession_HydratesFromStorage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	key := KeyFor("client-1")

	s, err := env.manager.Open(ctx, key)
	require.NoError(t, err)
	registerCityMed(t, s)

	restored, err := env.manager.Open(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, restored.State())
	assert.True(t, restored.IsAuthenticated())
	require.NotNil(t, restored.Hospital())
	assert.Equal(t, s.Hospital().ID, restored.Hospital().ID)

	other, err := env.manager.Open(ctx, KeyFor("client-2"))
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, other.State())
}

func TestSession_CorruptedStateIsAnonymous(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	key := KeyFor("client-1")

	require.NoError(t, env.storage.Save(ctx, key, []byte("{not json")))

	s, err := env.manager.Open(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, s.State())

	require.NoError(t, env.storage.Save(ctx, key, []byte(`{"state":"superuser"}`)))

	s, err = env.manager.Open(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, s.State())
}

func TestSession_CheckEmailExisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.manager.Open(ctx, KeyFor("first"))
	require.NoError(t, err)
	registerCityMed(t, first)

	s, err := env.manager.Open(ctx, KeyFor("second"))
	require.NoError(t, err)

	status, err := s.CheckEmail(ctx, EmailInput{Email: "A@X.org "})
	require.NoError(t, err)
	assert.Equal(t, EmailExisting, status)
	assert.Equal(t, StateEmailCaptured, s.State())
	assert.Equal(t, "a@x.org", s.Snapshot().Email)
}

func TestSession_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s, err := env.manager.Open(ctx, KeyFor("client"))
	require.NoError(t, err)

	_, err = s.CheckEmail(ctx, EmailInput{Email: "not-an-email"})
	require.ErrorIs(t, err, validation.ErrInvalidInput)
	assert.Equal(t, StateAnonymous, s.State())

	_, err = s.CheckEmail(ctx, EmailInput{Email: "a@x.org"})
	require.NoError(t, err)

	err = s.Register(ctx, RegistrationInput{Email: "a@x.org", Password: "short"})
	require.ErrorIs(t, err, validation.ErrInvalidInput)
	assert.Equal(t, StateAwaitingRegistration, s.State())

	require.NoError(t, s.Register(ctx, RegistrationInput{Email: "a@x.org", Password: "pw123456"}))

	profile := cityMedProfile()
	profile.Address.City = ""
	err = s.SubmitHospitalProfile(ctx, profile)
	require.ErrorIs(t, err, validation.ErrInvalidInput)
	assert.Equal(t, StateAwaitingHospitalProfile, s.State())
}

func TestSession_InvalidTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s, err := env.manager.Open(ctx, KeyFor("client"))
	require.NoError(t, err)

	err = s.Register(ctx, RegistrationInput{Email: "a@x.org", Password: "pw123456"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = s.SubmitHospitalProfile(ctx, cityMedProfile())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	registerCityMed(t, s)

	_, err = s.CheckEmail(ctx, EmailInput{Email: "b@x.org"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = s.Login(ctx, LoginInput{Email: "a@x.org", Password: "pw123456"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSession_LoginFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.manager.Open(ctx, KeyFor("first"))
	require.NoError(t, err)
	registerCityMed(t, first)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "a@x.org", password: "pw123457"},
		{name: "unknown email", email: "nobody@x.org", password: "pw123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := env.manager.Open(ctx, KeyFor("second"))
			require.NoError(t, err)

			err = s.Login(ctx, LoginInput{Email: tt.email, Password: tt.password})
			require.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Equal(t, StateAnonymous, s.State())
			assert.False(t, s.IsAuthenticated())
		})
	}
}

func TestSession_LoginWithoutHospital(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.creds.CreateUser(ctx, "a@x.org", "pw123456")
	require.NoError(t, err)

	s, err := env.manager.Open(ctx, KeyFor("client"))
	require.NoError(t, err)

	require.NoError(t, s.Login(ctx, LoginInput{Email: "a@x.org", Password: "pw123456"}))
	assert.Equal(t, StateAwaitingHospitalProfile, s.State())
	assert.False(t, s.IsAuthenticated())

	require.NoError(t, s.SubmitHospitalProfile(ctx, cityMedProfile()))
	assert.True(t, s.IsAuthenticated())
}

func TestSession_DuplicateRegistration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.manager.Open(ctx, KeyFor("a"))
	require.NoError(t, err)
	b, err := env.manager.Open(ctx, KeyFor("b"))
	require.NoError(t, err)

	for _, s := range []*Session{a, b} {
		_, err := s.CheckEmail(ctx, EmailInput{Email: "a@x.org"})
		require.NoError(t, err)
	}

	require.NoError(t, a.Register(ctx, RegistrationInput{Email: "a@x.org", Password: "pw123456"}))

	err = b.Register(ctx, RegistrationInput{Email: "a@x.org", Password: "pw123456"})
	require.ErrorIs(t, err, ErrRegistrationFailed)
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
	assert.Equal(t, StateAwaitingRegistration, b.State())
}

type flakyStorage struct {
	Storage
	failSaves bool
}

func (f *flakyStorage) Save(ctx context.Context, key string, data []byte) error {
	if f.failSaves {
		return repository.ErrStorageUnavailable
	}
	return f.Storage.Save(ctx, key, data)
}

func TestSession_StorageFailureAbortsWizard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	key := KeyFor("client")

	storage := &flakyStorage{Storage: env.storage}
	manager := NewManager(env.creds, storage, nil)

	s, err := manager.Open(ctx, key)
	require.NoError(t, err)

	_, err = s.CheckEmail(ctx, EmailInput{Email: "a@x.org"})
	require.NoError(t, err)
	require.Equal(t, StateAwaitingRegistration, s.State())

	storage.failSaves = true
	err = s.Register(ctx, RegistrationInput{Email: "a@x.org", Password: "pw123456"})
	require.True(t, errors.Is(err, repository.ErrStorageUnavailable))
	assert.Equal(t, StateAnonymous, s.State())

	data, err := env.storage.Load(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSession_LogoutFailureKeepsState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	storage := &flakyStorage{Storage: env.storage}
	manager := NewManager(env.creds, storage, nil)

	s, err := manager.Open(ctx, KeyFor("client"))
	require.NoError(t, err)
	registerCityMed(t, s)

	storage.failSaves = true
	require.ErrorIs(t, s.Logout(ctx), repository.ErrStorageUnavailable)
	assert.Equal(t, StateAuthenticated, s.State())
}

func TestContext(t *testing.T) {
	s := &Session{snap: anonymous()}

	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	got, ok := FromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}
