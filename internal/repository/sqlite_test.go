package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "medexchange.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func seedHospital(t *testing.T, repo *SQLiteRepository, email string) *model.Hospital {
	t.Helper()
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, email, []byte("hash"))
	require.NoError(t, err)

	h := model.Hospital{
		UserID:        userID,
		Name:          "Hospital " + email,
		LicenseNumber: "L-" + email,
		Address: model.Address{
			Line1:       "1 Main St",
			City:        "Toronto",
			State:       "ON",
			ZipCode:     "M5H 2N2",
			Coordinates: &model.Coordinates{Latitude: 43.65, Longitude: -79.38},
		},
		Representative: model.Representative{Name: "Jo", Title: "Admin", Email: email, Phone: "555-0100"},
		CreatedAt:      time.Now().UTC(),
	}
	h.ID, err = repo.CreateHospital(ctx, h)
	require.NoError(t, err)

	return &h
}

func testLocation() model.Location {
	return model.Location{
		City:        "Toronto",
		State:       "ON",
		ZipCode:     "M5H 2N2",
		Coordinates: &model.Coordinates{Latitude: 43.65, Longitude: -79.38},
	}
}

func TestSQLite_CreateUserRejectsDuplicateEmail(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()

	id, err := repo.CreateUser(ctx, "a@x.org", []byte("hash"))
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = repo.CreateUser(ctx, "A@X.org", []byte("other"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	u, err := repo.GetUserByEmail(ctx, "A@x.ORG")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "a@x.org", u.Email)
	assert.Equal(t, []byte("hash"), u.PasswordHash)

	_, err = repo.GetUserByEmail(ctx, "missing@x.org")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSQLite_HospitalIsUniquePerUser(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()

	h := seedHospital(t, repo, "a@x.org")

	got, err := repo.GetHospitalByUserID(ctx, h.UserID)
	require.NoError(t, err)
	assert.Equal(t, h.Name, got.Name)
	assert.Equal(t, h.Address.Line1, got.Address.Line1)
	require.NotNil(t, got.Address.Coordinates)
	assert.InDelta(t, 43.65, got.Address.Coordinates.Latitude, 1e-9)

	_, err = repo.CreateHospital(ctx, *h)
	assert.ErrorIs(t, err, ErrUserAlreadyHasHospital)

	_, err = repo.GetHospitalByUserID(ctx, h.UserID+100)
	assert.ErrorIs(t, err, ErrHospitalNotFound)
}

func TestSQLite_RequestsAndOffers(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	requester := seedHospital(t, repo, "req@x.org")
	provider := seedHospital(t, repo, "prov@x.org")

	req := model.DrugRequest{
		ID:            uuid.New(),
		HospitalID:    requester.ID,
		Drugs:         []model.Drug{{Name: "Amoxicillin", DIN: "02242903", Dosage: "500mg"}},
		Location:      testLocation(),
		MaxDistanceKm: 25,
		Status:        model.RequestStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, repo.CreateRequest(ctx, req))

	past := now.AddDate(0, 0, -1)
	future := now.Add(24 * time.Hour)
	fresh := model.DrugOffer{
		ID: uuid.New(), HospitalID: provider.ID, Drugs: []model.Drug{{Name: "Amoxicillin"}},
		Location: testLocation(), MaxDistanceKm: 50, ExpiryDate: &future,
		Status: model.OfferStatusAvailable, CreatedAt: now, UpdatedAt: now,
	}
	stale := model.DrugOffer{
		ID: uuid.New(), HospitalID: provider.ID, Drugs: []model.Drug{{Name: "Ibuprofen"}},
		Location: model.Location{City: "Toronto", State: "ON", ZipCode: "M5H 2N2"}, MaxDistanceKm: 50,
		ExpiryDate: &past, Status: model.OfferStatusAvailable, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.CreateOffer(ctx, fresh))
	require.NoError(t, repo.CreateOffer(ctx, stale))

	gotReq, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.Drugs, gotReq.Drugs)
	assert.True(t, req.CreatedAt.Equal(gotReq.CreatedAt))

	active, err := repo.ListActiveRequests(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	available, err := repo.ListAvailableOffers(ctx, now)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, fresh.ID, available[0].ID)

	expired, err := repo.ExpireOffers(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stale.ID}, expired)

	gotStale, err := repo.GetOffer(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OfferStatusExpired, gotStale.Status)
	assert.Nil(t, gotStale.Location.Coordinates)

	require.NoError(t, repo.UpdateRequestStatus(ctx, req.ID, model.RequestStatusPending, model.RequestStatusCancelled, now))
	err = repo.UpdateRequestStatus(ctx, req.ID, model.RequestStatusPending, model.RequestStatusMatched, now)
	assert.ErrorIs(t, err, ErrStatusChanged)

	_, err = repo.GetOffer(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_MatchesAreUniquePerPairAndRanked(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	requester := seedHospital(t, repo, "req@x.org")
	provider := seedHospital(t, repo, "prov@x.org")

	req := model.DrugRequest{
		ID: uuid.New(), HospitalID: requester.ID, Drugs: []model.Drug{{Name: "Amoxicillin"}},
		Location: testLocation(), MaxDistanceKm: 25, Status: model.RequestStatusPending,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.CreateRequest(ctx, req))

	older := model.DrugOffer{
		ID: uuid.New(), HospitalID: provider.ID, Drugs: []model.Drug{{Name: "Amoxicillin"}},
		Location: testLocation(), MaxDistanceKm: 25, Status: model.OfferStatusAvailable,
		CreatedAt: now.Add(-2 * time.Hour), UpdatedAt: now,
	}
	newer := older
	newer.ID = uuid.New()
	newer.CreatedAt = now.Add(-time.Hour)
	require.NoError(t, repo.CreateOffer(ctx, newer))
	require.NoError(t, repo.CreateOffer(ctx, older))

	mk := func(offerID uuid.UUID) model.Match {
		return model.Match{
			ID: uuid.New(), RequestID: req.ID, OfferID: offerID,
			RequesterHospitalID: requester.ID, ProviderHospitalID: provider.ID,
			DrugName: "Amoxicillin", SimilarityScore: 1, DistanceKm: 10,
			Status: model.MatchStatusPending, CreatedAt: now, UpdatedAt: now,
		}
	}

	inserted, err := repo.InsertMatch(ctx, mk(newer.ID))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertMatch(ctx, mk(newer.ID))
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = repo.InsertMatch(ctx, mk(older.ID))
	require.NoError(t, err)
	assert.True(t, inserted)

	matches, err := repo.ListMatchesByHospital(ctx, provider.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, older.ID, matches[0].OfferID)
	assert.Equal(t, newer.ID, matches[1].OfferID)

	declined, err := repo.DeclineMatchesForOffer(ctx, older.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, declined)

	m, err := repo.GetMatch(ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchStatusDeclined, m.Status)
}

func TestSQLite_Messages(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	requester := seedHospital(t, repo, "req@x.org")
	provider := seedHospital(t, repo, "prov@x.org")

	req := model.DrugRequest{
		ID: uuid.New(), HospitalID: requester.ID, Drugs: []model.Drug{{Name: "Amoxicillin"}},
		Location: testLocation(), MaxDistanceKm: 25, Status: model.RequestStatusPending,
		CreatedAt: now, UpdatedAt: now,
	}
	offer := model.DrugOffer{
		ID: uuid.New(), HospitalID: provider.ID, Drugs: []model.Drug{{Name: "Amoxicillin"}},
		Location: testLocation(), MaxDistanceKm: 25, Status: model.OfferStatusAvailable,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.CreateRequest(ctx, req))
	require.NoError(t, repo.CreateOffer(ctx, offer))

	match := model.Match{
		ID: uuid.New(), RequestID: req.ID, OfferID: offer.ID,
		RequesterHospitalID: requester.ID, ProviderHospitalID: provider.ID,
		DrugName: "Amoxicillin", SimilarityScore: 1, DistanceKm: 0,
		Status: model.MatchStatusAgreed, CreatedAt: now, UpdatedAt: now,
	}
	_, err := repo.InsertMatch(ctx, match)
	require.NoError(t, err)

	first := model.Message{ID: uuid.New(), MatchID: match.ID, SenderID: requester.ID, ReceiverID: provider.ID, Content: "hello", CreatedAt: now}
	second := model.Message{ID: uuid.New(), MatchID: match.ID, SenderID: provider.ID, ReceiverID: requester.ID, Content: "hi", CreatedAt: now.Add(time.Second)}
	require.NoError(t, repo.CreateMessage(ctx, second))
	require.NoError(t, repo.CreateMessage(ctx, first))

	msgs, err := repo.ListMessages(ctx, match.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.False(t, msgs[0].Read)

	require.NoError(t, repo.MarkMessageRead(ctx, first.ID))
	got, err := repo.GetMessage(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)

	assert.ErrorIs(t, repo.MarkMessageRead(ctx, uuid.New()), ErrNotFound)
}

func TestSQLite_OfferExpiresAfterItsDay(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()
	evening := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	provider := seedHospital(t, repo, "prov@x.org")

	today := model.ExpiryDay(evening)
	offer := model.DrugOffer{
		ID: uuid.New(), HospitalID: provider.ID, Drugs: []model.Drug{{Name: "Heparin"}},
		Location: testLocation(), MaxDistanceKm: 25, ExpiryDate: &today,
		Status: model.OfferStatusAvailable, CreatedAt: evening, UpdatedAt: evening,
	}
	require.NoError(t, repo.CreateOffer(ctx, offer))

	available, err := repo.ListAvailableOffers(ctx, evening)
	require.NoError(t, err)
	require.Len(t, available, 1)

	expired, err := repo.ExpireOffers(ctx, evening)
	require.NoError(t, err)
	assert.Empty(t, expired)

	nextDay := today.AddDate(0, 0, 1)

	available, err = repo.ListAvailableOffers(ctx, nextDay)
	require.NoError(t, err)
	assert.Empty(t, available)

	expired, err = repo.ExpireOffers(ctx, nextDay)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{offer.ID}, expired)
}
