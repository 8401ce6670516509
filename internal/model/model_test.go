package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to RequestStatus
		want     bool
	}{
		{RequestStatusPending, RequestStatusMatched, true},
		{RequestStatusPending, RequestStatusCancelled, true},
		{RequestStatusPending, RequestStatusCompleted, false},
		{RequestStatusMatched, RequestStatusCompleted, true},
		{RequestStatusMatched, RequestStatusCancelled, true},
		{RequestStatusMatched, RequestStatusPending, false},
		{RequestStatusCompleted, RequestStatusCancelled, false},
		{RequestStatusCancelled, RequestStatusPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestOfferStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to OfferStatus
		want     bool
	}{
		{OfferStatusAvailable, OfferStatusReserved, true},
		{OfferStatusAvailable, OfferStatusExpired, true},
		{OfferStatusAvailable, OfferStatusCompleted, false},
		{OfferStatusReserved, OfferStatusCompleted, true},
		{OfferStatusReserved, OfferStatusExpired, true},
		{OfferStatusCompleted, OfferStatusExpired, false},
		{OfferStatusExpired, OfferStatusAvailable, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestMatchStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to MatchStatus
		want     bool
	}{
		{MatchStatusPending, MatchStatusNotified, true},
		{MatchStatusPending, MatchStatusAgreed, true},
		{MatchStatusPending, MatchStatusDeclined, true},
		{MatchStatusPending, MatchStatusCompleted, false},
		{MatchStatusNotified, MatchStatusAgreed, true},
		{MatchStatusNotified, MatchStatusDeclined, true},
		{MatchStatusNotified, MatchStatusPending, false},
		{MatchStatusAgreed, MatchStatusCompleted, true},
		{MatchStatusAgreed, MatchStatusDeclined, true},
		{MatchStatusAgreed, MatchStatusNotified, false},
		{MatchStatusCompleted, MatchStatusDeclined, false},
		{MatchStatusDeclined, MatchStatusDeclined, false},
		{MatchStatusDeclined, MatchStatusAgreed, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestMatchStatus_AllowsMessaging(t *testing.T) {
	assert.False(t, MatchStatusPending.AllowsMessaging())
	assert.False(t, MatchStatusNotified.AllowsMessaging())
	assert.True(t, MatchStatusAgreed.AllowsMessaging())
	assert.True(t, MatchStatusCompleted.AllowsMessaging())
	assert.False(t, MatchStatusDeclined.AllowsMessaging())
}

func TestDrugOffer_EffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	earlierToday := now.Add(-time.Hour)
	past := today.AddDate(0, 0, -1)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name  string
		offer DrugOffer
		want  OfferStatus
	}{
		{name: "no expiry", offer: DrugOffer{Status: OfferStatusAvailable}, want: OfferStatusAvailable},
		{name: "not yet expired", offer: DrugOffer{Status: OfferStatusAvailable, ExpiryDate: &future}, want: OfferStatusAvailable},
		{name: "expired available", offer: DrugOffer{Status: OfferStatusAvailable, ExpiryDate: &past}, want: OfferStatusExpired},
		{name: "expired reserved", offer: DrugOffer{Status: OfferStatusReserved, ExpiryDate: &past}, want: OfferStatusExpired},
		{name: "completed stays completed", offer: DrugOffer{Status: OfferStatusCompleted, ExpiryDate: &past}, want: OfferStatusCompleted},
		{name: "expiry exactly now", offer: DrugOffer{Status: OfferStatusAvailable, ExpiryDate: &now}, want: OfferStatusAvailable},
		{name: "expires today", offer: DrugOffer{Status: OfferStatusAvailable, ExpiryDate: &today}, want: OfferStatusAvailable},
		{name: "expiry earlier today", offer: DrugOffer{Status: OfferStatusAvailable, ExpiryDate: &earlierToday}, want: OfferStatusAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.offer.EffectiveStatus(now))
		})
	}
}

func TestMatch_Participants(t *testing.T) {
	m := Match{RequesterHospitalID: 1, ProviderHospitalID: 2}

	assert.True(t, m.HasParticipant(1))
	assert.True(t, m.HasParticipant(2))
	assert.False(t, m.HasParticipant(3))

	assert.Equal(t, int64(2), m.Counterpart(1))
	assert.Equal(t, int64(1), m.Counterpart(2))
}

func TestHospital_Location(t *testing.T) {
	coords := &Coordinates{Latitude: 43.65, Longitude: -79.38}
	h := Hospital{Address: Address{Line1: "1 Main St", City: "Toronto", State: "ON", ZipCode: "M5V", Coordinates: coords}}

	assert.Equal(t, Location{City: "Toronto", State: "ON", ZipCode: "M5V", Coordinates: coords}, h.Location())
}

func TestExpiryCutoff(t *testing.T) {
	evening := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, today, ExpiryCutoff(evening))
	assert.Equal(t, today, ExpiryDay(time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)))

	expiry := today
	o := DrugOffer{Status: OfferStatusAvailable, ExpiryDate: &expiry}
	assert.False(t, o.PastExpiry(evening))
	assert.True(t, o.PastExpiry(today.AddDate(0, 0, 1)))
}
