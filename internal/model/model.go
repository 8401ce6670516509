// Package model содержит доменные сущности биржи медикаментов.
package model

import (
	"time"

	"github.com/google/uuid"
)

// User представляет учётную запись представителя больницы.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Coordinates задают географическую точку в градусах.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Address описывает почтовый адрес больницы.
type Address struct {
	Line1       string       `json:"line1" validate:"required"`
	Line2       string       `json:"line2,omitempty"`
	City        string       `json:"city" validate:"required"`
	State       string       `json:"state" validate:"required"`
	ZipCode     string       `json:"zipCode" validate:"required"`
	Coordinates *Coordinates `json:"coordinates,omitempty" validate:"omitempty"`
}

// Representative описывает контактное лицо больницы.
type Representative struct {
	Name  string `json:"name" validate:"required"`
	Title string `json:"title" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// Hospital представляет профиль больницы, принадлежащий пользователю.
type Hospital struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"userId"`
	Name           string         `json:"name"`
	LicenseNumber  string         `json:"licenseNumber"`
	Address        Address        `json:"address"`
	Representative Representative `json:"representative"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Location возвращает место доставки, соответствующее адресу больницы.
func (h Hospital) Location() Location {
	return Location{
		City:        h.Address.City,
		State:       h.Address.State,
		ZipCode:     h.Address.ZipCode,
		Coordinates: h.Address.Coordinates,
	}
}

// Drug описывает одну позицию в запросе или предложении.
type Drug struct {
	Name   string `json:"name" validate:"required"`
	DIN    string `json:"din,omitempty" validate:"omitempty,din"`
	Dosage string `json:"dosage,omitempty"`
}

// Location описывает место, относительно которого считается расстояние.
type Location struct {
	City        string       `json:"city" validate:"required"`
	State       string       `json:"state" validate:"required"`
	ZipCode     string       `json:"zipCode" validate:"required"`
	Coordinates *Coordinates `json:"coordinates,omitempty" validate:"omitempty"`
}

// RequestStatus описывает статус запроса на медикаменты.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusMatched   RequestStatus = "matched"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// CanTransition сообщает, допустим ли переход запроса в статус next.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	switch s {
	case RequestStatusPending:
		return next == RequestStatusMatched || next == RequestStatusCancelled
	case RequestStatusMatched:
		return next == RequestStatusCompleted || next == RequestStatusCancelled
	}
	return false
}

// DrugRequest описывает запрос больницы на получение медикаментов.
type DrugRequest struct {
	ID            uuid.UUID     `json:"id"`
	HospitalID    int64         `json:"hospitalId"`
	Drugs         []Drug        `json:"drugs"`
	Location      Location      `json:"location"`
	MaxDistanceKm float64       `json:"maxDistance"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// OfferStatus описывает статус предложения медикаментов.
type OfferStatus string

const (
	OfferStatusAvailable OfferStatus = "available"
	OfferStatusReserved  OfferStatus = "reserved"
	OfferStatusCompleted OfferStatus = "completed"
	OfferStatusExpired   OfferStatus = "expired"
)

// CanTransition сообщает, допустим ли переход предложения в статус next.
func (s OfferStatus) CanTransition(next OfferStatus) bool {
	switch s {
	case OfferStatusAvailable:
		return next == OfferStatusReserved || next == OfferStatusExpired
	case OfferStatusReserved:
		return next == OfferStatusCompleted || next == OfferStatusExpired
	}
	return false
}

// DrugOffer описывает излишки медикаментов, которые больница готова передать.
type DrugOffer struct {
	ID            uuid.UUID   `json:"id"`
	HospitalID    int64       `json:"hospitalId"`
	Drugs         []Drug      `json:"drugs"`
	Location      Location    `json:"location"`
	MaxDistanceKm float64     `json:"maxDistance"`
	ExpiryDate    *time.Time  `json:"expiryDate,omitempty"`
	Status        OfferStatus `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// ExpiryCutoff возвращает начало текущих суток UTC. Срок годности раньше этой отметки уже прошёл,
// а предложение с датой годности на сегодня остаётся действующим до конца дня.
func ExpiryCutoff(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ExpiryDay приводит срок годности к началу его дня в UTC.
func ExpiryDay(expiry time.Time) time.Time {
	return ExpiryCutoff(expiry)
}

// PastExpiry сообщает, прошла ли дата годности предложения к моменту now.
func (o DrugOffer) PastExpiry(now time.Time) bool {
	return o.ExpiryDate != nil && o.ExpiryDate.Before(ExpiryCutoff(now))
}

// EffectiveStatus возвращает статус с учётом истёкшего срока годности.
// Завершённое предложение остаётся завершённым.
func (o DrugOffer) EffectiveStatus(now time.Time) OfferStatus {
	if o.Status == OfferStatusCompleted {
		return o.Status
	}
	if o.PastExpiry(now) {
		return OfferStatusExpired
	}
	return o.Status
}

// MatchStatus описывает статус совпадения запроса и предложения.
type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusNotified  MatchStatus = "notified"
	MatchStatusAgreed    MatchStatus = "agreed"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusDeclined  MatchStatus = "declined"
)

// CanTransition сообщает, допустим ли переход совпадения в статус next.
func (s MatchStatus) CanTransition(next MatchStatus) bool {
	if next == MatchStatusDeclined {
		return s != MatchStatusCompleted && s != MatchStatusDeclined
	}
	switch s {
	case MatchStatusPending:
		return next == MatchStatusNotified || next == MatchStatusAgreed
	case MatchStatusNotified:
		return next == MatchStatusAgreed
	case MatchStatusAgreed:
		return next == MatchStatusCompleted
	}
	return false
}

// AllowsMessaging сообщает, открыта ли переписка по совпадению.
func (s MatchStatus) AllowsMessaging() bool {
	return s == MatchStatusAgreed || s == MatchStatusCompleted
}

// Match описывает предложенную системой пару запроса и предложения.
type Match struct {
	ID                  uuid.UUID   `json:"id"`
	RequestID           uuid.UUID   `json:"requestId"`
	OfferID             uuid.UUID   `json:"offerId"`
	RequesterHospitalID int64       `json:"requesterHospitalId"`
	ProviderHospitalID  int64       `json:"providerHospitalId"`
	DrugName            string      `json:"drugName"`
	SimilarityScore     float64     `json:"similarityScore"`
	DistanceKm          float64     `json:"distance"`
	Status              MatchStatus `json:"status"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// HasParticipant сообщает, участвует ли больница в совпадении.
func (m Match) HasParticipant(hospitalID int64) bool {
	return m.RequesterHospitalID == hospitalID || m.ProviderHospitalID == hospitalID
}

// Counterpart возвращает идентификатор второй стороны совпадения.
func (m Match) Counterpart(hospitalID int64) int64 {
	if m.RequesterHospitalID == hospitalID {
		return m.ProviderHospitalID
	}
	return m.RequesterHospitalID
}

// Message описывает сообщение в переписке по совпадению.
type Message struct {
	ID         uuid.UUID `json:"id"`
	MatchID    uuid.UUID `json:"matchId"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}
