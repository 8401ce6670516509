// Package service реализует бизнес-логику биржи медикаментов.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/matching"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/repository"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/validation"
)

var (
	// ErrForbidden возвращается, если больница не участвует в записи.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidStatusTransition возвращается при недопустимой смене статуса.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	// ErrMessagingLocked возвращается, если переписка по совпадению ещё не открыта.
	ErrMessagingLocked = errors.New("messaging locked until match is agreed")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	CreateRequest(ctx context.Context, req model.DrugRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*model.DrugRequest, error)
	ListRequestsByHospital(ctx context.Context, hospitalID int64) ([]model.DrugRequest, error)
	ListActiveRequests(ctx context.Context) ([]model.DrugRequest, error)
	UpdateRequestStatus(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, at time.Time) error

	CreateOffer(ctx context.Context, o model.DrugOffer) error
	GetOffer(ctx context.Context, id uuid.UUID) (*model.DrugOffer, error)
	ListOffersByHospital(ctx context.Context, hospitalID int64) ([]model.DrugOffer, error)
	ListAvailableOffers(ctx context.Context, now time.Time) ([]model.DrugOffer, error)
	UpdateOfferStatus(ctx context.Context, id uuid.UUID, from, to model.OfferStatus, at time.Time) error
	ExpireOffers(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	InsertMatch(ctx context.Context, m model.Match) (bool, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*model.Match, error)
	ListMatchesByHospital(ctx context.Context, hospitalID int64) ([]model.Match, error)
	UpdateMatchStatus(ctx context.Context, id uuid.UUID, from, to model.MatchStatus, at time.Time) error
	DeclineMatchesForRequest(ctx context.Context, requestID uuid.UUID, at time.Time) (int64, error)
	DeclineMatchesForOffer(ctx context.Context, offerID uuid.UUID, at time.Time) (int64, error)

	CreateMessage(ctx context.Context, msg model.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error)
	ListMessages(ctx context.Context, matchID uuid.UUID) ([]model.Message, error)
	MarkMessageRead(ctx context.Context, id uuid.UUID) error
}

// Notifier доставляет уведомления о новых совпадениях.
type Notifier interface {
	MatchCreated(ctx context.Context, m model.Match) error
}

// RequestInput содержит данные нового запроса на медикаменты.
type RequestInput struct {
	Drugs         []model.Drug    `json:"drugs" validate:"required,min=1,dive"`
	Location      *model.Location `json:"location,omitempty"`
	MaxDistanceKm float64         `json:"maxDistance" validate:"gt=0,lte=20000"`
}

// OfferInput содержит данные нового предложения медикаментов.
type OfferInput struct {
	Drugs         []model.Drug    `json:"drugs" validate:"required,min=1,dive"`
	Location      *model.Location `json:"location,omitempty"`
	MaxDistanceKm float64         `json:"maxDistance" validate:"gt=0,lte=20000"`
	ExpiryDate    *time.Time      `json:"expiryDate,omitempty"`
}

// MessageInput содержит текст нового сообщения.
type MessageInput struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// MatchFilter ограничивает выдачу совпадений. Нулевые поля не фильтруют.
type MatchFilter struct {
	MaxDistanceKm float64           `validate:"gte=0,lte=20000"`
	Status        model.MatchStatus `validate:"omitempty,oneof=pending notified agreed completed declined"`
}

// Accepts сообщает, проходит ли совпадение фильтр.
func (f MatchFilter) Accepts(m model.Match) bool {
	if f.MaxDistanceKm > 0 && m.DistanceKm > f.MaxDistanceKm {
		return false
	}
	return f.Status == "" || m.Status == f.Status
}

// Service содержит бизнес-логику биржи.
type Service struct {
	repo     Repository
	engine   *matching.Engine
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	// recomputeMu не даёт двум пересчётам в одном процессе уведомлять об одних и тех же парах.
	recomputeMu sync.Mutex
}

// NewService создаёт сервис с указанным репозиторием, движком сопоставления и уведомителем.
// Без уведомителя совпадения остаются в статусе pending.
func NewService(repo Repository, engine *matching.Engine, notifier Notifier, logger *zap.Logger) *Service {
	if engine == nil {
		engine = matching.NewEngine(matching.DefaultThreshold, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func normalizeDrugs(drugs []model.Drug) []model.Drug {
	return lo.Map(drugs, func(d model.Drug, _ int) model.Drug {
		return model.Drug{
			Name:   strings.TrimSpace(d.Name),
			DIN:    validation.NormalizeDIN(d.DIN),
			Dosage: strings.TrimSpace(d.Dosage),
		}
	})
}

func resolveLocation(hospital model.Hospital, loc *model.Location) (model.Location, error) {
	if loc == nil {
		return hospital.Location(), nil
	}
	if err := validation.Struct(loc); err != nil {
		return model.Location{}, err
	}
	return *loc, nil
}

// SubmitRequest сохраняет запрос больницы и пересчитывает совпадения.
// Без явного места доставки используется адрес больницы.
func (s *Service) SubmitRequest(ctx context.Context, hospital model.Hospital, in RequestInput) (*model.DrugRequest, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	loc, err := resolveLocation(hospital, in.Location)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	req := model.DrugRequest{
		ID:            uuid.New(),
		HospitalID:    hospital.ID,
		Drugs:         normalizeDrugs(in.Drugs),
		Location:      loc,
		MaxDistanceKm: in.MaxDistanceKm,
		Status:        model.RequestStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("drug request submitted",
		zap.Stringer("requestID", req.ID), zap.Int64("hospitalID", hospital.ID), zap.Int("drugs", len(req.Drugs)))

	s.recomputeAfterChange(ctx)
	return &req, nil
}

// SubmitOffer сохраняет предложение больницы и пересчитывает совпадения.
func (s *Service) SubmitOffer(ctx context.Context, hospital model.Hospital, in OfferInput) (*model.DrugOffer, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	loc, err := resolveLocation(hospital, in.Location)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	var expiry *time.Time
	if in.ExpiryDate != nil {
		day := model.ExpiryDay(*in.ExpiryDate)
		if day.Before(model.ExpiryCutoff(now)) {
			return nil, fmt.Errorf("%w: expiry date is in the past", validation.ErrInvalidInput)
		}
		expiry = &day
	}

	offer := model.DrugOffer{
		ID:            uuid.New(),
		HospitalID:    hospital.ID,
		Drugs:         normalizeDrugs(in.Drugs),
		Location:      loc,
		MaxDistanceKm: in.MaxDistanceKm,
		ExpiryDate:    expiry,
		Status:        model.OfferStatusAvailable,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateOffer(ctx, offer); err != nil {
		return nil, err
	}

	s.logger.Info("drug offer submitted",
		zap.Stringer("offerID", offer.ID), zap.Int64("hospitalID", hospital.ID), zap.Int("drugs", len(offer.Drugs)))

	s.recomputeAfterChange(ctx)
	return &offer, nil
}

// ListRequests возвращает запросы больницы.
func (s *Service) ListRequests(ctx context.Context, hospitalID int64) ([]model.DrugRequest, error) {
	return s.repo.ListRequestsByHospital(ctx, hospitalID)
}

// ListOffers возвращает предложения больницы с учётом истёкшего срока годности.
func (s *Service) ListOffers(ctx context.Context, hospitalID int64) ([]model.DrugOffer, error) {
	offers, err := s.repo.ListOffersByHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	for i := range offers {
		offers[i].Status = offers[i].EffectiveStatus(now)
	}
	return offers, nil
}

// CancelRequest отменяет запрос, отклоняет его открытые совпадения и пересчитывает пары.
func (s *Service) CancelRequest(ctx context.Context, hospitalID int64, id uuid.UUID) error {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req.HospitalID != hospitalID {
		return ErrForbidden
	}
	if !req.Status.CanTransition(model.RequestStatusCancelled) {
		return fmt.Errorf("%w: request %s is %s", ErrInvalidStatusTransition, id, req.Status)
	}

	now := s.timestamp()
	if err := s.repo.UpdateRequestStatus(ctx, id, req.Status, model.RequestStatusCancelled, now); err != nil {
		return s.statusError(err)
	}

	declined, err := s.repo.DeclineMatchesForRequest(ctx, id, now)
	if err != nil {
		return err
	}

	s.logger.Info("drug request cancelled", zap.Stringer("requestID", id), zap.Int64("declinedMatches", declined))

	s.recomputeAfterChange(ctx)
	return nil
}

// CancelOffer снимает предложение с биржи, помечая его просроченным, отклоняет его открытые совпадения
// и пересчитывает пары.
func (s *Service) CancelOffer(ctx context.Context, hospitalID int64, id uuid.UUID) error {
	offer, err := s.repo.GetOffer(ctx, id)
	if err != nil {
		return err
	}
	if offer.HospitalID != hospitalID {
		return ErrForbidden
	}
	if !offer.Status.CanTransition(model.OfferStatusExpired) {
		return fmt.Errorf("%w: offer %s is %s", ErrInvalidStatusTransition, id, offer.Status)
	}

	now := s.timestamp()
	if err := s.repo.UpdateOfferStatus(ctx, id, offer.Status, model.OfferStatusExpired, now); err != nil {
		return s.statusError(err)
	}

	declined, err := s.repo.DeclineMatchesForOffer(ctx, id, now)
	if err != nil {
		return err
	}

	s.logger.Info("drug offer withdrawn", zap.Stringer("offerID", id), zap.Int64("declinedMatches", declined))

	s.recomputeAfterChange(ctx)
	return nil
}

func (s *Service) recomputeAfterChange(ctx context.Context) {
	if _, err := s.RecomputeMatches(ctx); err != nil {
		s.logger.Warn("failed to recompute matches", zap.Error(err))
	}
}

// RecomputeMatches снимает просроченные предложения, пересчитывает совпадения по активным
// запросам и предложениям и сохраняет новые. Существующая пара не создаётся повторно.
// Возвращает число созданных совпадений.
func (s *Service) RecomputeMatches(ctx context.Context) (int, error) {
	s.recomputeMu.Lock()
	defer s.recomputeMu.Unlock()

	now := s.timestamp()
	if _, err := s.expireOffers(ctx, now); err != nil {
		return 0, err
	}

	requests, err := s.repo.ListActiveRequests(ctx)
	if err != nil {
		return 0, err
	}
	offers, err := s.repo.ListAvailableOffers(ctx, now)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, c := range s.engine.Candidates(requests, offers) {
		inserted, err := s.repo.InsertMatch(ctx, c.Match)
		if err != nil {
			return created, err
		}
		if !inserted {
			continue
		}
		created++
		s.notify(ctx, c.Match)
	}

	if created > 0 {
		s.logger.Info("matches created", zap.Int("count", created))
	}
	return created, nil
}

func (s *Service) notify(ctx context.Context, m model.Match) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.MatchCreated(ctx, m); err != nil {
		s.logger.Warn("failed to notify about match", zap.Stringer("matchID", m.ID), zap.Error(err))
		return
	}

	err := s.repo.UpdateMatchStatus(ctx, m.ID, model.MatchStatusPending, model.MatchStatusNotified, s.timestamp())
	if err != nil && !errors.Is(err, repository.ErrStatusChanged) {
		s.logger.Warn("failed to mark match notified", zap.Stringer("matchID", m.ID), zap.Error(err))
	}
}

func (s *Service) expireOffers(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.repo.ExpireOffers(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if _, err := s.repo.DeclineMatchesForOffer(ctx, id, now); err != nil {
			return 0, err
		}
	}

	if len(ids) > 0 {
		s.logger.Info("offers expired", zap.Int("count", len(ids)))
	}
	return len(ids), nil
}

// ListMatches возвращает совпадения больницы, прошедшие фильтр, в порядке ранжирования.
func (s *Service) ListMatches(ctx context.Context, hospitalID int64, filter MatchFilter) ([]model.Match, error) {
	if err := validation.Struct(filter); err != nil {
		return nil, err
	}

	matches, err := s.repo.ListMatchesByHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}

	return lo.Filter(matches, func(m model.Match, _ int) bool {
		return filter.Accepts(m)
	}), nil
}

// UpdateMatchStatus меняет статус совпадения по решению одной из сторон.
// Согласие резервирует предложение и закрывает запрос, завершение завершает обе записи.
func (s *Service) UpdateMatchStatus(ctx context.Context, hospitalID int64, matchID uuid.UUID, next model.MatchStatus) (*model.Match, error) {
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(hospitalID) {
		return nil, ErrForbidden
	}
	if !m.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: match %s from %s to %s", ErrInvalidStatusTransition, matchID, m.Status, next)
	}

	now := s.timestamp()
	switch next {
	case model.MatchStatusAgreed:
		err = s.agree(ctx, m, now)
	case model.MatchStatusCompleted:
		err = s.complete(ctx, m, now)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateMatchStatus(ctx, matchID, m.Status, next, now); err != nil {
		return nil, s.statusError(err)
	}

	s.logger.Info("match status changed",
		zap.Stringer("matchID", matchID), zap.String("from", string(m.Status)), zap.String("to", string(next)),
		zap.Int64("hospitalID", hospitalID))

	m.Status = next
	m.UpdatedAt = now
	return m, nil
}

func (s *Service) agree(ctx context.Context, m *model.Match, now time.Time) error {
	err := s.repo.UpdateRequestStatus(ctx, m.RequestID, model.RequestStatusPending, model.RequestStatusMatched, now)
	if err != nil {
		return s.statusError(err)
	}

	err = s.repo.UpdateOfferStatus(ctx, m.OfferID, model.OfferStatusAvailable, model.OfferStatusReserved, now)
	if err != nil {
		// откат резервирования запроса
		if rbErr := s.repo.UpdateRequestStatus(ctx, m.RequestID, model.RequestStatusMatched, model.RequestStatusPending, now); rbErr != nil {
			s.logger.Error("failed to release request", zap.Stringer("requestID", m.RequestID), zap.Error(rbErr))
		}
		return s.statusError(err)
	}
	return nil
}

func (s *Service) complete(ctx context.Context, m *model.Match, now time.Time) error {
	err := s.repo.UpdateRequestStatus(ctx, m.RequestID, model.RequestStatusMatched, model.RequestStatusCompleted, now)
	if err != nil {
		return s.statusError(err)
	}
	err = s.repo.UpdateOfferStatus(ctx, m.OfferID, model.OfferStatusReserved, model.OfferStatusCompleted, now)
	if err != nil {
		return s.statusError(err)
	}
	return nil
}

func (s *Service) statusError(err error) error {
	if errors.Is(err, repository.ErrStatusChanged) {
		return fmt.Errorf("%w: %w", ErrInvalidStatusTransition, err)
	}
	return err
}

func (s *Service) participantMatch(ctx context.Context, hospitalID int64, matchID uuid.UUID) (*model.Match, error) {
	m, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(hospitalID) {
		return nil, ErrForbidden
	}
	return m, nil
}

// SendMessage отправляет сообщение второй стороне совпадения. Переписка открыта только после согласия.
func (s *Service) SendMessage(ctx context.Context, hospitalID int64, matchID uuid.UUID, in MessageInput) (*model.Message, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	m, err := s.participantMatch(ctx, hospitalID, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Status.AllowsMessaging() {
		return nil, ErrMessagingLocked
	}

	msg := model.Message{
		ID:         uuid.New(),
		MatchID:    matchID,
		SenderID:   hospitalID,
		ReceiverID: m.Counterpart(hospitalID),
		Content:    in.Content,
		CreatedAt:  s.timestamp(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages возвращает переписку по совпадению в хронологическом порядке.
func (s *Service) ListMessages(ctx context.Context, hospitalID int64, matchID uuid.UUID) ([]model.Message, error) {
	if _, err := s.participantMatch(ctx, hospitalID, matchID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, matchID)
}

// MarkMessageRead отмечает сообщение прочитанным. Отметить может только получатель.
func (s *Service) MarkMessageRead(ctx context.Context, hospitalID int64, messageID uuid.UUID) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ReceiverID != hospitalID {
		return ErrForbidden
	}
	if msg.Read {
		return nil
	}
	return s.repo.MarkMessageRead(ctx, messageID)
}

// StartExpirySweep запускает фоновую проверку сроков годности предложений.
func (s *Service) StartExpirySweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepExpired(ctx)
			}
		}
	}()
}

func (s *Service) sweepExpired(ctx context.Context) {
	s.recomputeMu.Lock()
	defer s.recomputeMu.Unlock()

	if _, err := s.expireOffers(ctx, s.timestamp()); err != nil {
		s.logger.Warn("expiry sweep failed", zap.Error(err))
	}
}
