// Package handler содержит HTTP-обработчики API биржи медикаментов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/middleware"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/repository"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/service"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/session"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/validation"
)

const maxBodyBytes = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	SubmitRequest(ctx context.Context, hospital model.Hospital, in service.RequestInput) (*model.DrugRequest, error)
	SubmitOffer(ctx context.Context, hospital model.Hospital, in service.OfferInput) (*model.DrugOffer, error)
	ListRequests(ctx context.Context, hospitalID int64) ([]model.DrugRequest, error)
	ListOffers(ctx context.Context, hospitalID int64) ([]model.DrugOffer, error)
	CancelRequest(ctx context.Context, hospitalID int64, id uuid.UUID) error
	CancelOffer(ctx context.Context, hospitalID int64, id uuid.UUID) error
	ListMatches(ctx context.Context, hospitalID int64, filter service.MatchFilter) ([]model.Match, error)
	UpdateMatchStatus(ctx context.Context, hospitalID int64, matchID uuid.UUID, next model.MatchStatus) (*model.Match, error)
	SendMessage(ctx context.Context, hospitalID int64, matchID uuid.UUID, in service.MessageInput) (*model.Message, error)
	ListMessages(ctx context.Context, hospitalID int64, matchID uuid.UUID) ([]model.Message, error)
	MarkMessageRead(ctx context.Context, hospitalID int64, messageID uuid.UUID) error
}

// SessionOpener открывает сессию клиента по ключу хранилища.
type SessionOpener interface {
	Open(ctx context.Context, key string) (*session.Session, error)
}

// Handler реализует HTTP-обработчики API биржи.
type Handler struct {
	service          Service
	sessions         SessionOpener
	logger           *zap.Logger
	clientMiddleware *middleware.ClientMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, sessions SessionOpener, logger *zap.Logger, client *middleware.ClientMiddleware) *Handler {
	return &Handler{
		service:          s,
		sessions:         sessions,
		logger:           logger,
		clientMiddleware: client,
	}
}

// withSession открывает сессию клиента и кладёт её в контекст запроса.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID, ok := middleware.ClientIDFromContext(r.Context())
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		s, err := h.sessions.Open(r.Context(), session.KeyFor(clientID))
		if err != nil {
			h.writeError(w, err, "open session")
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
	})
}

// requireHospital пропускает только аутентифицированные сессии с профилем больницы.
func (h *Handler) requireHospital(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		if !ok || !s.IsAuthenticated() || s.Hospital() == nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentSession(r *http.Request) *session.Session {
	s, _ := session.FromContext(r.Context())
	return s
}

func currentHospital(r *http.Request) model.Hospital {
	return *currentSession(r).Hospital()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func urlID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// statusFor сопоставляет доменную ошибку HTTP-статусу.
func statusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateEmail),
		errors.Is(err, repository.ErrUserAlreadyHasHospital),
		errors.Is(err, session.ErrRegistrationFailed),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, service.ErrInvalidStatusTransition),
		errors.Is(err, service.ErrMessagingLocked):
		return http.StatusConflict
	case errors.Is(err, repository.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" error", zap.Error(err))
	}

	text := http.StatusText(status)
	if status == http.StatusBadRequest || status == http.StatusConflict {
		text = err.Error()
	}
	http.Error(w, text, status)
}
