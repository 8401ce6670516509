// Package matching подбирает пары запросов и предложений медикаментов.
package matching

import (
	"cmp"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/geo"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
)

// DefaultThreshold задаёт минимальную оценку сходства, при которой создаётся совпадение.
const DefaultThreshold = 0.5

// DistanceFunc вычисляет расстояние между точками в километрах.
type DistanceFunc func(a, b model.Location) (float64, error)

// Candidate описывает совпадение, найденное движком, вместе с датой создания предложения для ранжирования.
type Candidate struct {
	Match          model.Match
	OfferCreatedAt time.Time
}

// Engine вычисляет совпадения по текущему набору активных запросов и предложений.
type Engine struct {
	threshold float64
	distance  DistanceFunc
	now       func() time.Time
	logger    *zap.Logger
}

// Option настраивает Engine.
type Option func(*Engine)

// WithDistance подменяет расчёт расстояния.
func WithDistance(fn DistanceFunc) Option {
	return func(e *Engine) { e.distance = fn }
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine создаёт движок сопоставления. Неположительный порог заменяется на DefaultThreshold.
func NewEngine(threshold float64, logger *zap.Logger, opts ...Option) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		threshold: threshold,
		distance:  geo.DistanceKm,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold возвращает минимальную оценку сходства.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Candidates возвращает ранжированные совпадения для всех допустимых пар.
// Пара без координат пропускается и не мешает остальным.
func (e *Engine) Candidates(requests []model.DrugRequest, offers []model.DrugOffer) []Candidate {
	now := e.now().UTC()

	active := lo.Filter(requests, func(r model.DrugRequest, _ int) bool {
		return r.Status == model.RequestStatusPending
	})
	available := lo.Filter(offers, func(o model.DrugOffer, _ int) bool {
		return o.EffectiveStatus(now) == model.OfferStatusAvailable
	})

	var out []Candidate
	for _, r := range active {
		for _, o := range available {
			c, ok := e.pair(r, o, now)
			if ok {
				out = append(out, c)
			}
		}
	}

	Rank(out)
	return out
}

func (e *Engine) pair(r model.DrugRequest, o model.DrugOffer, now time.Time) (Candidate, bool) {
	if r.HospitalID == o.HospitalID {
		return Candidate{}, false
	}

	name, score := bestPair(r.Drugs, o.Drugs)
	if score == 0 || score < e.threshold {
		return Candidate{}, false
	}

	dist, err := e.distance(r.Location, o.Location)
	if err != nil {
		if errors.Is(err, geo.ErrGeocodingRequired) {
			e.logger.Debug("skipping pair without coordinates",
				zap.Stringer("requestID", r.ID), zap.Stringer("offerID", o.ID))
		} else {
			e.logger.Warn("failed to compute distance",
				zap.Stringer("requestID", r.ID), zap.Stringer("offerID", o.ID), zap.Error(err))
		}
		return Candidate{}, false
	}

	if math.IsNaN(dist) || math.IsInf(dist, 0) || dist < 0 {
		e.logger.Warn("discarding pair with invalid distance",
			zap.Stringer("requestID", r.ID), zap.Stringer("offerID", o.ID), zap.Float64("distance", dist))
		return Candidate{}, false
	}
	if dist > maxDistance(r, o) {
		return Candidate{}, false
	}

	return Candidate{
		Match: model.Match{
			ID:                  uuid.New(),
			RequestID:           r.ID,
			OfferID:             o.ID,
			RequesterHospitalID: r.HospitalID,
			ProviderHospitalID:  o.HospitalID,
			DrugName:            name,
			SimilarityScore:     score,
			DistanceKm:          dist,
			Status:              model.MatchStatusPending,
			CreatedAt:           now,
			UpdatedAt:           now,
		},
		OfferCreatedAt: o.CreatedAt,
	}, true
}

// maxDistance возвращает меньший из радиусов сторон.
func maxDistance(r model.DrugRequest, o model.DrugOffer) float64 {
	return min(r.MaxDistanceKm, o.MaxDistanceKm)
}

// Rank упорядочивает совпадения: по убыванию сходства, затем по возрастанию расстояния,
// затем по дате создания предложения.
func Rank(cs []Candidate) {
	slices.SortStableFunc(cs, func(a, b Candidate) int {
		if c := cmp.Compare(b.Match.SimilarityScore, a.Match.SimilarityScore); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Match.DistanceKm, b.Match.DistanceKm); c != 0 {
			return c
		}
		return a.OfferCreatedAt.Compare(b.OfferCreatedAt)
	})
}
