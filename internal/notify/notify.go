// Package notify доставляет уведомления о новых совпадениях участникам биржи.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
)

// EventMatchCreated задаёт тип события о новом совпадении.
const EventMatchCreated = "match.created"

// MatchEvent описывает событие о совпадении, отправляемое во внешние системы.
type MatchEvent struct {
	Type                string    `json:"type"`
	MatchID             string    `json:"matchId"`
	RequestID           string    `json:"requestId"`
	OfferID             string    `json:"offerId"`
	RequesterHospitalID int64     `json:"requesterHospitalId"`
	ProviderHospitalID  int64     `json:"providerHospitalId"`
	DrugName            string    `json:"drugName"`
	SimilarityScore     float64   `json:"similarityScore"`
	DistanceKm          float64   `json:"distance"`
	CreatedAt           time.Time `json:"createdAt"`
}

// NewMatchEvent строит событие по совпадению.
func NewMatchEvent(m model.Match) MatchEvent {
	return MatchEvent{
		Type:                EventMatchCreated,
		MatchID:             m.ID.String(),
		RequestID:           m.RequestID.String(),
		OfferID:             m.OfferID.String(),
		RequesterHospitalID: m.RequesterHospitalID,
		ProviderHospitalID:  m.ProviderHospitalID,
		DrugName:            m.DrugName,
		SimilarityScore:     m.SimilarityScore,
		DistanceKm:          m.DistanceKm,
		CreatedAt:           m.CreatedAt,
	}
}

// LogNotifier записывает совпадения в журнал. Используется, когда внешняя доставка не настроена.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier создаёт уведомитель, пишущий в журнал.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// MatchCreated записывает событие о совпадении.
func (n *LogNotifier) MatchCreated(_ context.Context, m model.Match) error {
	n.logger.Info("match created",
		zap.Stringer("matchID", m.ID),
		zap.Int64("requesterHospitalID", m.RequesterHospitalID),
		zap.Int64("providerHospitalID", m.ProviderHospitalID),
		zap.String("drug", m.DrugName),
		zap.Float64("similarity", m.SimilarityScore),
		zap.Float64("distanceKm", m.DistanceKm),
	)
	return nil
}

// Close ничего не делает.
func (n *LogNotifier) Close() error {
	return nil
}
