package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/csvimport"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/service"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/validation"
)

// SubmitRequest создаёт запрос на медикаменты от имени больницы.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var in service.RequestInput
	if !decodeJSON(w, r, &in) {
		return
	}

	req, err := h.service.SubmitRequest(r.Context(), currentHospital(r), in)
	if err != nil {
		h.writeError(w, err, "submit request")
		return
	}

	h.writeJSON(w, http.StatusCreated, req)
}

// GetRequests возвращает запросы больницы.
func (h *Handler) GetRequests(w http.ResponseWriter, r *http.Request) {
	hospital := currentHospital(r)

	requests, err := h.service.ListRequests(r.Context(), hospital.ID)
	if err != nil {
		h.writeError(w, err, "list requests")
		return
	}

	if len(requests) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, requests)
}

// CancelRequest отменяет запрос больницы.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelRequest(r.Context(), currentHospital(r).ID, id); err != nil {
		h.writeError(w, err, "cancel request")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubmitOffer создаёт предложение медикаментов от имени больницы.
func (h *Handler) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	var in service.OfferInput
	if !decodeJSON(w, r, &in) {
		return
	}

	offer, err := h.service.SubmitOffer(r.Context(), currentHospital(r), in)
	if err != nil {
		h.writeError(w, err, "submit offer")
		return
	}

	h.writeJSON(w, http.StatusCreated, offer)
}

// GetOffers возвращает предложения больницы.
func (h *Handler) GetOffers(w http.ResponseWriter, r *http.Request) {
	hospital := currentHospital(r)

	offers, err := h.service.ListOffers(r.Context(), hospital.ID)
	if err != nil {
		h.writeError(w, err, "list offers")
		return
	}

	if len(offers) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, offers)
}

// CancelOffer снимает предложение больницы с биржи.
func (h *Handler) CancelOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelOffer(r.Context(), currentHospital(r).ID, id); err != nil {
		h.writeError(w, err, "cancel offer")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ImportDrugs разбирает CSV-файл с перечнем препаратов и возвращает строки и ошибки по строкам.
func (h *Handler) ImportDrugs(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	res, err := csvimport.Parse(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Info("csv import rejected", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// GetMatches возвращает ранжированные совпадения больницы.
// Параметры maxDistance и status сужают выдачу.
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMatchFilter(r)
	if err != nil {
		h.writeError(w, err, "list matches")
		return
	}

	matches, err := h.service.ListMatches(r.Context(), currentHospital(r).ID, filter)
	if err != nil {
		h.writeError(w, err, "list matches")
		return
	}

	if len(matches) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, matches)
}

func parseMatchFilter(r *http.Request) (service.MatchFilter, error) {
	q := r.URL.Query()
	filter := service.MatchFilter{Status: model.MatchStatus(q.Get("status"))}

	if v := q.Get("maxDistance"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, fmt.Errorf("%w: maxDistance %q is not a number", validation.ErrInvalidInput, v)
		}
		filter.MaxDistanceKm = d
	}

	return filter, nil
}

type matchStatusRequest struct {
	Status model.MatchStatus `json:"status"`
}

// UpdateMatchStatus меняет статус совпадения.
func (h *Handler) UpdateMatchStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	var req matchStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.service.UpdateMatchStatus(r.Context(), currentHospital(r).ID, id, req.Status)
	if err != nil {
		h.writeError(w, err, "update match status")
		return
	}

	h.writeJSON(w, http.StatusOK, m)
}

// GetMessages возвращает переписку по совпадению.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	msgs, err := h.service.ListMessages(r.Context(), currentHospital(r).ID, id)
	if err != nil {
		h.writeError(w, err, "list messages")
		return
	}

	if len(msgs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, msgs)
}

// SendMessage отправляет сообщение второй стороне совпадения.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	var in service.MessageInput
	if !decodeJSON(w, r, &in) {
		return
	}

	msg, err := h.service.SendMessage(r.Context(), currentHospital(r).ID, id, in)
	if err != nil {
		h.writeError(w, err, "send message")
		return
	}

	h.writeJSON(w, http.StatusCreated, msg)
}

// MarkMessageRead отмечает сообщение прочитанным.
func (h *Handler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkMessageRead(r.Context(), currentHospital(r).ID, id); err != nil {
		h.writeError(w, err, "mark message read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
