package handler

import (
	"net/http"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/session"
)

type emailResponse struct {
	Status  session.EmailStatus `json:"status"`
	Session session.Snapshot    `json:"session"`
}

// CheckEmail фиксирует почту и сообщает, зарегистрирована ли она.
func (h *Handler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var in session.EmailInput
	if !decodeJSON(w, r, &in) {
		return
	}

	s := currentSession(r)
	status, err := s.CheckEmail(r.Context(), in)
	if err != nil {
		h.writeError(w, err, "check email")
		return
	}

	h.writeJSON(w, http.StatusOK, emailResponse{Status: status, Session: s.Snapshot()})
}

// Register регистрирует учётную запись для ранее введённой почты.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in session.RegistrationInput
	if !decodeJSON(w, r, &in) {
		return
	}

	s := currentSession(r)
	if err := s.Register(r.Context(), in); err != nil {
		h.writeError(w, err, "register user")
		return
	}

	h.writeJSON(w, http.StatusCreated, s.Snapshot())
}

// SubmitHospital сохраняет профиль больницы и завершает регистрацию.
func (h *Handler) SubmitHospital(w http.ResponseWriter, r *http.Request) {
	var in session.HospitalProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}

	s := currentSession(r)
	if err := s.SubmitHospitalProfile(r.Context(), in); err != nil {
		h.writeError(w, err, "submit hospital profile")
		return
	}

	h.writeJSON(w, http.StatusCreated, s.Snapshot())
}

// Login выполняет вход по почте и паролю.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in session.LoginInput
	if !decodeJSON(w, r, &in) {
		return
	}

	s := currentSession(r)
	if err := s.Login(r.Context(), in); err != nil {
		h.writeError(w, err, "login user")
		return
	}

	h.writeJSON(w, http.StatusOK, s.Snapshot())
}

// Logout сбрасывает сессию клиента.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s := currentSession(r)
	if err := s.Logout(r.Context()); err != nil {
		h.writeError(w, err, "logout")
		return
	}

	h.writeJSON(w, http.StatusOK, s.Snapshot())
}

// GetSession возвращает текущее состояние сессии.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, currentSession(r).Snapshot())
}
