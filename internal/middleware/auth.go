// Package middleware содержит HTTP middleware биржи медикаментов.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const clientIDKey contextKey = "clientID"

const (
	clientCookieName = "client_id"
	clientCookieTTL  = 365 * 24 * time.Hour
)

// ClientMiddleware присваивает каждому браузеру идентификатор клиента в подписанном cookie.
// По идентификатору клиента менеджер сессий находит сохранённое состояние аутентификации.
type ClientMiddleware struct {
	secretKey []byte
}

// NewClientMiddleware создаёт новый экземпляр ClientMiddleware с указанным секретным ключом.
// Без ключа используется случайный, и cookie перестают быть действительными после перезапуска.
func NewClientMiddleware(secret string) *ClientMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(err)
		}
	}

	return &ClientMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie клиента, при необходимости выдаёт новый и добавляет идентификатор в контекст.
func (c *ClientMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var clientID string
		if cookie, err := r.Cookie(clientCookieName); err == nil {
			clientID, _ = c.parseCookie(cookie.Value)
		}

		if clientID == "" {
			clientID = uuid.NewString()
			c.SetClientCookie(w, clientID)
		}

		ctx := context.WithValue(r.Context(), clientIDKey, clientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetClientCookie устанавливает cookie с подписанным идентификатором клиента.
func (c *ClientMiddleware) SetClientCookie(w http.ResponseWriter, clientID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    clientID + "." + c.sign(clientID),
		Path:     "/",
		Expires:  time.Now().Add(clientCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *ClientMiddleware) sign(clientID string) string {
	mac := hmac.New(sha256.New, c.secretKey)
	mac.Write([]byte(clientID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *ClientMiddleware) parseCookie(value string) (string, bool) {
	clientID, signature, ok := strings.Cut(value, ".")
	if !ok {
		return "", false
	}

	if !hmac.Equal([]byte(signature), []byte(c.sign(clientID))) {
		return "", false
	}

	if _, err := uuid.Parse(clientID); err != nil {
		return "", false
	}

	return clientID, true
}

// ClientIDFromContext извлекает идентификатор клиента из контекста запроса.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey).(string)
	return id, ok && id != ""
}
