// internal/api/middleware.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"hatm_bot/internal/app"
	"hatm_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
)

type contextKey string

const currentUserKey contextKey = "current_user"

// initDataUser is the "user" field of the Mini App init data payload.
type initDataUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// TelegramAuth resolves the caller from the X-Telegram-Init-Data header the
// Mini App sends with every request, registering the user on first contact.
// The init data signature is checked upstream where the token lives; here we
// only need the identity payload.
func TelegramAuth(userService *app.UserService, log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			initData := r.Header.Get("X-Telegram-Init-Data")
			if initData == "" {
				writeErrorMessage(w, http.StatusUnauthorized, "Telegram authorization required")
				return
			}

			parsed, err := url.ParseQuery(initData)
			if err != nil {
				log.WithError(err).Warn("Malformed init data")
				writeErrorMessage(w, http.StatusUnauthorized, "invalid Telegram init data")
				return
			}

			rawUser := parsed.Get("user")
			if rawUser == "" {
				writeErrorMessage(w, http.StatusUnauthorized, "user data missing from init data")
				return
			}

			var payload initDataUser
			if err := json.Unmarshal([]byte(rawUser), &payload); err != nil || payload.ID == 0 {
				log.WithError(err).Warn("Unparseable user payload in init data")
				writeErrorMessage(w, http.StatusUnauthorized, "invalid Telegram user data")
				return
			}

			u, err := userService.GetOrCreate(r.Context(), payload.ID, payload.Username, payload.FirstName)
			if err != nil {
				log.WithError(err).WithField("telegram_id", payload.ID).Error("Failed to resolve API user")
				writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), currentUserKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// currentUser returns the authenticated user placed by TelegramAuth.
func currentUser(ctx context.Context) *user.User {
	u, _ := ctx.Value(currentUserKey).(*user.User)
	return u
}
