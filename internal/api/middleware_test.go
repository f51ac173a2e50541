// internal/api/middleware_test.go
package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"hatm_bot/internal/app"
	"hatm_bot/internal/domain/user"
	idb "hatm_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memUserRepo is the minimal user store the auth middleware needs.
type memUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*user.User
	nextID int64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]*user.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = r.nextID
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, idb.ErrUserNotFound
}

func (r *memUserRepo) GetByTelegramID(_ context.Context, telegramID int64) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, idb.ErrUserNotFound
}

func (r *memUserRepo) ListByIDs(_ context.Context, ids []int64) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*user.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memUserRepo) Update(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func testEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("test", true)
}

func initDataHeader(userJSON string) string {
	v := url.Values{}
	v.Set("user", userJSON)
	v.Set("auth_date", "1730000000")
	return v.Encode()
}

func TestTelegramAuth(t *testing.T) {
	userService := app.NewUserService(newMemUserRepo(), testEntry())

	var captured *user.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = currentUser(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := TelegramAuth(userService, testEntry())(next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{
			name:       "valid init data",
			header:     initDataHeader(`{"id":424242,"username":"reader","first_name":"Reader"}`),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "no user field",
			header:     "auth_date=1730000000",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage user payload",
			header:     initDataHeader(`not json`),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "user without ID",
			header:     initDataHeader(`{"username":"ghost"}`),
			wantStatus: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captured = nil
			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			if tt.header != "" {
				req.Header.Set("X-Telegram-Init-Data", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, captured)
				assert.Equal(t, int64(424242), captured.TelegramID)
				assert.Equal(t, "reader", captured.Username.String)
			} else {
				assert.Nil(t, captured)
			}
		})
	}
}

func TestTelegramAuth_RegistersOnce(t *testing.T) {
	repo := newMemUserRepo()
	userService := app.NewUserService(repo, testEntry())
	handler := TelegramAuth(userService, testEntry())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		req.Header.Set("X-Telegram-Init-Data", initDataHeader(`{"id":555,"first_name":"Umar"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Len(t, repo.users, 1, "repeat requests must reuse the registered user")
}
