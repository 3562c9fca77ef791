package users_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kevin-learn/kevin-server/internal/auth"
	"github.com/kevin-learn/kevin-server/internal/authz"
	"github.com/kevin-learn/kevin-server/internal/platform/httpx"
	"github.com/kevin-learn/kevin-server/internal/users"
	_ "github.com/kevin-learn/kevin-server/testing"
)

// memStore backs both the users repository and caller resolution, so handler
// tests run against one shared in-memory account table.
type memStore struct {
	users  map[int64]*users.User
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{users: make(map[int64]*users.User), nextID: 1}
}

func (m *memStore) Find(ctx context.Context, filter users.Filter) ([]users.User, error) {
	matched := []users.User{}
	for id := int64(1); id < m.nextID; id++ {
		u, ok := m.users[id]
		if !ok {
			continue
		}
		if filter.ID > 0 && u.ID != filter.ID {
			continue
		}
		if filter.Name != "" && u.Name != filter.Name {
			continue
		}
		if filter.Mail != "" && u.Mail != filter.Mail {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		matched = append(matched, *u)
	}
	if filter.ID > 0 {
		return matched, nil
	}
	if filter.Offset >= len(matched) {
		return []users.User{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *memStore) Create(ctx context.Context, user users.User) (*users.User, error) {
	for _, existing := range m.users {
		if existing.Name == user.Name {
			return nil, users.ErrNameTaken
		}
		if existing.Mail == user.Mail {
			return nil, users.ErrMailTaken
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = &user
	return &user, nil
}

func (m *memStore) Update(ctx context.Context, id int64, patch users.Patch) (int64, error) {
	u, ok := m.users[id]
	if !ok {
		return 0, nil
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Password != nil {
		u.PasswordHash = *patch.Password
	}
	if patch.Mail != nil {
		u.Mail = *patch.Mail
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	return 1, nil
}

func (m *memStore) Delete(ctx context.Context, id int64) (int64, error) {
	if _, ok := m.users[id]; !ok {
		return 0, nil
	}
	delete(m.users, id)
	return 1, nil
}

// authAdapter exposes the shared store to the auth module.
type authAdapter struct {
	store *memStore
}

func (a authAdapter) FindByMail(ctx context.Context, mail string) (*auth.Identity, error) {
	for _, u := range a.store.users {
		if u.Mail == mail {
			return &auth.Identity{ID: u.ID, Name: u.Name, Mail: u.Mail, PasswordHash: u.PasswordHash, Role: u.Role}, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (a authAdapter) FindByID(ctx context.Context, id int64) (*auth.Identity, error) {
	u, ok := a.store.users[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return &auth.Identity{ID: u.ID, Name: u.Name, Mail: u.Mail, PasswordHash: u.PasswordHash, Role: u.Role}, nil
}

type fixture struct {
	router chi.Router
	store  *memStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	codec, err := auth.NewTokenCodec("test-secret", 20*time.Minute)
	require.NoError(t, err)

	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	authService := auth.NewService(authAdapter{store: store}, codec, auth.NewRevocationStore(client))
	authHandler := auth.NewHandler(logger, authService, false)
	mw := auth.Middleware{Service: authService, Logger: logger}

	usersService := users.NewService(store, 20)
	usersHandler := users.NewHandler(logger, usersService, mw)

	r := chi.NewRouter()
	authHandler.MountRoutes(r)
	r.Route("/user", usersHandler.MountRoutes)
	return &fixture{router: r, store: store}
}

func (f *fixture) seed(t *testing.T, name, mail, pass string, role authz.Role) int64 {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	require.NoError(t, err)
	created, err := f.store.Create(context.Background(), users.User{
		Name:         name,
		PasswordHash: string(hashed),
		Mail:         mail,
		Role:         role,
	})
	require.NoError(t, err)
	return created.ID
}

func (f *fixture) login(t *testing.T, mail, pass string) *http.Cookie {
	t.Helper()
	body := `{"user_mail":"` + mail + `","user_pass":"` + pass + `"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, "login: %s", res.Body.String())
	for _, c := range res.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatal("login response has no token cookie")
	return nil
}

func (f *fixture) do(method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func TestGetUserRequiresToken(t *testing.T) {
	f := newFixture(t)

	res := f.do(http.MethodGet, "/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), httpx.MsgLoginRequired)
}

func TestGetOwnUser(t *testing.T) {
	f := newFixture(t)
	id := f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "alice@example.com", "secret123")

	res := f.do(http.MethodGet, "/user?user_id=1", "", cookie)
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]struct {
		UserID   int64  `json:"user_id"`
		UserName string `json:"user_name"`
		UserMail string `json:"user_mail"`
		UserRole string `json:"user_role"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, id, body["1"].UserID)
	assert.Equal(t, "alice", body["1"].UserName)
	assert.Equal(t, "User", body["1"].UserRole)
}

func TestGetOtherUserDenied(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	f.seed(t, "bob", "bob@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "alice@example.com", "secret123")

	res := f.do(http.MethodGet, "/user?user_id=2", "", cookie)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), httpx.MsgNoAccess)
}

func TestGetAllUsersUnprivilegedDenied(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "alice@example.com", "secret123")

	res := f.do(http.MethodGet, "/user", "", cookie)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestGetAllUsersAsAdmin(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "root", "root@example.com", "secret123", authz.RoleAdmin)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	f.seed(t, "bob", "bob@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "root@example.com", "secret123")

	res := f.do(http.MethodGet, "/user", "", cookie)
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Len(t, body, 3)
}

func TestGetUsersZeroLimit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "root", "root@example.com", "secret123", authz.RoleAdmin)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "root@example.com", "secret123")

	res := f.do(http.MethodGet, "/user?user_limit=0", "", cookie)
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Empty(t, body)
}

func TestGetUsersBadParams(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "root", "root@example.com", "secret123", authz.RoleAdmin)
	cookie := f.login(t, "root@example.com", "secret123")

	cases := []struct {
		query   string
		message string
	}{
		{"/user?user_id=abc", "ID of the user is malformed"},
		{"/user?user_offset=-1", "Start index not in range"},
		{"/user?user_limit=999", "Page limit not in range"},
		{"/user?user_limit=-2", "Page limit not in range"},
		{"/user?user_role=9", "User role not in range"},
	}
	for _, tc := range cases {
		res := f.do(http.MethodGet, tc.query, "", cookie)
		assert.Equal(t, http.StatusBadRequest, res.Code, tc.query)
		assert.Contains(t, res.Body.String(), tc.message, tc.query)
	}
}

func TestSignupWithoutToken(t *testing.T) {
	f := newFixture(t)

	body := `{"user_name":"alice","user_pass":"secret123","user_mail":"alice@example.com","user_role":3}`
	res := f.do(http.MethodPost, "/user", body, nil)
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Contains(t, res.Body.String(), "The user was created successfully")

	// The stored credential is a hash, never the raw password.
	stored := f.store.users[1]
	assert.NotContains(t, stored.PasswordHash, "secret123")
}

func TestSignupDuplicateName(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)

	body := `{"user_name":"alice","user_pass":"other","user_mail":"new@example.com","user_role":3}`
	res := f.do(http.MethodPost, "/user", body, nil)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Contains(t, res.Body.String(), "A user with this name already exists")
}

func TestSignupDuplicateMail(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)

	body := `{"user_name":"other","user_pass":"other","user_mail":"alice@example.com","user_role":3}`
	res := f.do(http.MethodPost, "/user", body, nil)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Contains(t, res.Body.String(), "A user with this mail already exists")
}

func TestSignupPrivilegedRoleWithoutToken(t *testing.T) {
	f := newFixture(t)

	body := `{"user_name":"boss","user_pass":"secret123","user_mail":"boss@example.com","user_role":2}`
	res := f.do(http.MethodPost, "/user", body, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), httpx.MsgLoginRequired)
}

func TestSignupPrivilegedRoleAsUser(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "alice@example.com", "secret123")

	body := `{"user_name":"boss","user_pass":"secret123","user_mail":"boss@example.com","user_role":2}`
	res := f.do(http.MethodPost, "/user", body, cookie)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), httpx.MsgNoAccess)
}

func TestSignupPrivilegedRoleAsAdmin(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "root", "root@example.com", "secret123", authz.RoleAdmin)
	cookie := f.login(t, "root@example.com", "secret123")

	body := `{"user_name":"boss","user_pass":"secret123","user_mail":"boss@example.com","user_role":2}`
	res := f.do(http.MethodPost, "/user", body, cookie)
	assert.Equal(t, http.StatusCreated, res.Code)
}

func TestSignupInvalidRole(t *testing.T) {
	f := newFixture(t)

	body := `{"user_name":"alice","user_pass":"secret123","user_mail":"alice@example.com","user_role":9}`
	res := f.do(http.MethodPost, "/user", body, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "User role not in range")
}

func TestUpdateOwnName(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "alice@example.com", "secret123")

	body := `{"user_id":1,"user_name":"alicia"}`
	res := f.do(http.MethodPut, "/user", body, cookie)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Successfully changed user with user_id 1")
	assert.Equal(t, "alicia", f.store.users[1].Name)
}

func TestUpdateOwnRoleDenied(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "alice@example.com", "secret123")

	body := `{"user_id":1,"user_role":2}`
	res := f.do(http.MethodPut, "/user", body, cookie)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, authz.RoleUser, f.store.users[1].Role)
}

func TestUpdateOtherUserDenied(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	f.seed(t, "bob", "bob@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "alice@example.com", "secret123")

	body := `{"user_id":2,"user_name":"hacked"}`
	res := f.do(http.MethodPut, "/user", body, cookie)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "bob", f.store.users[2].Name)
}

func TestUpdateOtherUserAsAdmin(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "root", "root@example.com", "secret123", authz.RoleAdmin)
	f.seed(t, "bob", "bob@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "root@example.com", "secret123")

	body := `{"user_id":2,"user_role":2}`
	res := f.do(http.MethodPut, "/user", body, cookie)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, authz.RoleAdmin, f.store.users[2].Role)
}

func TestUpdateMissingUserAsAdmin(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "root", "root@example.com", "secret123", authz.RoleAdmin)
	cookie := f.login(t, "root@example.com", "secret123")

	body := `{"user_id":42,"user_name":"ghost"}`
	res := f.do(http.MethodPut, "/user", body, cookie)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Contains(t, res.Body.String(), "User with user_id 42 does not exist")
}

func TestUpdateWithoutID(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "alice@example.com", "secret123")

	res := f.do(http.MethodPut, "/user", `{"user_name":"nobody"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "ID of the user is missing")
}

func TestDeleteOwnAccount(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "alice@example.com", "secret123")

	res := f.do(http.MethodDelete, "/user", `{"user_id":1}`, cookie)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Successfully deleted user with user_id 1")
	assert.NotContains(t, f.store.users, int64(1))
}

func TestDeleteOtherUserDenied(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	f.seed(t, "bob", "bob@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "alice@example.com", "secret123")

	res := f.do(http.MethodDelete, "/user", `{"user_id":2}`, cookie)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, f.store.users, int64(2))
}

func TestDeletedCallerIsDeniedEverywhere(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "alice", "alice@example.com", "secret123", authz.RoleUser)
	cookie := f.login(t, "alice@example.com", "secret123")

	res := f.do(http.MethodDelete, "/user", `{"user_id":1}`, cookie)
	require.Equal(t, http.StatusOK, res.Code)

	// The token still decodes, but the account behind it is gone.
	res = f.do(http.MethodGet, "/user?user_id=1", "", cookie)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), httpx.MsgNoAccess)
}
