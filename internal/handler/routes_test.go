package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"secretvault/internal/admin"
	"secretvault/internal/apperr"
	"secretvault/internal/auth"
	"secretvault/internal/directory"
	"secretvault/internal/middleware"
	"secretvault/internal/policy"
	"secretvault/internal/user"
)

type fakeSecrets struct {
	mu    sync.Mutex
	data  map[string]string
	err   error
	calls []string
}

func (f *fakeSecrets) Write(_ context.Context, owner, content string) error {
	if owner == "" {
		return apperr.ErrUnauthenticated
	}
	if content == "" {
		return apperr.InvalidOperation("secret content must not be empty")
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, owner)
	f.data[owner] = content
	return nil
}

func (f *fakeSecrets) Read(_ context.Context, owner string) (string, error) {
	if owner == "" {
		return "", apperr.ErrUnauthenticated
	}
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[owner], nil
}

func (f *fakeSecrets) Exists(_ context.Context, owner string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[owner]
	return ok, nil
}

type fakeAdmin struct {
	admins  map[string]bool
	records []admin.UserRecord
	deleted []string
	calls   int
	err     error
}

func (f *fakeAdmin) authorize(caller string) error {
	if caller == "" {
		return apperr.ErrUnauthenticated
	}
	if !f.admins[caller] {
		return apperr.Forbidden("admin role required")
	}
	return nil
}

func (f *fakeAdmin) ListUsers(_ context.Context, caller string) ([]admin.UserRecord, error) {
	if err := f.authorize(caller); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeAdmin) DeleteUser(_ context.Context, caller, target string) error {
	f.calls++
	if err := f.authorize(caller); err != nil {
		return err
	}
	if target == caller {
		return apperr.InvalidOperation("cannot delete your own account")
	}
	f.deleted = append(f.deleted, target)
	return nil
}

func (f *fakeAdmin) CheckAdminStatus(_ context.Context, caller string) bool {
	return f.admins[caller]
}

type fakeProfiles struct {
	profiles map[string]*directory.Profile
	err      error
}

func (f *fakeProfiles) GetUser(_ context.Context, id string) (*directory.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return p, nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) error { return f.err }

func strPtr(s string) *string { return &s }

type testEnv struct {
	mux      *http.ServeMux
	secrets  *fakeSecrets
	admin    *fakeAdmin
	profiles *fakeProfiles
}

func newTestEnv() *testEnv {
	env := &testEnv{
		secrets: &fakeSecrets{data: map[string]string{}},
		admin:   &fakeAdmin{admins: map[string]bool{"user_admin": true}},
		profiles: &fakeProfiles{profiles: map[string]*directory.Profile{
			"user_a": {ID: "user_a", Email: strPtr("a@example.com"), Username: strPtr("alice")},
		}},
		mux: http.NewServeMux(),
	}
	RegisterRoutes(env.mux, &Deps{
		Environment: "development",
		Health:      fakeHealth{},
		Secrets:     env.secrets,
		Admin:       env.admin,
		Profiles:    env.profiles,
	})
	return env
}

// do sends a request as caller; an empty caller is anonymous.
func (env *testEnv) do(method, target, caller string, body string, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if caller != "" {
		role := user.RoleMember
		if env.admin.admins[caller] {
			role = user.RoleAdmin
		}
		ctx := auth.WithIdentity(req.Context(), &auth.Identity{UserID: caller})
		ctx = middleware.WithUser(ctx, &user.User{ID: caller, Role: role, CreatedAt: time.Now()})
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv()
	rec := env.do(http.MethodGet, "/health", "", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, &Deps{Health: fakeHealth{err: errors.New("connection refused")}})
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv()
	rec := env.do(http.MethodGet, "/api/v1/status", "", "", "")

	var resp map[string]any
	decode(t, rec, &resp)
	if resp["service"] != "secretvault" || resp["environment"] != "development" {
		t.Errorf("unexpected status response: %v", resp)
	}
}

func TestSecret_WriteThenRead(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodPost, "/secret", "user_a", `{"content":"open sesame"}`, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var wrote secretEnvelope
	decode(t, rec, &wrote)
	if !wrote.Success || wrote.Message == "" {
		t.Errorf("unexpected write envelope: %+v", wrote)
	}

	rec = env.do(http.MethodGet, "/secret", "user_a", "", "")
	var read secretEnvelope
	decode(t, rec, &read)
	if !read.Success || read.Content == nil || *read.Content != "open sesame" {
		t.Errorf("unexpected read envelope: %s", rec.Body.String())
	}
}

func TestSecret_FormPost(t *testing.T) {
	env := newTestEnv()

	form := url.Values{"content": {"from a form"}}.Encode()
	rec := env.do(http.MethodPost, "/secret", "user_a", form, "application/x-www-form-urlencoded")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.secrets.data["user_a"] != "from a form" {
		t.Errorf("expected form content to be stored, got %q", env.secrets.data["user_a"])
	}
}

func TestSecret_EmptyReadForNewUser(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/secret", "user_new", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"content":""`) {
		t.Errorf("expected explicit empty content, got %s", rec.Body.String())
	}
}

func TestSecret_NoCrossUserLeakage(t *testing.T) {
	env := newTestEnv()

	env.do(http.MethodPost, "/secret", "user_a", `{"content":"alpha"}`, "application/json")
	env.do(http.MethodPost, "/secret", "user_b", `{"content":"bravo"}`, "application/json")

	var read secretEnvelope
	decode(t, env.do(http.MethodGet, "/secret", "user_b", "", ""), &read)
	if read.Content == nil || *read.Content != "bravo" {
		t.Errorf("user_b read %v, want bravo", read.Content)
	}
}

func TestSecret_Failures(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		caller     string
		body       string
		ctype      string
		storeErr   error
		wantStatus int
		wantError  string
	}{
		{"anonymous read", http.MethodGet, "", "", "", nil, http.StatusUnauthorized, "unauthorized"},
		{"anonymous write", http.MethodPost, "", `{"content":"x"}`, "application/json", nil, http.StatusUnauthorized, "unauthorized"},
		{"empty content", http.MethodPost, "user_a", `{"content":""}`, "application/json", nil, http.StatusBadRequest, "secret content must not be empty"},
		{"bad json", http.MethodPost, "user_a", `{"content":`, "application/json", nil, http.StatusBadRequest, "invalid JSON body"},
		{"storage read", http.MethodGet, "user_a", "", "", apperr.Storage(errors.New("db down")), http.StatusInternalServerError, "internal error"},
		{"crypto read", http.MethodGet, "user_a", "", "", apperr.Crypto(errors.New("auth failed")), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.secrets.err = tt.storeErr

			rec := env.do(tt.method, "/secret", tt.caller, tt.body, tt.ctype)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			var env2 secretEnvelope
			decode(t, rec, &env2)
			if env2.Success {
				t.Error("expected success=false")
			}
			if !strings.Contains(env2.Error, tt.wantError) {
				t.Errorf("expected error containing %q, got %q", tt.wantError, env2.Error)
			}
			if strings.Contains(env2.Error, "db down") {
				t.Error("storage detail must not reach the client")
			}
		})
	}
}

func TestSecret_MethodNotAllowed(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodPut, "/secret", "user_a", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET, POST" {
		t.Errorf("expected Allow 'GET, POST', got %q", got)
	}
}

func TestProfile(t *testing.T) {
	env := newTestEnv()

	rec := env.do(http.MethodGet, "/profile", "user_a", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var p profileResponse
	decode(t, rec, &p)
	if p.ID != "user_a" || p.Role != user.RoleMember {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.Username == nil || *p.Username != "alice" {
		t.Errorf("expected username alice, got %v", p.Username)
	}

	// No provider profile: local fields only.
	rec = env.do(http.MethodGet, "/profile", "user_orphan", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"email":null`) {
		t.Errorf("expected null email, got %s", rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/profile", "", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestProfile_UpstreamError(t *testing.T) {
	env := newTestEnv()
	env.profiles.err = apperr.Upstream(errors.New("status 500"))

	rec := env.do(http.MethodGet, "/profile", "user_a", "", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv()
	env.secrets.data["user_a"] = "x"

	var resp map[string]any
	decode(t, env.do(http.MethodGet, "/dashboard", "user_a", "", ""), &resp)
	if resp["has_secret"] != true || resp["role"] != "member" || resp["is_admin"] != false {
		t.Errorf("unexpected dashboard: %v", resp)
	}
}

func TestCheckAdmin(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		caller    string
		wantAdmin bool
		wantRole  string
	}{
		{"", false, "visiteur"},
		{"user_a", false, "member"},
		{"user_admin", true, "admin"},
	}

	for _, tt := range tests {
		var resp struct {
			IsAdmin bool   `json:"is_admin"`
			Role    string `json:"role"`
		}
		rec := env.do(http.MethodGet, "/api/check-admin", tt.caller, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		decode(t, rec, &resp)
		if resp.IsAdmin != tt.wantAdmin || resp.Role != tt.wantRole {
			t.Errorf("caller %q: got %+v", tt.caller, resp)
		}
	}
}

func TestAdminUsers_List(t *testing.T) {
	env := newTestEnv()
	env.admin.records = []admin.UserRecord{
		{ID: "user_b", Role: user.RoleMember, Email: strPtr("b@example.com")},
		{ID: "user_admin", Role: user.RoleAdmin},
	}

	rec := env.do(http.MethodGet, "/admin/users", "user_admin", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Users []admin.UserRecord `json:"users"`
		Count int                `json:"count"`
	}
	decode(t, rec, &resp)
	if resp.Count != 2 || resp.Users[0].ID != "user_b" {
		t.Errorf("unexpected listing: %+v", resp)
	}
	if resp.Users[1].Email != nil {
		t.Errorf("expected null email for user without profile")
	}
}

func TestAdminUsers_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		caller     string
		listErr    error
		wantStatus int
		wantType   string
	}{
		{"member list", http.MethodGet, "/admin/users", "user_a", nil, http.StatusForbidden, "access_denied"},
		{"anonymous list", http.MethodGet, "/admin/users", "", nil, http.StatusUnauthorized, "authentication_error"},
		{"upstream list", http.MethodGet, "/admin/users", "user_admin", apperr.Upstream(errors.New("503")), http.StatusBadGateway, "upstream_error"},
		{"self delete", http.MethodDelete, "/admin/users/user_admin", "user_admin", nil, http.StatusBadRequest, "invalid_operation"},
		{"member delete", http.MethodPost, "/admin/users/user_b/delete", "user_a", nil, http.StatusForbidden, "access_denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.admin.err = tt.listErr

			rec := env.do(tt.method, tt.target, tt.caller, "", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			var resp auth.APIError
			decode(t, rec, &resp)
			if resp.Error.Type != tt.wantType {
				t.Errorf("expected type %q, got %q", tt.wantType, resp.Error.Type)
			}
			if len(env.admin.deleted) != 0 {
				t.Errorf("nothing should be deleted, got %v", env.admin.deleted)
			}
		})
	}
}

func TestAdminUsers_Delete(t *testing.T) {
	env := newTestEnv()

	for _, tc := range []struct{ method, target string }{
		{http.MethodDelete, "/admin/users/user_b"},
		{http.MethodPost, "/admin/users/user_c/delete"},
	} {
		rec := env.do(tc.method, tc.target, "user_admin", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s: expected status 200, got %d", tc.method, tc.target, rec.Code)
		}
	}

	if got := strings.Join(env.admin.deleted, ","); got != "user_b,user_c" {
		t.Errorf("expected user_b,user_c deleted, got %q", got)
	}
}

// gatedProvisioner provisions every caller as a member except the configured admins.
type gatedProvisioner struct{ admins map[string]bool }

func (p gatedProvisioner) GetOrCreate(_ context.Context, id string) (*user.User, error) {
	role := user.RoleMember
	if p.admins[id] {
		role = user.RoleAdmin
	}
	return &user.User{ID: id, Role: role, CreatedAt: time.Now()}, nil
}

func TestAdminUsers_AssetLikeIDBehindGate(t *testing.T) {
	env := newTestEnv()
	engine, err := policy.New(context.Background())
	if err != nil {
		t.Fatalf("policy.New: %v", err)
	}
	resolver := auth.ResolverFunc(func(r *http.Request) (*auth.Identity, error) {
		if id := r.Header.Get("X-Test-User"); id != "" {
			return &auth.Identity{UserID: id}, nil
		}
		return nil, nil
	})
	h := middleware.Gate(resolver, gatedProvisioner{admins: env.admin.admins}, engine, nil, "/")(env.mux)

	send := func(caller string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/admin/users/user_2.png", nil)
		if caller != "" {
			req.Header.Set("X-Test-User", caller)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected anonymous delete to get 401, got %d", rec.Code)
	}
	if env.admin.calls != 0 {
		t.Fatalf("expected anonymous delete to stop at the gate, handler ran %d times", env.admin.calls)
	}

	if rec := send("user_admin"); rec.Code != http.StatusOK {
		t.Fatalf("expected admin delete to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := strings.Join(env.admin.deleted, ","); got != "user_2.png" {
		t.Errorf("expected user_2.png deleted, got %q", got)
	}
}
