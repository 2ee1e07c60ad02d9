package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/hr-tenancy/internal/config"
	"github.com/tendant/hr-tenancy/internal/httputil"
	"github.com/tendant/hr-tenancy/internal/memstore"
	"github.com/tendant/hr-tenancy/internal/metrics"
	"github.com/tendant/hr-tenancy/internal/provisioning"
	"github.com/tendant/hr-tenancy/internal/tenancy"
	"github.com/tendant/hr-tenancy/internal/tenantsync"
	"github.com/tendant/hr-tenancy/pkg/auth"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

const (
	operatorEmail    = "op@hr.test"
	operatorPassword = "operator-pass-1"
	sharedKey        = "shared-secret"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type tenantPlane struct {
	handler  http.Handler
	accounts *memstore.Accounts
	modules  *memstore.Modules
}

func newTenantPlane(t *testing.T) *tenantPlane {
	t.Helper()
	accounts := memstore.NewAccounts()
	modules := memstore.NewModules()
	m := metrics.New("tenant_test")

	sessions := auth.NewSessionService(auth.SessionConfig{
		DefaultRole: domain.RoleClientAdmin,
		Policy:      auth.DefaultPasswordPolicy(),
	}, accounts, auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  []byte("tenant-access"),
		RefreshSecret: []byte("tenant-refresh"),
		Issuer:        "hr-tenant",
	}))

	handler := NewTenantRouter(TenantConfig{
		RouterConfig: RouterConfig{
			Logger:             testLogger,
			Metrics:            m,
			SessionService:     sessions,
			SecurityHeaders:    config.DefaultSecurityHeaders(),
			MaxRequestBodySize: 1 << 20,
			Cookie:             httputil.DefaultCookieConfig(false, ""),
			AllowRegistration:  true,
		},
		Gate: tenantsync.NewGate(sharedKey),
		Sync: tenantsync.NewService(accounts, modules, domain.RoleClientAdmin, testLogger),
	})
	return &tenantPlane{handler: handler, accounts: accounts, modules: modules}
}

type controlPlane struct {
	handler  http.Handler
	accounts *memstore.Accounts
	tenants  *memstore.Tenants
}

func newControlPlane(t *testing.T) *controlPlane {
	t.Helper()
	accounts := memstore.NewAccounts()
	tenants := memstore.NewTenants()
	m := metrics.New("control_test")

	operator, err := auth.NewAccount("Operator", operatorEmail, operatorPassword, domain.RoleSuperadmin)
	require.NoError(t, err)
	require.NoError(t, accounts.Create(context.Background(), operator))

	sessions := auth.NewSessionService(auth.SessionConfig{
		DefaultRole: domain.RoleSuperadmin,
		Policy:      auth.DefaultPasswordPolicy(),
	}, accounts, auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  []byte("control-access"),
		RefreshSecret: []byte("control-refresh"),
		Issuer:        "hr-control-plane",
	}))

	bridge := provisioning.NewBridge(config.ProvisioningConfig{
		Scheme:  "http",
		Timeout: 2 * time.Second,
		Retries: 0,
	}, testLogger, m)

	registry := tenancy.NewRegistry(tenancy.Config{
		DefaultAPIKey: sharedKey,
		Policy:        auth.DefaultPasswordPolicy(),
		Logger:        testLogger,
	}, tenants, bridge)

	handler := NewControlPlaneRouter(ControlPlaneConfig{
		RouterConfig: RouterConfig{
			Logger:             testLogger,
			Metrics:            m,
			SessionService:     sessions,
			SecurityHeaders:    config.DefaultSecurityHeaders(),
			MaxRequestBodySize: 1 << 20,
			Cookie:             httputil.DefaultCookieConfig(false, ""),
			AllowRegistration:  false,
		},
		Registry: registry,
	})
	return &controlPlane{handler: handler, accounts: accounts, tenants: tenants}
}

type request struct {
	method  string
	path    string
	body    any
	token   string
	apiKey  string
	cookies []*http.Cookie
}

func do(t *testing.T, h http.Handler, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader = http.NoBody
	if req.body != nil {
		b, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	r.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.apiKey != "" {
		r.Header.Set("x-api-key", req.apiKey)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == httputil.RefreshCookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", httputil.RefreshCookieName)
	return nil
}

type sessionBody struct {
	User struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		Role         string `json:"role"`
		TokenVersion int    `json:"tokenVersion"`
	} `json:"user"`
	AccessToken string `json:"accessToken"`
}

func login(t *testing.T, h http.Handler, email, password string) (*sessionBody, *http.Cookie) {
	t.Helper()
	w := do(t, h, request{method: "POST", path: "/auth/login", body: map[string]string{"email": email, "password": password}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[sessionBody](t, w)
	return &body, refreshCookie(t, w)
}

type clientBody struct {
	ClientID          string   `json:"clientID"`
	Status            string   `json:"status"`
	Modules           []string `json:"moduleName"`
	AdminEmail        string   `json:"adminEmail"`
	ProvisioningState string   `json:"provisioningState"`
	TempPassword      string   `json:"tempPassword"`
	Error             string   `json:"error"`
	RetryPath         string   `json:"retryPath"`
}

func TestOnboardingAcrossPlanes(t *testing.T) {
	tenant := newTenantPlane(t)
	tenantSrv := httptest.NewServer(tenant.handler)
	defer tenantSrv.Close()
	tenantDomain := strings.TrimPrefix(tenantSrv.URL, "http://")

	cp := newControlPlane(t)
	op, _ := login(t, cp.handler, operatorEmail, operatorPassword)

	w := do(t, cp.handler, request{method: "POST", path: "/clients/onboard", token: op.AccessToken, body: map[string]any{
		"clientName": "Acme",
		"domain":     tenantDomain,
		"employees":  25,
		"plan":       "pro",
		"moduleName": []string{"payroll", "leave"},
		"adminEmail": "admin@acme.test",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	client := decode[clientBody](t, w)
	assert.Equal(t, "active", client.Status)
	assert.Equal(t, "provisioned", client.ProvisioningState)
	require.NotEmpty(t, client.TempPassword)
	assert.NotContains(t, w.Body.String(), "adminPasswordHash")

	// The tenant admin can sign in on the tenant plane with the one-time password.
	admin, _ := login(t, tenant.handler, "admin@acme.test", client.TempPassword)
	assert.Equal(t, domain.RoleClientAdmin, admin.User.Role)

	w = do(t, tenant.handler, request{method: "GET", path: "/internal/modules"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"payroll", "leave"}, decode[[]string](t, w))

	w = do(t, cp.handler, request{method: "PATCH", path: "/clients/" + client.ClientID + "/modules", token: op.AccessToken, body: map[string]any{
		"modules": []string{"recruitment"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, tenant.handler, request{method: "GET", path: "/internal/modules"})
	assert.Equal(t, []string{"recruitment"}, decode[[]string](t, w))

	w = do(t, cp.handler, request{method: "GET", path: "/clients/stats", token: op.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.TenantStats{ActiveCompanies: 1, ActiveUsers: 25}, decode[domain.TenantStats](t, w))

	// Retrying against a tenant that already has the admin returns no password.
	w = do(t, cp.handler, request{method: "POST", path: "/clients/" + client.ClientID + "/provision", token: op.AccessToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[clientBody](t, w).TempPassword)
}

func TestOnboardUnreachableTenant(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadDomain := strings.TrimPrefix(dead.URL, "http://")
	dead.Close()

	cp := newControlPlane(t)
	op, _ := login(t, cp.handler, operatorEmail, operatorPassword)

	w := do(t, cp.handler, request{method: "POST", path: "/clients/onboard", token: op.AccessToken, body: map[string]any{
		"clientName": "Ghost",
		"domain":     deadDomain,
		"employees":  3,
		"moduleName": []string{"payroll"},
		"adminEmail": "admin@ghost.test",
	}})
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())

	client := decode[clientBody](t, w)
	assert.Equal(t, "active", client.Status)
	assert.Equal(t, "failed", client.ProvisioningState)
	assert.NotEmpty(t, client.TempPassword)
	assert.NotEmpty(t, client.Error)
	assert.Equal(t, "/clients/"+client.ClientID+"/provision", client.RetryPath)

	w = do(t, cp.handler, request{method: "GET", path: "/clients", token: op.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]clientBody](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "failed", list[0].ProvisioningState)
}

func TestOnboardWrongSharedSecret(t *testing.T) {
	tenant := newTenantPlane(t)
	tenantSrv := httptest.NewServer(tenant.handler)
	defer tenantSrv.Close()

	cp := newControlPlane(t)
	op, _ := login(t, cp.handler, operatorEmail, operatorPassword)

	w := do(t, cp.handler, request{method: "POST", path: "/clients/onboard", token: op.AccessToken, body: map[string]any{
		"clientName": "Acme",
		"domain":     strings.TrimPrefix(tenantSrv.URL, "http://"),
		"moduleName": []string{"payroll"},
		"adminEmail": "admin@acme.test",
		"apiKey":     "not-the-shared-secret",
	}})
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	assert.Contains(t, decode[clientBody](t, w).Error, domain.ErrInvalidAPIKey.Error())

	_, err := tenant.accounts.GetByEmail(context.Background(), "admin@acme.test")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	tenant := newTenantPlane(t)

	w := do(t, tenant.handler, request{method: "POST", path: "/auth/register", body: map[string]string{
		"name": "Ada", "email": "ada@acme.test", "password": "password-123",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[sessionBody](t, w)
	assert.Equal(t, 0, reg.User.TokenVersion)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w = do(t, tenant.handler, request{method: "POST", path: "/auth/register", body: map[string]string{
		"name": "Ada", "email": "ADA@acme.test", "password": "password-123",
	}})
	assert.Equal(t, http.StatusConflict, w.Code)

	sess, cookie := login(t, tenant.handler, "ada@acme.test", "password-123")

	// Two refreshes in a row both succeed while the version is unchanged.
	for range 2 {
		w = do(t, tenant.handler, request{method: "POST", path: "/auth/refresh", cookies: []*http.Cookie{cookie}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		cookie = refreshCookie(t, w)
	}

	w = do(t, tenant.handler, request{method: "GET", path: "/auth/me", token: sess.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, tenant.handler, request{method: "POST", path: "/auth/logout", token: sess.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, tenant.handler, request{method: "POST", path: "/auth/refresh", cookies: []*http.Cookie{cookie}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid credentials", decode[httputil.ErrorResponse](t, w).Error)

	account, err := tenant.accounts.GetByEmail(context.Background(), "ada@acme.test")
	require.NoError(t, err)
	assert.Equal(t, 1, account.TokenVersion)

	// The already issued access token stays valid until it expires.
	w = do(t, tenant.handler, request{method: "GET", path: "/auth/me", token: sess.AccessToken})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, tenant.handler, request{method: "POST", path: "/auth/login", body: map[string]string{"email": "ada@acme.test", "password": "wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, tenant.handler, request{method: "POST", path: "/auth/login", body: map[string]string{"email": "nobody@acme.test", "password": "wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestControlPlaneAccessRules(t *testing.T) {
	cp := newControlPlane(t)

	w := do(t, cp.handler, request{method: "POST", path: "/auth/register", body: map[string]string{
		"name": "Eve", "email": "eve@hr.test", "password": "password-123",
	}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, cp.handler, request{method: "GET", path: "/clients"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, cp.handler, request{method: "POST", path: "/clients/onboard", body: map[string]any{"clientName": "x", "role": "superadmin"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	op, _ := login(t, cp.handler, operatorEmail, operatorPassword)
	w = do(t, cp.handler, request{method: "POST", path: "/clients/onboard", token: op.AccessToken, body: map[string]any{"clientName": "x", "unknown": true}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, cp.handler, request{method: "DELETE", path: "/clients/not-a-uuid?mode=delete", token: op.AccessToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, cp.handler, request{method: "GET", path: "/health"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = do(t, cp.handler, request{method: "GET", path: "/metrics"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLifecycleEndpoints(t *testing.T) {
	tenant := newTenantPlane(t)
	tenantSrv := httptest.NewServer(tenant.handler)
	defer tenantSrv.Close()

	cp := newControlPlane(t)
	op, _ := login(t, cp.handler, operatorEmail, operatorPassword)

	w := do(t, cp.handler, request{method: "POST", path: "/clients/onboard", token: op.AccessToken, body: map[string]any{
		"clientName": "Acme",
		"domain":     strings.TrimPrefix(tenantSrv.URL, "http://"),
		"moduleName": []string{"payroll"},
		"adminEmail": "admin@acme.test",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	client := decode[clientBody](t, w)
	path := "/clients/" + client.ClientID

	w = do(t, cp.handler, request{method: "PATCH", path: path + "/status", token: op.AccessToken, body: map[string]string{"status": "paused"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, cp.handler, request{method: "PATCH", path: path + "/status", token: op.AccessToken, body: map[string]string{"status": "suspended"}})
	assert.Equal(t, http.StatusOK, w.Code)

	for _, mode := range []string{"suspend", "suspend", "offload"} {
		w = do(t, cp.handler, request{method: "DELETE", path: path + "?mode=" + mode, token: op.AccessToken})
		assert.Equal(t, http.StatusOK, w.Code, mode)
	}

	w = do(t, cp.handler, request{method: "DELETE", path: path + "?mode=archive", token: op.AccessToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, cp.handler, request{method: "DELETE", path: path + "?mode=delete", token: op.AccessToken})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, cp.handler, request{method: "DELETE", path: path + "?mode=delete", token: op.AccessToken})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestChangeAdminPassword(t *testing.T) {
	tenant := newTenantPlane(t)
	tenantSrv := httptest.NewServer(tenant.handler)
	defer tenantSrv.Close()

	cp := newControlPlane(t)
	op, _ := login(t, cp.handler, operatorEmail, operatorPassword)

	w := do(t, cp.handler, request{method: "POST", path: "/clients/onboard", token: op.AccessToken, body: map[string]any{
		"clientName": "Acme",
		"domain":     strings.TrimPrefix(tenantSrv.URL, "http://"),
		"moduleName": []string{"payroll"},
		"adminEmail": "admin@acme.test",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	client := decode[clientBody](t, w)

	w = do(t, cp.handler, request{method: "POST", path: "/auth/change-password", body: map[string]string{
		"adminEmail": "admin@acme.test", "oldPassword": "wrong", "newPassword": "new-password-1",
	}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, cp.handler, request{method: "POST", path: "/auth/change-password", body: map[string]string{
		"adminEmail": "admin@acme.test", "oldPassword": client.TempPassword, "newPassword": "new-password-1",
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := cp.tenants.GetByAdminEmail(context.Background(), "admin@acme.test")
	require.NoError(t, err)
	assert.False(t, stored.ForcePasswordChange)
}

func TestInternalEndpointsRequireKey(t *testing.T) {
	tenant := newTenantPlane(t)

	w := do(t, tenant.handler, request{method: "POST", path: "/internal/update-modules", body: map[string]any{"modules": []string{"x"}}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, tenant.handler, request{method: "POST", path: "/internal/update-modules", apiKey: "wrong", body: map[string]any{"modules": []string{"x"}}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, tenant.handler, request{method: "GET", path: "/internal/modules"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())

	w = do(t, tenant.handler, request{method: "POST", path: "/internal/update-modules", apiKey: sharedKey, body: map[string]any{"modules": []string{"x", "x"}}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"enabledModules":["x"]}`, w.Body.String())

	w = do(t, tenant.handler, request{method: "POST", path: "/internal/onboard-admin", apiKey: sharedKey, body: map[string]any{
		"adminEmail": "admin@acme.test", "tempPassword": "temp-1234",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, tenant.handler, request{method: "POST", path: "/internal/onboard-admin", apiKey: sharedKey, body: map[string]any{
		"adminEmail": "admin@acme.test", "tempPassword": "temp-5678",
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"created":false`)
}

func TestSecurityHeadersOnBothPlanes(t *testing.T) {
	cp := newControlPlane(t)
	tenant := newTenantPlane(t)

	tests := []struct {
		name    string
		handler http.Handler
		req     request
		status  int
	}{
		{"control plane login failure", cp.handler, request{method: "POST", path: "/auth/login", body: map[string]string{"email": operatorEmail, "password": "wrong-pass"}}, http.StatusUnauthorized},
		{"control plane health", cp.handler, request{method: "GET", path: "/health"}, http.StatusOK},
		{"tenant internal rejection", tenant.handler, request{method: "POST", path: "/internal/update-modules", body: map[string]any{"modules": []string{}}}, http.StatusUnauthorized},
		{"tenant modules", tenant.handler, request{method: "GET", path: "/internal/modules"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, tt.handler, tt.req)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", w.Header().Get("Content-Security-Policy"))
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		})
	}
}

func TestOversizedBodyIsRejected(t *testing.T) {
	tenant := newTenantPlane(t)

	w := do(t, tenant.handler, request{method: "POST", path: "/internal/update-modules", apiKey: sharedKey, body: map[string]any{
		"modules": []string{strings.Repeat("m", 1<<20)},
	}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"error":"request body too large"}`, w.Body.String())
}
