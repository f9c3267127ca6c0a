package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/syra-platform/authcore/pkg/audit"
	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/tenants"
)

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, &auth.User{ID: "u1", Email: "a@example.com", Role: auth.RoleAdmin, TenantID: "tenant-a"}, "hunter22")

	rec0 := ts.do(t, "POST", "/auth/login", map[string]string{"email": "a@example.com", "password": "hunter22"})
	if rec0.Code != http.StatusOK {
		t.Fatalf("login: %d body %s", rec0.Code, rec0.Body.String())
	}
	if strings.Contains(rec0.Body.String(), "passwordHash") {
		t.Fatal("login response leaks the password hash")
	}

	cookie := ts.login(t, "a@example.com", "hunter22")
	if !cookie.HttpOnly {
		t.Fatal("auth cookie must be HttpOnly")
	}

	rec := ts.do(t, "GET", "/auth/me", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status %d body %s", rec.Code, rec.Body.String())
	}
	var me auth.Context
	decodeJSON(t, rec, &me)
	if me.UserID != "u1" || me.TenantID != "tenant-a" || me.UserRole != auth.RoleAdmin {
		t.Fatalf("unexpected context %+v", me)
	}
}

func TestMeIgnoresHeaderToken(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, &auth.User{ID: "u1", Email: "a@example.com", Role: auth.RoleAdmin, TenantID: "tenant-a"}, "hunter22")
	cookie := ts.login(t, "a@example.com", "hunter22")

	// A valid token in the Authorization header is not a credential; only
	// the cookie is.
	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("header token must not authenticate: %d body %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["error"] != string(auth.ReasonNoToken) {
		t.Fatalf("unexpected reason %v", body)
	}
}

func TestLoginEvictsPriorSession(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, &auth.User{ID: "u1", Email: "a@example.com", Role: auth.RoleStaff, TenantID: "tenant-a", EmployeeID: "e-1"}, "hunter22")

	deviceA := ts.login(t, "a@example.com", "hunter22")
	deviceB := ts.login(t, "a@example.com", "hunter22")

	if rec := ts.do(t, "GET", "/auth/me", nil, deviceB); rec.Code != http.StatusOK {
		t.Fatalf("device B should stay live: %d", rec.Code)
	}
	rec := ts.do(t, "GET", "/auth/me", nil, deviceA)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("device A should be evicted: %d", rec.Code)
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["error"] != string(auth.ReasonSessionInvalid) {
		t.Fatalf("unexpected reason %v", body)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, &auth.User{ID: "u1", Email: "a@example.com", Role: auth.RoleStaff}, "hunter22")

	wrongPassword := ts.do(t, "POST", "/auth/login", map[string]string{"email": "a@example.com", "password": "nope"})
	unknownEmail := ts.do(t, "POST", "/auth/login", map[string]string{"email": "ghost@example.com", "password": "nope"})

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("statuses %d/%d, want 401/401", wrongPassword.Code, unknownEmail.Code)
	}
	// Identical bodies so account existence cannot be probed.
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Fatalf("bodies differ: %q vs %q", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestLoginValidation(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, "POST", "/auth/login", map[string]string{"email": "a@example.com"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoginBlockedTenant(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTenant(t, &tenants.Tenant{TenantID: "tenant-a", Name: "A"})
	ts.seedUser(t, &auth.User{ID: "u1", Email: "a@example.com", Role: auth.RoleAdmin, TenantID: "tenant-a"}, "hunter22")
	if err := ts.tenants.Block(context.Background(), "tenant-a", "billing"); err != nil {
		t.Fatalf("block: %v", err)
	}

	rec := ts.do(t, "POST", "/auth/login", map[string]string{"email": "a@example.com", "password": "hunter22"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["error"] != string(auth.ReasonTenantBlocked) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, &auth.User{ID: "u1", Email: "a@example.com", Role: auth.RoleAdmin, TenantID: "tenant-a"}, "hunter22")
	cookie := ts.login(t, "a@example.com", "hunter22")

	rec := ts.do(t, "POST", "/auth/logout", nil, cookie)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookie.Name && c.Value == "" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("cookie not cleared")
	}

	if rec := ts.do(t, "GET", "/auth/me", nil, cookie); rec.Code != http.StatusUnauthorized {
		t.Fatalf("stale cookie should be rejected: %d", rec.Code)
	}

	// Logout with no cookie is still a success.
	if rec := ts.do(t, "POST", "/auth/logout", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("anonymous logout: %d", rec.Code)
	}
}

func TestSwitchTenant(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTenant(t, &tenants.Tenant{TenantID: "tenant-a", Name: "A"})
	ts.seedTenant(t, &tenants.Tenant{TenantID: "tenant-b", Name: "B"})
	ts.seedUser(t, &auth.User{ID: "owner1", Email: "owner@example.com", Role: auth.RoleOwner}, "hunter22")
	ts.seedUser(t, &auth.User{ID: "u1", Email: "staff@example.com", Role: auth.RoleStaff, TenantID: "tenant-b", EmployeeID: "e-1"}, "hunter22")

	ownerCookie := ts.login(t, "owner@example.com", "hunter22")

	rec := ts.do(t, "POST", "/auth/switch-tenant", map[string]string{"tenantId": "tenant-b"}, ownerCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("switch: %d body %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, "GET", "/auth/me", nil, ownerCookie)
	var me auth.Context
	decodeJSON(t, rec, &me)
	if me.TenantID != "tenant-b" {
		t.Fatalf("tenant after switch = %q", me.TenantID)
	}

	t.Run("unknown tenant", func(t *testing.T) {
		rec := ts.do(t, "POST", "/auth/switch-tenant", map[string]string{"tenantId": "nope"}, ownerCookie)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("blocked tenant", func(t *testing.T) {
		if err := ts.tenants.Block(context.Background(), "tenant-a", "billing"); err != nil {
			t.Fatalf("block: %v", err)
		}
		rec := ts.do(t, "POST", "/auth/switch-tenant", map[string]string{"tenantId": "tenant-a"}, ownerCookie)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("non-owner denied and audited", func(t *testing.T) {
		staffCookie := ts.login(t, "staff@example.com", "hunter22")
		rec := ts.do(t, "POST", "/auth/switch-tenant", map[string]string{"tenantId": "tenant-b"}, staffCookie)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d", rec.Code)
		}
		events, err := ts.srv.opts.Trail.Search(context.Background(),
			audit.Query{TenantID: "tenant-b", EventType: audit.EventAccessDenied})
		if err != nil || len(events) == 0 {
			t.Fatalf("denial not audited: %v %d", err, len(events))
		}
		if events[0].ActorID != "u1" || events[0].Reason != string(auth.ReasonRoleDenied) {
			t.Fatalf("unexpected denial event %+v", events[0])
		}
	})
}
