package api

import (
	"net/http"
	"testing"

	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/tenants"
)

func TestOwnerConsoleRequiresOwnerRole(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTenant(t, &tenants.Tenant{TenantID: "tenant-a", Name: "A"})
	ts.seedUser(t, &auth.User{ID: "adm", Email: "admin@example.com", Role: auth.RoleAdmin, TenantID: "tenant-a"}, "hunter22")

	adminCookie := ts.login(t, "admin@example.com", "hunter22")
	if rec := ts.do(t, "GET", "/owner/tenants", nil, adminCookie); rec.Code != http.StatusForbidden {
		t.Fatalf("tenant admin on owner console: %d", rec.Code)
	}
	if rec := ts.do(t, "GET", "/owner/tenants", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous on owner console: %d", rec.Code)
	}
}

func TestOwnerTenantLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, &auth.User{ID: "owner1", Email: "owner@example.com", Role: auth.RoleOwner}, "hunter22")
	owner := ts.login(t, "owner@example.com", "hunter22")

	rec := ts.do(t, "POST", "/owner/tenants", map[string]interface{}{
		"tenantId":     "tenant-a",
		"name":         "Hospital A",
		"entitlements": []string{"sam", "health"},
	}, owner)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d body %s", rec.Code, rec.Body.String())
	}

	t.Run("invalid entitlement rejected", func(t *testing.T) {
		rec := ts.do(t, "POST", "/owner/tenants", map[string]interface{}{
			"tenantId":     "tenant-x",
			"name":         "X",
			"entitlements": []string{"warp-drive"},
		}, owner)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	rec = ts.do(t, "GET", "/owner/tenants/tenant-a", nil, owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	var tenant tenants.Tenant
	decodeJSON(t, rec, &tenant)
	if tenant.Status != tenants.StatusActive || !tenant.HasEntitlement(tenants.PlatformHealth) {
		t.Fatalf("unexpected tenant %+v", tenant)
	}

	if rec := ts.do(t, "GET", "/owner/tenants/nope", nil, owner); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown tenant: %d", rec.Code)
	}
}

func TestOwnerBlockUnblock(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTenant(t, &tenants.Tenant{TenantID: "tenant-a", Name: "A"})
	ts.seedUser(t, &auth.User{ID: "owner1", Email: "owner@example.com", Role: auth.RoleOwner}, "hunter22")
	ts.seedUser(t, &auth.User{ID: "u1", Email: "staff@example.com", Role: auth.RoleStaff, TenantID: "tenant-a", EmployeeID: "e-1"}, "hunter22")
	owner := ts.login(t, "owner@example.com", "hunter22")
	staff := ts.login(t, "staff@example.com", "hunter22")

	if rec := ts.do(t, "POST", "/owner/tenants/tenant-a/block", map[string]string{}, owner); rec.Code != http.StatusBadRequest {
		t.Fatalf("block without reason: %d", rec.Code)
	}

	rec := ts.do(t, "POST", "/owner/tenants/tenant-a/block", map[string]string{"reason": "billing"}, owner)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("block: %d body %s", rec.Code, rec.Body.String())
	}

	// Takes effect on the tenant's very next request; the live session is
	// not torn down, just refused.
	rec = ts.do(t, "GET", "/auth/me", nil, staff)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("blocked tenant session: %d", rec.Code)
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["error"] != string(auth.ReasonTenantBlocked) {
		t.Fatalf("error = %q", body["error"])
	}

	if rec := ts.do(t, "POST", "/owner/tenants/tenant-a/unblock", map[string]string{}, owner); rec.Code != http.StatusNoContent {
		t.Fatalf("unblock: %d", rec.Code)
	}
	if rec := ts.do(t, "GET", "/auth/me", nil, staff); rec.Code != http.StatusOK {
		t.Fatalf("after unblock: %d body %s", rec.Code, rec.Body.String())
	}

	if rec := ts.do(t, "POST", "/owner/tenants/nope/block", map[string]string{"reason": "x"}, owner); rec.Code != http.StatusNotFound {
		t.Fatalf("block unknown tenant: %d", rec.Code)
	}
}

func TestOwnerOverviewCounts(t *testing.T) {
	ts := newTestServer(t)
	ts.seedTenant(t, &tenants.Tenant{TenantID: "tenant-a", Name: "A"})
	ts.seedUser(t, &auth.User{ID: "owner1", Email: "owner@example.com", Role: auth.RoleOwner}, "hunter22")
	ts.seedUser(t, &auth.User{ID: "u1", Email: "staff@example.com", Role: auth.RoleStaff, TenantID: "tenant-a", EmployeeID: "e-1"}, "hunter22")
	owner := ts.login(t, "owner@example.com", "hunter22")
	ts.login(t, "staff@example.com", "hunter22")

	rec := ts.do(t, "GET", "/owner/tenants", nil, owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("overview: %d", rec.Code)
	}
	var rows []*tenants.Overview
	decodeJSON(t, rec, &rows)
	if len(rows) != 1 || rows[0].TenantID != "tenant-a" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].ActiveSessions != 1 {
		t.Fatalf("active sessions = %d", rows[0].ActiveSessions)
	}
}
