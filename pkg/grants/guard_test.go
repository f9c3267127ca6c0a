package grants

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syra-platform/authcore/pkg/audit"
	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/store"
	"github.com/syra-platform/authcore/pkg/tenants"
)

func newTestGuard(t *testing.T) (*Guard, *Workflow, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	log := observability.NewLogger(observability.ErrorLevel, io.Discard)
	sink := audit.NewSink(audit.NewStoreLogger(mem), log, nil)
	w := NewWorkflow(mem, sink, log, nil)
	return NewGuard(w, sink, nil), w, mem
}

func approvedGrant(t *testing.T, w *Workflow, ownerID, tenantID string) *Grant {
	t.Helper()
	ctx := context.Background()
	g, err := w.Request(ctx, ownerID, "", tenantID, "", 1)
	require.NoError(t, err)
	approved, err := w.Approve(ctx, g.ID, "admin1", "", nil)
	require.NoError(t, err)
	require.NotNil(t, approved)
	return approved
}

func ownerContext(userID string) *auth.Context {
	return &auth.Context{UserID: userID, UserRole: auth.RoleOwner}
}

func deniedEvents(t *testing.T, mem *store.Memory) []*audit.Event {
	t.Helper()
	var events []*audit.Event
	err := mem.Platform().Collection(store.CollectionAuditLogs).
		Find(context.Background(), store.M{"eventType": string(audit.EventAccessDenied)}, nil, &events)
	require.NoError(t, err)
	return events
}

func TestRequireNonOwnerPassThrough(t *testing.T) {
	guard, _, _ := newTestGuard(t)
	req := httptest.NewRequest("GET", "/tenant/data", nil)
	ac := &auth.Context{UserID: "u1", UserRole: auth.RoleAdmin, TenantID: "acme"}

	access, authErr := guard.Require(context.Background(), req, ac, tenants.PlatformHealth)
	require.Nil(t, authErr)
	assert.Equal(t, "acme", access.TenantID)
	assert.Nil(t, access.Grant)
}

func TestRequireOwnerWithoutTokenDenied(t *testing.T) {
	guard, _, mem := newTestGuard(t)
	req := httptest.NewRequest("GET", "/tenant/data", nil)

	access, authErr := guard.Require(context.Background(), req, ownerContext("owner1"), "")
	assert.Nil(t, access)
	require.NotNil(t, authErr)
	assert.Equal(t, 403, authErr.Status)
	assert.Equal(t, auth.ReasonGrantMissing, authErr.Reason)
	assert.Contains(t, authErr.Message, "Request access")

	events := deniedEvents(t, mem)
	require.Len(t, events, 1)
	assert.Equal(t, "owner1", events[0].ActorID)
	assert.Equal(t, string(auth.ReasonGrantMissing), events[0].Reason)
}

func TestRequireOwnerHappyPath(t *testing.T) {
	guard, w, _ := newTestGuard(t)
	grant := approvedGrant(t, w, "owner1", "acme")

	req := httptest.NewRequest("GET", "/tenant/data", nil)
	req.Header.Set(AccessHeaderName, grant.AccessToken)

	access, authErr := guard.Require(context.Background(), req, ownerContext("owner1"), tenants.PlatformSAM)
	require.Nil(t, authErr)
	assert.Equal(t, "acme", access.TenantID)
	assert.True(t, access.AllowedPlatforms[tenants.PlatformSAM])

	reloaded, err := w.Get(context.Background(), grant.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.UsageCount)
}

func TestRequireOwnerCookieToken(t *testing.T) {
	guard, w, _ := newTestGuard(t)
	grant := approvedGrant(t, w, "owner1", "acme")

	req := httptest.NewRequest("GET", "/tenant/data", nil)
	req.Header.Set("Cookie", AccessCookieName+"="+grant.AccessToken)

	access, authErr := guard.Require(context.Background(), req, ownerContext("owner1"), "")
	require.Nil(t, authErr)
	assert.Equal(t, "acme", access.TenantID)
}

func TestRequireOwnerMismatchDenied(t *testing.T) {
	guard, w, mem := newTestGuard(t)
	grant := approvedGrant(t, w, "owner1", "acme")

	req := httptest.NewRequest("GET", "/tenant/data", nil)
	req.Header.Set(AccessHeaderName, grant.AccessToken)

	access, authErr := guard.Require(context.Background(), req, ownerContext("owner2"), "")
	assert.Nil(t, access)
	require.NotNil(t, authErr)
	assert.Equal(t, auth.ReasonGrantOwnerMismatch, authErr.Reason)

	// The shared token must not count as usage.
	reloaded, err := w.Get(context.Background(), grant.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), reloaded.UsageCount)
	assert.Len(t, deniedEvents(t, mem), 1)
}

func TestRequireExpiredGrantDenied(t *testing.T) {
	guard, w, _ := newTestGuard(t)
	grant := approvedGrant(t, w, "owner1", "acme")

	guard.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	req := httptest.NewRequest("GET", "/tenant/data", nil)
	req.Header.Set(AccessHeaderName, grant.AccessToken)

	access, authErr := guard.Require(context.Background(), req, ownerContext("owner1"), "")
	assert.Nil(t, access)
	require.NotNil(t, authErr)
	assert.Equal(t, auth.ReasonGrantInvalid, authErr.Reason)
	assert.Contains(t, authErr.Message, "expired")
}

func TestRequireRevokedGrantDenied(t *testing.T) {
	guard, w, _ := newTestGuard(t)
	grant := approvedGrant(t, w, "owner1", "acme")

	ok, err := w.Revoke(context.Background(), grant.ID, "admin1", "")
	require.NoError(t, err)
	require.True(t, ok)

	// Revocation cleared the token, so lookup now misses entirely.
	req := httptest.NewRequest("GET", "/tenant/data", nil)
	req.Header.Set(AccessHeaderName, grant.AccessToken)

	access, authErr := guard.Require(context.Background(), req, ownerContext("owner1"), "")
	assert.Nil(t, access)
	require.NotNil(t, authErr)
	assert.Equal(t, auth.ReasonGrantInvalid, authErr.Reason)
}

func TestRequirePlatformDenied(t *testing.T) {
	guard, w, mem := newTestGuard(t)
	grant := approvedGrant(t, w, "owner1", "acme")

	// Narrow the grant to health only.
	_, err := mem.Platform().Collection(store.CollectionGrants).UpdateOne(context.Background(),
		store.M{"id": grant.ID},
		store.M{"$set": store.M{"allowedPlatforms": map[string]bool{string(tenants.PlatformHealth): true}}})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/tenant/data", nil)
	req.Header.Set(AccessHeaderName, grant.AccessToken)

	access, authErr := guard.Require(context.Background(), req, ownerContext("owner1"), tenants.PlatformCVision)
	assert.Nil(t, access)
	require.NotNil(t, authErr)
	assert.Equal(t, auth.ReasonGrantPlatformDenied, authErr.Reason)

	access, authErr = guard.Require(context.Background(), req, ownerContext("owner1"), tenants.PlatformHealth)
	require.Nil(t, authErr)
	assert.Equal(t, "acme", access.TenantID)
}

func TestRequireStoreOutageFailsClosed(t *testing.T) {
	guard, w, mem := newTestGuard(t)
	grant := approvedGrant(t, w, "owner1", "acme")

	mem.SetError(assertError{})
	req := httptest.NewRequest("GET", "/tenant/data", nil)
	req.Header.Set(AccessHeaderName, grant.AccessToken)

	access, authErr := guard.Require(context.Background(), req, ownerContext("owner1"), "")
	assert.Nil(t, access)
	require.NotNil(t, authErr)
	assert.Equal(t, 403, authErr.Status)
}

type assertError struct{}

func (assertError) Error() string { return "store down" }
