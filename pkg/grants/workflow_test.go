package grants

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syra-platform/authcore/pkg/audit"
	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/store"
	"github.com/syra-platform/authcore/pkg/tenants"
)

func newTestWorkflow(t *testing.T) (*Workflow, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	log := observability.NewLogger(observability.ErrorLevel, io.Discard)
	sink := audit.NewSink(audit.NewStoreLogger(mem), log, nil)
	return NewWorkflow(mem, sink, log, nil), mem
}

func auditEvents(t *testing.T, mem *store.Memory, eventType audit.EventType) []*audit.Event {
	t.Helper()
	var events []*audit.Event
	err := mem.Platform().Collection(store.CollectionGrantLogs).
		Find(context.Background(), store.M{"eventType": string(eventType)}, nil, &events)
	require.NoError(t, err)
	return events
}

func TestRequestDefaults(t *testing.T) {
	w, mem := newTestWorkflow(t)
	ctx := context.Background()

	g, err := w.Request(ctx, "owner1", "owner@example.com", "acme", "quarterly review", 0)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, g.Status)
	assert.Equal(t, DefaultDurationHours, g.DurationHours)
	assert.Empty(t, g.AccessToken)
	assert.True(t, g.ExpiresAt.IsZero())
	for _, p := range tenants.KnownPlatforms {
		assert.True(t, g.AllowsPlatform(p), string(p))
	}
	assert.True(t, g.AllowsAction(ActionView))
	assert.True(t, g.AllowsAction(ActionExport))
	assert.False(t, g.AllowsAction(Action("delete")))

	assert.Len(t, auditEvents(t, mem, audit.EventRequestCreated), 1)
}

func TestRequestValidation(t *testing.T) {
	w, _ := newTestWorkflow(t)
	_, err := w.Request(context.Background(), "", "", "acme", "", 0)
	assert.Error(t, err)
	_, err = w.Request(context.Background(), "owner1", "", "", "", 0)
	assert.Error(t, err)
}

func TestApproveMintsTokenAndExpiry(t *testing.T) {
	w, mem := newTestWorkflow(t)
	ctx := context.Background()

	g, err := w.Request(ctx, "owner1", "", "acme", "", 2)
	require.NoError(t, err)

	approved, err := w.Approve(ctx, g.ID, "admin1", "ok for two hours", nil)
	require.NoError(t, err)
	require.NotNil(t, approved)

	assert.Equal(t, StatusApproved, approved.Status)
	assert.Contains(t, approved.AccessToken, AccessTokenPrefix)
	assert.Equal(t, "admin1", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)
	assert.WithinDuration(t, approved.ApprovedAt.Add(2*time.Hour), approved.ExpiresAt, time.Second)
	assert.True(t, approved.IsValid(time.Now().UTC()))

	assert.Len(t, auditEvents(t, mem, audit.EventRequestApproved), 1)
}

func TestApproveCustomExpiry(t *testing.T) {
	w, _ := newTestWorkflow(t)
	ctx := context.Background()
	g, err := w.Request(ctx, "owner1", "", "acme", "", 24)
	require.NoError(t, err)

	custom := time.Now().UTC().Add(30 * time.Minute)
	approved, err := w.Approve(ctx, g.ID, "admin1", "", &custom)
	require.NoError(t, err)
	require.NotNil(t, approved)
	assert.WithinDuration(t, custom, approved.ExpiresAt, time.Second)
}

func TestIllegalTransitionsAreSilentNoOps(t *testing.T) {
	w, _ := newTestWorkflow(t)
	ctx := context.Background()
	g, err := w.Request(ctx, "owner1", "", "acme", "", 1)
	require.NoError(t, err)

	approved, err := w.Approve(ctx, g.ID, "admin1", "", nil)
	require.NoError(t, err)
	require.NotNil(t, approved)

	// Approving again must not mutate.
	again, err := w.Approve(ctx, g.ID, "admin2", "", nil)
	require.NoError(t, err)
	assert.Nil(t, again)

	reloaded, err := w.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin1", reloaded.ApprovedBy)
	assert.Equal(t, approved.AccessToken, reloaded.AccessToken)
	assert.Equal(t, approved.UpdatedAt, reloaded.UpdatedAt)

	// Rejecting an approved grant is a no-op.
	ok, err := w.Reject(ctx, g.ID, "admin2", "late")
	require.NoError(t, err)
	assert.False(t, ok)
	reloaded, err = w.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, reloaded.Status)

	// Unknown ids behave the same way.
	missing, err := w.Approve(ctx, "ghost", "admin1", "", nil)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReject(t *testing.T) {
	w, mem := newTestWorkflow(t)
	ctx := context.Background()
	g, err := w.Request(ctx, "owner1", "", "acme", "audit season", 1)
	require.NoError(t, err)

	ok, err := w.Reject(ctx, g.ID, "admin1", "not during audit season")
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, err := w.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, reloaded.Status)
	assert.Equal(t, "admin1", reloaded.RejectedBy)
	assert.Equal(t, "not during audit season", reloaded.RejectionNote)
	assert.Equal(t, "audit season", reloaded.Reason)

	assert.Len(t, auditEvents(t, mem, audit.EventRequestRejected), 1)
}

func TestRevokeClearsAccessToken(t *testing.T) {
	w, mem := newTestWorkflow(t)
	ctx := context.Background()
	g, err := w.Request(ctx, "owner1", "", "acme", "", 1)
	require.NoError(t, err)
	_, err = w.Approve(ctx, g.ID, "admin1", "", nil)
	require.NoError(t, err)

	ok, err := w.Revoke(ctx, g.ID, "admin1", "incident response")
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, err := w.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, reloaded.Status)
	assert.Empty(t, reloaded.AccessToken)
	assert.False(t, reloaded.IsValid(time.Now().UTC()))

	// Revoking again is a no-op.
	ok, err = w.Revoke(ctx, g.ID, "admin1", "")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Len(t, auditEvents(t, mem, audit.EventAccessRevoked), 1)
}

func TestRevokeFromPending(t *testing.T) {
	w, _ := newTestWorkflow(t)
	ctx := context.Background()
	g, err := w.Request(ctx, "owner1", "", "acme", "", 1)
	require.NoError(t, err)

	ok, err := w.Revoke(ctx, g.ID, "owner1", "changed my mind")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidityIsTimeBounded(t *testing.T) {
	w, _ := newTestWorkflow(t)
	ctx := context.Background()
	g, err := w.Request(ctx, "owner1", "", "acme", "", 1)
	require.NoError(t, err)
	approved, err := w.Approve(ctx, g.ID, "admin1", "", nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	assert.True(t, approved.IsValid(now))
	// No write happens; validity flips purely with the clock.
	assert.False(t, approved.IsValid(now.Add(61*time.Minute)))

	reloaded, err := w.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, reloaded.Status)
}

func TestGetActiveGrantLatestExpiryWins(t *testing.T) {
	w, _ := newTestWorkflow(t)
	ctx := context.Background()

	short, err := w.Request(ctx, "owner1", "", "acme", "", 1)
	require.NoError(t, err)
	_, err = w.Approve(ctx, short.ID, "admin1", "", nil)
	require.NoError(t, err)

	long, err := w.Request(ctx, "owner1", "", "acme", "", 48)
	require.NoError(t, err)
	_, err = w.Approve(ctx, long.ID, "admin1", "", nil)
	require.NoError(t, err)

	active, err := w.GetActiveGrant(ctx, "owner1", "acme")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, long.ID, active.ID)

	// Other owner or tenant: nothing.
	none, err := w.GetActiveGrant(ctx, "owner2", "acme")
	require.NoError(t, err)
	assert.Nil(t, none)
	none, err = w.GetActiveGrant(ctx, "owner1", "umbra")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGetActiveGrantSkipsLapsed(t *testing.T) {
	w, _ := newTestWorkflow(t)
	ctx := context.Background()
	g, err := w.Request(ctx, "owner1", "", "acme", "", 1)
	require.NoError(t, err)
	_, err = w.Approve(ctx, g.ID, "admin1", "", nil)
	require.NoError(t, err)

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	active, err := w.GetActiveGrant(ctx, "owner1", "acme")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestRecordUsage(t *testing.T) {
	w, mem := newTestWorkflow(t)
	ctx := context.Background()
	g, err := w.Request(ctx, "owner1", "", "acme", "", 1)
	require.NoError(t, err)
	approved, err := w.Approve(ctx, g.ID, "admin1", "", nil)
	require.NoError(t, err)

	used, err := w.RecordUsage(ctx, approved.AccessToken, "10.0.0.1", "curl")
	require.NoError(t, err)
	require.NotNil(t, used)
	assert.Equal(t, int64(1), used.UsageCount)
	require.NotNil(t, used.LastUsedAt)

	used, err = w.RecordUsage(ctx, approved.AccessToken, "10.0.0.1", "curl")
	require.NoError(t, err)
	assert.Equal(t, int64(2), used.UsageCount)

	reloaded, err := w.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reloaded.UsageCount)

	// First use activates, every use is logged.
	assert.Len(t, auditEvents(t, mem, audit.EventAccessActivated), 1)
	assert.Len(t, auditEvents(t, mem, audit.EventAccessUsed), 2)

	none, err := w.RecordUsage(ctx, "aat_unknown", "", "")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRecordUsageConcurrentFirstUse(t *testing.T) {
	w, mem := newTestWorkflow(t)
	ctx := context.Background()
	g, err := w.Request(ctx, "owner1", "", "acme", "", 1)
	require.NoError(t, err)
	approved, err := w.Approve(ctx, g.ID, "admin1", "", nil)
	require.NoError(t, err)

	const uses = 16
	var wg sync.WaitGroup
	errs := make([]error, uses)
	for i := 0; i < uses; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = w.RecordUsage(ctx, approved.AccessToken, "10.0.0.1", "curl")
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "use %d", i)
	}

	reloaded, err := w.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(uses), reloaded.UsageCount)

	// Racing first uses must not double-activate.
	assert.Len(t, auditEvents(t, mem, audit.EventAccessActivated), 1)
	assert.Len(t, auditEvents(t, mem, audit.EventAccessUsed), uses)
}

func TestListPendingAndForOwner(t *testing.T) {
	w, _ := newTestWorkflow(t)
	ctx := context.Background()

	a, err := w.Request(ctx, "owner1", "", "acme", "first", 1)
	require.NoError(t, err)
	b, err := w.Request(ctx, "owner1", "", "acme", "second", 1)
	require.NoError(t, err)
	_, err = w.Request(ctx, "owner1", "", "umbra", "", 1)
	require.NoError(t, err)
	_, err = w.Approve(ctx, b.ID, "admin1", "", nil)
	require.NoError(t, err)

	pending, err := w.ListPendingForTenant(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	mine, err := w.ListForOwner(ctx, "owner1")
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestMarkExpired(t *testing.T) {
	w, mem := newTestWorkflow(t)
	ctx := context.Background()

	lapsed, err := w.Request(ctx, "owner1", "", "acme", "", 1)
	require.NoError(t, err)
	_, err = w.Approve(ctx, lapsed.ID, "admin1", "", nil)
	require.NoError(t, err)

	fresh, err := w.Request(ctx, "owner1", "", "umbra", "", 48)
	require.NoError(t, err)
	_, err = w.Approve(ctx, fresh.ID, "admin1", "", nil)
	require.NoError(t, err)

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	marked, err := w.MarkExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	reloaded, err := w.Get(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, reloaded.Status)
	assert.Empty(t, reloaded.AccessToken)

	reloaded, err = w.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, reloaded.Status)

	assert.Len(t, auditEvents(t, mem, audit.EventAccessExpired), 1)

	// Idempotent: nothing left to stamp.
	marked, err = w.MarkExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, marked)
}
