package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/syra-platform/authcore/pkg/auth"
	"github.com/syra-platform/authcore/pkg/store"
)

func seed(t *testing.T, db store.Database, users ...*auth.User) {
	t.Helper()
	for _, u := range users {
		if err := db.Collection(store.CollectionUsers).InsertOne(context.Background(), u); err != nil {
			t.Fatalf("seed %s: %v", u.ID, err)
		}
	}
}

func TestFindByIDPartitionPriority(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	tdb, err := mem.Tenant("acme")
	if err != nil {
		t.Fatalf("tenant: %v", err)
	}

	// Same id in all three partitions with distinguishing departments.
	seed(t, mem.Platform(), &auth.User{ID: "u1", IsActive: true, Department: "platform"})
	seed(t, tdb, &auth.User{ID: "u1", IsActive: true, Department: "tenant"})
	seed(t, mem.Legacy(), &auth.User{ID: "u1", IsActive: true, Department: "legacy"})
	seed(t, tdb, &auth.User{ID: "u2", IsActive: true, Department: "tenant"})
	seed(t, mem.Legacy(), &auth.User{ID: "u3", IsActive: true, Department: "legacy"})

	loader := NewLoader(mem, CacheOptions{Size: -1})

	cases := []struct {
		name, id, tenant, want string
	}{
		{"platform wins", "u1", "acme", "platform"},
		{"tenant before legacy", "u2", "acme", "tenant"},
		{"legacy last", "u3", "acme", "legacy"},
		{"no tenant hint skips tenant partition", "u3", "", "legacy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := loader.FindByID(ctx, tc.id, tc.tenant)
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if u == nil || u.Department != tc.want {
				t.Fatalf("got %+v, want department %q", u, tc.want)
			}
		})
	}

	t.Run("tenant user invisible without hint", func(t *testing.T) {
		u, err := loader.FindByID(ctx, "u2", "")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if u != nil {
			t.Fatalf("expected miss, got %+v", u)
		}
	})
}

func TestFindByIDInactiveUserEndsSearch(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem.Platform(), &auth.User{ID: "u1", IsActive: false})
	seed(t, mem.Legacy(), &auth.User{ID: "u1", IsActive: true})

	loader := NewLoader(mem, CacheOptions{Size: -1})
	u, err := loader.FindByID(ctx, "u1", "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u != nil {
		t.Fatalf("inactive platform record must not fall through to legacy, got %+v", u)
	}
}

func TestFindByIDOutage(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem.Platform(), &auth.User{ID: "u1", IsActive: true})

	loader := NewLoader(mem, CacheOptions{Size: -1})
	boom := errors.New("down")
	mem.SetError(boom)

	if _, err := loader.FindByID(ctx, "u1", ""); !errors.Is(err, boom) {
		t.Fatalf("expected outage error, got %v", err)
	}
}

func TestFindByIDCaches(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem.Platform(), &auth.User{ID: "u1", IsActive: true, Email: "a@example.com"})

	loader := NewLoader(mem, CacheOptions{Size: 8, TTL: time.Minute})
	first, err := loader.FindByID(ctx, "u1", "")
	if err != nil || first == nil {
		t.Fatalf("warm: %v %v", first, err)
	}

	// The store goes away; the cached copy keeps serving.
	mem.SetError(errors.New("down"))
	cached, err := loader.FindByID(ctx, "u1", "")
	if err != nil || cached == nil {
		t.Fatalf("expected cache hit, got %v %v", cached, err)
	}

	loader.Invalidate("u1", "")
	if _, err := loader.FindByID(ctx, "u1", ""); err == nil {
		t.Fatal("invalidated entry should hit the failing store")
	}
}

func TestFindByEmail(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seed(t, mem.Platform(), &auth.User{ID: "u1", Email: "owner@example.com", IsActive: true})

	loader := NewLoader(mem, CacheOptions{Size: -1})
	u, err := loader.FindByEmail(ctx, "  Owner@Example.com ", "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u == nil || u.ID != "u1" {
		t.Fatalf("email lookup failed: %+v", u)
	}

	u, err = loader.FindByEmail(ctx, "", "")
	if err != nil || u != nil {
		t.Fatalf("blank email should miss quietly: %v %v", u, err)
	}
}

func TestEnrich(t *testing.T) {
	u := &auth.User{
		ID: "u1", Email: "a@example.com", Role: auth.RoleStaff,
		StaffID: "s-9", DepartmentKey: "cardio", Department: "Cardiology",
	}
	ac := Enrich(u, "acme", "sess-1")
	if ac.EmployeeID != "s-9" {
		t.Fatalf("staffId fallback not applied: %q", ac.EmployeeID)
	}
	if ac.TenantID != "acme" || ac.SessionID != "sess-1" || ac.UserRole != auth.RoleStaff {
		t.Fatalf("unexpected context %+v", ac)
	}
}
