package auth

import (
	"testing"
	"time"
)

func newTestCodec(t *testing.T, ttl time.Duration) *Codec {
	t.Helper()
	codec, err := NewCodec([]byte("test-secret-test-secret-12345678"), ttl)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func TestCodecSignAndVerify(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	payload := TokenPayload{
		UserID:    "user-1",
		Email:     "user@tenant-a.example",
		Role:      RoleAdmin,
		SessionID: "sess-1",
	}

	token, err := codec.Sign(payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	got, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if *got != payload {
		t.Errorf("round trip mismatch: got %+v want %+v", got, payload)
	}
}

func TestCodecSignRequiresUserID(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	if _, err := codec.Sign(TokenPayload{Email: "a@b.c", Role: RoleStaff}); err == nil {
		t.Fatal("expected error for payload without userId")
	}
	if _, err := codec.Sign(TokenPayload{UserID: "   "}); err == nil {
		t.Fatal("expected error for blank userId")
	}
}

func TestCodecVerifyFailures(t *testing.T) {
	codec := newTestCodec(t, time.Hour)

	t.Run("empty token", func(t *testing.T) {
		if _, err := codec.Verify(""); err != ErrInvalidToken {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("malformed token", func(t *testing.T) {
		if _, err := codec.Verify("not.a.jwt"); err != ErrInvalidToken {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewCodec([]byte("another-secret-entirely-87654321"), time.Hour)
		if err != nil {
			t.Fatalf("NewCodec: %v", err)
		}
		token, err := other.Sign(TokenPayload{UserID: "user-1"})
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		if _, err := codec.Verify(token); err != ErrInvalidToken {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		short := newTestCodec(t, time.Millisecond)
		token, err := short.Sign(TokenPayload{UserID: "user-1"})
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
		if _, err := short.Verify(token); err != ErrInvalidToken {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestNewCodecValidation(t *testing.T) {
	if _, err := NewCodec(nil, time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewCodec([]byte("secret"), 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestRoleHelpers(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleSupervisor, RoleStaff, RoleViewer, RoleGroupAdmin, RoleHospitalAdmin, RoleOwner} {
		if !role.Valid() {
			t.Errorf("role %q should be valid", role)
		}
	}
	if Role("superuser").Valid() {
		t.Error("unknown role should not be valid")
	}
	if !RoleOwner.IsPlatform() {
		t.Error("syra-owner is a platform role")
	}
	if RoleAdmin.IsPlatform() {
		t.Error("admin is tenant-scoped")
	}
}
