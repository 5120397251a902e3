package session

import (
	"errors"
	"testing"
	"time"

	"linoslms.org/internal/records"
)

func withSecret(t *testing.T, value string) {
	t.Helper()
	ResetSecretForTests()
	t.Setenv("LMS_AUTH_SECRET", value)
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidateToken(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := GenerateToken("USR-1", records.RoleSupervisor, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "USR-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Role != records.RoleSupervisor {
		t.Fatalf("unexpected role %q", claims.Role)
	}
}

func TestGenerateTokenRequiresSecret(t *testing.T) {
	withSecret(t, "")

	if _, err := GenerateToken("USR-1", records.RoleTechnician, time.Minute); err == nil {
		t.Fatal("expected error without configured secret")
	}
}

func TestParseRejectsGarbageAndExpired(t *testing.T) {
	withSecret(t, "test-secret")

	if _, err := ParseAndValidate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	token, err := GenerateToken("USR-1", records.RoleTechnician, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestTokenSignedWithDifferentSecretRejected(t *testing.T) {
	withSecret(t, "secret-a")
	token, err := GenerateToken("USR-1", records.RoleTechnician, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	withSecret(t, "secret-b")
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rejection under different secret, got %v", err)
	}
}
