package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okrtools/goalpost/internal/domain"
)

func TestGenerateAndValidateKey(t *testing.T) {
	store := newMockStore()
	svc := NewAuthService(store, testLogger())
	ctx := context.Background()

	key, raw, err := svc.GenerateKey(ctx, "ci-pipeline")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(raw, "gp_") {
		t.Errorf("raw key %q missing gp_ prefix", raw)
	}
	if !strings.HasPrefix(raw, key.Prefix+".") {
		t.Errorf("raw key %q does not start with stored prefix %q", raw, key.Prefix)
	}
	if key.KeyHash == raw || strings.Contains(key.KeyHash, raw) {
		t.Error("raw key stored instead of hash")
	}

	got, err := svc.ValidateKey(ctx, raw)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.ID != key.ID {
		t.Errorf("validated key ID = %q, want %q", got.ID, key.ID)
	}
	if got.LastUsedAt == nil {
		t.Error("last used timestamp not updated")
	}
}

func TestValidateKeyRejectsBadKeys(t *testing.T) {
	store := newMockStore()
	svc := NewAuthService(store, testLogger())
	ctx := context.Background()

	_, raw, err := svc.GenerateKey(ctx, "ci-pipeline")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	for _, bad := range []string{
		"",
		"no-separator",
		"gp_deadbeef.wrongsecret",
		raw + "x",
	} {
		if _, err := svc.ValidateKey(ctx, bad); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateKey(%q) = %v, want ErrInvalidKey", bad, err)
		}
	}
}

func TestGenerateKeyRequiresName(t *testing.T) {
	svc := NewAuthService(newMockStore(), testLogger())

	_, _, err := svc.GenerateKey(context.Background(), "  ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
