package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ridgeline-io/datagate/internal/domain/auth"
)

func TestCredentialStore_GetCredential(t *testing.T) {
	t.Parallel()
	store := NewCredentialStore()
	store.Put(auth.Credential{Username: "alice", Role: auth.RoleAdmin, Active: true})

	got, err := store.GetCredential(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetCredential() error = %v", err)
	}
	if got.Role != auth.RoleAdmin {
		t.Errorf("Role = %q, want %q", got.Role, auth.RoleAdmin)
	}
}

func TestCredentialStore_GetCredential_NotFound(t *testing.T) {
	t.Parallel()
	store := NewCredentialStore()
	_, err := store.GetCredential(context.Background(), "nobody")
	if !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
}
