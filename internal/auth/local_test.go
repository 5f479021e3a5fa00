package auth

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/dnugraha/chatportal/internal/models"
	"github.com/dnugraha/chatportal/internal/storage"
)

func TestLocalAuthenticate(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveUser(ctx, &models.User{
		ID:           "u1",
		Username:     "andi",
		PasswordHash: hash,
		IsAdmin:      true,
	}); err != nil {
		t.Fatal(err)
	}
	// Directory-backed account with no local hash.
	if err := store.SaveUser(ctx, &models.User{ID: "u2", Username: "budi"}); err != nil {
		t.Fatal(err)
	}

	a := NewLocalAuthenticator(store, zap.NewNop())

	profile, err := a.Authenticate(ctx, "andi", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if !profile.IsAdmin || profile.Username != "andi" {
		t.Errorf("unexpected profile: %+v", profile)
	}

	if _, err := a.Authenticate(ctx, "andi", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, err := a.Authenticate(ctx, "budi", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("directory-backed account must fail local auth: err = %v", err)
	}
	if _, err := a.Authenticate(ctx, "ghost", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: err = %v", err)
	}
}

type downAuthenticator struct{}

func (downAuthenticator) Authenticate(ctx context.Context, username, password string) (*Profile, error) {
	return nil, ErrDirectoryDown
}

func TestChainFallsBackToLocal(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	hash, _ := HashPassword("pw")
	store.SaveUser(ctx, &models.User{ID: "u1", Username: "citra", PasswordHash: hash})

	chain := NewChain(zap.NewNop(), downAuthenticator{}, NewLocalAuthenticator(store, zap.NewNop()))

	profile, err := chain.Authenticate(ctx, "citra", "pw")
	if err != nil {
		t.Fatalf("chain did not fall back to local: %v", err)
	}
	if profile.Username != "citra" {
		t.Errorf("unexpected profile: %+v", profile)
	}

	if _, err := chain.Authenticate(ctx, "citra", "bad"); err == nil {
		t.Errorf("expected failure for a bad password")
	}
}

func TestGroupNamesAndAdminCheck(t *testing.T) {
	groups := groupNames([]string{
		"CN=Portal Admins,OU=Groups,DC=example,DC=co",
		"CN=Staff,OU=Groups,DC=example,DC=co",
	})
	if len(groups) != 2 || groups[0] != "portal admins" {
		t.Fatalf("groupNames = %v", groups)
	}
	if !isAdminGroup(groups, []string{"PORTAL ADMINS"}) {
		t.Errorf("admin-group check should be case-insensitive")
	}
	if isAdminGroup(groups, []string{"other"}) {
		t.Errorf("non-member flagged as admin")
	}
}
