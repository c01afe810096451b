package store

import (
	"context"
	"testing"

	"github.com/erazemk/zahtevki/internal/db"
)

func TestGetJWTSecretGeneratesOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestSetSettingOverwrites(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	missing, err := GetSetting(ctx, database, "company_name")
	if err != nil {
		t.Fatal(err)
	}
	if missing != "" {
		t.Fatalf("expected empty value, got %q", missing)
	}

	SetSetting(ctx, database, "company_name", "Old")
	SetSetting(ctx, database, "company_name", "New")

	got, _ := GetSetting(ctx, database, "company_name")
	if got != "New" {
		t.Errorf("expected 'New', got %q", got)
	}
}
