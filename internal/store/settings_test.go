package store

import (
	"context"
	"testing"

	"github.com/erazemk/menjava/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
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

func TestPutSettingOverwrites(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if v, _ := GetSetting(ctx, database, SettingTransferMode); v != "" {
		t.Fatalf("expected empty setting, got %q", v)
	}

	PutSetting(ctx, database, SettingTransferMode, "atomic")
	PutSetting(ctx, database, SettingTransferMode, "two-phase")

	v, err := GetSetting(ctx, database, SettingTransferMode)
	if err != nil {
		t.Fatal(err)
	}
	if v != "two-phase" {
		t.Errorf("expected 'two-phase', got %q", v)
	}
}
