package ops

import (
	"database/sql"
	"testing"
	"time"

	"github.com/Mk007V2/timecapsule/internal/attach"
	"github.com/Mk007V2/timecapsule/internal/config"
	"github.com/Mk007V2/timecapsule/internal/db"
)

func testEnv(t *testing.T) (*sql.DB, *attach.Store, *config.Config) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store, err := attach.NewStore(tmpDir)
	if err != nil {
		t.Fatalf("attach.NewStore failed: %v", err)
	}

	return database, store, config.DefaultConfig()
}

func futureUnix() int64 {
	return time.Now().Add(time.Hour).Unix()
}

func validCreateInput() CreateInput {
	return CreateInput{
		RecipientEmail: "alice@example.com",
		Subject:        "hello from the past",
		Body:           "a message for future you",
		SendAt:         futureUnix(),
	}
}
