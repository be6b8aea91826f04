package ops

import (
	"context"
	"testing"

	"github.com/Mk007V2/timecapsule/internal/db"
	"github.com/Mk007V2/timecapsule/internal/errors"
)

func TestDelete(t *testing.T) {
	database, store, cfg := testEnv(t)

	created, err := Create(context.Background(), database, store, cfg, validCreateInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	out, err := Delete(context.Background(), database, store, DeleteInput{ID: created.ID})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !out.Deleted || out.ID != created.ID {
		t.Errorf("output = %+v", out)
	}

	if _, err := db.GetByID(context.Background(), database, created.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("capsule should be gone, got %v", err)
	}
}

func TestDelete_RemovesBlob(t *testing.T) {
	database, store, cfg := testEnv(t)

	input := validCreateInput()
	input.Attachment = &AttachmentInput{Filename: "note.txt", Content: []byte("bye")}
	created, err := Create(context.Background(), database, store, cfg, input)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	c, err := db.GetByID(context.Background(), database, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	blob := *c.AttachmentBlob

	if _, err := Delete(context.Background(), database, store, DeleteInput{ID: created.ID}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Read(blob); err == nil {
		t.Error("blob should be removed with the capsule")
	}
}

func TestDelete_NotFound(t *testing.T) {
	database, store, _ := testEnv(t)

	_, err := Delete(context.Background(), database, store, DeleteInput{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestDelete_EmptyID(t *testing.T) {
	database, store, _ := testEnv(t)

	_, err := Delete(context.Background(), database, store, DeleteInput{ID: ""})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
}
