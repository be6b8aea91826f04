package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Mk007V2/timecapsule/internal/attach"
	"github.com/Mk007V2/timecapsule/internal/config"
	"github.com/Mk007V2/timecapsule/internal/db"
)

// testSetup creates a temporary database, attachment store, and handlers.
func testSetup(t *testing.T) (*sql.DB, *Handlers) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store, err := attach.NewStore(tmpDir)
	if err != nil {
		t.Fatalf("failed to init attachment store: %v", err)
	}

	return database, NewHandlers(database, store, config.DefaultConfig())
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// resultJSON unmarshals the text payload of a tool result.
func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()

	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	return payload
}

func errorCode(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	if !result.IsError {
		t.Fatal("expected an error result")
	}
	payload := resultJSON(t, result)
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("payload has no error object: %v", payload)
	}
	code, _ := errObj["code"].(string)
	return code
}

func scheduleArgs() map[string]any {
	return map[string]any{
		"recipient_email": "alice@example.com",
		"subject":         "open in a year",
		"body":            "hello future",
		"send_at":         time.Now().Add(24 * time.Hour).Unix(),
	}
}

func TestHandleSchedule(t *testing.T) {
	_, h := testSetup(t)

	result, err := h.HandleSchedule(context.Background(), makeRequest(scheduleArgs()))
	if err != nil {
		t.Fatalf("HandleSchedule failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %v", resultJSON(t, result))
	}

	payload := resultJSON(t, result)
	if payload["id"] == "" {
		t.Error("expected an id in the result")
	}
	if payload["status"] != "pending" {
		t.Errorf("status = %v, want pending", payload["status"])
	}
}

func TestHandleSchedule_PastSendAt(t *testing.T) {
	_, h := testSetup(t)

	args := scheduleArgs()
	args["send_at"] = time.Now().Add(-time.Hour).Unix()

	result, err := h.HandleSchedule(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("HandleSchedule failed: %v", err)
	}
	if code := errorCode(t, result); code != "INVALID_REQUEST" {
		t.Errorf("error code = %q, want INVALID_REQUEST", code)
	}
}

func TestHandleSchedule_MissingRecipient(t *testing.T) {
	_, h := testSetup(t)

	args := scheduleArgs()
	delete(args, "recipient_email")

	result, err := h.HandleSchedule(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("HandleSchedule failed: %v", err)
	}
	if code := errorCode(t, result); code != "INVALID_REQUEST" {
		t.Errorf("error code = %q, want INVALID_REQUEST", code)
	}
}

func TestHandleGet(t *testing.T) {
	_, h := testSetup(t)

	created, err := h.HandleSchedule(context.Background(), makeRequest(scheduleArgs()))
	if err != nil {
		t.Fatalf("HandleSchedule failed: %v", err)
	}
	id := resultJSON(t, created)["id"].(string)

	result, err := h.HandleGet(context.Background(), makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("HandleGet failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %v", resultJSON(t, result))
	}

	payload := resultJSON(t, result)
	if payload["id"] != id {
		t.Errorf("id = %v, want %v", payload["id"], id)
	}
	if payload["body"] != "hello future" {
		t.Errorf("body = %v", payload["body"])
	}
}

func TestHandleGet_NotFound(t *testing.T) {
	_, h := testSetup(t)

	result, err := h.HandleGet(context.Background(), makeRequest(map[string]any{
		"id": "01ARZ3NDEKTSV4RRFFQ69G5FAV",
	}))
	if err != nil {
		t.Fatalf("HandleGet failed: %v", err)
	}
	if code := errorCode(t, result); code != "NOT_FOUND" {
		t.Errorf("error code = %q, want NOT_FOUND", code)
	}
}

func TestHandleList(t *testing.T) {
	_, h := testSetup(t)

	for i := 0; i < 3; i++ {
		if _, err := h.HandleSchedule(context.Background(), makeRequest(scheduleArgs())); err != nil {
			t.Fatalf("HandleSchedule failed: %v", err)
		}
	}

	result, err := h.HandleList(context.Background(), makeRequest(map[string]any{"limit": 2}))
	if err != nil {
		t.Fatalf("HandleList failed: %v", err)
	}

	payload := resultJSON(t, result)
	items, ok := payload["items"].([]any)
	if !ok {
		t.Fatalf("items missing from payload: %v", payload)
	}
	if len(items) != 2 {
		t.Errorf("items = %d, want 2", len(items))
	}

	pagination := payload["pagination"].(map[string]any)
	if pagination["total"].(float64) != 3 {
		t.Errorf("total = %v, want 3", pagination["total"])
	}
}

func TestHandleCancel(t *testing.T) {
	_, h := testSetup(t)

	created, err := h.HandleSchedule(context.Background(), makeRequest(scheduleArgs()))
	if err != nil {
		t.Fatalf("HandleSchedule failed: %v", err)
	}
	id := resultJSON(t, created)["id"].(string)

	result, err := h.HandleCancel(context.Background(), makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("HandleCancel failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %v", resultJSON(t, result))
	}

	// Gone afterwards
	after, err := h.HandleGet(context.Background(), makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("HandleGet failed: %v", err)
	}
	if code := errorCode(t, after); code != "NOT_FOUND" {
		t.Errorf("error code = %q, want NOT_FOUND", code)
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 4 {
		t.Errorf("tool count = %d, want 4", len(names))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"capsule_get", "capsule_teleport"})
	if len(unknown) != 1 || unknown[0] != "capsule_teleport" {
		t.Errorf("unknown = %v, want [capsule_teleport]", unknown)
	}
}
