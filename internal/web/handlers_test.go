package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Mk007V2/timecapsule/internal/attach"
	"github.com/Mk007V2/timecapsule/internal/config"
	"github.com/Mk007V2/timecapsule/internal/db"
)

// newTestServer spins up the full HTTP stack against a temp database.
func newTestServer(t *testing.T) *httptest.Server {
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

	srv := NewServer(database, store, config.DefaultConfig(), "test", "127.0.0.1", 0)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func createJSON(t *testing.T, ts *httptest.Server, body map[string]any) map[string]any {
	t.Helper()

	payload, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+"/api/capsules", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}

func validBody() map[string]any {
	return map[string]any{
		"recipient_email": "alice@example.com",
		"subject":         "see you in 2027",
		"body":            "a note for **future** you",
		"send_at":         time.Now().Add(24 * time.Hour).Unix(),
	}
}

func TestAPICreateAndGet(t *testing.T) {
	ts := newTestServer(t)

	created := createJSON(t, ts, validBody())
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("no id in response: %v", created)
	}
	if created["status"] != "pending" {
		t.Errorf("status = %v, want pending", created["status"])
	}

	resp, err := http.Get(ts.URL + "/api/capsules/" + id)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if got["recipient_email"] != "alice@example.com" {
		t.Errorf("recipient = %v", got["recipient_email"])
	}
	if got["body"] != "a note for **future** you" {
		t.Errorf("body = %v", got["body"])
	}
}

func TestAPICreate_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"past send_at", func(m map[string]any) { m["send_at"] = time.Now().Add(-time.Hour).Unix() }},
		{"unparseable send_at", func(m map[string]any) { m["send_at"] = "someday" }},
		{"missing send_at", func(m map[string]any) { delete(m, "send_at") }},
		{"missing recipient", func(m map[string]any) { delete(m, "recipient_email") }},
		{"missing subject", func(m map[string]any) { m["subject"] = "" }},
		{"missing body", func(m map[string]any) { m["body"] = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validBody()
			tt.mutate(body)

			payload, _ := json.Marshal(body)
			resp, err := http.Post(ts.URL+"/api/capsules", "application/json", bytes.NewReader(payload))
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}

			var errResp map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			errObj, ok := errResp["error"].(map[string]any)
			if !ok || errObj["code"] != "INVALID_REQUEST" {
				t.Errorf("error = %v, want INVALID_REQUEST", errResp)
			}
		})
	}
}

func TestAPICreate_MalformedJSON(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/capsules", "application/json", strings.NewReader("{nope"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAPICreate_MultipartWithAttachment(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("recipient_email", "bob@example.com")
	_ = mw.WriteField("subject", "with attachment")
	_ = mw.WriteField("body", "see attached")
	_ = mw.WriteField("send_at", fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix()))
	fw, _ := mw.CreateFormFile("attachment", "notes.txt")
	_, _ = fw.Write([]byte("remember the milk"))
	mw.Close()

	resp, err := http.Post(ts.URL+"/api/capsules", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}

	var created map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&created)
	id := created["id"].(string)

	// Download round-trip
	dl, err := http.Get(ts.URL + "/api/capsules/" + id + "/attachment")
	if err != nil {
		t.Fatalf("GET attachment failed: %v", err)
	}
	defer dl.Body.Close()

	if dl.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", dl.StatusCode)
	}
	if cd := dl.Header.Get("Content-Disposition"); !strings.Contains(cd, "notes.txt") {
		t.Errorf("Content-Disposition = %q, want original filename", cd)
	}

	content, _ := io.ReadAll(dl.Body)
	if string(content) != "remember the milk" {
		t.Errorf("content = %q", content)
	}
}

func TestAPICreate_RFC3339SendAt(t *testing.T) {
	ts := newTestServer(t)

	sendAt := time.Now().Add(time.Hour).UTC()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("recipient_email", "carol@example.com")
	_ = mw.WriteField("subject", "rfc3339")
	_ = mw.WriteField("body", "time formats")
	_ = mw.WriteField("send_at", sendAt.Format(time.RFC3339))
	mw.Close()

	resp, err := http.Post(ts.URL+"/api/capsules", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}

	var created map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&created)
	if int64(created["send_at"].(float64)) != sendAt.Unix() {
		t.Errorf("send_at = %v, want %d", created["send_at"], sendAt.Unix())
	}
}

func TestAPICreate_RFC3339SendAtJSON(t *testing.T) {
	ts := newTestServer(t)

	sendAt := time.Now().Add(time.Hour).UTC()

	body := validBody()
	body["send_at"] = sendAt.Format(time.RFC3339)

	created := createJSON(t, ts, body)
	if int64(created["send_at"].(float64)) != sendAt.Unix() {
		t.Errorf("send_at = %v, want %d", created["send_at"], sendAt.Unix())
	}
}

func TestAPICreate_StringUnixSendAtJSON(t *testing.T) {
	ts := newTestServer(t)

	sendAt := time.Now().Add(time.Hour).Unix()

	body := validBody()
	body["send_at"] = fmt.Sprintf("%d", sendAt)

	created := createJSON(t, ts, body)
	if int64(created["send_at"].(float64)) != sendAt {
		t.Errorf("send_at = %v, want %d", created["send_at"], sendAt)
	}
}

func TestAPIList(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		createJSON(t, ts, validBody())
	}

	resp, err := http.Get(ts.URL + "/api/capsules?limit=2")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	items := result["items"].([]any)
	if len(items) != 2 {
		t.Errorf("items = %d, want 2", len(items))
	}
	pagination := result["pagination"].(map[string]any)
	if pagination["total"].(float64) != 3 {
		t.Errorf("total = %v, want 3", pagination["total"])
	}
	if pagination["has_more"] != true {
		t.Error("has_more should be true")
	}
}

func TestAPIDelete(t *testing.T) {
	ts := newTestServer(t)

	created := createJSON(t, ts, validBody())
	id := created["id"].(string)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/capsules/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	after, err := http.Get(ts.URL + "/api/capsules/" + id)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer after.Body.Close()

	if after.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 after delete", after.StatusCode)
	}
}

func TestAPIAttachment_NoAttachment(t *testing.T) {
	ts := newTestServer(t)

	created := createJSON(t, ts, validBody())
	id := created["id"].(string)

	resp, err := http.Get(ts.URL + "/api/capsules/" + id + "/attachment")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListPage(t *testing.T) {
	ts := newTestServer(t)

	createJSON(t, ts, validBody())

	resp, err := http.Get(ts.URL + "/capsules")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "see you in 2027") {
		t.Error("list page should show the capsule subject")
	}
	if !strings.Contains(string(body), "pending") {
		t.Error("list page should show the status")
	}
}

func TestDetailPage_RendersMarkdown(t *testing.T) {
	ts := newTestServer(t)

	created := createJSON(t, ts, validBody())
	id := created["id"].(string)

	resp, err := http.Get(ts.URL + "/capsules/" + id)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<strong>future</strong>") {
		t.Error("detail page should render the body as markdown")
	}
}

func TestRootRedirects(t *testing.T) {
	ts := newTestServer(t)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/capsules" {
		t.Errorf("Location = %q, want /capsules", loc)
	}
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/capsules")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options header")
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy header")
	}
}
