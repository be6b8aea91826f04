package web

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Mk007V2/timecapsule/internal/attach"
	"github.com/Mk007V2/timecapsule/internal/config"
	"github.com/Mk007V2/timecapsule/internal/errors"
	"github.com/Mk007V2/timecapsule/internal/ops"
)

// Handlers contains HTTP route handlers.
type Handlers struct {
	db          *sql.DB
	attachments *attach.Store
	cfg         *config.Config
	renderer    *Renderer
}

// HandleListPage handles GET /capsules — the capsule queue page.
func (h *Handlers) HandleListPage(w http.ResponseWriter, r *http.Request) {
	input := ops.ListInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	}

	result, err := ops.List(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "list", ListPageData{
		PageData: PageData{
			Title:   "Capsules",
			Version: h.renderer.version,
		},
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleDetailPage handles GET /capsules/{id} — view a single capsule with
// its body rendered as markdown.
func (h *Handlers) HandleDetailPage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("capsule ID is required"))
		return
	}

	c, err := ops.Fetch(r.Context(), h.db, ops.FetchInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: PageData{
			Title:   c.Subject,
			Version: h.renderer.version,
		},
		Capsule:      c,
		RenderedHTML: renderMarkdown(c.Body),
	})
}

// createRequest is the JSON body for POST /api/capsules. SendAt is kept
// raw because it may arrive as a number or an RFC 3339 string.
type createRequest struct {
	RecipientEmail string          `json:"recipient_email"`
	Subject        string          `json:"subject"`
	Body           string          `json:"body"`
	SendAt         json.RawMessage `json:"send_at"`
}

// HandleAPICreate handles POST /api/capsules. Accepts a JSON body, or
// multipart/form-data when the capsule carries an attachment.
func (h *Handlers) HandleAPICreate(w http.ResponseWriter, r *http.Request) {
	input, err := h.parseCreate(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.Create(r.Context(), h.db, h.attachments, h.cfg, *input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/capsules/"+result.ID)
	renderJSON(w, http.StatusCreated, result)
}

// parseCreate decodes the create request from either encoding.
func (h *Handlers) parseCreate(r *http.Request) (*ops.CreateInput, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if contentType == "multipart/form-data" {
		return h.parseCreateMultipart(r)
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}

	sendAt, err := parseSendAtJSON(req.SendAt)
	if err != nil {
		return nil, err
	}

	return &ops.CreateInput{
		RecipientEmail: req.RecipientEmail,
		Subject:        req.Subject,
		Body:           req.Body,
		SendAt:         sendAt,
	}, nil
}

// parseSendAtJSON accepts send_at as a JSON number of Unix seconds, or as
// a string holding a Unix timestamp or RFC 3339 time.
func parseSendAtJSON(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.NewInvalidRequest("send_at is required")
	}

	var unix int64
	if err := json.Unmarshal(raw, &unix); err == nil {
		return unix, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseSendAt(s)
	}

	return 0, errors.NewInvalidRequest("send_at must be a Unix timestamp or RFC 3339 time")
}

func (h *Handlers) parseCreateMultipart(r *http.Request) (*ops.CreateInput, error) {
	// Generous memory cap; the attachment limit proper is enforced in ops
	if err := r.ParseMultipartForm(h.cfg.MaxAttachmentBytes + 1024*1024); err != nil {
		return nil, errors.NewInvalidRequest("invalid multipart form data")
	}

	sendAt, err := parseSendAt(r.FormValue("send_at"))
	if err != nil {
		return nil, err
	}

	input := &ops.CreateInput{
		RecipientEmail: r.FormValue("recipient_email"),
		Subject:        r.FormValue("subject"),
		Body:           r.FormValue("body"),
		SendAt:         sendAt,
	}

	file, header, err := r.FormFile("attachment")
	if err == http.ErrMissingFile {
		return input, nil
	}
	if err != nil {
		return nil, errors.NewInvalidRequest("invalid attachment upload")
	}
	defer file.Close()

	// Read one byte past the limit so ops can report the overrun
	content, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxAttachmentBytes+1))
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	input.Attachment = &ops.AttachmentInput{
		Filename: header.Filename,
		Content:  content,
	}
	return input, nil
}

// parseSendAt accepts a Unix timestamp or an RFC 3339 time.
func parseSendAt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.NewInvalidRequest("send_at is required")
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unix, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.Unix(), nil
	}
	return 0, errors.NewInvalidRequest("send_at must be a Unix timestamp or RFC 3339 time")
}

// HandleAPIList handles GET /api/capsules.
func (h *Handlers) HandleAPIList(w http.ResponseWriter, r *http.Request) {
	result, err := ops.List(r.Context(), h.db, ops.ListInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIGet handles GET /api/capsules/{id}.
func (h *Handlers) HandleAPIGet(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Fetch(r.Context(), h.db, ops.FetchInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIDelete handles DELETE /api/capsules/{id}. Deleting a pending
// capsule cancels its delivery.
func (h *Handlers) HandleAPIDelete(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Delete(r.Context(), h.db, h.attachments, ops.DeleteInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAPIAttachment handles GET /api/capsules/{id}/attachment — download
// the stored attachment under its original filename.
func (h *Handlers) HandleAPIAttachment(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Attachment(r.Context(), h.db, h.attachments, ops.AttachmentFetchInput{
		ID: r.PathValue("id"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename})
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Content)))
	_, _ = w.Write(result.Content)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
